package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.SalesHistoryRepository = (*SalesHistoryRepo)(nil)

// SalesHistoryRepo agrega las salidas por venta desde inventory_mutations.
// La demanda diaria se deriva del propio libro de movimientos, no de una
// tabla de ventas aparte.
type SalesHistoryRepo struct {
	q Querier
}

// NewSalesHistoryRepository construye el adaptador de histórico de ventas.
func NewSalesHistoryRepository(q Querier) *SalesHistoryRepo {
	return &SalesHistoryRepo{q: q}
}

// GetDailyUnitsSold unidades vendidas por día desde la fecha dada.
// Las mutaciones SALE llevan cantidad negativa; aquí se devuelven en positivo.
// Los días sin ventas no aparecen en el resultado.
func (r *SalesHistoryRepo) GetDailyUnitsSold(ctx context.Context, productID, branchID string, since time.Time) ([]repository.DailyUnits, error) {
	query := `
		SELECT DATE(created_at) AS day, COALESCE(SUM(-quantity), 0) AS units
		FROM inventory_mutations
		WHERE product_id = $1
		  AND branch_id = $2
		  AND type = $3
		  AND created_at >= $4
		GROUP BY DATE(created_at)
		ORDER BY day ASC`
	rows, err := r.q.Query(ctx, query, productID, branchID, entity.MutationTypeSale, since)
	if err != nil {
		return nil, fmt.Errorf("daily units sold: %w", err)
	}
	defer rows.Close()

	var result []repository.DailyUnits
	for rows.Next() {
		var du repository.DailyUnits
		if err := rows.Scan(&du.Date, &du.Units); err != nil {
			return nil, fmt.Errorf("scan daily units: %w", err)
		}
		result = append(result, du)
	}
	return result, rows.Err()
}
