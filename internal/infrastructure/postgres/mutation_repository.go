package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.MutationRepository = (*MutationRepo)(nil)

const mutationColumns = `id, batch_id, product_id, branch_id, type, quantity,
	resulting_stock, unit_cost, reference, created_at, created_by`

// MutationRepo implementación de MutationRepository sobre PostgreSQL. Solo
// inserta y lista: la tabla es append-only por diseño de auditoría.
type MutationRepo struct {
	q Querier
}

// NewMutationRepository construye el adaptador de auditoría. Pasar pool o tx (Querier).
func NewMutationRepository(q Querier) *MutationRepo {
	return &MutationRepo{q: q}
}

// Create inserta un registro de auditoría.
func (r *MutationRepo) Create(ctx context.Context, m *entity.InventoryMutation) error {
	query := `
		INSERT INTO inventory_mutations (` + mutationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.BatchID, m.ProductID, m.BranchID, m.Type, m.Quantity,
		m.ResultingStock, m.UnitCost, m.Reference, m.CreatedAt, m.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert mutation: %w", err)
	}
	return nil
}

// ListByBatch mutaciones de un lote en orden cronológico.
func (r *MutationRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.InventoryMutation, error) {
	query := `
		SELECT ` + mutationColumns + `
		FROM inventory_mutations
		WHERE batch_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list mutations by batch: %w", err)
	}
	return r.scanMany(rows)
}

// ListByReference mutaciones con una referencia (ej. número de traslado).
func (r *MutationRepo) ListByReference(ctx context.Context, reference string) ([]*entity.InventoryMutation, error) {
	query := `
		SELECT ` + mutationColumns + `
		FROM inventory_mutations
		WHERE reference = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("list mutations by reference: %w", err)
	}
	return r.scanMany(rows)
}

// ListByType mutaciones de un tipo en una sucursal y rango de fechas.
// branchID vacío = todas las sucursales.
func (r *MutationRepo) ListByType(ctx context.Context, branchID, mutationType string, from, to time.Time) ([]*entity.InventoryMutation, error) {
	query := `
		SELECT ` + mutationColumns + `
		FROM inventory_mutations
		WHERE type = $1 AND ($2 = '' OR branch_id = $2)
		  AND created_at >= $3 AND created_at < $4
		ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, query, mutationType, branchID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list mutations by type: %w", err)
	}
	return r.scanMany(rows)
}

func (r *MutationRepo) scanMany(rows pgx.Rows) ([]*entity.InventoryMutation, error) {
	defer rows.Close()
	var muts []*entity.InventoryMutation
	for rows.Next() {
		var m entity.InventoryMutation
		err := rows.Scan(
			&m.ID, &m.BatchID, &m.ProductID, &m.BranchID, &m.Type, &m.Quantity,
			&m.ResultingStock, &m.UnitCost, &m.Reference, &m.CreatedAt, &m.CreatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		muts = append(muts, &m)
	}
	return muts, rows.Err()
}
