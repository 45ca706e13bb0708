package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

const batchColumns = `id, product_id, branch_id, batch_number, initial_stock, current_stock,
	cost_per_unit, received_date, expiry_date, disposed, disposed_at, expired_flagged_at,
	created_at, updated_at`

// Orden FIFO canónico: vencimiento ascendente con nulos al final, luego
// recepción, luego ID (totalmente determinista).
const batchFIFOOrder = `ORDER BY expiry_date ASC NULLS LAST, received_date ASC, id ASC`

// BatchRepo implementación de BatchRepository sobre PostgreSQL (usable con
// pool o tx).
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// Create persiste un lote nuevo.
func (r *BatchRepo) Create(ctx context.Context, b *entity.ProductBatch) error {
	query := `
		INSERT INTO product_batches (` + batchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.ProductID, b.BranchID, b.BatchNumber, b.InitialStock, b.CurrentStock,
		b.CostPerUnit, b.ReceivedDate, b.ExpiryDate, b.Disposed, b.DisposedAt, b.ExpiredFlaggedAt,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ValidationError{Field: "batchNumber", Reason: "ya existe para el producto y la sucursal"}
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetByID obtiene un lote por ID.
func (r *BatchRepo) GetByID(ctx context.Context, id string) (*entity.ProductBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM product_batches WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), "get batch")
}

// GetForUpdate obtiene un lote bloqueando su fila (SELECT FOR UPDATE); base
// de la serialización por lote de AdjustStock.
func (r *BatchRepo) GetForUpdate(ctx context.Context, id string) (*entity.ProductBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM product_batches WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id), "get batch for update")
}

// Update persiste stock, flags de baja y marcador de vencido de un lote.
func (r *BatchRepo) Update(ctx context.Context, b *entity.ProductBatch) error {
	query := `
		UPDATE product_batches
		SET current_stock = $2, disposed = $3, disposed_at = $4,
		    expired_flagged_at = $5, updated_at = $6
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		b.ID, b.CurrentStock, b.Disposed, b.DisposedAt, b.ExpiredFlaggedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListForProduct lotes de un producto en una sucursal, en orden FIFO.
func (r *BatchRepo) ListForProduct(ctx context.Context, productID, branchID string, f repository.BatchFilter) ([]*entity.ProductBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM product_batches
		WHERE product_id = $1 AND branch_id = $2
		  AND ($3 OR NOT disposed)
		  AND ($4 OR expiry_date IS NULL OR expiry_date > $5)
		` + batchFIFOOrder
	rows, err := r.q.Query(ctx, query,
		productID, branchID, f.IncludeDisposed, f.IncludeExpired, dateOnly(f.Today),
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return r.scanMany(rows)
}

// ListExpiringBefore lotes no dados de baja con vencimiento hasta la fecha.
func (r *BatchRepo) ListExpiringBefore(ctx context.Context, date time.Time) ([]*entity.ProductBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM product_batches
		WHERE NOT disposed AND expiry_date IS NOT NULL AND expiry_date <= $1
		` + batchFIFOOrder
	rows, err := r.q.Query(ctx, query, dateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("list expiring batches: %w", err)
	}
	return r.scanMany(rows)
}

// ListWithExpiry todos los lotes no dados de baja con vencimiento (barrido).
func (r *BatchRepo) ListWithExpiry(ctx context.Context) ([]*entity.ProductBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM product_batches
		WHERE NOT disposed AND expiry_date IS NOT NULL
		` + batchFIFOOrder
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list batches with expiry: %w", err)
	}
	return r.scanMany(rows)
}

// StockByBranch stock actual de un producto agregado por sucursal (lotes no
// dados de baja).
func (r *BatchRepo) StockByBranch(ctx context.Context, productID string) ([]repository.BranchStock, error) {
	query := `
		SELECT branch_id, COALESCE(SUM(current_stock), 0)
		FROM product_batches
		WHERE product_id = $1 AND NOT disposed
		GROUP BY branch_id
		ORDER BY branch_id`
	rows, err := r.q.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("stock by branch: %w", err)
	}
	defer rows.Close()

	var result []repository.BranchStock
	for rows.Next() {
		var s repository.BranchStock
		if err := rows.Scan(&s.BranchID, &s.Units); err != nil {
			return nil, fmt.Errorf("scan branch stock: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *BatchRepo) scanOne(row pgx.Row, op string) (*entity.ProductBatch, error) {
	var b entity.ProductBatch
	err := row.Scan(
		&b.ID, &b.ProductID, &b.BranchID, &b.BatchNumber, &b.InitialStock, &b.CurrentStock,
		&b.CostPerUnit, &b.ReceivedDate, &b.ExpiryDate, &b.Disposed, &b.DisposedAt, &b.ExpiredFlaggedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

func (r *BatchRepo) scanMany(rows pgx.Rows) ([]*entity.ProductBatch, error) {
	defer rows.Close()
	var batches []*entity.ProductBatch
	for rows.Next() {
		var b entity.ProductBatch
		err := rows.Scan(
			&b.ID, &b.ProductID, &b.BranchID, &b.BatchNumber, &b.InitialStock, &b.CurrentStock,
			&b.CostPerUnit, &b.ReceivedDate, &b.ExpiryDate, &b.Disposed, &b.DisposedAt, &b.ExpiredFlaggedAt,
			&b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

// dateOnly trunca a medianoche: "vencido" se decide por fecha, no por hora.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
