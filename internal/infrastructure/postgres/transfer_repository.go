package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

const transferColumns = `id, transfer_number, source_branch_id, target_branch_id, product_id,
	quantity, status, estimated_cost, reason, requested_by, approved_by, shipped_by, received_by,
	requested_at, approved_at, shipped_at, received_at, closed_reason, created_at, updated_at`

// TransferRepo implementación de TransferRepository sobre PostgreSQL.
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador de traslados. Pasar pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

// Create persiste un traslado nuevo.
func (r *TransferRepo) Create(ctx context.Context, t *entity.InventoryTransfer) error {
	query := `
		INSERT INTO inventory_transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.TransferNumber, t.SourceBranchID, t.TargetBranchID, t.ProductID,
		t.Quantity, t.Status, t.EstimatedCost, t.Reason, t.RequestedBy, t.ApprovedBy, t.ShippedBy, t.ReceivedBy,
		t.RequestedAt, t.ApprovedAt, t.ShippedAt, t.ReceivedAt, t.ClosedReason, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ValidationError{Field: "transferNumber", Reason: "ya existe"}
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID obtiene un traslado por ID.
func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.InventoryTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM inventory_transfers WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), "get transfer")
}

// GetForUpdate obtiene un traslado bloqueando su fila (SELECT FOR UPDATE);
// serializa transiciones concurrentes sobre el mismo traslado.
func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.InventoryTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM inventory_transfers WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id), "get transfer for update")
}

// Update persiste estado, actores y timestamps de un traslado.
func (r *TransferRepo) Update(ctx context.Context, t *entity.InventoryTransfer) error {
	query := `
		UPDATE inventory_transfers
		SET status = $2, approved_by = $3, shipped_by = $4, received_by = $5,
		    approved_at = $6, shipped_at = $7, received_at = $8,
		    closed_reason = $9, updated_at = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		t.ID, t.Status, t.ApprovedBy, t.ShippedBy, t.ReceivedBy,
		t.ApprovedAt, t.ShippedAt, t.ReceivedAt, t.ClosedReason, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List traslados según filtro, más recientes primero.
func (r *TransferRepo) List(ctx context.Context, f repository.TransferFilter) ([]*entity.InventoryTransfer, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + transferColumns + `
		FROM inventory_transfers
		WHERE ($1 = '' OR source_branch_id = $1 OR target_branch_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY requested_at DESC, id DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, f.BranchID, f.Status, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return r.scanMany(rows)
}

// ListByStatus todos los traslados en un estado.
func (r *TransferRepo) ListByStatus(ctx context.Context, status string) ([]*entity.InventoryTransfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM inventory_transfers
		WHERE status = $1
		ORDER BY requested_at ASC, id ASC`
	rows, err := r.q.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list transfers by status: %w", err)
	}
	return r.scanMany(rows)
}

func (r *TransferRepo) scanOne(row pgx.Row, op string) (*entity.InventoryTransfer, error) {
	var t entity.InventoryTransfer
	err := row.Scan(
		&t.ID, &t.TransferNumber, &t.SourceBranchID, &t.TargetBranchID, &t.ProductID,
		&t.Quantity, &t.Status, &t.EstimatedCost, &t.Reason, &t.RequestedBy, &t.ApprovedBy, &t.ShippedBy, &t.ReceivedBy,
		&t.RequestedAt, &t.ApprovedAt, &t.ShippedAt, &t.ReceivedAt, &t.ClosedReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

func (r *TransferRepo) scanMany(rows pgx.Rows) ([]*entity.InventoryTransfer, error) {
	defer rows.Close()
	var transfers []*entity.InventoryTransfer
	for rows.Next() {
		var t entity.InventoryTransfer
		err := rows.Scan(
			&t.ID, &t.TransferNumber, &t.SourceBranchID, &t.TargetBranchID, &t.ProductID,
			&t.Quantity, &t.Status, &t.EstimatedCost, &t.Reason, &t.RequestedBy, &t.ApprovedBy, &t.ShippedBy, &t.ReceivedBy,
			&t.RequestedAt, &t.ApprovedAt, &t.ShippedAt, &t.ReceivedAt, &t.ClosedReason, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, &t)
	}
	return transfers, rows.Err()
}
