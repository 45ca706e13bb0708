package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.StatusHistoryRepository = (*StatusHistoryRepo)(nil)

// StatusHistoryRepo implementación de StatusHistoryRepository sobre
// PostgreSQL. Append-only.
type StatusHistoryRepo struct {
	q Querier
}

// NewStatusHistoryRepository construye el adaptador de historial. Pasar pool o tx (Querier).
func NewStatusHistoryRepository(q Querier) *StatusHistoryRepo {
	return &StatusHistoryRepo{q: q}
}

// Create inserta un registro de transición.
func (r *StatusHistoryRepo) Create(ctx context.Context, h *entity.TransferStatusHistory) error {
	query := `
		INSERT INTO transfer_status_history (id, transfer_id, from_status, to_status, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		h.ID, h.TransferID, h.FromStatus, h.ToStatus, h.Actor, h.Reason, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// ListByTransfer historial de un traslado en orden cronológico.
func (r *StatusHistoryRepo) ListByTransfer(ctx context.Context, transferID string) ([]*entity.TransferStatusHistory, error) {
	query := `
		SELECT id, transfer_id, from_status, to_status, actor, reason, created_at
		FROM transfer_status_history
		WHERE transfer_id = $1
		ORDER BY created_at ASC, id ASC`
	rows, err := r.q.Query(ctx, query, transferID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransferStatusHistory
	for rows.Next() {
		var h entity.TransferStatusHistory
		if err := rows.Scan(&h.ID, &h.TransferID, &h.FromStatus, &h.ToStatus, &h.Actor, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		records = append(records, &h)
	}
	return records, rows.Err()
}
