package repository

import (
	"context"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
)

// StatusHistoryRepository define el puerto para el historial append-only de
// transiciones del workflow de traslados.
type StatusHistoryRepository interface {
	Create(ctx context.Context, record *entity.TransferStatusHistory) error
	ListByTransfer(ctx context.Context, transferID string) ([]*entity.TransferStatusHistory, error)
}
