package transfer

import (
	"context"

	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD con los
// repositorios del workflow atados a esa tx (lotes, auditoría, traslados e
// historial de estados quedan consistentes o nada queda).
type TxRunner interface {
	RunTransfer(ctx context.Context, fn func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error) error
}
