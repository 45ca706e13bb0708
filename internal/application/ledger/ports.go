package ledger

import (
	"context"

	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando
// repositorios atados a esa tx. Junto con GetForUpdate del lote, garantiza la
// serialización por lote de todas las mutaciones de stock.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
	) error) error
}

// ReservationReader expone las unidades comprometidas por traslados aprobados
// de un producto en una sucursal. Una venta no puede consumir unidades
// reservadas: el libro las trata como no disponibles.
type ReservationReader interface {
	Reserved(branchID, productID string) int
}
