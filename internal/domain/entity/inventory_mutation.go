package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de mutación de stock sobre un lote.
const (
	MutationTypeSale        = "SALE"
	MutationTypeTransferOut = "TRANSFER_OUT"
	MutationTypeTransferIn  = "TRANSFER_IN"
	MutationTypeDisposal    = "DISPOSAL"
	MutationTypeAdjustment  = "ADJUSTMENT"
)

// ValidMutationType true si el tipo es uno de los conocidos.
func ValidMutationType(t string) bool {
	switch t {
	case MutationTypeSale, MutationTypeTransferOut, MutationTypeTransferIn,
		MutationTypeDisposal, MutationTypeAdjustment:
		return true
	}
	return false
}

// InventoryMutation registro de auditoría append-only: cada delta de stock
// contra un lote, con el stock resultante y quién lo ejecutó. Nunca se
// actualiza ni se borra.
type InventoryMutation struct {
	ID             string
	BatchID        string
	ProductID      string
	BranchID       string
	Type           string
	Quantity       int // delta firmado: negativo para salidas
	ResultingStock int // stock del lote después de aplicar el delta
	UnitCost       decimal.Decimal
	Reference      string // ej. número de traslado o nota de baja
	CreatedAt      time.Time
	CreatedBy      string
}
