package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del workflow de traslado entre sucursales.
const (
	TransferStatusRequested = "REQUESTED"
	TransferStatusApproved  = "APPROVED"
	TransferStatusShipped   = "SHIPPED"
	TransferStatusReceived  = "RECEIVED"
	TransferStatusRejected  = "REJECTED"
	TransferStatusCancelled = "CANCELLED"
)

// transiciones legales del workflow; todo lo demás es InvalidTransition.
var transferTransitions = map[string][]string{
	TransferStatusRequested: {TransferStatusApproved, TransferStatusRejected, TransferStatusCancelled},
	TransferStatusApproved:  {TransferStatusShipped, TransferStatusCancelled},
	TransferStatusShipped:   {TransferStatusReceived},
}

// CanTransition true si el paso from -> to es legal en el workflow.
func CanTransition(from, to string) bool {
	for _, s := range transferTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransferStatusTerminal true para estados finales (no admiten más pasos).
func TransferStatusTerminal(status string) bool {
	return len(transferTransitions[status]) == 0
}

// InventoryTransfer un traslado de stock entre sucursales, con trazabilidad
// completa de quién pidió, aprobó, despachó y recibió. Solo el workflow lo
// muta, y cada paso queda en TransferStatusHistory.
type InventoryTransfer struct {
	ID            string
	TransferNumber string // generado, único, legible
	SourceBranchID string
	TargetBranchID string
	ProductID     string
	Quantity      int
	Status        string
	EstimatedCost decimal.Decimal
	Reason        string
	RequestedBy   string
	ApprovedBy    string
	ShippedBy     string
	ReceivedBy    string
	RequestedAt   time.Time
	ApprovedAt    *time.Time
	ShippedAt     *time.Time
	ReceivedAt    *time.Time
	ClosedReason  string // motivo de rechazo o cancelación
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransferStatusHistory registro append-only de cada transición del workflow.
type TransferStatusHistory struct {
	ID         string
	TransferID string
	FromStatus string
	ToStatus   string
	Actor      string
	Reason     string
	CreatedAt  time.Time
}
