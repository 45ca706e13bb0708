// Package notify define el puerto hacia el sistema de notificaciones
// (colaborador externo). Las llamadas son fire-and-forget: un fallo al
// notificar nunca hace fallar la operación que lo disparó.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de evento que emite el núcleo.
const (
	EventExpiryWarning     = "EXPIRY_WARNING"
	EventExpiryUrgent      = "EXPIRY_URGENT"
	EventExpiryExpired     = "EXPIRY_EXPIRED"
	EventDisposalCompleted = "DISPOSAL_COMPLETED"
	EventTransferStatus    = "TRANSFER_STATUS_CHANGED"
)

// Event carga estructurada de una notificación. Los campos no aplicables
// quedan en cero.
type Event struct {
	Type            string
	BranchID        string
	ProductID       string
	BatchID         string
	TransferID      string
	Status          string // solo eventos de traslado
	DaysUntilExpiry int
	Units           int
	Value           decimal.Decimal
	Message         string
	OccurredAt      time.Time
}

// Notifier puerto de notificaciones. La implementación no debe devolver
// error: notificar y seguir.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}
