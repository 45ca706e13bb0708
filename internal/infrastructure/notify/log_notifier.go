// Package notify implementa el puerto de notificaciones sobre el logger
// estructurado. El sistema de notificaciones real (correo, push) vive fuera
// de este núcleo; aquí cada evento queda como una línea de log JSON que los
// colectores pueden enrutar.
package notify

import (
	"context"

	appnotify "github.com/jhoicas/inventario-perecederos/internal/application/notify"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

var _ appnotify.Notifier = (*LogNotifier)(nil)

// LogNotifier emite cada evento como log estructurado. Nunca falla:
// notificar y seguir.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier construye el notificador sobre el logger dado.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, event appnotify.Event) {
	n.log.Info().
		Str("event", event.Type).
		Str("branch_id", event.BranchID).
		Str("product_id", event.ProductID).
		Str("batch_id", event.BatchID).
		Str("transfer_id", event.TransferID).
		Str("status", event.Status).
		Int("days_until_expiry", event.DaysUntilExpiry).
		Int("units", event.Units).
		Str("value", event.Value.String()).
		Time("occurred_at", event.OccurredAt).
		Msg(event.Message)
}
