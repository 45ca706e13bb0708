package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/inventario-perecederos/internal/application/notify"
)

var _ notify.Notifier = (*Notifier)(nil)

// Notifier captura los eventos emitidos, para inspeccionarlos en pruebas.
type Notifier struct {
	mu     sync.Mutex
	events []notify.Event
}

// NewNotifier construye un notificador de captura vacío.
func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Notify(ctx context.Context, event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events copia de los eventos capturados hasta ahora.
func (n *Notifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

// EventsOfType los eventos capturados de un tipo dado.
func (n *Notifier) EventsOfType(eventType string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var result []notify.Event
	for _, e := range n.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}
