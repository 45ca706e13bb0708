package transfer

import (
	"sync"

	"github.com/jhoicas/inventario-perecederos/internal/domain"
)

type reservationKey struct {
	branchID  string
	productID string
}

type reservation struct {
	key reservationKey
	qty int
}

// ReservationBook lleva las reservas blandas de stock entre la aprobación y
// el despacho de un traslado, en memoria de proceso (el alcance acordado: sin
// coordinador distribuido). Reserve hace check-then-reserve bajo el mismo
// mutex, así dos aprobaciones concurrentes no comprometen las mismas
// unidades.
type ReservationBook struct {
	mu         sync.Mutex
	byTransfer map[string]reservation
	totals     map[reservationKey]int
}

// NewReservationBook construye un libro de reservas vacío.
func NewReservationBook() *ReservationBook {
	return &ReservationBook{
		byTransfer: make(map[string]reservation),
		totals:     make(map[reservationKey]int),
	}
}

// Reserve reserva qty unidades del producto en la sucursal para un traslado.
// currentStock es el stock físico no dado de baja leído por el caller; la
// comprobación de disponibilidad (stock menos reservas vigentes) y el alta de
// la reserva ocurren atómicamente. Reservar dos veces el mismo traslado es
// un no-op.
func (rb *ReservationBook) Reserve(transferID, branchID, productID string, qty, currentStock int) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if _, ok := rb.byTransfer[transferID]; ok {
		return nil
	}
	key := reservationKey{branchID: branchID, productID: productID}
	available := currentStock - rb.totals[key]
	if qty > available {
		return &domain.InsufficientStockError{
			ProductID: productID,
			BranchID:  branchID,
			Requested: qty,
			Available: available,
		}
	}
	rb.byTransfer[transferID] = reservation{key: key, qty: qty}
	rb.totals[key] += qty
	return nil
}

// Release libera la reserva de un traslado (cancelación o despacho). Liberar
// una reserva inexistente es un no-op.
func (rb *ReservationBook) Release(transferID string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	r, ok := rb.byTransfer[transferID]
	if !ok {
		return
	}
	delete(rb.byTransfer, transferID)
	rb.totals[r.key] -= r.qty
	if rb.totals[r.key] <= 0 {
		delete(rb.totals, r.key)
	}
}

// Reserved unidades reservadas de un producto en una sucursal.
func (rb *ReservationBook) Reserved(branchID, productID string) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.totals[reservationKey{branchID: branchID, productID: productID}]
}
