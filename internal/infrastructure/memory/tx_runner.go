package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/inventario-perecederos/internal/application/ledger"
	"github.com/jhoicas/inventario-perecederos/internal/application/transfer"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ ledger.TxRunner = (*TxRunner)(nil)
var _ transfer.TxRunner = (*TxRunner)(nil)

// noopLocker para repos que corren dentro de una transacción: el TxRunner ya
// tiene el mutex del Store tomado.
type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// TxRunner simula transacciones tomando el mutex del Store durante toda la
// función y revirtiendo el estado si devuelve error. Equivale a una
// transacción serializable con bloqueo de filas.
type TxRunner struct {
	s *Store
}

// NewTxRunner construye el runner de transacciones en memoria.
func NewTxRunner(s *Store) *TxRunner {
	return &TxRunner{s: s}
}

// Run implementa ledger.TxRunner.
func (r *TxRunner) Run(ctx context.Context, fn func(
	batchRepo repository.BatchRepository,
	mutRepo repository.MutationRepository,
) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snap := r.s.takeSnapshot()
	err := fn(
		&BatchRepo{s: r.s, l: noopLocker{}},
		&MutationRepo{s: r.s, l: noopLocker{}},
	)
	if err != nil {
		r.s.restore(snap)
	}
	return err
}

// RunTransfer implementa transfer.TxRunner.
func (r *TxRunner) RunTransfer(ctx context.Context, fn func(
	batchRepo repository.BatchRepository,
	mutRepo repository.MutationRepository,
	transferRepo repository.TransferRepository,
	historyRepo repository.StatusHistoryRepository,
) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	snap := r.s.takeSnapshot()
	err := fn(
		&BatchRepo{s: r.s, l: noopLocker{}},
		&MutationRepo{s: r.s, l: noopLocker{}},
		&TransferRepo{s: r.s, l: noopLocker{}},
		&StatusHistoryRepo{s: r.s, l: noopLocker{}},
	)
	if err != nil {
		r.s.restore(snap)
	}
	return err
}

var _ sync.Locker = noopLocker{}
