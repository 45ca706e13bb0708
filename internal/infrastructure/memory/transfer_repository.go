package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)
var _ repository.StatusHistoryRepository = (*StatusHistoryRepo)(nil)

// TransferRepo adaptador en memoria de traslados.
type TransferRepo struct {
	s *Store
	l sync.Locker
}

// NewTransferRepository construye un adaptador de traslados independiente.
func NewTransferRepository(s *Store) *TransferRepo {
	return &TransferRepo{s: s, l: &s.mu}
}

func (r *TransferRepo) Create(ctx context.Context, transfer *entity.InventoryTransfer) error {
	r.l.Lock()
	defer r.l.Unlock()
	r.s.transfers[transfer.ID] = cloneTransfer(transfer)
	return nil
}

func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.InventoryTransfer, error) {
	r.l.Lock()
	defer r.l.Unlock()
	t, ok := r.s.transfers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTransfer(t), nil
}

// GetForUpdate en memoria es igual a GetByID: el mutex del Store ya
// serializa la transacción entera.
func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.InventoryTransfer, error) {
	return r.GetByID(ctx, id)
}

func (r *TransferRepo) Update(ctx context.Context, transfer *entity.InventoryTransfer) error {
	r.l.Lock()
	defer r.l.Unlock()
	if _, ok := r.s.transfers[transfer.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.transfers[transfer.ID] = cloneTransfer(transfer)
	return nil
}

func (r *TransferRepo) List(ctx context.Context, f repository.TransferFilter) ([]*entity.InventoryTransfer, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var all []*entity.InventoryTransfer
	for _, t := range r.s.transfers {
		if f.BranchID != "" && t.SourceBranchID != f.BranchID && t.TargetBranchID != f.BranchID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		all = append(all, cloneTransfer(t))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].RequestedAt.Equal(all[j].RequestedAt) {
			return all[i].RequestedAt.After(all[j].RequestedAt)
		}
		return all[i].ID < all[j].ID
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *TransferRepo) ListByStatus(ctx context.Context, status string) ([]*entity.InventoryTransfer, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.InventoryTransfer
	for _, t := range r.s.transfers {
		if t.Status == status {
			result = append(result, cloneTransfer(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// StatusHistoryRepo adaptador en memoria del historial de transiciones.
type StatusHistoryRepo struct {
	s *Store
	l sync.Locker
}

// NewStatusHistoryRepository construye un adaptador de historial
// independiente.
func NewStatusHistoryRepository(s *Store) *StatusHistoryRepo {
	return &StatusHistoryRepo{s: s, l: &s.mu}
}

func (r *StatusHistoryRepo) Create(ctx context.Context, record *entity.TransferStatusHistory) error {
	r.l.Lock()
	defer r.l.Unlock()
	r.s.history = append(r.s.history, cloneHistory(record))
	return nil
}

func (r *StatusHistoryRepo) ListByTransfer(ctx context.Context, transferID string) ([]*entity.TransferStatusHistory, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.TransferStatusHistory
	for _, h := range r.s.history {
		if h.TransferID == transferID {
			result = append(result, cloneHistory(h))
		}
	}
	return result, nil
}
