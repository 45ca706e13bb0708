package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.MutationRepository = (*MutationRepo)(nil)

// MutationRepo adaptador en memoria del registro de mutaciones. Solo
// inserción, como el puerto exige.
type MutationRepo struct {
	s *Store
	l sync.Locker
}

// NewMutationRepository construye un adaptador de mutaciones independiente.
func NewMutationRepository(s *Store) *MutationRepo {
	return &MutationRepo{s: s, l: &s.mu}
}

func (r *MutationRepo) Create(ctx context.Context, mutation *entity.InventoryMutation) error {
	r.l.Lock()
	defer r.l.Unlock()
	r.s.mutations = append(r.s.mutations, cloneMutation(mutation))
	return nil
}

func (r *MutationRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.InventoryMutation, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.InventoryMutation
	for _, m := range r.s.mutations {
		if m.BatchID == batchID {
			result = append(result, cloneMutation(m))
		}
	}
	return result, nil
}

func (r *MutationRepo) ListByReference(ctx context.Context, reference string) ([]*entity.InventoryMutation, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.InventoryMutation
	for _, m := range r.s.mutations {
		if m.Reference == reference {
			result = append(result, cloneMutation(m))
		}
	}
	return result, nil
}

func (r *MutationRepo) ListByType(ctx context.Context, branchID, mutationType string, from, to time.Time) ([]*entity.InventoryMutation, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.InventoryMutation
	for _, m := range r.s.mutations {
		if m.Type != mutationType {
			continue
		}
		if branchID != "" && m.BranchID != branchID {
			continue
		}
		if m.CreatedAt.Before(from) || !m.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cloneMutation(m))
	}
	return result, nil
}
