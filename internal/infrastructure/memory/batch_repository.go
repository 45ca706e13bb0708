package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo adaptador en memoria de lotes.
type BatchRepo struct {
	s *Store
	l sync.Locker
}

// NewBatchRepository construye un adaptador de lotes independiente (fuera de
// transacción).
func NewBatchRepository(s *Store) *BatchRepo {
	return &BatchRepo{s: s, l: &s.mu}
}

func (r *BatchRepo) Create(ctx context.Context, batch *entity.ProductBatch) error {
	r.l.Lock()
	defer r.l.Unlock()
	for _, b := range r.s.batches {
		if b.ProductID == batch.ProductID && b.BranchID == batch.BranchID && b.BatchNumber == batch.BatchNumber {
			return &domain.ValidationError{Field: "batch_number", Reason: "número de lote duplicado"}
		}
	}
	r.s.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (r *BatchRepo) GetByID(ctx context.Context, id string) (*entity.ProductBatch, error) {
	r.l.Lock()
	defer r.l.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBatch(b), nil
}

// GetForUpdate en memoria es igual a GetByID: el mutex del Store ya
// serializa la transacción entera.
func (r *BatchRepo) GetForUpdate(ctx context.Context, id string) (*entity.ProductBatch, error) {
	return r.GetByID(ctx, id)
}

func (r *BatchRepo) Update(ctx context.Context, batch *entity.ProductBatch) error {
	r.l.Lock()
	defer r.l.Unlock()
	if _, ok := r.s.batches[batch.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (r *BatchRepo) ListForProduct(ctx context.Context, productID, branchID string, f repository.BatchFilter) ([]*entity.ProductBatch, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.ProductBatch
	for _, b := range r.s.batches {
		if b.ProductID != productID || b.BranchID != branchID {
			continue
		}
		if !f.IncludeDisposed && b.Disposed {
			continue
		}
		if !f.IncludeExpired && b.IsExpired(f.Today) {
			continue
		}
		result = append(result, cloneBatch(b))
	}
	sortFIFO(result)
	return result, nil
}

func (r *BatchRepo) ListExpiringBefore(ctx context.Context, date time.Time) ([]*entity.ProductBatch, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.ProductBatch
	for _, b := range r.s.batches {
		if b.Disposed || b.ExpiryDate == nil {
			continue
		}
		if b.ExpiryDate.After(date) {
			continue
		}
		result = append(result, cloneBatch(b))
	}
	sortFIFO(result)
	return result, nil
}

func (r *BatchRepo) ListWithExpiry(ctx context.Context) ([]*entity.ProductBatch, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.ProductBatch
	for _, b := range r.s.batches {
		if b.Disposed || b.ExpiryDate == nil {
			continue
		}
		result = append(result, cloneBatch(b))
	}
	sortFIFO(result)
	return result, nil
}

func (r *BatchRepo) StockByBranch(ctx context.Context, productID string) ([]repository.BranchStock, error) {
	r.l.Lock()
	defer r.l.Unlock()
	totals := make(map[string]int)
	for _, b := range r.s.batches {
		if b.ProductID != productID || b.Disposed {
			continue
		}
		totals[b.BranchID] += b.CurrentStock
	}
	result := make([]repository.BranchStock, 0, len(totals))
	for branchID, units := range totals {
		result = append(result, repository.BranchStock{BranchID: branchID, Units: units})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BranchID < result[j].BranchID })
	return result, nil
}

// sortFIFO orden canónico: vencimiento ascendente con nulos al final, luego
// recepción, luego ID.
func sortFIFO(batches []*entity.ProductBatch) {
	sort.Slice(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.ReceivedDate.Equal(b.ReceivedDate) {
			return a.ReceivedDate.Before(b.ReceivedDate)
		}
		return a.ID < b.ID
	})
}
