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

var _ repository.ProductRepository = (*ProductRepo)(nil)
var _ repository.BranchRepository = (*BranchRepo)(nil)
var _ repository.SalesHistoryRepository = (*SalesHistoryRepo)(nil)

// ProductRepo catálogo de productos en memoria.
type ProductRepo struct {
	s *Store
	l sync.Locker
}

// NewProductRepository construye el adaptador de productos.
func NewProductRepository(s *Store) *ProductRepo {
	return &ProductRepo{s: s, l: &s.mu}
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	r.l.Lock()
	defer r.l.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (r *ProductRepo) ListActive(ctx context.Context, limit int) ([]*entity.Product, error) {
	r.l.Lock()
	defer r.l.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var result []*entity.Product
	for _, p := range r.s.products {
		if p.Active {
			result = append(result, cloneProduct(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SKU < result[j].SKU })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// BranchRepo catálogo de sucursales en memoria.
type BranchRepo struct {
	s *Store
	l sync.Locker
}

// NewBranchRepository construye el adaptador de sucursales.
func NewBranchRepository(s *Store) *BranchRepo {
	return &BranchRepo{s: s, l: &s.mu}
}

func (r *BranchRepo) GetByID(ctx context.Context, id string) (*entity.Branch, error) {
	r.l.Lock()
	defer r.l.Unlock()
	b, ok := r.s.branches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBranch(b), nil
}

func (r *BranchRepo) ListActive(ctx context.Context) ([]*entity.Branch, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []*entity.Branch
	for _, b := range r.s.branches {
		if b.Active {
			result = append(result, cloneBranch(b))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// SalesHistoryRepo historial de ventas en memoria (sembrado por SeedSales).
type SalesHistoryRepo struct {
	s *Store
	l sync.Locker
}

// NewSalesHistoryRepository construye el adaptador de historial de ventas.
func NewSalesHistoryRepository(s *Store) *SalesHistoryRepo {
	return &SalesHistoryRepo{s: s, l: &s.mu}
}

func (r *SalesHistoryRepo) GetDailyUnitsSold(ctx context.Context, productID, branchID string, since time.Time) ([]repository.DailyUnits, error) {
	r.l.Lock()
	defer r.l.Unlock()
	var result []repository.DailyUnits
	for _, du := range r.s.sales[salesKey{productID, branchID}] {
		if !du.Date.Before(since) {
			result = append(result, du)
		}
	}
	return result, nil
}
