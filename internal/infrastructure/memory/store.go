// Package memory implementa los puertos de persistencia sobre mapas en
// memoria, con un TxRunner que simula transacciones por snapshot. Pensado
// para pruebas y demos; la implementación real está en postgres.
package memory

import (
	"sync"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

type salesKey struct {
	ProductID string
	BranchID  string
}

// Store estado compartido de todos los adaptadores en memoria. Un solo mutex
// cumple el papel de los bloqueos de fila: dentro de una "transacción" nadie
// más toca el estado.
type Store struct {
	mu        sync.Mutex
	batches   map[string]*entity.ProductBatch
	mutations []*entity.InventoryMutation
	transfers map[string]*entity.InventoryTransfer
	history   []*entity.TransferStatusHistory
	products  map[string]*entity.Product
	branches  map[string]*entity.Branch
	sales     map[salesKey][]repository.DailyUnits
}

// NewStore construye un Store vacío.
func NewStore() *Store {
	return &Store{
		batches:   make(map[string]*entity.ProductBatch),
		transfers: make(map[string]*entity.InventoryTransfer),
		products:  make(map[string]*entity.Product),
		branches:  make(map[string]*entity.Branch),
		sales:     make(map[salesKey][]repository.DailyUnits),
	}
}

// SeedProduct inserta un producto de catálogo.
func (s *Store) SeedProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = cloneProduct(p)
}

// SeedBranch inserta una sucursal de catálogo.
func (s *Store) SeedBranch(b *entity.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[b.ID] = cloneBranch(b)
}

// SeedBatch inserta un lote existente sin pasar por el caso de uso.
func (s *Store) SeedBatch(b *entity.ProductBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = cloneBatch(b)
}

// SeedSales fija el historial de ventas de un producto en una sucursal.
func (s *Store) SeedSales(productID, branchID string, days []repository.DailyUnits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[salesKey{productID, branchID}] = append([]repository.DailyUnits(nil), days...)
}

// snapshot copia profunda del estado mutable, para poder revertir una
// transacción fallida.
type snapshot struct {
	batches   map[string]*entity.ProductBatch
	mutations []*entity.InventoryMutation
	transfers map[string]*entity.InventoryTransfer
	history   []*entity.TransferStatusHistory
}

// takeSnapshot debe llamarse con el mutex tomado.
func (s *Store) takeSnapshot() snapshot {
	snap := snapshot{
		batches:   make(map[string]*entity.ProductBatch, len(s.batches)),
		transfers: make(map[string]*entity.InventoryTransfer, len(s.transfers)),
		mutations: append([]*entity.InventoryMutation(nil), s.mutations...),
		history:   append([]*entity.TransferStatusHistory(nil), s.history...),
	}
	for id, b := range s.batches {
		snap.batches[id] = cloneBatch(b)
	}
	for id, t := range s.transfers {
		snap.transfers[id] = cloneTransfer(t)
	}
	return snap
}

// restore debe llamarse con el mutex tomado.
func (s *Store) restore(snap snapshot) {
	s.batches = snap.batches
	s.mutations = snap.mutations
	s.transfers = snap.transfers
	s.history = snap.history
}

func cloneBatch(b *entity.ProductBatch) *entity.ProductBatch {
	c := *b
	c.ExpiryDate = cloneTime(b.ExpiryDate)
	c.DisposedAt = cloneTime(b.DisposedAt)
	c.ExpiredFlaggedAt = cloneTime(b.ExpiredFlaggedAt)
	return &c
}

func cloneTransfer(t *entity.InventoryTransfer) *entity.InventoryTransfer {
	c := *t
	c.ApprovedAt = cloneTime(t.ApprovedAt)
	c.ShippedAt = cloneTime(t.ShippedAt)
	c.ReceivedAt = cloneTime(t.ReceivedAt)
	return &c
}

func cloneProduct(p *entity.Product) *entity.Product {
	c := *p
	return &c
}

func cloneBranch(b *entity.Branch) *entity.Branch {
	c := *b
	return &c
}

func cloneMutation(m *entity.InventoryMutation) *entity.InventoryMutation {
	c := *m
	return &c
}

func cloneHistory(h *entity.TransferStatusHistory) *entity.TransferStatusHistory {
	c := *h
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
