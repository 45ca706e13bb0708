// Package allocation implementa la asignación FIFO por frescura: los lotes
// que vencen primero se consumen primero; los sin vencimiento, al final.
package allocation

import (
	"context"
	"sort"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/application/dto"
	"github.com/jhoicas/inventario-perecederos/internal/application/ledger"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
)

// Allocator arma planes de asignación sobre el libro de lotes. Plan es una
// vista sin efectos; Apply descuenta el stock vía AdjustStock lote por lote.
type Allocator struct {
	batchRepo repository.BatchRepository
	ledger    *ledger.UseCase
}

// NewAllocator construye el asignador.
func NewAllocator(batchRepo repository.BatchRepository, ledgerUC *ledger.UseCase) *Allocator {
	return &Allocator{batchRepo: batchRepo, ledger: ledgerUC}
}

// Plan arma un plan FIFO para cubrir quantity unidades del producto en la
// sucursal. Nunca falla por faltante: si el stock no alcanza devuelve el plan
// parcial con Shortage > 0 y el caller decide. Lotes vencidos y dados de baja
// quedan fuera.
func (a *Allocator) Plan(ctx context.Context, productID, branchID string, quantity int, today time.Time) (*dto.AllocationPlan, error) {
	if quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "debe ser mayor que cero"}
	}
	batches, err := a.batchRepo.ListForProduct(ctx, productID, branchID, repository.BatchFilter{Today: today})
	if err != nil {
		return nil, err
	}
	plan := PlanOver(batches, quantity)
	plan.ProductID = productID
	plan.BranchID = branchID
	return plan, nil
}

// Apply descuenta el stock de cada línea del plan vía el libro de lotes
// (una mutación auditada por lote). Falla en la primera línea que no pueda
// aplicarse; las anteriores ya quedaron aplicadas y auditadas.
func (a *Allocator) Apply(ctx context.Context, plan *dto.AllocationPlan, mutationType, actor, reference string) error {
	for _, line := range plan.Lines {
		if _, err := a.ledger.AdjustStock(ctx, line.BatchID, -line.Quantity, mutationType, actor, reference); err != nil {
			return err
		}
	}
	return nil
}

// PlanOver recorre los lotes en orden FIFO canónico tomando
// min(stock del lote, restante) hasta cubrir quantity o agotar lotes.
// Función pura: ordena una copia y no toca los lotes.
func PlanOver(batches []*entity.ProductBatch, quantity int) *dto.AllocationPlan {
	sorted := make([]*entity.ProductBatch, len(batches))
	copy(sorted, batches)
	SortFIFO(sorted)

	plan := &dto.AllocationPlan{Requested: quantity}
	remaining := quantity
	for _, b := range sorted {
		if remaining == 0 {
			break
		}
		if b.Disposed || b.CurrentStock <= 0 {
			continue
		}
		take := b.CurrentStock
		if take > remaining {
			take = remaining
		}
		plan.Lines = append(plan.Lines, dto.AllocationLine{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			ExpiryDate:  b.ExpiryDate,
		})
		plan.Allocated += take
		remaining -= take
	}
	plan.Shortage = remaining
	return plan
}

// SortFIFO ordena lotes en el orden FIFO canónico: vencimiento ascendente
// primero, sin vencimiento al final; empata por fecha de recepción y luego
// por ID para que el orden sea totalmente determinista.
func SortFIFO(batches []*entity.ProductBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.ReceivedDate.Equal(b.ReceivedDate) {
			return a.ReceivedDate.Before(b.ReceivedDate)
		}
		return a.ID < b.ID
	})
}
