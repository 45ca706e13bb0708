// Package disposal cierra lotes vencidos (baja con valor perdido) y permite
// revertir una baja hecha por error de operación.
package disposal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/inventario-perecederos/internal/application/dto"
	"github.com/jhoicas/inventario-perecederos/internal/application/ledger"
	"github.com/jhoicas/inventario-perecederos/internal/application/notify"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

// UseCase gestor de bajas. Cada lote se procesa en su propia transacción:
// un fallo por lote se reporta en el resultado y no aborta el resto.
type UseCase struct {
	txRunner ledger.TxRunner
	mutRepo  repository.MutationRepository // lecturas de reporte, fuera de tx
	notifier notify.Notifier
	log      *logger.Logger
}

// NewUseCase construye el gestor de bajas.
func NewUseCase(txRunner ledger.TxRunner, mutRepo repository.MutationRepository, notifier notify.Notifier, log *logger.Logger) *UseCase {
	return &UseCase{txRunner: txRunner, mutRepo: mutRepo, notifier: notifier, log: log}
}

// DisposeBatches da de baja lotes vencidos: marca Disposed, lleva el stock a
// cero con una mutación DISPOSAL por el remanente completo y acumula el valor
// perdido al costo del lote. Lotes no vencidos o ya dados de baja fallan
// individualmente sin abortar la operación.
func (uc *UseCase) DisposeBatches(ctx context.Context, batchIDs []string, disposedBy string, today time.Time) (*dto.DisposalResult, error) {
	if len(batchIDs) == 0 {
		return nil, &domain.ValidationError{Field: "batchIds", Reason: "lista vacía"}
	}

	result := &dto.DisposalResult{TotalValueLost: decimal.Zero}
	for _, id := range batchIDs {
		item := uc.disposeOne(ctx, id, disposedBy, today)
		result.Items = append(result.Items, item)
		if item.OK {
			result.SucceededCount++
			result.TotalValueLost = result.TotalValueLost.Add(item.ValueLost)
		} else {
			result.FailedCount++
		}
	}

	if result.SucceededCount > 0 {
		uc.notifier.Notify(ctx, notify.Event{
			Type:       notify.EventDisposalCompleted,
			Units:      totalUnits(result),
			Value:      result.TotalValueLost,
			Message:    "baja de lotes vencidos completada",
			OccurredAt: today,
		})
	}
	return result, nil
}

func (uc *UseCase) disposeOne(ctx context.Context, batchID, disposedBy string, today time.Time) dto.DisposalItemResult {
	item := dto.DisposalItemResult{BatchID: batchID, ValueLost: decimal.Zero}
	err := uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
	) error {
		batch, err := batchRepo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Disposed {
			return &domain.BatchDisposedError{BatchID: batchID}
		}
		if !batch.IsExpired(today) {
			return &domain.ValidationError{Field: "batchId", Reason: "el lote no está vencido"}
		}

		units := batch.CurrentStock
		value := batch.StockValue()
		now := time.Now()

		batch.Disposed = true
		batch.DisposedAt = &now
		batch.CurrentStock = 0
		batch.UpdatedAt = now
		if err := batchRepo.Update(ctx, batch); err != nil {
			return err
		}
		if units > 0 {
			if err := mutRepo.Create(ctx, &entity.InventoryMutation{
				ID:             uuid.New().String(),
				BatchID:        batch.ID,
				ProductID:      batch.ProductID,
				BranchID:       batch.BranchID,
				Type:           entity.MutationTypeDisposal,
				Quantity:       -units,
				ResultingStock: 0,
				UnitCost:       batch.CostPerUnit,
				Reference:      "baja por vencimiento",
				CreatedAt:      now,
				CreatedBy:      disposedBy,
			}); err != nil {
				return err
			}
		}
		item.Units = units
		item.ValueLost = value
		return nil
	})
	if err != nil {
		item.Error = err.Error()
		uc.log.Warn().Err(err).Str("batch_id", batchID).Msg("baja de lote rechazada")
		return item
	}
	item.OK = true
	return item
}

// UndoDisposal reabre lotes dados de baja por error de operación: limpia el
// flag, restaura el stock que la baja descontó (con una mutación ADJUSTMENT)
// y deja el lote disponible de nuevo. No reconstruye ventas ni traslados
// previos a la baja. Per-item, igual que DisposeBatches.
func (uc *UseCase) UndoDisposal(ctx context.Context, batchIDs []string, actor string) (*dto.DisposalResult, error) {
	if len(batchIDs) == 0 {
		return nil, &domain.ValidationError{Field: "batchIds", Reason: "lista vacía"}
	}

	result := &dto.DisposalResult{TotalValueLost: decimal.Zero}
	for _, id := range batchIDs {
		item := uc.undoOne(ctx, id, actor)
		result.Items = append(result.Items, item)
		if item.OK {
			result.SucceededCount++
		} else {
			result.FailedCount++
		}
	}
	return result, nil
}

func (uc *UseCase) undoOne(ctx context.Context, batchID, actor string) dto.DisposalItemResult {
	item := dto.DisposalItemResult{BatchID: batchID, ValueLost: decimal.Zero}
	err := uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
	) error {
		batch, err := batchRepo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if !batch.Disposed {
			return &domain.ValidationError{Field: "batchId", Reason: "el lote no está dado de baja"}
		}

		// Unidades que descontó la baja: última mutación DISPOSAL del lote
		restored := 0
		muts, err := mutRepo.ListByBatch(ctx, batchID)
		if err != nil {
			return err
		}
		for i := len(muts) - 1; i >= 0; i-- {
			if muts[i].Type == entity.MutationTypeDisposal {
				restored = -muts[i].Quantity
				break
			}
		}

		now := time.Now()
		batch.Disposed = false
		batch.DisposedAt = nil
		batch.CurrentStock = restored
		batch.UpdatedAt = now
		if err := batchRepo.Update(ctx, batch); err != nil {
			return err
		}
		if restored > 0 {
			if err := mutRepo.Create(ctx, &entity.InventoryMutation{
				ID:             uuid.New().String(),
				BatchID:        batch.ID,
				ProductID:      batch.ProductID,
				BranchID:       batch.BranchID,
				Type:           entity.MutationTypeAdjustment,
				Quantity:       restored,
				ResultingStock: restored,
				UnitCost:       batch.CostPerUnit,
				Reference:      "reversa de baja",
				CreatedAt:      now,
				CreatedBy:      actor,
			}); err != nil {
				return err
			}
		}
		item.Units = restored
		return nil
	})
	if err != nil {
		item.Error = err.Error()
		uc.log.Warn().Err(err).Str("batch_id", batchID).Msg("reversa de baja rechazada")
		return item
	}
	item.OK = true
	return item
}

// ValueLostReport valor perdido por bajas en una sucursal y rango de fechas,
// reconstruido desde las mutaciones DISPOSAL (el costo es el del lote al
// momento de la baja). branchID vacío = todas las sucursales.
func (uc *UseCase) ValueLostReport(ctx context.Context, branchID string, from, to time.Time) (decimal.Decimal, int, error) {
	muts, err := uc.mutRepo.ListByType(ctx, branchID, entity.MutationTypeDisposal, from, to)
	if err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	units := 0
	for _, m := range muts {
		qty := -m.Quantity // DISPOSAL siempre es negativo
		units += qty
		total = total.Add(decimal.NewFromInt(int64(qty)).Mul(m.UnitCost))
	}
	return total, units, nil
}

func totalUnits(r *dto.DisposalResult) int {
	total := 0
	for _, it := range r.Items {
		if it.OK {
			total += it.Units
		}
	}
	return total
}
