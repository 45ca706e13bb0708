package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/inventario-perecederos/internal/application/allocation"
	"github.com/jhoicas/inventario-perecederos/internal/application/dto"
	"github.com/jhoicas/inventario-perecederos/internal/application/ledger"
	"github.com/jhoicas/inventario-perecederos/internal/application/notify"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
	"github.com/jhoicas/inventario-perecederos/pkg/config"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

// Workflow máquina de estados de traslados entre sucursales:
//
//	REQUESTED -> APPROVED -> SHIPPED -> RECEIVED
//	REQUESTED -> REJECTED
//	REQUESTED/APPROVED -> CANCELLED
//
// La aprobación reserva stock (sin descontarlo); el despacho consume la
// reserva aplicando un plan FIFO contra el libro de lotes; la recepción crea
// un lote nuevo en destino (el costo y el vencimiento viajan con la
// mercancía). Cada transición queda en el historial append-only.
type Workflow struct {
	txRunner     TxRunner
	batchRepo    repository.BatchRepository
	transferRepo repository.TransferRepository
	historyRepo  repository.StatusHistoryRepository
	productRepo  repository.ProductRepository
	branchRepo   repository.BranchRepository
	reservations *ReservationBook
	cfg          config.TransferConfig
	notifier     notify.Notifier
	log          *logger.Logger
}

// NewWorkflow construye el workflow. Los repos sueltos son para lecturas
// fuera de transacción; las transiciones pasan por txRunner.
func NewWorkflow(
	txRunner TxRunner,
	batchRepo repository.BatchRepository,
	transferRepo repository.TransferRepository,
	historyRepo repository.StatusHistoryRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	reservations *ReservationBook,
	cfg config.TransferConfig,
	notifier notify.Notifier,
	log *logger.Logger,
) *Workflow {
	return &Workflow{
		txRunner:     txRunner,
		batchRepo:    batchRepo,
		transferRepo: transferRepo,
		historyRepo:  historyRepo,
		productRepo:  productRepo,
		branchRepo:   branchRepo,
		reservations: reservations,
		cfg:          cfg,
		notifier:     notifier,
		log:          log,
	}
}

// Request crea una solicitud de traslado en REQUESTED. Valida que la cantidad
// no supere el stock no reservado del producto en la sucursal origen.
func (w *Workflow) Request(ctx context.Context, input dto.RequestTransferInput) (*entity.InventoryTransfer, error) {
	if input.Quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "debe ser mayor que cero"}
	}
	if input.SourceBranchID == input.TargetBranchID {
		return nil, &domain.ValidationError{Field: "targetBranchId", Reason: "origen y destino son la misma sucursal"}
	}

	source, err := w.branchRepo.GetByID(ctx, input.SourceBranchID)
	if err != nil {
		return nil, fmt.Errorf("buscar sucursal origen: %w", err)
	}
	target, err := w.branchRepo.GetByID(ctx, input.TargetBranchID)
	if err != nil {
		return nil, fmt.Errorf("buscar sucursal destino: %w", err)
	}
	if !source.Active || !target.Active {
		return nil, &domain.ValidationError{Field: "branchId", Reason: "sucursal inactiva"}
	}
	if _, err := w.productRepo.GetByID(ctx, input.ProductID); err != nil {
		return nil, fmt.Errorf("buscar producto: %w", err)
	}

	now := time.Now()
	stock, err := w.availableStock(ctx, w.batchRepo, input.ProductID, input.SourceBranchID, now)
	if err != nil {
		return nil, err
	}
	unreserved := stock - w.reservations.Reserved(input.SourceBranchID, input.ProductID)
	if input.Quantity > unreserved {
		return nil, &domain.InsufficientStockError{
			ProductID: input.ProductID,
			BranchID:  input.SourceBranchID,
			Requested: input.Quantity,
			Available: unreserved,
		}
	}

	cost := input.EstimatedCost
	if cost.IsZero() {
		cost = estimateTransferCost(w.cfg, input.Quantity, source, target)
	}

	transfer := &entity.InventoryTransfer{
		ID:             uuid.New().String(),
		TransferNumber: generateTransferNumber(now),
		SourceBranchID: input.SourceBranchID,
		TargetBranchID: input.TargetBranchID,
		ProductID:      input.ProductID,
		Quantity:       input.Quantity,
		Status:         entity.TransferStatusRequested,
		EstimatedCost:  cost,
		Reason:         input.Reason,
		RequestedBy:    input.RequestedBy,
		RequestedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = w.txRunner.RunTransfer(ctx, func(
		_ repository.BatchRepository,
		_ repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error {
		if err := transferRepo.Create(ctx, transfer); err != nil {
			return err
		}
		return appendHistory(ctx, historyRepo, transfer.ID, "", entity.TransferStatusRequested, input.RequestedBy, input.Reason)
	})
	if err != nil {
		return nil, err
	}

	w.notifyStatus(ctx, transfer)
	w.log.Info().
		Str("transfer", transfer.TransferNumber).
		Str("product_id", transfer.ProductID).
		Int("quantity", transfer.Quantity).
		Msg("traslado solicitado")
	return transfer, nil
}

// RequestFromRecommendation convierte una recomendación aceptada en una
// solicitud de traslado (la recomendación por sí sola nunca muta nada).
func (w *Workflow) RequestFromRecommendation(ctx context.Context, rec entity.TransferRecommendation, requestedBy string) (*entity.InventoryTransfer, error) {
	return w.Request(ctx, dto.RequestTransferInput{
		SourceBranchID: rec.SourceBranchID,
		TargetBranchID: rec.TargetBranchID,
		ProductID:      rec.ProductID,
		Quantity:       rec.Quantity,
		RequestedBy:    requestedBy,
		Reason:         strings.Join(rec.Reasons, "; "),
		EstimatedCost:  rec.EstimatedCost,
	})
}

// Approve aprueba la solicitud y reserva el stock. La lectura del stock y el
// alta de la reserva son atómicas respecto de otras aprobaciones (libro de
// reservas bajo un mutex), así dos aprobaciones concurrentes no comprometen
// las mismas unidades. Sobre el umbral de valor configurado, el aprobador no
// puede ser quien solicitó.
func (w *Workflow) Approve(ctx context.Context, transferID, approvedBy string) (*entity.InventoryTransfer, error) {
	// Lectura de catálogo fuera de la transacción: el producto del traslado
	// es inmutable una vez solicitado
	pending, err := w.transferRepo.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	product, err := w.productRepo.GetByID(ctx, pending.ProductID)
	if err != nil {
		return nil, err
	}

	var transfer *entity.InventoryTransfer
	reserved := false
	err = w.txRunner.RunTransfer(ctx, func(
		batchRepo repository.BatchRepository,
		_ repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error {
		t, err := transferRepo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !entity.CanTransition(t.Status, entity.TransferStatusApproved) {
			return &domain.InvalidTransitionError{TransferID: transferID, From: t.Status, To: entity.TransferStatusApproved}
		}

		value := decimal.NewFromInt(int64(t.Quantity)).Mul(product.SellPrice)
		if value.GreaterThan(w.cfg.ApprovalValueThreshold) && approvedBy == t.RequestedBy {
			return &domain.ValidationError{
				Field:  "approvedBy",
				Reason: "sobre el umbral de valor, el aprobador debe ser distinto del solicitante",
			}
		}

		now := time.Now()
		stock, err := w.availableStock(ctx, batchRepo, t.ProductID, t.SourceBranchID, now)
		if err != nil {
			return err
		}
		if err := w.reservations.Reserve(t.ID, t.SourceBranchID, t.ProductID, t.Quantity, stock); err != nil {
			return err
		}
		reserved = true

		t.Status = entity.TransferStatusApproved
		t.ApprovedBy = approvedBy
		t.ApprovedAt = &now
		t.UpdatedAt = now
		if err := transferRepo.Update(ctx, t); err != nil {
			return err
		}
		if err := appendHistory(ctx, historyRepo, t.ID, entity.TransferStatusRequested, entity.TransferStatusApproved, approvedBy, ""); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		// Cubre también un Commit fallido: la reserva de esta llamada nunca
		// sobrevive a una transacción que no quedó escrita
		if reserved {
			w.reservations.Release(transferID)
		}
		return nil, err
	}
	w.notifyStatus(ctx, transfer)
	return transfer, nil
}

// Ship consume la reserva: aplica un plan FIFO contra los lotes del origen y
// descuenta el stock (TRANSFER_OUT) en la misma transacción que el cambio de
// estado. Este es el punto en que la mercancía sale del libro del origen.
func (w *Workflow) Ship(ctx context.Context, transferID, shippedBy string) (*entity.InventoryTransfer, error) {
	var transfer *entity.InventoryTransfer
	err := w.txRunner.RunTransfer(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error {
		t, err := transferRepo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !entity.CanTransition(t.Status, entity.TransferStatusShipped) {
			return &domain.InvalidTransitionError{TransferID: transferID, From: t.Status, To: entity.TransferStatusShipped}
		}

		now := time.Now()
		batches, err := batchRepo.ListForProduct(ctx, t.ProductID, t.SourceBranchID, repository.BatchFilter{Today: now})
		if err != nil {
			return err
		}
		plan := allocation.PlanOver(batches, t.Quantity)
		if plan.Shortage > 0 {
			// La reserva lo impide salvo que el stock haya vencido en medio
			return &domain.InsufficientStockError{
				ProductID: t.ProductID,
				BranchID:  t.SourceBranchID,
				Requested: t.Quantity,
				Available: plan.Allocated,
			}
		}

		// El plan viene de una lectura sin bloqueo de fila; ApplyDelta
		// revalida cada cantidad sobre la fila ya bloqueada y falla con
		// InsufficientStockError si una venta se intercaló
		for _, line := range plan.Lines {
			if _, err := ledger.ApplyDelta(ctx, batchRepo, mutRepo, line.BatchID, -line.Quantity,
				entity.MutationTypeTransferOut, shippedBy, t.TransferNumber); err != nil {
				return err
			}
		}

		t.Status = entity.TransferStatusShipped
		t.ShippedBy = shippedBy
		t.ShippedAt = &now
		t.UpdatedAt = now
		if err := transferRepo.Update(ctx, t); err != nil {
			return err
		}
		if err := appendHistory(ctx, historyRepo, t.ID, entity.TransferStatusApproved, entity.TransferStatusShipped, shippedBy, ""); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	// La mercancía ya salió; la reserva deja de existir
	w.reservations.Release(transferID)
	w.notifyStatus(ctx, transfer)
	return transfer, nil
}

// Receive cierra el traslado creando un lote nuevo en la sucursal destino: el
// costo es el promedio ponderado de los lotes despachados y el vencimiento,
// el más próximo de ellos (base de costo e historial propios por sucursal).
func (w *Workflow) Receive(ctx context.Context, transferID, receivedBy string) (*entity.InventoryTransfer, error) {
	var transfer *entity.InventoryTransfer
	err := w.txRunner.RunTransfer(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error {
		t, err := transferRepo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !entity.CanTransition(t.Status, entity.TransferStatusReceived) {
			return &domain.InvalidTransitionError{TransferID: transferID, From: t.Status, To: entity.TransferStatusReceived}
		}

		unitCost, expiry, err := shippedCostAndExpiry(ctx, mutRepo, batchRepo, t)
		if err != nil {
			return err
		}

		now := time.Now()
		// El lote nace vacío y el alta de stock pasa por el libro, igual
		// que cualquier otra mutación
		newBatch := &entity.ProductBatch{
			ID:           uuid.New().String(),
			ProductID:    t.ProductID,
			BranchID:     t.TargetBranchID,
			BatchNumber:  t.TransferNumber + "-IN",
			InitialStock: t.Quantity,
			CurrentStock: 0,
			CostPerUnit:  unitCost,
			ReceivedDate: now,
			ExpiryDate:   expiry,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := batchRepo.Create(ctx, newBatch); err != nil {
			return err
		}
		if _, err := ledger.ApplyDelta(ctx, batchRepo, mutRepo, newBatch.ID, t.Quantity,
			entity.MutationTypeTransferIn, receivedBy, t.TransferNumber); err != nil {
			return err
		}

		t.Status = entity.TransferStatusReceived
		t.ReceivedBy = receivedBy
		t.ReceivedAt = &now
		t.UpdatedAt = now
		if err := transferRepo.Update(ctx, t); err != nil {
			return err
		}
		if err := appendHistory(ctx, historyRepo, t.ID, entity.TransferStatusShipped, entity.TransferStatusReceived, receivedBy, ""); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.notifyStatus(ctx, transfer)
	return transfer, nil
}

// Cancel aborta un traslado en REQUESTED o APPROVED y libera la reserva si
// existía. Un traslado despachado no se puede cancelar: la mercancía en
// tránsito solo puede recibirse.
func (w *Workflow) Cancel(ctx context.Context, transferID, actor, reason string) (*entity.InventoryTransfer, error) {
	return w.close(ctx, transferID, actor, reason, entity.TransferStatusCancelled)
}

// Reject rechaza una solicitud en REQUESTED (el aprobador declina, en vez de
// que el solicitante retire la solicitud).
func (w *Workflow) Reject(ctx context.Context, transferID, actor, reason string) (*entity.InventoryTransfer, error) {
	return w.close(ctx, transferID, actor, reason, entity.TransferStatusRejected)
}

func (w *Workflow) close(ctx context.Context, transferID, actor, reason, toStatus string) (*entity.InventoryTransfer, error) {
	var transfer *entity.InventoryTransfer
	err := w.txRunner.RunTransfer(ctx, func(
		_ repository.BatchRepository,
		_ repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error {
		t, err := transferRepo.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if !entity.CanTransition(t.Status, toStatus) {
			return &domain.InvalidTransitionError{TransferID: transferID, From: t.Status, To: toStatus}
		}

		now := time.Now()
		fromStatus := t.Status
		t.Status = toStatus
		t.ClosedReason = reason
		t.UpdatedAt = now
		if err := transferRepo.Update(ctx, t); err != nil {
			return err
		}
		if err := appendHistory(ctx, historyRepo, t.ID, fromStatus, toStatus, actor, reason); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Nada se movió antes del despacho; solo soltar la reserva si la había
	w.reservations.Release(transferID)
	w.notifyStatus(ctx, transfer)
	return transfer, nil
}

// List traslados según filtro (sucursal, estado, paginación).
func (w *Workflow) List(ctx context.Context, f repository.TransferFilter) ([]*entity.InventoryTransfer, error) {
	return w.transferRepo.List(ctx, f)
}

// GetHistory historial de transiciones de un traslado (vista de auditoría).
func (w *Workflow) GetHistory(ctx context.Context, transferID string) ([]*entity.TransferStatusHistory, error) {
	return w.historyRepo.ListByTransfer(ctx, transferID)
}

// ReloadReservations reconstruye el libro de reservas desde los traslados en
// APPROVED (al arrancar el proceso; las reservas son memoria de proceso).
func (w *Workflow) ReloadReservations(ctx context.Context) error {
	approved, err := w.transferRepo.ListByStatus(ctx, entity.TransferStatusApproved)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, t := range approved {
		stock, err := w.availableStock(ctx, w.batchRepo, t.ProductID, t.SourceBranchID, now)
		if err != nil {
			return err
		}
		if err := w.reservations.Reserve(t.ID, t.SourceBranchID, t.ProductID, t.Quantity, stock); err != nil {
			// Stock vencido o dado de baja desde la aprobación: queda sin
			// reserva y el despacho fallará con el detalle
			w.log.Warn().Err(err).Str("transfer", t.TransferNumber).Msg("reserva no reconstruible")
		}
	}
	return nil
}

// availableStock stock físico disponible (no vencido, no dado de baja) de un
// producto en una sucursal.
func (w *Workflow) availableStock(ctx context.Context, batchRepo repository.BatchRepository, productID, branchID string, today time.Time) (int, error) {
	batches, err := batchRepo.ListForProduct(ctx, productID, branchID, repository.BatchFilter{Today: today})
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range batches {
		total += b.CurrentStock
	}
	return total, nil
}

func (w *Workflow) notifyStatus(ctx context.Context, t *entity.InventoryTransfer) {
	w.notifier.Notify(ctx, notify.Event{
		Type:       notify.EventTransferStatus,
		TransferID: t.ID,
		Status:     t.Status,
		BranchID:   t.SourceBranchID,
		ProductID:  t.ProductID,
		Units:      t.Quantity,
		Message:    fmt.Sprintf("traslado %s en estado %s", t.TransferNumber, t.Status),
		OccurredAt: time.Now(),
	})
}

func appendHistory(ctx context.Context, historyRepo repository.StatusHistoryRepository, transferID, from, to, actor, reason string) error {
	return historyRepo.Create(ctx, &entity.TransferStatusHistory{
		ID:         uuid.New().String(),
		TransferID: transferID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  time.Now(),
	})
}

// shippedCostAndExpiry costo promedio ponderado y vencimiento más próximo de
// los lotes que salieron en este traslado (mutaciones TRANSFER_OUT con su
// número como referencia).
func shippedCostAndExpiry(
	ctx context.Context,
	mutRepo repository.MutationRepository,
	batchRepo repository.BatchRepository,
	t *entity.InventoryTransfer,
) (decimal.Decimal, *time.Time, error) {
	muts, err := mutRepo.ListByReference(ctx, t.TransferNumber)
	if err != nil {
		return decimal.Zero, nil, err
	}

	totalUnits := 0
	totalCost := decimal.Zero
	var expiry *time.Time
	for _, m := range muts {
		if m.Type != entity.MutationTypeTransferOut {
			continue
		}
		units := -m.Quantity
		totalUnits += units
		totalCost = totalCost.Add(decimal.NewFromInt(int64(units)).Mul(m.UnitCost))

		batch, err := batchRepo.GetByID(ctx, m.BatchID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if batch.ExpiryDate != nil && (expiry == nil || batch.ExpiryDate.Before(*expiry)) {
			e := *batch.ExpiryDate
			expiry = &e
		}
	}
	if totalUnits == 0 {
		return decimal.Zero, nil, fmt.Errorf("traslado %s sin salidas registradas", t.TransferNumber)
	}
	return totalCost.Div(decimal.NewFromInt(int64(totalUnits))), expiry, nil
}

func generateTransferNumber(now time.Time) string {
	return fmt.Sprintf("TRF-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.New().String()[:6]))
}
