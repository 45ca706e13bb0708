package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/jhoicas/inventario-perecederos/internal/application/dto"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

// UseCase es el libro de lotes: único dueño de los campos de stock de
// ProductBatch. Todo otro componente (ventas, traslados, bajas) muta stock
// pasando por AdjustStock, así el invariante 0 <= CurrentStock <= InitialStock
// tiene un solo punto de aplicación.
type UseCase struct {
	txRunner     TxRunner
	batchRepo    repository.BatchRepository
	productRepo  repository.ProductRepository
	branchRepo   repository.BranchRepository
	reservations ReservationReader
	log          *logger.Logger
}

// NewUseCase construye el libro de lotes. batchRepo se usa para lecturas
// fuera de transacción; las mutaciones pasan por txRunner. reservations puede
// ser nil cuando no hay workflow de traslados en el proceso.
func NewUseCase(
	txRunner TxRunner,
	batchRepo repository.BatchRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	reservations ReservationReader,
	log *logger.Logger,
) *UseCase {
	return &UseCase{
		txRunner:     txRunner,
		batchRepo:    batchRepo,
		productRepo:  productRepo,
		branchRepo:   branchRepo,
		reservations: reservations,
		log:          log,
	}
}

// CreateBatch registra un lote en la recepción de mercancía. Valida stock
// inicial positivo, costo no negativo y vencimiento presente cuando la
// categoría lo exige. Deja una mutación ADJUSTMENT con el stock inicial para
// que la auditoría arranque desde la recepción.
func (uc *UseCase) CreateBatch(ctx context.Context, input dto.CreateBatchInput) (*entity.ProductBatch, error) {
	if input.InitialStock <= 0 {
		return nil, &domain.ValidationError{Field: "initialStock", Reason: "debe ser mayor que cero"}
	}
	if input.CostPerUnit.LessThan(decimal.Zero) {
		return nil, &domain.ValidationError{Field: "costPerUnit", Reason: "no puede ser negativo"}
	}
	if input.ExpiryDate != nil && input.ExpiryDate.Before(input.ReceivedDate) {
		return nil, &domain.ValidationError{Field: "expiryDate", Reason: "anterior a la fecha de recepción"}
	}

	product, err := uc.productRepo.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("buscar producto: %w", err)
	}
	if product.TrackExpiry && input.ExpiryDate == nil {
		return nil, &domain.ValidationError{Field: "expiryDate", Reason: "obligatorio para esta categoría"}
	}
	branch, err := uc.branchRepo.GetByID(ctx, input.BranchID)
	if err != nil {
		return nil, fmt.Errorf("buscar sucursal: %w", err)
	}
	if !branch.Active {
		return nil, &domain.ValidationError{Field: "branchId", Reason: "sucursal inactiva"}
	}

	now := time.Now()
	batchNumber := input.BatchNumber
	if batchNumber == "" {
		batchNumber = generateBatchNumber(product.SKU, input.ReceivedDate)
	}

	batch := &entity.ProductBatch{
		ID:           uuid.New().String(),
		ProductID:    input.ProductID,
		BranchID:     input.BranchID,
		BatchNumber:  batchNumber,
		InitialStock: input.InitialStock,
		CurrentStock: input.InitialStock,
		CostPerUnit:  input.CostPerUnit,
		ReceivedDate: input.ReceivedDate,
		ExpiryDate:   input.ExpiryDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
	) error {
		if err := batchRepo.Create(ctx, batch); err != nil {
			return err
		}
		return mutRepo.Create(ctx, &entity.InventoryMutation{
			ID:             uuid.New().String(),
			BatchID:        batch.ID,
			ProductID:      batch.ProductID,
			BranchID:       batch.BranchID,
			Type:           entity.MutationTypeAdjustment,
			Quantity:       batch.InitialStock,
			ResultingStock: batch.CurrentStock,
			UnitCost:       batch.CostPerUnit,
			Reference:      "recepción " + batchNumber,
			CreatedAt:      now,
			CreatedBy:      input.CreatedBy,
		})
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("batch_id", batch.ID).
		Str("product_id", batch.ProductID).
		Str("branch_id", batch.BranchID).
		Int("initial_stock", batch.InitialStock).
		Msg("lote creado")
	return batch, nil
}

// AdjustStock aplica un delta firmado sobre un lote y deja el registro de
// auditoría, todo en una transacción con la fila del lote bloqueada. Es el
// único camino de mutación de stock del sistema.
//
// Falla con BatchDisposedError si el lote está dado de baja, con
// InsufficientStockError si el stock quedaría negativo o si una venta
// invadiría unidades reservadas por traslados aprobados, y con
// ValidationError si superaría el stock inicial.
func (uc *UseCase) AdjustStock(ctx context.Context, batchID string, delta int, mutationType, actor, reference string) (*entity.ProductBatch, error) {
	if delta == 0 {
		return nil, &domain.ValidationError{Field: "delta", Reason: "no puede ser cero"}
	}
	if !entity.ValidMutationType(mutationType) {
		return nil, &domain.ValidationError{Field: "mutationType", Reason: "tipo desconocido: " + mutationType}
	}

	var updated *entity.ProductBatch
	err := uc.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
	) error {
		if mutationType == entity.MutationTypeSale && delta < 0 {
			if err := uc.checkUnreserved(ctx, batchRepo, batchID, -delta); err != nil {
				return err
			}
		}
		batch, err := ApplyDelta(ctx, batchRepo, mutRepo, batchID, delta, mutationType, actor, reference)
		if err != nil {
			return err
		}
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// checkUnreserved verifica que una venta no consuma unidades que un traslado
// aprobado tiene reservadas: lo vendible es el stock vigente de la sucursal
// menos las reservas del libro de traslados.
func (uc *UseCase) checkUnreserved(ctx context.Context, batchRepo repository.BatchRepository, batchID string, requested int) error {
	if uc.reservations == nil {
		return nil
	}
	batch, err := batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return err
	}
	reserved := uc.reservations.Reserved(batch.BranchID, batch.ProductID)
	if reserved == 0 {
		return nil
	}
	batches, err := batchRepo.ListForProduct(ctx, batch.ProductID, batch.BranchID, repository.BatchFilter{Today: time.Now()})
	if err != nil {
		return err
	}
	total := 0
	for _, b := range batches {
		total += b.CurrentStock
	}
	unreserved := total - reserved
	if requested > unreserved {
		return &domain.InsufficientStockError{
			ProductID: batch.ProductID,
			BranchID:  batch.BranchID,
			Requested: requested,
			Available: unreserved,
		}
	}
	return nil
}

// ApplyDelta aplica un delta firmado sobre un lote dentro de una transacción
// ya abierta: bloquea la fila, aplica las guardas de stock sobre el valor
// recién leído y deja la mutación de auditoría. Todo camino que mueva stock
// (ventas, traslados, reversas) termina aquí, así las guardas tienen un solo
// punto de aplicación.
func ApplyDelta(
	ctx context.Context,
	batchRepo repository.BatchRepository,
	mutRepo repository.MutationRepository,
	batchID string,
	delta int,
	mutationType, actor, reference string,
) (*entity.ProductBatch, error) {
	batch, err := batchRepo.GetForUpdate(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Disposed {
		return nil, &domain.BatchDisposedError{BatchID: batchID}
	}
	newStock := batch.CurrentStock + delta
	if newStock < 0 {
		return nil, &domain.InsufficientStockError{
			ProductID: batch.ProductID,
			BranchID:  batch.BranchID,
			Requested: -delta,
			Available: batch.CurrentStock,
		}
	}
	if newStock > batch.InitialStock {
		return nil, &domain.ValidationError{
			Field:  "delta",
			Reason: fmt.Sprintf("el stock resultante %d supera el inicial %d", newStock, batch.InitialStock),
		}
	}

	now := time.Now()
	batch.CurrentStock = newStock
	batch.UpdatedAt = now
	if err := batchRepo.Update(ctx, batch); err != nil {
		return nil, err
	}
	if err := mutRepo.Create(ctx, &entity.InventoryMutation{
		ID:             uuid.New().String(),
		BatchID:        batch.ID,
		ProductID:      batch.ProductID,
		BranchID:       batch.BranchID,
		Type:           mutationType,
		Quantity:       delta,
		ResultingStock: newStock,
		UnitCost:       batch.CostPerUnit,
		Reference:      reference,
		CreatedAt:      now,
		CreatedBy:      actor,
	}); err != nil {
		return nil, err
	}
	return batch, nil
}

// GetBatchesForProduct lotes de un producto en una sucursal, en orden FIFO
// por frescura (vencimiento ascendente, nulos al final).
func (uc *UseCase) GetBatchesForProduct(ctx context.Context, productID, branchID string, includeExpired, includeDisposed bool) ([]*entity.ProductBatch, error) {
	return uc.batchRepo.ListForProduct(ctx, productID, branchID, repository.BatchFilter{
		IncludeExpired:  includeExpired,
		IncludeDisposed: includeDisposed,
		Today:           time.Now(),
	})
}

// GetBatchSummary resumen de stock y vencimientos de un producto en una
// sucursal.
func (uc *UseCase) GetBatchSummary(ctx context.Context, productID, branchID string) (*dto.BatchSummaryDTO, error) {
	today := time.Now()
	batches, err := uc.batchRepo.ListForProduct(ctx, productID, branchID, repository.BatchFilter{
		IncludeExpired: true,
		Today:          today,
	})
	if err != nil {
		return nil, err
	}

	summary := &dto.BatchSummaryDTO{
		ProductID:  productID,
		BranchID:   branchID,
		TotalValue: decimal.Zero,
	}
	for _, b := range batches {
		summary.BatchCount++
		summary.TotalUnits += b.CurrentStock
		summary.TotalValue = summary.TotalValue.Add(b.StockValue())
		if b.IsExpired(today) {
			summary.ExpiredUnits += b.CurrentStock
			continue
		}
		if b.ExpiryDate != nil && b.CurrentStock > 0 {
			if summary.NextExpiry == nil || b.ExpiryDate.Before(*summary.NextExpiry) {
				e := *b.ExpiryDate
				summary.NextExpiry = &e
			}
		}
	}
	return summary, nil
}

// generateBatchNumber número legible para recepciones sin número explícito.
func generateBatchNumber(sku string, received time.Time) string {
	return fmt.Sprintf("%s-%s-%s", sku, received.Format("20060102"), uuid.New().String()[:8])
}
