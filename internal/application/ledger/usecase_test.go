package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-perecederos/internal/application/dto"
	"github.com/jhoicas/inventario-perecederos/internal/application/ledger"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Pruebas del libro de lotes: el único punto de mutación de stock. Invariante
// central: 0 <= CurrentStock <= InitialStock, y cada cambio deja exactamente
// una mutación auditada con el stock resultante.
// ──────────────────────────────────────────────────────────────────────────────

type fixture struct {
	store   *memory.Store
	uc      *ledger.UseCase
	batches *memory.BatchRepo
	muts    *memory.MutationRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.SeedProduct(&entity.Product{
		ID: "prod-1", SKU: "YOG-FRESA", Name: "Yogur de fresa",
		SellPrice:    decimal.RequireFromString("4.50"),
		BuyPrice:     decimal.RequireFromString("2.00"),
		MinimumStock: 10, TrackExpiry: true, Active: true,
	})
	store.SeedBranch(&entity.Branch{
		ID: "suc-1", Name: "Centro", City: "Bogotá", Province: "Cundinamarca", Active: true,
	})

	batches := memory.NewBatchRepository(store)
	muts := memory.NewMutationRepository(store)
	uc := ledger.NewUseCase(
		memory.NewTxRunner(store), batches,
		memory.NewProductRepository(store), memory.NewBranchRepository(store),
		nil, logger.Nop(),
	)
	return &fixture{store: store, uc: uc, batches: batches, muts: muts}
}

func createInput(stock int) dto.CreateBatchInput {
	// Fechas relativas al reloj real: GetBatchSummary clasifica contra hoy
	received := time.Now().AddDate(0, 0, -1)
	expiry := received.AddDate(0, 0, 15)
	return dto.CreateBatchInput{
		ProductID:    "prod-1",
		BranchID:     "suc-1",
		InitialStock: stock,
		CostPerUnit:  decimal.RequireFromString("2.00"),
		ReceivedDate: received,
		ExpiryDate:   &expiry,
		CreatedBy:    "bodeguero-1",
	}
}

func TestCreateBatch_RegistraLoteYAuditoriaInicial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := createInput(20)
	batch, err := f.uc.CreateBatch(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 20, batch.InitialStock)
	assert.Equal(t, 20, batch.CurrentStock)
	assert.Contains(t, batch.BatchNumber, "YOG-FRESA-"+input.ReceivedDate.Format("20060102"),
		"el número generado lleva SKU y fecha")

	muts, err := f.muts.ListByBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, muts, 1, "la recepción deja la mutación inicial")
	assert.Equal(t, entity.MutationTypeAdjustment, muts[0].Type)
	assert.Equal(t, 20, muts[0].Quantity)
	assert.Equal(t, 20, muts[0].ResultingStock)
}

func TestCreateBatch_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sinStock := createInput(0)
	_, err := f.uc.CreateBatch(ctx, sinStock)
	assert.ErrorIs(t, err, domain.ErrValidation, "stock inicial cero se rechaza")

	costoNegativo := createInput(10)
	costoNegativo.CostPerUnit = decimal.RequireFromString("-1")
	_, err = f.uc.CreateBatch(ctx, costoNegativo)
	assert.ErrorIs(t, err, domain.ErrValidation)

	venceAntes := createInput(10)
	antes := venceAntes.ReceivedDate.AddDate(0, 0, -1)
	venceAntes.ExpiryDate = &antes
	_, err = f.uc.CreateBatch(ctx, venceAntes)
	assert.ErrorIs(t, err, domain.ErrValidation, "vencer antes de recibir es inválido")

	sinVencimiento := createInput(10)
	sinVencimiento.ExpiryDate = nil
	_, err = f.uc.CreateBatch(ctx, sinVencimiento)
	assert.ErrorIs(t, err, domain.ErrValidation,
		"la categoría exige vencimiento y no se entregó")
}

func TestAdjustStock_DescuentaYAudita(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.uc.CreateBatch(ctx, createInput(20))
	require.NoError(t, err)

	updated, err := f.uc.AdjustStock(ctx, batch.ID, -6, entity.MutationTypeSale, "cajero-1", "venta-1")
	require.NoError(t, err)
	assert.Equal(t, 14, updated.CurrentStock)

	muts, err := f.muts.ListByBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, muts, 2)
	ultima := muts[len(muts)-1]
	assert.Equal(t, entity.MutationTypeSale, ultima.Type)
	assert.Equal(t, -6, ultima.Quantity)
	assert.Equal(t, 14, ultima.ResultingStock)
	assert.Equal(t, "cajero-1", ultima.CreatedBy)
}

func TestAdjustStock_NuncaNegativo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.uc.CreateBatch(ctx, createInput(5))
	require.NoError(t, err)

	_, err = f.uc.AdjustStock(ctx, batch.ID, -8, entity.MutationTypeSale, "cajero-1", "venta-2")

	var insuf *domain.InsufficientStockError
	require.ErrorAs(t, err, &insuf)
	assert.Equal(t, 8, insuf.Requested)
	assert.Equal(t, 5, insuf.Available)

	// El fallo no deja rastro: ni stock tocado ni mutación extra
	after, err := f.batches.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.CurrentStock)
	muts, _ := f.muts.ListByBatch(ctx, batch.ID)
	assert.Len(t, muts, 1)
}

func TestAdjustStock_NuncaSuperaElInicial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.uc.CreateBatch(ctx, createInput(10))
	require.NoError(t, err)

	_, err = f.uc.AdjustStock(ctx, batch.ID, -4, entity.MutationTypeSale, "cajero-1", "venta-3")
	require.NoError(t, err)

	_, err = f.uc.AdjustStock(ctx, batch.ID, 7, entity.MutationTypeAdjustment, "bodeguero-1", "ajuste-1")
	assert.ErrorIs(t, err, domain.ErrValidation, "el stock de un lote no puede superar el inicial")
}

func TestAdjustStock_LoteDadoDeBajaCongelado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.uc.CreateBatch(ctx, createInput(10))
	require.NoError(t, err)

	frozen, err := f.batches.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	frozen.Disposed = true
	require.NoError(t, f.batches.Update(ctx, frozen))

	_, err = f.uc.AdjustStock(ctx, batch.ID, -1, entity.MutationTypeSale, "cajero-1", "venta-4")
	assert.ErrorIs(t, err, domain.ErrBatchDisposed)
}

func TestAdjustStock_EntradasInvalidas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.uc.CreateBatch(ctx, createInput(10))
	require.NoError(t, err)

	_, err = f.uc.AdjustStock(ctx, batch.ID, 0, entity.MutationTypeSale, "x", "r")
	assert.ErrorIs(t, err, domain.ErrValidation, "delta cero no tiene sentido")

	_, err = f.uc.AdjustStock(ctx, batch.ID, -1, "DONATION", "x", "r")
	assert.ErrorIs(t, err, domain.ErrValidation, "tipo de mutación desconocido")

	_, err = f.uc.AdjustStock(ctx, "no-existe", -1, entity.MutationTypeSale, "x", "r")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdjustStock_ConcurrenciaNoPierdeUnidades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.uc.CreateBatch(ctx, createInput(50))
	require.NoError(t, err)

	// 10 ventas concurrentes de 5 unidades: exactamente las 50 salen, ninguna
	// venta ve stock fantasma
	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.AdjustStock(ctx, batch.ID, -5, entity.MutationTypeSale, "cajero-1", "venta-c")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "venta concurrente %d", i)
	}
	after, err := f.batches.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.CurrentStock)

	// Una venta más debe fallar por faltante, no dejar stock negativo
	_, err = f.uc.AdjustStock(ctx, batch.ID, -1, entity.MutationTypeSale, "cajero-1", "venta-c")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestGetBatchSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresco := createInput(10)
	_, err := f.uc.CreateBatch(ctx, fresco)
	require.NoError(t, err)

	// Lote ya vencido, sembrado directo para no pelear con la validación
	vencido := time.Now().AddDate(0, 0, -2)
	f.store.SeedBatch(&entity.ProductBatch{
		ID: "viejo", ProductID: "prod-1", BranchID: "suc-1", BatchNumber: "L-viejo",
		InitialStock: 8, CurrentStock: 8,
		CostPerUnit:  decimal.RequireFromString("2.00"),
		ReceivedDate: vencido.AddDate(0, 0, -10), ExpiryDate: &vencido,
	})

	summary, err := f.uc.GetBatchSummary(ctx, "prod-1", "suc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.BatchCount)
	assert.Equal(t, 18, summary.TotalUnits)
	assert.Equal(t, 8, summary.ExpiredUnits)
	assert.True(t, summary.TotalValue.Equal(decimal.RequireFromString("36")))
	require.NotNil(t, summary.NextExpiry, "el vencimiento más próximo no cuenta lotes ya vencidos")
}
