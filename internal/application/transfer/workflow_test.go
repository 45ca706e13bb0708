package transfer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-perecederos/internal/application/dto"
	"github.com/jhoicas/inventario-perecederos/internal/application/ledger"
	"github.com/jhoicas/inventario-perecederos/internal/application/notify"
	"github.com/jhoicas/inventario-perecederos/internal/application/transfer"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
	"github.com/jhoicas/inventario-perecederos/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-perecederos/pkg/config"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Pruebas del workflow de traslados: máquina de estados con reserva blanda
// entre aprobación y despacho. El escenario de concurrencia clave: dos
// aprobaciones sobre el mismo stock, exactamente una gana.
// ──────────────────────────────────────────────────────────────────────────────

func transferConfig() config.TransferConfig {
	return config.TransferConfig{
		BaseCost:               decimal.RequireFromString("10"),
		PerUnitCost:            decimal.RequireFromString("0.5"),
		SameCityMultiplier:     decimal.RequireFromString("1.0"),
		SameProvinceMultiplier: decimal.RequireFromString("1.5"),
		FarMultiplier:          decimal.RequireFromString("2.0"),
		MinROIRatio:            decimal.RequireFromString("0.2"),
		DemandThresholdPerDay:  decimal.RequireFromString("2"),
		ExpiryWindowDays:       7,
		MaxRecommendations:     20,
		ProductSampleSize:      100,
		ApprovalValueThreshold: decimal.RequireFromString("500"),
	}
}

type wfFixture struct {
	store    *memory.Store
	wf       *transfer.Workflow
	batches  *memory.BatchRepo
	muts     *memory.MutationRepo
	notifier *memory.Notifier
	book     *transfer.ReservationBook
}

func newWfFixture() *wfFixture {
	store := memory.NewStore()
	store.SeedBranch(&entity.Branch{ID: "suc-a", Name: "Centro", City: "Bogotá", Province: "Cundinamarca", Active: true})
	store.SeedBranch(&entity.Branch{ID: "suc-b", Name: "Norte", City: "Bogotá", Province: "Cundinamarca", Active: true})
	store.SeedBranch(&entity.Branch{ID: "suc-off", Name: "Cerrada", City: "Cali", Province: "Valle", Active: false})
	store.SeedProduct(&entity.Product{
		ID: "prod-1", SKU: "QUESO-CAMP", Name: "Queso campesino",
		SellPrice:    decimal.RequireFromString("8.00"),
		BuyPrice:     decimal.RequireFromString("5.00"),
		MinimumStock: 10, TrackExpiry: true, Active: true,
	})

	notifier := memory.NewNotifier()
	book := transfer.NewReservationBook()
	batches := memory.NewBatchRepository(store)
	wf := transfer.NewWorkflow(
		memory.NewTxRunner(store),
		batches,
		memory.NewTransferRepository(store),
		memory.NewStatusHistoryRepository(store),
		memory.NewProductRepository(store),
		memory.NewBranchRepository(store),
		book,
		transferConfig(),
		notifier,
		logger.Nop(),
	)
	return &wfFixture{
		store: store, wf: wf, batches: batches,
		muts: memory.NewMutationRepository(store), notifier: notifier, book: book,
	}
}

// seedStock lotes en la sucursal origen, el primero venciendo antes.
func (f *wfFixture) seedStock(branchID string, stocks ...int) {
	now := time.Now()
	for i, s := range stocks {
		exp := now.AddDate(0, 0, 10+10*i)
		f.store.SeedBatch(&entity.ProductBatch{
			ID: branchID + "-b" + string(rune('1'+i)), ProductID: "prod-1", BranchID: branchID,
			BatchNumber:  "L-" + branchID + "-" + string(rune('1'+i)),
			InitialStock: s, CurrentStock: s,
			CostPerUnit:  decimal.RequireFromString("5.00"),
			ReceivedDate: now.AddDate(0, 0, -5+i),
			ExpiryDate:   &exp,
		})
	}
}

func solicitud(qty int) dto.RequestTransferInput {
	return dto.RequestTransferInput{
		SourceBranchID: "suc-a",
		TargetBranchID: "suc-b",
		ProductID:      "prod-1",
		Quantity:       qty,
		RequestedBy:    "gerente-a",
		Reason:         "reposición",
	}
}

func TestRequest_CreaSolicitudConCostoEstimado(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusRequested, tr.Status)
	assert.Contains(t, tr.TransferNumber, "TRF-")
	// misma ciudad: (10 + 20*0.5) * 1.0
	assert.True(t, tr.EstimatedCost.Equal(decimal.RequireFromString("20")))

	hist, err := f.wf.GetHistory(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, entity.TransferStatusRequested, hist[0].ToStatus)

	assert.Len(t, f.notifier.EventsOfType(notify.EventTransferStatus), 1)
}

func TestRequest_Validaciones(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 10)
	ctx := context.Background()

	sinCantidad := solicitud(0)
	_, err := f.wf.Request(ctx, sinCantidad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	mismaSucursal := solicitud(5)
	mismaSucursal.TargetBranchID = mismaSucursal.SourceBranchID
	_, err = f.wf.Request(ctx, mismaSucursal)
	assert.ErrorIs(t, err, domain.ErrValidation)

	inactiva := solicitud(5)
	inactiva.TargetBranchID = "suc-off"
	_, err = f.wf.Request(ctx, inactiva)
	assert.ErrorIs(t, err, domain.ErrValidation, "una sucursal inactiva no participa")

	demasiado := solicitud(11)
	_, err = f.wf.Request(ctx, demasiado)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestApprove_ReservaElStock(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)

	approved, err := f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusApproved, approved.Status)
	assert.Equal(t, "supervisor-1", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, 20, f.book.Reserved("suc-a", "prod-1"))

	// Una nueva solicitud solo ve las 10 unidades sin reservar
	_, err = f.wf.Request(ctx, solicitud(11))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	_, err = f.wf.Request(ctx, solicitud(10))
	assert.NoError(t, err)
}

func TestApprove_UmbralDeValorExigeOtroAprobador(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 100)
	ctx := context.Background()

	// 80 * 8.00 = 640 > umbral 500
	tr, err := f.wf.Request(ctx, solicitud(80))
	require.NoError(t, err)

	_, err = f.wf.Approve(ctx, tr.ID, "gerente-a")
	assert.ErrorIs(t, err, domain.ErrValidation, "el solicitante no se aprueba a sí mismo sobre el umbral")
	assert.Equal(t, 0, f.book.Reserved("suc-a", "prod-1"), "el rechazo no deja reserva colgada")

	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	assert.NoError(t, err)

	// Bajo el umbral el solicitante sí puede aprobar
	chico, err := f.wf.Request(ctx, solicitud(10))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, chico.ID, "gerente-a")
	assert.NoError(t, err)
}

func TestApprove_ConcurrentesSobreElMismoStock(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	t1, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)
	t2, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)

	// Dos aprobaciones a la vez para 40 unidades sobre 30 de stock
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{t1.ID, t2.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.wf.Approve(ctx, id, "supervisor-1")
		}(i, id)
	}
	wg.Wait()

	oks := 0
	for _, err := range errs {
		if err == nil {
			oks++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, oks, "exactamente una aprobación compromete el stock")
	assert.Equal(t, 20, f.book.Reserved("suc-a", "prod-1"))
}

func TestShip_DescuentaFIFOYLiberaLaReserva(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 5, 30) // b1 vence antes que b2
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(12))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)

	shipped, err := f.wf.Ship(ctx, tr.ID, "bodeguero-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusShipped, shipped.Status)
	assert.Equal(t, 0, f.book.Reserved("suc-a", "prod-1"), "despachado = reserva consumida")

	// FIFO: el lote que vence primero se vació, el resto salió del segundo
	b1, err := f.batches.GetByID(ctx, "suc-a-b1")
	require.NoError(t, err)
	assert.Equal(t, 0, b1.CurrentStock)
	b2, err := f.batches.GetByID(ctx, "suc-a-b2")
	require.NoError(t, err)
	assert.Equal(t, 23, b2.CurrentStock)

	muts, err := f.muts.ListByReference(ctx, tr.TransferNumber)
	require.NoError(t, err)
	require.Len(t, muts, 2)
	for _, m := range muts {
		assert.Equal(t, entity.MutationTypeTransferOut, m.Type)
	}
}

func TestShip_DesdeRequestedEsTransicionInvalida(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(10))
	require.NoError(t, err)

	_, err = f.wf.Ship(ctx, tr.ID, "bodeguero-1")
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid, "despachar sin aprobar es ilegal")
	assert.Equal(t, entity.TransferStatusRequested, invalid.From)
	assert.Equal(t, entity.TransferStatusShipped, invalid.To)
}

func TestReceive_CreaLoteEnDestinoConCostoPonderado(t *testing.T) {
	f := newWfFixture()
	now := time.Now()
	expCorto := now.AddDate(0, 0, 8)
	expLargo := now.AddDate(0, 0, 25)
	f.store.SeedBatch(&entity.ProductBatch{
		ID: "caro", ProductID: "prod-1", BranchID: "suc-a", BatchNumber: "L-caro",
		InitialStock: 10, CurrentStock: 10,
		CostPerUnit:  decimal.RequireFromString("6.00"),
		ReceivedDate: now.AddDate(0, 0, -10), ExpiryDate: &expCorto,
	})
	f.store.SeedBatch(&entity.ProductBatch{
		ID: "barato", ProductID: "prod-1", BranchID: "suc-a", BatchNumber: "L-barato",
		InitialStock: 20, CurrentStock: 20,
		CostPerUnit:  decimal.RequireFromString("3.00"),
		ReceivedDate: now.AddDate(0, 0, -2), ExpiryDate: &expLargo,
	})
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(15))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)
	_, err = f.wf.Ship(ctx, tr.ID, "bodeguero-1")
	require.NoError(t, err)

	received, err := f.wf.Receive(ctx, tr.ID, "bodeguero-b")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusReceived, received.Status)

	// Lote nuevo en destino: 10 a 6.00 + 5 a 3.00 = 75 / 15 = 5.00
	destino, err := f.batches.ListForProduct(ctx, "prod-1", "suc-b", repository.BatchFilter{Today: now})
	require.NoError(t, err)
	require.Len(t, destino, 1)
	nuevo := destino[0]
	assert.Equal(t, tr.TransferNumber+"-IN", nuevo.BatchNumber)
	assert.Equal(t, 15, nuevo.InitialStock)
	assert.True(t, nuevo.CostPerUnit.Equal(decimal.RequireFromString("5")),
		"costo = promedio ponderado de los lotes despachados")
	require.NotNil(t, nuevo.ExpiryDate)
	assert.True(t, nuevo.ExpiryDate.Equal(expCorto),
		"hereda el vencimiento más próximo de lo despachado")

	// Historial completo de la cadena
	hist, err := f.wf.GetHistory(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	assert.Equal(t, entity.TransferStatusReceived, hist[3].ToStatus)
}

func TestCancel_LiberaLaReservaAntesDelDespacho(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)
	require.Equal(t, 20, f.book.Reserved("suc-a", "prod-1"))

	cancelled, err := f.wf.Cancel(ctx, tr.ID, "gerente-a", "ya no hace falta")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusCancelled, cancelled.Status)
	assert.Equal(t, "ya no hace falta", cancelled.ClosedReason)
	assert.Equal(t, 0, f.book.Reserved("suc-a", "prod-1"))

	// Nada salió del origen
	b1, err := f.batches.GetByID(ctx, "suc-a-b1")
	require.NoError(t, err)
	assert.Equal(t, 30, b1.CurrentStock)
}

func TestCancel_DespachadoNoSePuedeCancelar(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(10))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)
	_, err = f.wf.Ship(ctx, tr.ID, "bodeguero-1")
	require.NoError(t, err)

	_, err = f.wf.Cancel(ctx, tr.ID, "gerente-a", "me arrepentí")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition,
		"la mercancía en tránsito solo puede recibirse")
}

func TestReject_CierraConMotivo(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(10))
	require.NoError(t, err)

	rejected, err := f.wf.Reject(ctx, tr.ID, "supervisor-1", "sin transporte esta semana")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusRejected, rejected.Status)
	assert.Equal(t, "sin transporte esta semana", rejected.ClosedReason)
}

// ventaIntercalada simula una venta que se confirma entre el armado del plan
// FIFO y el bloqueo de la fila del lote: al primer GetForUpdate del lote
// objetivo descuenta unidades antes de devolver la fila.
type ventaIntercalada struct {
	inner    transfer.TxRunner
	batchID  string
	unidades int
	hecha    bool
}

func (r *ventaIntercalada) RunTransfer(ctx context.Context, fn func(
	repository.BatchRepository,
	repository.MutationRepository,
	repository.TransferRepository,
	repository.StatusHistoryRepository,
) error) error {
	return r.inner.RunTransfer(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error {
		return fn(&lotesConVenta{BatchRepository: batchRepo, venta: r}, mutRepo, transferRepo, historyRepo)
	})
}

type lotesConVenta struct {
	repository.BatchRepository
	venta *ventaIntercalada
}

func (rb *lotesConVenta) GetForUpdate(ctx context.Context, id string) (*entity.ProductBatch, error) {
	if id == rb.venta.batchID && !rb.venta.hecha {
		rb.venta.hecha = true
		b, err := rb.BatchRepository.GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		b.CurrentStock -= rb.venta.unidades
		if err := rb.BatchRepository.Update(ctx, b); err != nil {
			return nil, err
		}
	}
	return rb.BatchRepository.GetForUpdate(ctx, id)
}

func TestShip_VentaIntercaladaNoDejaStockNegativo(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 5, 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(5))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)

	// El plan tomará las 5 de b1, pero una venta de 3 se cuela antes del
	// bloqueo de la fila
	runner := &ventaIntercalada{inner: memory.NewTxRunner(f.store), batchID: "suc-a-b1", unidades: 3}
	wfCarrera := transfer.NewWorkflow(
		runner, f.batches,
		memory.NewTransferRepository(f.store), memory.NewStatusHistoryRepository(f.store),
		memory.NewProductRepository(f.store), memory.NewBranchRepository(f.store),
		f.book, transferConfig(), memory.NewNotifier(), logger.Nop(),
	)

	_, err = wfCarrera.Ship(ctx, tr.ID, "bodeguero-1")
	var insuf *domain.InsufficientStockError
	require.ErrorAs(t, err, &insuf, "el stock releído bajo bloqueo ya no cubre el plan")
	assert.Equal(t, 5, insuf.Requested)
	assert.Equal(t, 2, insuf.Available)

	// La transacción se revirtió completa: nada salió y ningún lote quedó
	// en negativo
	b1, err := f.batches.GetByID(ctx, "suc-a-b1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, b1.CurrentStock, 0)
	muts, err := f.muts.ListByReference(ctx, tr.TransferNumber)
	require.NoError(t, err)
	assert.Empty(t, muts, "un despacho fallido no deja mutaciones")
}

func TestVenta_NoConsumeUnidadesReservadas(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)

	// El libro de lotes comparte el libro de reservas del workflow
	libro := ledger.NewUseCase(
		memory.NewTxRunner(f.store), f.batches,
		memory.NewProductRepository(f.store), memory.NewBranchRepository(f.store),
		f.book, logger.Nop(),
	)

	_, err = libro.AdjustStock(ctx, "suc-a-b1", -15, entity.MutationTypeSale, "cajero-1", "venta-9")
	var insuf *domain.InsufficientStockError
	require.ErrorAs(t, err, &insuf, "con 20 reservadas solo quedan 10 vendibles")
	assert.Equal(t, 15, insuf.Requested)
	assert.Equal(t, 10, insuf.Available)

	// Lo no reservado sí se vende, y el despacho aprobado sigue cubierto
	_, err = libro.AdjustStock(ctx, "suc-a-b1", -10, entity.MutationTypeSale, "cajero-1", "venta-10")
	require.NoError(t, err)
	_, err = f.wf.Ship(ctx, tr.ID, "bodeguero-1")
	assert.NoError(t, err)
}

var errCommitFallido = errors.New("commit fallido")

// commitFallido ejecuta la función con normalidad y luego revierte todo, como
// una transacción cuyo Commit final falla.
type commitFallido struct {
	inner transfer.TxRunner
}

func (r commitFallido) RunTransfer(ctx context.Context, fn func(
	repository.BatchRepository,
	repository.MutationRepository,
	repository.TransferRepository,
	repository.StatusHistoryRepository,
) error) error {
	return r.inner.RunTransfer(ctx, func(
		batchRepo repository.BatchRepository,
		mutRepo repository.MutationRepository,
		transferRepo repository.TransferRepository,
		historyRepo repository.StatusHistoryRepository,
	) error {
		if err := fn(batchRepo, mutRepo, transferRepo, historyRepo); err != nil {
			return err
		}
		return errCommitFallido
	})
}

func TestApprove_CommitFallidoNoDejaReservaColgada(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)

	wfFragil := transfer.NewWorkflow(
		commitFallido{inner: memory.NewTxRunner(f.store)},
		f.batches, memory.NewTransferRepository(f.store), memory.NewStatusHistoryRepository(f.store),
		memory.NewProductRepository(f.store), memory.NewBranchRepository(f.store),
		f.book, transferConfig(), memory.NewNotifier(), logger.Nop(),
	)
	_, err = wfFragil.Approve(ctx, tr.ID, "supervisor-1")
	require.ErrorIs(t, err, errCommitFallido)
	assert.Equal(t, 0, f.book.Reserved("suc-a", "prod-1"),
		"la reserva no sobrevive a una transacción que no quedó escrita")

	// El traslado sigue en REQUESTED y una aprobación sana lo toma
	approved, err := f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusApproved, approved.Status)
	assert.Equal(t, 20, f.book.Reserved("suc-a", "prod-1"))
}

func TestReloadReservations_ReconstruyeDesdeAprobados(t *testing.T) {
	f := newWfFixture()
	f.seedStock("suc-a", 30)
	ctx := context.Background()

	tr, err := f.wf.Request(ctx, solicitud(20))
	require.NoError(t, err)
	_, err = f.wf.Approve(ctx, tr.ID, "supervisor-1")
	require.NoError(t, err)

	// Proceso nuevo: mismo almacén, libro de reservas vacío
	libroNuevo := transfer.NewReservationBook()
	wf2 := transfer.NewWorkflow(
		memory.NewTxRunner(f.store),
		memory.NewBatchRepository(f.store),
		memory.NewTransferRepository(f.store),
		memory.NewStatusHistoryRepository(f.store),
		memory.NewProductRepository(f.store),
		memory.NewBranchRepository(f.store),
		libroNuevo,
		transferConfig(),
		memory.NewNotifier(),
		logger.Nop(),
	)
	require.NoError(t, wf2.ReloadReservations(ctx))
	assert.Equal(t, 20, libroNuevo.Reserved("suc-a", "prod-1"))
}
