package expiry_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-perecederos/internal/application/expiry"
	"github.com/jhoicas/inventario-perecederos/internal/application/notify"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Pruebas del barrido de vencimientos. La propiedad que más importa: correr
// el barrido dos veces el mismo día (o dos procesos a la vez) clasifica igual
// y solo cuenta cada lote vencido una vez como "recién vencido".
// ──────────────────────────────────────────────────────────────────────────────

var hoy = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func enDias(d int) *time.Time {
	t := hoy.AddDate(0, 0, d)
	return &t
}

func lote(id string, stock, diasParaVencer int) *entity.ProductBatch {
	return &entity.ProductBatch{
		ID: id, ProductID: "prod-" + id, BranchID: "suc-1", BatchNumber: "L-" + id,
		InitialStock: stock, CurrentStock: stock,
		CostPerUnit:  decimal.RequireFromString("3.00"),
		ReceivedDate: hoy.AddDate(0, 0, -20),
		ExpiryDate:   enDias(diasParaVencer),
	}
}

func newMonitor(store *memory.Store, notifier *memory.Notifier) *expiry.Monitor {
	return expiry.NewMonitor(
		memory.NewTxRunner(store),
		memory.NewBatchRepository(store),
		notifier,
		logger.Nop(),
	)
}

func TestSweep_ClasificaYValoraElRiesgo(t *testing.T) {
	store := memory.NewStore()
	store.SeedBatch(lote("fresco", 10, 30))
	store.SeedBatch(lote("alerta", 10, 6))  // WARNING: valor 30
	store.SeedBatch(lote("urgente", 5, 2))  // URGENT: valor 15
	store.SeedBatch(lote("vencido", 4, -1)) // EXPIRED: valor 12

	notifier := memory.NewNotifier()
	result, err := newMonitor(store, notifier).Sweep(context.Background(), hoy)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalChecked)
	assert.Equal(t, 1, result.FreshCount)
	assert.Equal(t, 1, result.WarningCount)
	assert.Equal(t, 1, result.UrgentCount)
	assert.Equal(t, 1, result.ExpiredCount)
	assert.True(t, result.ValueAtRisk.Equal(decimal.RequireFromString("45")),
		"valor en riesgo = stock WARNING + URGENT al costo")
	assert.True(t, result.ValueLost.Equal(decimal.RequireFromString("12")))

	require.Len(t, result.NewlyExpired, 1)
	assert.Equal(t, "vencido", result.NewlyExpired[0].BatchID)

	assert.Len(t, notifier.EventsOfType(notify.EventExpiryWarning), 1)
	assert.Len(t, notifier.EventsOfType(notify.EventExpiryUrgent), 1)
	assert.Len(t, notifier.EventsOfType(notify.EventExpiryExpired), 1)
}

func TestSweep_IdempotenteElMismoDia(t *testing.T) {
	store := memory.NewStore()
	store.SeedBatch(lote("vencido", 4, -1))
	notifier := memory.NewNotifier()
	monitor := newMonitor(store, notifier)
	ctx := context.Background()

	primero, err := monitor.Sweep(ctx, hoy)
	require.NoError(t, err)
	require.Len(t, primero.NewlyExpired, 1)

	segundo, err := monitor.Sweep(ctx, hoy)
	require.NoError(t, err)
	assert.Equal(t, 1, segundo.ExpiredCount, "la clasificación no cambia")
	assert.Empty(t, segundo.NewlyExpired, "el marcador persistido evita contar dos veces")
	assert.True(t, segundo.ValueLost.IsZero())

	assert.Len(t, notifier.EventsOfType(notify.EventExpiryExpired), 1,
		"tampoco se repite la notificación de vencido")
}

func TestSweep_IgnoraLotesSinVencimientoYDadosDeBaja(t *testing.T) {
	store := memory.NewStore()
	sinVenc := lote("sin-venc", 10, 0)
	sinVenc.ExpiryDate = nil
	store.SeedBatch(sinVenc)
	baja := lote("baja", 10, -5)
	baja.Disposed = true
	store.SeedBatch(baja)

	result, err := newMonitor(store, memory.NewNotifier()).Sweep(context.Background(), hoy)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalChecked)
}

func TestSweep_ElDiaDelVencimientoYaEsVencido(t *testing.T) {
	store := memory.NewStore()
	store.SeedBatch(lote("hoy", 3, 0))

	result, err := newMonitor(store, memory.NewNotifier()).Sweep(context.Background(), hoy)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExpiredCount)
	require.Len(t, result.NewlyExpired, 1)
	assert.Equal(t, 0, result.NewlyExpired[0].DaysUntilExpiry)
}
