// Barrido diario de vencimientos. Pensado para correr desde cron: clasifica
// todos los lotes con vencimiento, marca los recién vencidos, emite las
// alertas y al final lista los lotes elegibles para baja.
package main

import (
	"context"
	"time"

	appexpiry "github.com/jhoicas/inventario-perecederos/internal/application/expiry"
	infranotify "github.com/jhoicas/inventario-perecederos/internal/infrastructure/notify"
	"github.com/jhoicas/inventario-perecederos/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-perecederos/pkg/config"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando barrido de vencimientos")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	batchRepo := postgres.NewBatchRepository(pool)
	txRunner := postgres.NewTxRunner(pool)
	notifier := infranotify.NewLogNotifier(log)

	monitor := appexpiry.NewMonitor(txRunner, batchRepo, notifier, log)

	today := time.Now()
	result, err := monitor.Sweep(ctx, today)
	if err != nil {
		log.Fatal().Err(err).Msg("barrido de vencimientos")
	}

	log.Info().
		Time("date", result.Date).
		Int("total", result.TotalChecked).
		Int("fresh", result.FreshCount).
		Int("warning", result.WarningCount).
		Int("urgent", result.UrgentCount).
		Int("expired", result.ExpiredCount).
		Int("newly_expired", len(result.NewlyExpired)).
		Str("value_at_risk", result.ValueAtRisk.String()).
		Str("value_lost", result.ValueLost.String()).
		Msg("barrido completado")

	// Lotes vencidos aún no dados de baja: candidatos para el gestor de bajas.
	eligible, err := batchRepo.ListExpiringBefore(ctx, today)
	if err != nil {
		log.Fatal().Err(err).Msg("listar lotes elegibles para baja")
	}
	for _, b := range eligible {
		if b.CurrentStock == 0 {
			continue
		}
		log.Info().
			Str("batch_id", b.ID).
			Str("batch_number", b.BatchNumber).
			Str("product_id", b.ProductID).
			Str("branch_id", b.BranchID).
			Int("units", b.CurrentStock).
			Str("value", b.StockValue().String()).
			Msg("lote elegible para baja")
	}
}
