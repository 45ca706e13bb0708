// Volcado de recomendaciones de traslado. Pensado para correr desde cron o a
// demanda: corre el motor una vez y deja cada recomendación como línea de log
// estructurado.
package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/application/transfer"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-perecederos/pkg/computecache"
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
		Msg("iniciando motor de recomendaciones")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	batchRepo := postgres.NewBatchRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	branchRepo := postgres.NewBranchRepository(pool)
	salesRepo := postgres.NewSalesHistoryRepository(pool)
	cache := computecache.New(cfg.Cache.Cooldown, nil)

	engine := transfer.NewEngine(
		batchRepo, productRepo, branchRepo, salesRepo,
		cache, cfg.Cache, cfg.Transfer, cfg.Expiry.SalesLookbackDays, log,
	)

	recs, err := engine.Recommend(ctx, time.Now())
	if err != nil {
		var throttled *domain.ThrottledError
		if errors.As(err, &throttled) {
			log.Warn().
				Str("key", throttled.Key).
				Dur("retry_after", throttled.RetryAfter).
				Msg("cálculo en enfriamiento, reintentar luego")
			return
		}
		log.Fatal().Err(err).Msg("calcular recomendaciones")
	}

	log.Info().Int("count", len(recs)).Msg("recomendaciones calculadas")
	for _, rec := range recs {
		log.Info().
			Str("source", rec.Source).
			Str("source_branch", rec.SourceBranchID).
			Str("target_branch", rec.TargetBranchID).
			Str("product_id", rec.ProductID).
			Str("batch_id", rec.BatchID).
			Int("quantity", rec.Quantity).
			Str("estimated_cost", rec.EstimatedCost.String()).
			Str("potential_savings", rec.PotentialSavings.String()).
			Int("urgency", rec.UrgencyScore).
			Time("execute_by", rec.ExecuteBy).
			Str("reasons", strings.Join(rec.Reasons, "; ")).
			Msg("recomendación de traslado")
	}
}
