package transfer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/inventario-perecederos/internal/domain"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	domexpiry "github.com/jhoicas/inventario-perecederos/internal/domain/expiry"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
	"github.com/jhoicas/inventario-perecederos/pkg/computecache"
	"github.com/jhoicas/inventario-perecederos/pkg/config"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

const recommendationCacheKey = "transfer-recommendations"

// Engine motor de recomendaciones de traslado. Combina dos estrategias
// independientes con el mismo puntaje:
//
//   - por vencimiento: lotes por vencer en origen hacia sucursales con
//     demanda comprobada del producto;
//   - por desbalance: exceso en una sucursal contra quiebre en otra.
//
// El motor es solo lectura: nunca muta el libro de lotes ni crea traslados.
// Los barridos son caros (sucursales x productos x historial), así que el
// resultado se cachea con TTL y un enfriamiento por clave evita que ráfagas
// concurrentes disparen el mismo recálculo.
type Engine struct {
	batchRepo   repository.BatchRepository
	productRepo repository.ProductRepository
	branchRepo  repository.BranchRepository
	salesRepo   repository.SalesHistoryRepository
	cache       *computecache.Cache
	cacheTTL    time.Duration
	cfg         config.TransferConfig
	lookback    int // días de historial para demanda promedio
	log         *logger.Logger
}

// NewEngine construye el motor de recomendaciones.
func NewEngine(
	batchRepo repository.BatchRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	salesRepo repository.SalesHistoryRepository,
	cache *computecache.Cache,
	cacheCfg config.CacheConfig,
	cfg config.TransferConfig,
	lookbackDays int,
	log *logger.Logger,
) *Engine {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Engine{
		batchRepo:   batchRepo,
		productRepo: productRepo,
		branchRepo:  branchRepo,
		salesRepo:   salesRepo,
		cache:       cache,
		cacheTTL:    cacheCfg.TTL,
		cfg:         cfg,
		lookback:    lookbackDays,
		log:         log,
	}
}

// Recommend devuelve las recomendaciones vigentes para la fecha. Un hit de
// caché evita el barrido; si la clave está en enfriamiento sin caché vigente
// devuelve domain.ThrottledError y el caller decide (reintentar o usar
// Cached). Fallos de candidatos individuales se registran y se omiten: un
// resultado parcial siempre es mejor que ninguno.
func (e *Engine) Recommend(ctx context.Context, today time.Time) ([]entity.TransferRecommendation, error) {
	key := fmt.Sprintf("%s:%s", recommendationCacheKey, today.Format("2006-01-02"))
	v, err := e.cache.GetOrCompute(key, e.cacheTTL, func() (any, error) {
		return e.compute(ctx, today)
	})
	if err != nil {
		var throttled *computecache.ErrThrottled
		if errors.As(err, &throttled) {
			return nil, &domain.ThrottledError{Key: throttled.Key, RetryAfter: throttled.RetryAfter}
		}
		return nil, err
	}
	return v.([]entity.TransferRecommendation), nil
}

// Cached último resultado vigente sin disparar recálculo (fallback para
// callers que recibieron ThrottledError).
func (e *Engine) Cached(today time.Time) ([]entity.TransferRecommendation, bool) {
	key := fmt.Sprintf("%s:%s", recommendationCacheKey, today.Format("2006-01-02"))
	v, ok := e.cache.Peek(key)
	if !ok {
		return nil, false
	}
	return v.([]entity.TransferRecommendation), true
}

func (e *Engine) compute(ctx context.Context, today time.Time) ([]entity.TransferRecommendation, error) {
	branches, err := e.branchRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar sucursales: %w", err)
	}
	branchByID := make(map[string]*entity.Branch, len(branches))
	for _, b := range branches {
		branchByID[b.ID] = b
	}

	pass := &recommendPass{
		engine:     e,
		today:      today,
		branchByID: branchByID,
		products:   make(map[string]*entity.Product),
		demand:     make(map[reservationKey]decimal.Decimal),
	}

	recs := pass.expiryDriven(ctx)
	recs = append(recs, pass.imbalanceDriven(ctx)...)

	// Mayor ahorro primero, luego mayor urgencia; desempate por IDs para que
	// el orden sea reproducible
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.PotentialSavings.Equal(b.PotentialSavings) {
			return a.PotentialSavings.GreaterThan(b.PotentialSavings)
		}
		if a.UrgencyScore != b.UrgencyScore {
			return a.UrgencyScore > b.UrgencyScore
		}
		if a.SourceBranchID != b.SourceBranchID {
			return a.SourceBranchID < b.SourceBranchID
		}
		return a.TargetBranchID < b.TargetBranchID
	})

	if max := e.cfg.MaxRecommendations; max > 0 && len(recs) > max {
		recs = recs[:max]
	}
	return recs, nil
}

// recommendPass estado compartido de un barrido: memoiza productos y demanda
// por (sucursal, producto) para no repetir consultas de historial.
type recommendPass struct {
	engine     *Engine
	today      time.Time
	branchByID map[string]*entity.Branch
	products   map[string]*entity.Product
	demand     map[reservationKey]decimal.Decimal
}

// expiryDriven recomienda mover hasta la mitad de cada lote por vencer hacia
// sucursales con demanda diaria del producto sobre el umbral configurado.
// Mover más de la mitad dejaría al origen sin stock para su propia venta.
func (p *recommendPass) expiryDriven(ctx context.Context) []entity.TransferRecommendation {
	e := p.engine
	horizon := p.today.AddDate(0, 0, e.cfg.ExpiryWindowDays)
	batches, err := e.batchRepo.ListExpiringBefore(ctx, horizon)
	if err != nil {
		e.log.Error().Err(err).Msg("listar lotes por vencer")
		return nil
	}

	var recs []entity.TransferRecommendation
	for _, batch := range batches {
		days, ok := batch.DaysUntilExpiry(p.today)
		if !ok || days <= 0 || batch.CurrentStock <= 0 {
			continue // vencido o sin stock: es asunto de la baja, no de un traslado
		}
		source, ok := p.branchByID[batch.BranchID]
		if !ok {
			continue // sucursal inactiva
		}
		product, err := p.product(ctx, batch.ProductID)
		if err != nil {
			e.log.Warn().Err(err).Str("batch_id", batch.ID).Msg("candidato omitido: producto")
			continue
		}

		qty := batch.CurrentStock / 2
		if qty == 0 {
			continue
		}

		for _, target := range p.branchByID {
			if target.ID == source.ID {
				continue
			}
			demand, err := p.dailyDemand(ctx, product.ID, target.ID)
			if err != nil {
				e.log.Warn().Err(err).Str("branch_id", target.ID).Msg("candidato omitido: demanda")
				continue
			}
			if demand.LessThanOrEqual(e.cfg.DemandThresholdPerDay) {
				continue
			}

			cost := estimateTransferCost(e.cfg, qty, source, target)
			qtyDec := decimal.NewFromInt(int64(qty))
			revenue := qtyDec.Mul(product.SellPrice)
			savings := revenue.Sub(cost).Sub(qtyDec.Mul(batch.CostPerUnit))
			if !passesROIGate(e.cfg, savings, cost) {
				continue
			}

			recs = append(recs, entity.TransferRecommendation{
				Source:           entity.RecommendationSourceExpiry,
				SourceBranchID:   source.ID,
				TargetBranchID:   target.ID,
				ProductID:        product.ID,
				BatchID:          batch.ID,
				Quantity:         qty,
				EstimatedCost:    cost,
				PotentialSavings: savings,
				UrgencyScore:     domexpiry.UrgencyScore(days),
				ExecuteBy:        executeBy(p.today, days),
				Reasons: []string{
					fmt.Sprintf("lote %s vence en %d días con %d unidades", batch.BatchNumber, days, batch.CurrentStock),
					fmt.Sprintf("demanda en %s: %s und/día", target.Name, demand.Round(1)),
					fmt.Sprintf("ahorro estimado %s contra costo de traslado %s", savings.Round(0), cost.Round(0)),
				},
			})
		}
	}
	return recs
}

// imbalanceDriven empareja sucursales con exceso contra sucursales bajo el
// stock mínimo, producto por producto, sobre una muestra acotada del catálogo.
func (p *recommendPass) imbalanceDriven(ctx context.Context) []entity.TransferRecommendation {
	e := p.engine
	products, err := e.productRepo.ListActive(ctx, e.cfg.ProductSampleSize)
	if err != nil {
		e.log.Error().Err(err).Msg("listar productos activos")
		return nil
	}

	var recs []entity.TransferRecommendation
	for _, product := range products {
		stocks, err := e.batchRepo.StockByBranch(ctx, product.ID)
		if err != nil {
			e.log.Warn().Err(err).Str("product_id", product.ID).Msg("candidato omitido: stock por sucursal")
			continue
		}
		stockByBranch := make(map[string]int, len(stocks))
		for _, s := range stocks {
			stockByBranch[s.BranchID] = s.Units
		}

		type excess struct {
			branch *entity.Branch
			amount int
		}
		type shortage struct {
			branch *entity.Branch
			stock  int
			amount int
		}
		var excesses []excess
		var shortages []shortage

		for _, branch := range p.branchByID {
			stock := stockByBranch[branch.ID]
			optimal, err := p.optimalStock(ctx, product, branch.ID)
			if err != nil {
				e.log.Warn().Err(err).Str("branch_id", branch.ID).Msg("candidato omitido: stock óptimo")
				continue
			}
			switch {
			case stock*2 > optimal*3: // stock > 1.5 * óptimo
				excesses = append(excesses, excess{branch: branch, amount: stock - optimal})
			case stock < product.MinimumStock:
				shortages = append(shortages, shortage{branch: branch, stock: stock, amount: optimal - stock})
			}
		}

		// Orden por ID para que el resultado del barrido sea reproducible
		sort.Slice(excesses, func(i, j int) bool { return excesses[i].branch.ID < excesses[j].branch.ID })
		sort.Slice(shortages, func(i, j int) bool { return shortages[i].branch.ID < shortages[j].branch.ID })

		for _, ex := range excesses {
			for _, sh := range shortages {
				qty := ex.amount
				if sh.amount < qty {
					qty = sh.amount
				}
				if qty <= 0 {
					continue
				}
				cost := estimateTransferCost(e.cfg, qty, ex.branch, sh.branch)
				qtyDec := decimal.NewFromInt(int64(qty))
				revenue := qtyDec.Mul(product.SellPrice)
				savings := revenue.Sub(cost).Sub(qtyDec.Mul(product.BuyPrice))
				if !passesROIGate(e.cfg, savings, cost) {
					continue
				}

				recs = append(recs, entity.TransferRecommendation{
					Source:           entity.RecommendationSourceImbalance,
					SourceBranchID:   ex.branch.ID,
					TargetBranchID:   sh.branch.ID,
					ProductID:        product.ID,
					Quantity:         qty,
					EstimatedCost:    cost,
					PotentialSavings: savings,
					UrgencyScore:     shortageUrgency(sh.stock, product.MinimumStock),
					ExecuteBy:        p.today.AddDate(0, 0, 1),
					Reasons: []string{
						fmt.Sprintf("%s con exceso de %d unidades de %s", ex.branch.Name, ex.amount, product.Name),
						fmt.Sprintf("%s con %d unidades, bajo el mínimo de %d", sh.branch.Name, sh.stock, product.MinimumStock),
						fmt.Sprintf("ahorro estimado %s contra costo de traslado %s", savings.Round(0), cost.Round(0)),
					},
				})
			}
		}
	}
	return recs
}

func (p *recommendPass) product(ctx context.Context, productID string) (*entity.Product, error) {
	if prod, ok := p.products[productID]; ok {
		return prod, nil
	}
	prod, err := p.engine.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	p.products[productID] = prod
	return prod, nil
}

// dailyDemand promedio de unidades vendidas por día en la ventana de
// historial (memoizado por sucursal+producto). Historial vacío = demanda
// cero, nunca un número inventado.
func (p *recommendPass) dailyDemand(ctx context.Context, productID, branchID string) (decimal.Decimal, error) {
	key := reservationKey{branchID: branchID, productID: productID}
	if d, ok := p.demand[key]; ok {
		return d, nil
	}
	since := p.today.AddDate(0, 0, -p.engine.lookback)
	series, err := p.engine.salesRepo.GetDailyUnitsSold(ctx, productID, branchID, since)
	if err != nil {
		return decimal.Zero, err
	}
	total := 0
	for _, day := range series {
		total += day.Units
	}
	d := decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(p.engine.lookback)))
	p.demand[key] = d
	return d, nil
}

// optimalStock heurística de stock objetivo: 2 veces el mínimo, o cobertura
// de dos semanas de venta promedio cuando hay historial suficiente (al menos
// 14 días con venta registrada).
func (p *recommendPass) optimalStock(ctx context.Context, product *entity.Product, branchID string) (int, error) {
	optimal := 2 * product.MinimumStock

	since := p.today.AddDate(0, 0, -p.engine.lookback)
	series, err := p.engine.salesRepo.GetDailyUnitsSold(ctx, product.ID, branchID, since)
	if err != nil {
		return 0, err
	}
	if len(series) >= 14 {
		total := 0
		for _, day := range series {
			total += day.Units
		}
		avg := float64(total) / float64(p.engine.lookback)
		velocity := int(math.Ceil(avg * 14))
		if velocity > optimal {
			optimal = velocity
		}
	}
	return optimal, nil
}

// passesROIGate el ahorro debe superar la fracción mínima del costo
// (configurable; por debajo, el traslado no paga el esfuerzo).
func passesROIGate(cfg config.TransferConfig, savings, cost decimal.Decimal) bool {
	return savings.GreaterThan(cost.Mul(cfg.MinROIRatio))
}

// shortageUrgency urgencia por profundidad del quiebre respecto del mínimo.
func shortageUrgency(stock, minimum int) int {
	switch {
	case stock <= 0:
		return 10
	case minimum > 0 && stock*2 <= minimum: // 50% del mínimo o menos
		return 8
	case stock <= minimum:
		return 6
	default:
		return 3
	}
}

// executeBy fecha recomendada de ejecución: hoy si el lote está urgente,
// mañana si hay margen.
func executeBy(today time.Time, days int) time.Time {
	if days <= domexpiry.UrgentDays {
		return today
	}
	return today.AddDate(0, 0, 1)
}
