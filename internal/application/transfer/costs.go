package transfer

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	"github.com/jhoicas/inventario-perecederos/pkg/config"
)

// estimateTransferCost heurística determinista de costo de traslado:
// (base + cantidad * costo unitario) * multiplicador de distancia.
// No es una cotización logística real; los parámetros vienen de config.
func estimateTransferCost(cfg config.TransferConfig, quantity int, source, target *entity.Branch) decimal.Decimal {
	qty := decimal.NewFromInt(int64(quantity))
	return cfg.BaseCost.Add(qty.Mul(cfg.PerUnitCost)).Mul(distanceMultiplier(cfg, source, target))
}

// distanceMultiplier misma ciudad < misma provincia < resto. Compara los
// descriptores geográficos de la sucursal sin distinguir mayúsculas.
func distanceMultiplier(cfg config.TransferConfig, source, target *entity.Branch) decimal.Decimal {
	if source == nil || target == nil {
		return cfg.FarMultiplier
	}
	if strings.EqualFold(source.City, target.City) {
		return cfg.SameCityMultiplier
	}
	if strings.EqualFold(source.Province, target.Province) {
		return cfg.SameProvinceMultiplier
	}
	return cfg.FarMultiplier
}
