package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto perecedero del catálogo (solo lectura para
// este núcleo). MinimumStock es el umbral de quiebre por sucursal; el costo
// histórico real vive en cada lote (CostPerUnit), no aquí.
type Product struct {
	ID           string
	SKU          string
	Name         string
	SellPrice    decimal.Decimal // precio de venta
	BuyPrice     decimal.Decimal // costo de compra de referencia
	MinimumStock int             // umbral mínimo por sucursal
	TrackExpiry  bool            // false = la categoría no maneja vencimiento
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
