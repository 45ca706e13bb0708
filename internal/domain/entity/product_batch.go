package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductBatch representa un lote discreto de stock de un producto en una
// sucursal, con su propio costo y fecha de vencimiento.
//
// Invariantes (el libro de lotes es el único punto de mutación):
//   - 0 <= CurrentStock <= InitialStock
//   - un lote dado de baja (Disposed) tiene el stock congelado
//   - los lotes nunca se borran físicamente (auditoría / valor perdido)
type ProductBatch struct {
	ID              string
	ProductID       string
	BranchID        string
	BatchNumber     string          // legible, único por producto+sucursal
	InitialStock    int             // se fija al recibir, inmutable
	CurrentStock    int             // mutado por ventas, traslados y bajas
	CostPerUnit     decimal.Decimal // costo capturado al recibir, inmutable
	ReceivedDate    time.Time
	ExpiryDate      *time.Time // nil = la categoría no maneja vencimiento
	Disposed        bool
	DisposedAt      *time.Time
	ExpiredFlaggedAt *time.Time // primera vez que un barrido lo clasificó vencido
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DaysUntilExpiry días hasta el vencimiento contados desde la fecha dada
// (medianoche a medianoche). Devuelve (0, false) si el lote no vence.
func (b *ProductBatch) DaysUntilExpiry(today time.Time) (int, bool) {
	if b.ExpiryDate == nil {
		return 0, false
	}
	t := midnight(today)
	e := midnight(*b.ExpiryDate)
	return int(e.Sub(t).Hours() / 24), true
}

// IsExpired true si el lote vence y su fecha ya pasó (o es hoy).
func (b *ProductBatch) IsExpired(today time.Time) bool {
	days, ok := b.DaysUntilExpiry(today)
	return ok && days <= 0
}

// StockValue valor del stock actual al costo del lote.
func (b *ProductBatch) StockValue() decimal.Decimal {
	return decimal.NewFromInt(int64(b.CurrentStock)).Mul(b.CostPerUnit)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
