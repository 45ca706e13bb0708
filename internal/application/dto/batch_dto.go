package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateBatchInput entrada para registrar un lote en la recepción de
// mercancía. ExpiryDate nil solo si la categoría del producto no maneja
// vencimiento.
type CreateBatchInput struct {
	ProductID    string
	BranchID     string
	BatchNumber  string // vacío = se genera uno
	InitialStock int
	CostPerUnit  decimal.Decimal
	ReceivedDate time.Time
	ExpiryDate   *time.Time
	CreatedBy    string
}

// BatchSummaryDTO resumen de lotes de un producto en una sucursal.
type BatchSummaryDTO struct {
	ProductID    string
	BranchID     string
	BatchCount   int
	TotalUnits   int             // stock de lotes no dados de baja
	TotalValue   decimal.Decimal // al costo de cada lote
	ExpiredUnits int             // vencidos y aún no dados de baja
	NextExpiry   *time.Time      // vencimiento más próximo con stock
}
