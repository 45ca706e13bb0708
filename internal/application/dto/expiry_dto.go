package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchAlertDTO lote relevante para el barrido de vencimientos.
type BatchAlertDTO struct {
	BatchID         string
	BatchNumber     string
	ProductID       string
	BranchID        string
	DaysUntilExpiry int
	Units           int
	Value           decimal.Decimal // unidades al costo del lote
}

// SweepResult resumen de un barrido de vencimientos. Correr el barrido dos
// veces el mismo día da la misma clasificación y NewlyExpired vacío la
// segunda vez (idempotencia vía marcador persistido en el lote).
type SweepResult struct {
	Date          time.Time
	TotalChecked  int
	FreshCount    int
	WarningCount  int
	UrgentCount   int
	ExpiredCount  int
	NewlyExpired  []BatchAlertDTO
	ValueAtRisk   decimal.Decimal // stock Warning + Urgent al costo
	ValueLost     decimal.Decimal // stock recién vencido al costo
}
