package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Origen de una recomendación de traslado.
const (
	RecommendationSourceExpiry    = "EXPIRY"    // stock por vencer en origen
	RecommendationSourceImbalance = "IMBALANCE" // exceso vs quiebre entre sucursales
)

// TransferRecommendation es un resultado derivado: el motor la calcula (y
// cachea) pero nunca se persiste como entidad ni muta el libro de lotes.
// Convertirla en acción es una llamada explícita al workflow de traslados.
type TransferRecommendation struct {
	Source           string // EXPIRY o IMBALANCE
	SourceBranchID   string
	TargetBranchID   string
	ProductID        string
	BatchID          string // solo en recomendaciones por vencimiento
	Quantity         int
	EstimatedCost    decimal.Decimal
	PotentialSavings decimal.Decimal
	UrgencyScore     int // 1-10
	ExecuteBy        time.Time
	Reasons          []string
}
