package dto

import "github.com/shopspring/decimal"

// RequestTransferInput entrada para crear una solicitud de traslado (manual o
// derivada de una recomendación aceptada).
type RequestTransferInput struct {
	SourceBranchID string
	TargetBranchID string
	ProductID      string
	Quantity       int
	RequestedBy    string
	Reason         string
	EstimatedCost  decimal.Decimal // 0 = el workflow la calcula con la heurística
}
