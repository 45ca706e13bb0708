package dto

import "github.com/shopspring/decimal"

// DisposalItemResult resultado por lote de una baja (o su reversa). Un fallo
// en un lote no aborta el resto de la operación.
type DisposalItemResult struct {
	BatchID   string
	OK        bool
	Error     string          // vacío si OK
	Units     int             // unidades dadas de baja o restauradas
	ValueLost decimal.Decimal // unidades al costo del lote
}

// DisposalResult resultado agregado de DisposeBatches / UndoDisposal.
type DisposalResult struct {
	Items          []DisposalItemResult
	SucceededCount int
	FailedCount    int
	TotalValueLost decimal.Decimal
}
