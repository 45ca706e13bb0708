package dto

import "time"

// AllocationLine una toma de stock contra un lote concreto.
type AllocationLine struct {
	BatchID     string
	BatchNumber string
	Quantity    int
	ExpiryDate  *time.Time
}

// AllocationPlan plan de asignación FIFO por frescura. El plan es una vista:
// no descuenta stock hasta que el caller lo aplica explícitamente.
// Shortage > 0 significa que no alcanzó el stock; decidir si el cumplimiento
// parcial es aceptable es responsabilidad del caller.
type AllocationPlan struct {
	ProductID string
	BranchID  string
	Requested int
	Allocated int
	Shortage  int
	Lines     []AllocationLine
}
