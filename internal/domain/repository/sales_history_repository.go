package repository

import (
	"context"
	"time"
)

// DailyUnits unidades vendidas de un producto en una sucursal en un día.
type DailyUnits struct {
	Date  time.Time
	Units int
}

// SalesHistoryRepository historial de ventas (colaborador externo, solo
// lectura). El núcleo tolera historial vacío o parcial: sin datos = demanda
// cero, nunca un número inventado.
type SalesHistoryRepository interface {
	GetDailyUnitsSold(ctx context.Context, productID, branchID string, since time.Time) ([]DailyUnits, error)
}
