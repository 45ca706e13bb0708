package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
)

// MutationRepository define el puerto de persistencia para el registro de
// auditoría de mutaciones de stock. Solo inserción; nunca update ni delete.
type MutationRepository interface {
	Create(ctx context.Context, mutation *entity.InventoryMutation) error
	ListByBatch(ctx context.Context, batchID string) ([]*entity.InventoryMutation, error)
	// ListByReference mutaciones con una referencia dada (ej. las salidas de
	// un traslado, buscadas por su número al recibir).
	ListByReference(ctx context.Context, reference string) ([]*entity.InventoryMutation, error)
	// ListByType mutaciones de un tipo en una sucursal y rango de fechas
	// (reporte de valor perdido por bajas). branchID vacío = todas.
	ListByType(ctx context.Context, branchID, mutationType string, from, to time.Time) ([]*entity.InventoryMutation, error)
}
