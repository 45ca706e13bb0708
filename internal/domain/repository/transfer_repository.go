package repository

import (
	"context"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
)

// TransferFilter filtros de listado de traslados.
type TransferFilter struct {
	BranchID string // origen o destino; vacío = todas
	Status   string // vacío = todos
	Limit    int
	Offset   int
}

// TransferRepository define el puerto de persistencia para traslados.
type TransferRepository interface {
	Create(ctx context.Context, transfer *entity.InventoryTransfer) error
	GetByID(ctx context.Context, id string) (*entity.InventoryTransfer, error)
	// GetForUpdate bloquea la fila del traslado dentro de la transacción
	// actual (serializa transiciones concurrentes sobre el mismo traslado).
	GetForUpdate(ctx context.Context, id string) (*entity.InventoryTransfer, error)
	Update(ctx context.Context, transfer *entity.InventoryTransfer) error
	List(ctx context.Context, f TransferFilter) ([]*entity.InventoryTransfer, error)
	// ListByStatus todos los traslados en un estado (recarga de reservas al
	// arrancar el proceso).
	ListByStatus(ctx context.Context, status string) ([]*entity.InventoryTransfer, error)
}
