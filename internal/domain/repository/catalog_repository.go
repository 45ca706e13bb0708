package repository

import (
	"context"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
)

// ProductRepository catálogo de productos (solo lectura para este núcleo).
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// ListActive muestra acotada de productos activos (análisis de
	// desbalance). limit <= 0 usa el default del adaptador.
	ListActive(ctx context.Context, limit int) ([]*entity.Product, error)
}

// BranchRepository catálogo de sucursales (solo lectura para este núcleo).
type BranchRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Branch, error)
	ListActive(ctx context.Context) ([]*entity.Branch, error)
}
