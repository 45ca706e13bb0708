package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
)

// BatchFilter filtros de listado de lotes. Today se usa para decidir qué es
// "vencido" cuando IncludeExpired es false.
type BatchFilter struct {
	IncludeExpired  bool
	IncludeDisposed bool
	Today           time.Time
}

// BranchStock stock agregado de un producto en una sucursal (lotes no dados
// de baja).
type BranchStock struct {
	BranchID string
	Units    int
}

// BatchRepository define el puerto de persistencia para lotes de producto.
// El orden de ListForProduct es el orden FIFO canónico: vencimiento ascendente
// (nulos al final), luego fecha de recepción, luego ID.
type BatchRepository interface {
	Create(ctx context.Context, batch *entity.ProductBatch) error
	GetByID(ctx context.Context, id string) (*entity.ProductBatch, error)
	// GetForUpdate bloquea la fila del lote (SELECT FOR UPDATE) dentro de la
	// transacción actual; es la base de la serialización por lote.
	GetForUpdate(ctx context.Context, id string) (*entity.ProductBatch, error)
	Update(ctx context.Context, batch *entity.ProductBatch) error
	ListForProduct(ctx context.Context, productID, branchID string, f BatchFilter) ([]*entity.ProductBatch, error)
	// ListExpiringBefore lotes no dados de baja, con vencimiento no nulo y
	// anterior o igual a la fecha dada (recomendaciones por vencimiento).
	ListExpiringBefore(ctx context.Context, date time.Time) ([]*entity.ProductBatch, error)
	// ListWithExpiry todos los lotes no dados de baja con vencimiento no nulo
	// (barrido diario).
	ListWithExpiry(ctx context.Context) ([]*entity.ProductBatch, error)
	// StockByBranch stock actual de un producto agregado por sucursal.
	StockByBranch(ctx context.Context, productID string) ([]BranchStock, error)
}
