package domain

import (
	"errors"
	"fmt"
	"time"
)

// Errores de dominio (sin dependencias externas).
// Los errores con datos accionables tienen tipo propio más abajo y se
// comparan con errors.Is contra estos centinelas.
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrValidation        = errors.New("entrada inválida")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrBatchDisposed     = errors.New("el lote ya fue dado de baja")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrThrottled         = errors.New("cálculo en enfriamiento")
)

// ValidationError entrada inválida con el campo y el motivo.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entrada inválida: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError indica cuánto se pidió y cuánto había disponible,
// para que el caller pueda mostrar un mensaje accionable.
type InsufficientStockError struct {
	ProductID string
	BranchID  string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente: solicitado %d, disponible %d (producto %s, sucursal %s)",
		e.Requested, e.Available, e.ProductID, e.BranchID)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// BatchDisposedError mutación sobre un lote congelado por baja.
type BatchDisposedError struct {
	BatchID string
}

func (e *BatchDisposedError) Error() string {
	return fmt.Sprintf("el lote %s ya fue dado de baja; su stock está congelado", e.BatchID)
}

func (e *BatchDisposedError) Is(target error) bool { return target == ErrBatchDisposed }

// InvalidTransitionError transición de workflow ilegal; incluye el estado real
// del traslado para que el mensaje sea accionable.
type InvalidTransitionError struct {
	TransferID string
	From       string
	To         string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("traslado %s: transición %s -> %s no permitida", e.TransferID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ThrottledError el motor de recomendaciones ya calculó esta clave hace poco;
// el caller debe reintentar luego o usar el último resultado que tenga.
type ThrottledError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("cálculo %q en enfriamiento, reintentar en %s", e.Key, e.RetryAfter)
}

func (e *ThrottledError) Is(target error) bool { return target == ErrThrottled }
