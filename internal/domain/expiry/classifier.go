// Package expiry contiene la clasificación de frescura de lotes
// (servicio de dominio, funciones puras).
package expiry

import (
	"time"

	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
)

// Status clasificación de frescura de un lote.
type Status string

const (
	StatusFresh    Status = "FRESH"    // más de 7 días
	StatusWarning  Status = "WARNING"  // 4 a 7 días
	StatusUrgent   Status = "URGENT"   // 1 a 3 días
	StatusExpired  Status = "EXPIRED"  // 0 días o ya pasado
	StatusNoExpiry Status = "NO_EXPIRY" // la categoría no maneja vencimiento
)

// Umbrales de clasificación en días.
const (
	UrgentDays  = 3
	WarningDays = 7
)

// Classify clasifica un lote según los días restantes hasta su vencimiento,
// medidos desde today (medianoche a medianoche).
func Classify(batch *entity.ProductBatch, today time.Time) Status {
	days, ok := batch.DaysUntilExpiry(today)
	if !ok {
		return StatusNoExpiry
	}
	return ClassifyDays(days)
}

// ClassifyDays clasificación a partir de los días restantes.
func ClassifyDays(days int) Status {
	switch {
	case days <= 0:
		return StatusExpired
	case days <= UrgentDays:
		return StatusUrgent
	case days <= WarningDays:
		return StatusWarning
	default:
		return StatusFresh
	}
}

// UrgencyScore puntaje 1-10 de urgencia de traslado por días restantes
// (escala usada por el motor de recomendaciones).
func UrgencyScore(days int) int {
	switch {
	case days <= 1:
		return 10
	case days <= 3:
		return 9
	case days <= 7:
		return 8
	case days <= 14:
		return 6
	case days <= 30:
		return 4
	default:
		return 2
	}
}
