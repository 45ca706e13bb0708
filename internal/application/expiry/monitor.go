// Package expiry implementa el barrido diario de vencimientos: reclasifica
// lotes, marca los recién vencidos y avisa al sistema de notificaciones.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/jhoicas/inventario-perecederos/internal/application/dto"
	"github.com/jhoicas/inventario-perecederos/internal/application/ledger"
	"github.com/jhoicas/inventario-perecederos/internal/application/notify"
	"github.com/jhoicas/inventario-perecederos/internal/domain/entity"
	domexpiry "github.com/jhoicas/inventario-perecederos/internal/domain/expiry"
	"github.com/jhoicas/inventario-perecederos/internal/domain/repository"
	"github.com/jhoicas/inventario-perecederos/pkg/logger"
)

// Monitor ejecuta el barrido de vencimientos. El barrido es idempotente: los
// "recién vencidos" se detectan por el marcador ExpiredFlaggedAt persistido en
// el lote, no por historial de notificaciones, así un disparo manual más el
// programado no duplica conteos.
type Monitor struct {
	txRunner  ledger.TxRunner
	batchRepo repository.BatchRepository
	notifier  notify.Notifier
	log       *logger.Logger
}

// NewMonitor construye el monitor de vencimientos.
func NewMonitor(txRunner ledger.TxRunner, batchRepo repository.BatchRepository, notifier notify.Notifier, log *logger.Logger) *Monitor {
	return &Monitor{txRunner: txRunner, batchRepo: batchRepo, notifier: notifier, log: log}
}

// Sweep clasifica todos los lotes no dados de baja con vencimiento, marca los
// recién vencidos y devuelve el resumen (conteos, valor en riesgo y valor
// perdido). today suele ser la fecha actual; se recibe como parámetro para
// barridos bajo demanda y pruebas.
func (m *Monitor) Sweep(ctx context.Context, today time.Time) (*dto.SweepResult, error) {
	batches, err := m.batchRepo.ListWithExpiry(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar lotes con vencimiento: %w", err)
	}

	result := &dto.SweepResult{
		Date:        today,
		ValueAtRisk: decimal.Zero,
		ValueLost:   decimal.Zero,
	}

	for _, b := range batches {
		days, ok := b.DaysUntilExpiry(today)
		if !ok {
			continue
		}
		result.TotalChecked++

		switch domexpiry.ClassifyDays(days) {
		case domexpiry.StatusFresh:
			result.FreshCount++
		case domexpiry.StatusWarning:
			result.WarningCount++
			result.ValueAtRisk = result.ValueAtRisk.Add(b.StockValue())
			m.notifyBatch(ctx, notify.EventExpiryWarning, b, days, today)
		case domexpiry.StatusUrgent:
			result.UrgentCount++
			result.ValueAtRisk = result.ValueAtRisk.Add(b.StockValue())
			m.notifyBatch(ctx, notify.EventExpiryUrgent, b, days, today)
		case domexpiry.StatusExpired:
			result.ExpiredCount++
			if b.ExpiredFlaggedAt != nil {
				continue // ya contado en un barrido anterior
			}
			flagged, err := m.flagExpired(ctx, b.ID, today)
			if err != nil {
				// Lote con problemas no aborta el barrido completo
				m.log.Error().Err(err).Str("batch_id", b.ID).Msg("marcar lote vencido")
				continue
			}
			if !flagged {
				continue // otro barrido concurrente lo marcó primero
			}
			result.NewlyExpired = append(result.NewlyExpired, dto.BatchAlertDTO{
				BatchID:         b.ID,
				BatchNumber:     b.BatchNumber,
				ProductID:       b.ProductID,
				BranchID:        b.BranchID,
				DaysUntilExpiry: days,
				Units:           b.CurrentStock,
				Value:           b.StockValue(),
			})
			result.ValueLost = result.ValueLost.Add(b.StockValue())
			m.notifyBatch(ctx, notify.EventExpiryExpired, b, days, today)
		}
	}

	m.log.Info().
		Time("sweep_date", today).
		Int("checked", result.TotalChecked).
		Int("expired", result.ExpiredCount).
		Int("newly_expired", len(result.NewlyExpired)).
		Str("value_at_risk", result.ValueAtRisk.String()).
		Msg("barrido de vencimientos completado")
	return result, nil
}

// flagExpired persiste el marcador de vencido en su propia transacción, con
// la fila bloqueada. Devuelve false si otro barrido ya lo había marcado, así
// dos barridos concurrentes no cuentan el mismo lote dos veces.
func (m *Monitor) flagExpired(ctx context.Context, batchID string, today time.Time) (bool, error) {
	flagged := false
	err := m.txRunner.Run(ctx, func(
		batchRepo repository.BatchRepository,
		_ repository.MutationRepository,
	) error {
		batch, err := batchRepo.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.ExpiredFlaggedAt != nil {
			return nil
		}
		t := today
		batch.ExpiredFlaggedAt = &t
		batch.UpdatedAt = time.Now()
		flagged = true
		return batchRepo.Update(ctx, batch)
	})
	return flagged, err
}

func (m *Monitor) notifyBatch(ctx context.Context, eventType string, b *entity.ProductBatch, days int, today time.Time) {
	m.notifier.Notify(ctx, notify.Event{
		Type:            eventType,
		BranchID:        b.BranchID,
		ProductID:       b.ProductID,
		BatchID:         b.ID,
		DaysUntilExpiry: days,
		Units:           b.CurrentStock,
		Value:           b.StockValue(),
		Message:         fmt.Sprintf("lote %s: %d unidades, vence en %d días", b.BatchNumber, b.CurrentStock, days),
		OccurredAt:      today,
	})
}
