package inventory

import (
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// SeverityFor clasifica la gravedad según la cantidad disponible y el umbral mínimo.
//   - urgent: cantidad <= 0
//   - high:   cantidad < mínimo * 0.5
//   - medium: resto
func SeverityFor(qty, minThreshold decimal.Decimal) entity.Severity {
	switch {
	case qty.LessThanOrEqual(decimal.Zero):
		return entity.SeverityUrgent
	case qty.LessThan(minThreshold.Mul(half)):
		return entity.SeverityHigh
	default:
		return entity.SeverityMedium
	}
}

// CrossedDown regla edge-triggered: solo hay alerta en el instante en que la cantidad
// pasa de >= mínimo a < mínimo. Mientras permanece debajo no se repite.
func CrossedDown(prevQty, nextQty, minThreshold decimal.Decimal) bool {
	return prevQty.GreaterThanOrEqual(minThreshold) && nextQty.LessThan(minThreshold)
}

// EdgeAlert evalúa la transición prev -> next de una posición. Devuelve nil si no hay cruce.
func EdgeAlert(prev, next entity.StockPosition, now time.Time) *entity.Alert {
	if !CrossedDown(prev.QuantityOnHand, next.QuantityOnHand, next.MinThreshold) {
		return nil
	}
	return newAlert(next, now)
}

// LevelAlert comprobación por nivel (arranque en frío o snapshot completo):
// alerta si la posición ya está por debajo del mínimo.
func LevelAlert(pos entity.StockPosition, now time.Time) *entity.Alert {
	if !pos.BelowMin() {
		return nil
	}
	return newAlert(pos, now)
}

func newAlert(pos entity.StockPosition, now time.Time) *entity.Alert {
	return &entity.Alert{
		ProductKey:      pos.ProductKey,
		ProductName:     pos.ProductName,
		Unit:            pos.Unit,
		CurrentQuantity: pos.QuantityOnHand,
		Threshold:       pos.MinThreshold,
		Severity:        SeverityFor(pos.QuantityOnHand, pos.MinThreshold),
		Timestamp:       now,
	}
}
