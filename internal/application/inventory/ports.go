package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// TxRunner ejecuta una función dentro de una transacción del almacén local, pasando repositorios atados a esa tx.
// Una mutación del libro solo se considera completa cuando Run devuelve nil.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		posRepo repository.StockPositionRepository,
		metaRepo repository.SyncMetaRepository,
	) error) error
}

// Notification carga útil que recibe el despachador de alertas.
type Notification struct {
	Product        string
	ProductKey     string
	QuantityOnHand decimal.Decimal
	Unit           string
	MinThreshold   decimal.Decimal
	Severity       entity.Severity
	Timestamp      time.Time
}

// NotificationFromAlert adapta una alerta de dominio al formato de entrega.
func NotificationFromAlert(a entity.Alert) Notification {
	name := a.ProductName
	if name == "" {
		name = a.ProductKey
	}
	return Notification{
		Product:        name,
		ProductKey:     a.ProductKey,
		QuantityOnHand: a.CurrentQuantity,
		Unit:           a.Unit,
		MinThreshold:   a.Threshold,
		Severity:       a.Severity,
		Timestamp:      a.Timestamp,
	}
}

// AlertDispatcher colaborador que entrega notificaciones (log, webhook...).
type AlertDispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// Metrics contadores del motor de inventario. La implementación Prometheus vive en infrastructure/metrics.
type Metrics interface {
	MovementRecorded(t entity.MovementType, origin entity.Origin)
	AlertRaised(sev entity.Severity)
	AlertDropped()
	MergeAmbiguity()
}

type nopMetrics struct{}

func (nopMetrics) MovementRecorded(entity.MovementType, entity.Origin) {}
func (nopMetrics) AlertRaised(entity.Severity)                         {}
func (nopMetrics) AlertDropped()                                       {}
func (nopMetrics) MergeAmbiguity()                                     {}
