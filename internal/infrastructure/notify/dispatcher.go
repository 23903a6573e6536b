package notify

import (
	"context"
	"errors"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

var (
	_ appinv.AlertDispatcher = (*LogDispatcher)(nil)
	_ appinv.AlertDispatcher = (*WebhookDispatcher)(nil)
	_ appinv.AlertDispatcher = Fanout(nil)
)

// LogDispatcher deja constancia de la alerta en el log estructurado.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher construye el despachador.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogDispatcher{log: log.Component("alerts")}
}

// Dispatch escribe la alerta como warn.
func (d *LogDispatcher) Dispatch(_ context.Context, n appinv.Notification) error {
	d.log.Warn().
		Str("product", n.Product).
		Str("product_key", n.ProductKey).
		Str("quantity_on_hand", n.QuantityOnHand.String()).
		Str("unit", n.Unit).
		Str("min_threshold", n.MinThreshold.String()).
		Str("severity", string(n.Severity)).
		Time("at", n.Timestamp).
		Msg("stock por debajo del mínimo")
	return nil
}

// Fanout entrega la notificación a todos los despachadores; un fallo no impide los demás.
type Fanout []appinv.AlertDispatcher

// Dispatch devuelve los errores unidos.
func (f Fanout) Dispatch(ctx context.Context, n appinv.Notification) error {
	var errs []error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
