package syncengine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

var errChannelClosed = errors.New("canal de eventos cerrado")

// Config parámetros del ciclo de sincronización.
type Config struct {
	AckTimeout  time.Duration // Sent sin confirmación vuelve a Pending
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// SweepEvery frecuencia de revisión de envíos caducados; por defecto AckTimeout/3.
	SweepEvery time.Duration
}

// Status estado observable de la sincronización para la UI.
type Status struct {
	State ConnState
	Cycle uint64
	appinv.SyncReport
}

// Coordinator mantiene el libro local reconciliado con la autoridad: drena la cola de
// pendientes al conectar, pide el inventario completo, aplica los eventos entrantes y
// reintenta con espera exponencial cuando el canal cae.
type Coordinator struct {
	store   Store
	ch      Channel
	cfg     Config
	log     *logger.Logger
	metrics Metrics

	resync chan struct{}
	cycle  atomic.Uint64
}

// NewCoordinator construye el coordinador.
func NewCoordinator(store Store, ch Channel, cfg Config, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 15 * time.Second
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = cfg.AckTimeout / 3
	}
	return &Coordinator{
		store:   store,
		ch:      ch,
		cfg:     cfg,
		log:     log.Component("sync"),
		metrics: nopMetrics{},
		resync:  make(chan struct{}, 1),
	}
}

// UseMetrics conecta los contadores de sincronización.
func (c *Coordinator) UseMetrics(m Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// RequestResync pide un inventario completo en la sesión actual (o en la próxima).
// Devuelve false si ya había una petición en cola.
func (c *Coordinator) RequestResync() bool {
	select {
	case c.resync <- struct{}{}:
		return true
	default:
		return false
	}
}

// Status estado del canal, ciclo vigente y conteos de la cola.
func (c *Coordinator) Status() Status {
	return Status{
		State:      c.ch.State(),
		Cycle:      c.cycle.Load(),
		SyncReport: c.store.SyncReport(),
	}
}

// Run bloquea hasta que ctx se cancela.
func (c *Coordinator) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.metrics.ConnectionState(StateConnecting)
		conn, err := c.ch.Connect(ctx)
		if err != nil {
			c.metrics.ConnectionState(StateDisconnected)
			wait := Backoff(c.cfg.BackoffBase, c.cfg.BackoffMax, attempt)
			attempt++
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("no se pudo conectar con la autoridad")
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}
		attempt = 0
		c.cycle.Store(conn)
		c.metrics.ConnectionState(StateConnected)
		c.log.Info().Uint64("cycle", conn).Msg("conectado con la autoridad")

		err = c.session(ctx, conn)
		_ = c.ch.Close()
		c.metrics.ConnectionState(StateDisconnected)

		// Lo enviado sin confirmar se reenviará en la próxima sesión.
		if reverted, rerr := c.store.ResetSent(context.WithoutCancel(ctx)); rerr != nil {
			c.log.Error().Err(rerr).Msg("no se pudo devolver a pendiente lo enviado")
		} else if len(reverted) > 0 {
			c.log.Info().Int("count", len(reverted)).Msg("envíos sin confirmar vuelven a pendiente")
		}
		if ctx.Err() != nil {
			return nil
		}
		c.metrics.Reconnect()
		c.log.Warn().Err(err).Uint64("cycle", conn).Msg("sesión con la autoridad terminada")
		if !sleep(ctx, c.cfg.BackoffBase) {
			return nil
		}
	}
}

func (c *Coordinator) session(ctx context.Context, conn uint64) error {
	if err := c.drain(ctx); err != nil {
		return err
	}
	if err := c.ch.RequestInventory(ctx); err != nil {
		return err
	}
	// La petición al conectar ya cubre un resync que estuviera en cola.
	select {
	case <-c.resync:
	default:
	}

	sweep := time.NewTicker(c.cfg.SweepEvery)
	defer sweep.Stop()
	events := c.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errChannelClosed
			}
			if ev.Conn != conn {
				c.log.Debug().Uint64("conn", ev.Conn).Uint64("cycle", conn).Str("event", ev.Kind.String()).Msg("evento de una conexión anterior descartado")
				continue
			}
			if ev.Kind == EventDisconnected {
				if ev.Err == nil {
					return &domain.SyncTransportError{Op: "read"}
				}
				return ev.Err
			}
			c.handle(ctx, ev)
		case <-c.store.PendingSignal():
			if err := c.drain(ctx); err != nil {
				return err
			}
		case <-c.resync:
			if err := c.ch.RequestInventory(ctx); err != nil {
				return err
			}
		case <-sweep.C:
			expired, err := c.store.ExpireSent(ctx, c.cfg.AckTimeout)
			if err != nil {
				c.log.Error().Err(err).Msg("no se pudo revisar la cola de envíos")
			}
			if len(expired) > 0 {
				c.metrics.AckTimeouts(len(expired))
				c.log.Warn().Int("count", len(expired)).Msg("envíos sin confirmación, se reintentarán")
			}
			if err := c.drain(ctx); err != nil {
				return err
			}
		}
	}
}

// drain envía los pendientes en orden de llegada. Un fallo de transporte devuelve
// el movimiento a Pending y termina la sesión.
func (c *Coordinator) drain(ctx context.Context) error {
	for _, m := range c.store.PendingMovements() {
		if err := c.store.MarkSent(ctx, m.LocalID); err != nil {
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			c.log.Error().Err(err).Str("local_id", m.LocalID).Msg("no se pudo marcar como enviado")
			return nil
		}
		if err := c.ch.SendMovement(ctx, m); err != nil {
			if perr := c.store.MarkPending(context.WithoutCancel(ctx), m.LocalID, err); perr != nil {
				c.log.Error().Err(perr).Str("local_id", m.LocalID).Msg("no se pudo devolver a pendiente")
			}
			var te *domain.SyncTransportError
			if errors.As(err, &te) {
				return err
			}
			return &domain.SyncTransportError{Op: "add-movement", Err: err}
		}
		c.metrics.MovementSent()
		c.log.Debug().Str("local_id", m.LocalID).Msg("movimiento enviado")
	}
	return nil
}

func (c *Coordinator) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventInventoryUpdated:
		res, err := c.store.ApplySnapshot(ctx, ev.Snapshot)
		if err != nil {
			c.log.Error().Err(err).Msg("no se pudo aplicar el inventario de la autoridad")
			return
		}
		c.metrics.SnapshotApplied(ev.Snapshot.Full)
		c.log.Info().
			Bool("full", ev.Snapshot.Full).
			Int("inserted", res.Inserted).
			Int("rebound", res.Rebound).
			Int("removed", res.Removed).
			Int("alerts", res.Alerts).
			Msg("inventario reconciliado")
	case EventMovementAdded:
		res, err := c.store.MergeRemote(ctx, ev.Movement)
		if err != nil {
			c.log.Error().Err(err).Str("id", ev.Movement.ID).Msg("no se pudo fusionar el movimiento remoto")
			return
		}
		c.log.Debug().Str("id", res.Movement.ID).Str("action", string(res.Action)).Msg("movimiento remoto fusionado")
	case EventMovementDeleted:
		if _, err := c.store.RemoveMovement(ctx, ev.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.log.Debug().Str("id", ev.ID).Msg("movimiento eliminado desconocido")
				return
			}
			c.log.Error().Err(err).Str("id", ev.ID).Msg("no se pudo eliminar el movimiento")
		}
	case EventMovementRejected:
		if err := c.store.MarkFailed(ctx, ev.ID, ev.Reason); err != nil {
			c.log.Warn().Err(err).Str("id", ev.ID).Msg("rechazo de un movimiento no pendiente")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
