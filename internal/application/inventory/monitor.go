package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

const dispatchTimeout = 10 * time.Second

// Monitor evalúa las reglas de umbral y entrega las alertas de forma asíncrona.
// Publicar nunca bloquea el camino del movimiento: con la cola llena la alerta se descarta.
type Monitor struct {
	dispatcher AlertDispatcher
	queue      chan entity.Alert
	metrics    Metrics
	log        *logger.Logger
	now        func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

// NewMonitor construye el monitor con una cola acotada de tamaño queueSize.
func NewMonitor(dispatcher AlertDispatcher, queueSize int, log *logger.Logger) *Monitor {
	if queueSize <= 0 {
		queueSize = 64
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Monitor{
		dispatcher: dispatcher,
		queue:      make(chan entity.Alert, queueSize),
		metrics:    nopMetrics{},
		log:        log.Component("threshold-monitor"),
		now:        time.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// UseMetrics registra los contadores de alertas.
func (m *Monitor) UseMetrics(mt Metrics) {
	if mt != nil {
		m.metrics = mt
	}
}

// Start lanza el worker que vacía la cola. Llamadas repetidas no tienen efecto.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.run(ctx)
}

// Stop detiene el worker tras entregar lo que ya estaba en cola.
func (m *Monitor) Stop() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	m.stopOnce.Do(func() { close(m.stop) })
	if started {
		<-m.done
	}
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case a := <-m.queue:
			m.deliver(ctx, a)
		case <-m.stop:
			for {
				select {
				case a := <-m.queue:
					m.deliver(ctx, a)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) deliver(ctx context.Context, a entity.Alert) {
	if m.dispatcher == nil {
		return
	}
	dctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := m.dispatcher.Dispatch(dctx, NotificationFromAlert(a)); err != nil {
		m.log.Warn().Err(err).Str("product", a.ProductKey).Msg("no se pudo entregar la alerta de stock bajo")
	}
}

// Edge aplica la regla de cruce descendente a la transición prev -> next y publica la alerta si procede.
func (m *Monitor) Edge(prev, next entity.StockPosition) *entity.Alert {
	a := inventory.EdgeAlert(prev, next, m.now())
	if a != nil {
		m.publish(*a)
	}
	return a
}

// Level comprobación por nivel (arranque en frío, snapshot completo).
func (m *Monitor) Level(pos entity.StockPosition) *entity.Alert {
	a := inventory.LevelAlert(pos, m.now())
	if a != nil {
		m.publish(*a)
	}
	return a
}

func (m *Monitor) publish(a entity.Alert) {
	m.metrics.AlertRaised(a.Severity)
	select {
	case m.queue <- a:
	default:
		m.metrics.AlertDropped()
		m.log.Warn().
			Str("product", a.ProductKey).
			Str("severity", string(a.Severity)).
			Msg("cola de alertas llena, alerta descartada")
	}
}
