package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/application/syncengine"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

const namespace = "magazzino"

var (
	_ appinv.Metrics     = (*Registry)(nil)
	_ syncengine.Metrics = (*Registry)(nil)
)

// Registry contadores Prometheus del cliente y de la autoridad sobre un registro propio.
type Registry struct {
	registry *prometheus.Registry

	movements   *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	dropped     prometheus.Counter
	ambiguities prometheus.Counter

	connState   prometheus.Gauge
	sent        prometheus.Counter
	ackTimeouts prometheus.Counter
	reconnects  prometheus.Counter
	snapshots   *prometheus.CounterVec

	accepted *prometheus.CounterVec
}

// New crea y registra todas las métricas.
func New() *Registry {
	registry := prometheus.NewRegistry()
	r := &Registry{
		registry: registry,
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_recorded_total",
			Help:      "Movimientos incorporados al libro local",
		}, []string{"type", "origin"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alertas de stock bajo emitidas",
		}, []string{"severity"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dropped_total",
			Help:      "Alertas descartadas por cola llena",
		}),
		ambiguities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_ambiguities_total",
			Help:      "Fusiones resueltas a favor del registro autoritativo con campos distintos",
		}),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "connection_state",
			Help:      "0 desconectado, 1 conectando, 2 conectado",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "movements_sent_total",
			Help:      "Movimientos enviados a la autoridad (incluye reenvíos)",
		}),
		ackTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "ack_timeouts_total",
			Help:      "Envíos que volvieron a pendiente por falta de confirmación",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "reconnects_total",
			Help:      "Sesiones con la autoridad terminadas que llevaron a reconectar",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "snapshots_applied_total",
			Help:      "Eventos inventory-updated aplicados",
		}, []string{"kind"}),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authority",
			Name:      "movements_total",
			Help:      "Movimientos recibidos por la autoridad según resultado",
		}, []string{"outcome"}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.movements, r.alerts, r.dropped, r.ambiguities,
		r.connState, r.sent, r.ackTimeouts, r.reconnects, r.snapshots,
		r.accepted,
	)
	return r
}

// Handler expone el registro en formato de texto Prometheus.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObservePeers publica el número de clientes conectados a la autoridad.
func (r *Registry) ObservePeers(count func() int) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "authority",
		Name:      "peers",
		Help:      "Clientes conectados al canal en tiempo real",
	}, func() float64 { return float64(count()) }))
}

func (r *Registry) MovementRecorded(t entity.MovementType, origin entity.Origin) {
	r.movements.WithLabelValues(string(t), string(origin)).Inc()
}

func (r *Registry) AlertRaised(sev entity.Severity) {
	r.alerts.WithLabelValues(string(sev)).Inc()
}

func (r *Registry) AlertDropped()   { r.dropped.Inc() }
func (r *Registry) MergeAmbiguity() { r.ambiguities.Inc() }

func (r *Registry) ConnectionState(st syncengine.ConnState) {
	switch st {
	case syncengine.StateConnected:
		r.connState.Set(2)
	case syncengine.StateConnecting:
		r.connState.Set(1)
	default:
		r.connState.Set(0)
	}
}

func (r *Registry) MovementSent()     { r.sent.Inc() }
func (r *Registry) AckTimeouts(n int) { r.ackTimeouts.Add(float64(n)) }
func (r *Registry) Reconnect()        { r.reconnects.Inc() }

func (r *Registry) SnapshotApplied(full bool) {
	kind := "partial"
	if full {
		kind = "full"
	}
	r.snapshots.WithLabelValues(kind).Inc()
}

// MovementAccepted resultado de un add-movement en la autoridad.
func (r *Registry) MovementAccepted(outcome string) {
	r.accepted.WithLabelValues(outcome).Inc()
}
