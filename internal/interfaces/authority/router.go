package authority

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	appauth "github.com/jhoicas/magazzino-sync/internal/application/authority"
	"github.com/jhoicas/magazzino-sync/internal/infrastructure/realtime"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

// Counters contadores del lado autoritativo.
type Counters interface {
	MovementAccepted(outcome string) // inserted | duplicate | rejected
}

type nopCounters struct{}

func (nopCounters) MovementAccepted(string) {}

// Deps dependencias del servidor autoritativo.
type Deps struct {
	Service   *appauth.Service
	Hub       *realtime.Hub
	JWTSecret string       // vacío = sin autenticación (solo desarrollo)
	Metrics   http.Handler // opcional, se publica en /metrics
	Counters  Counters
	Log       *logger.Logger
}

// Router envuelve el router mux y atiende también las tramas del canal.
type Router struct {
	*mux.Router
	svc      *appauth.Service
	hub      *realtime.Hub
	secret   string
	counters Counters
	log      *logger.Logger
}

var _ realtime.Handler = (*Router)(nil)

// NewRouter registra las rutas y se instala como handler del hub.
func NewRouter(deps Deps) *Router {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	counters := deps.Counters
	if counters == nil {
		counters = nopCounters{}
	}
	r := &Router{
		Router:   mux.NewRouter(),
		svc:      deps.Service,
		hub:      deps.Hub,
		secret:   deps.JWTSecret,
		counters: counters,
		log:      log.Component("authority-http"),
	}
	r.hub.SetHandler(r)

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods("GET")
	}

	// Canal en tiempo real
	r.Handle("/ws", r.authenticate(http.HandlerFunc(r.serveWS))).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(r.authenticate)
	api.HandleFunc("/movements", r.listMovements).Methods("GET")
	api.HandleFunc("/inventory", r.getInventory).Methods("GET")

	// Correcciones administrativas
	admin := api.NewRoute().Subrouter()
	admin.Use(requireRole("admin"))
	admin.HandleFunc("/movements/{id}", r.deleteMovement).Methods("DELETE")
	admin.HandleFunc("/thresholds/{product}", r.setThresholds).Methods("PUT")

	return r
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"server": "authority",
		"peers":  r.hub.Len(),
	})
}

func (r *Router) serveWS(w http.ResponseWriter, req *http.Request) {
	r.hub.ServeWS(w, req, clientIDFrom(req.Context()))
}

// respondJSON envía una respuesta JSON
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError envía una respuesta de error
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
