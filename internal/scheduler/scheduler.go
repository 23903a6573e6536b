package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jhoicas/magazzino-sync/internal/application/dto"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

// Resyncer pide un inventario completo a la autoridad.
type Resyncer interface {
	RequestResync() bool
}

// ReplenishmentSource lista de reposición del puesto.
type ReplenishmentSource interface {
	GenerateReplenishmentList() []dto.ReplenishmentSuggestionDTO
}

// Config expresiones cron; vacío desactiva la tarea.
type Config struct {
	ResyncSpec string
	ReportSpec string
}

// Scheduler tareas periódicas del cliente.
type Scheduler struct {
	cron   *cron.Cron
	cfg    Config
	resync Resyncer
	report ReplenishmentSource
	log    *logger.Logger
}

// NewScheduler crea el planificador. robfig/cron/v3 usa el parser estándar de 5 campos
// y acepta descriptores como @hourly o @every 5m.
func NewScheduler(cfg Config, resync Resyncer, report ReplenishmentSource, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cron:   cron.New(),
		cfg:    cfg,
		resync: resync,
		report: report,
		log:    log.Component("scheduler"),
	}
}

// Start registra las tareas y arranca el planificador.
func (s *Scheduler) Start() error {
	if s.cfg.ResyncSpec != "" && s.resync != nil {
		if _, err := s.cron.AddFunc(s.cfg.ResyncSpec, s.requestResync); err != nil {
			return fmt.Errorf("programar resync %q: %w", s.cfg.ResyncSpec, err)
		}
	}
	if s.cfg.ReportSpec != "" && s.report != nil {
		if _, err := s.cron.AddFunc(s.cfg.ReportSpec, s.logReplenishment); err != nil {
			return fmt.Errorf("programar informe de reposición %q: %w", s.cfg.ReportSpec, err)
		}
	}
	s.log.Info().Str("resync", s.cfg.ResyncSpec).Str("report", s.cfg.ReportSpec).Msg("planificador iniciado")
	s.cron.Start()
	return nil
}

// Stop detiene el planificador y espera a las tareas en curso.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("planificador detenido")
}

func (s *Scheduler) requestResync() {
	if s.resync.RequestResync() {
		s.log.Debug().Msg("resync periódico en cola")
	}
}

func (s *Scheduler) logReplenishment() {
	list := s.report.GenerateReplenishmentList()
	if len(list) == 0 {
		s.log.Info().Msg("sin productos bajo mínimo")
		return
	}
	for _, item := range list {
		s.log.Warn().
			Int("priority", item.Priority).
			Str("product", item.ProductName).
			Str("current", item.CurrentStock.String()).
			Str("suggested", item.SuggestedOrderQty.String()).
			Str("unit", item.Unit).
			Str("severity", item.Severity).
			Msg("reposición sugerida")
	}
	s.log.Info().Int("total", len(list)).Msg("informe de reposición")
}
