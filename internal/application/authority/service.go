package authority

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

// Service servidor autoritativo: acepta movimientos de los clientes, publica el inventario completo
// y permite correcciones administrativas.
type Service struct {
	mu   sync.Mutex
	repo repository.AuthorityRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewService construye el servicio.
func NewService(repo repository.AuthorityRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, log: log.Component("authority"), now: time.Now}
}

// AddMovement valida y registra el movimiento de un cliente. inserted=false indica un reenvío:
// se devuelve el registro ya almacenado para que el cliente reciba el mismo eco.
func (s *Service) AddMovement(ctx context.Context, m entity.Movement) (entity.Movement, bool, error) {
	if err := m.Validate(); err != nil {
		return entity.Movement{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = entity.AuthoritativeID(m.ID)
	m.RemoteID = m.ID
	m.LocalID = ""
	m.Seq = 0
	m.Origin = entity.OriginRemote
	m.SyncStatus = entity.SyncStatusSynced
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	m.Timestamp = m.Timestamp.UTC()
	if m.MovementValue.IsZero() {
		m.MovementValue = m.ComputedValue()
	}

	inserted, err := s.repo.Insert(ctx, m)
	if err != nil {
		return entity.Movement{}, false, fmt.Errorf("registrar movimiento: %w", err)
	}
	if !inserted {
		existing, err := s.repo.GetByID(ctx, m.ID)
		if err != nil {
			return entity.Movement{}, false, fmt.Errorf("leer movimiento existente: %w", err)
		}
		if existing != nil {
			return *existing, false, nil
		}
	}
	s.log.Info().Str("id", m.ID).Str("type", string(m.Type)).Str("product", m.ProductKey()).Msg("movimiento registrado")
	return m, true, nil
}

// Snapshot inventario completo: todas las posiciones re-derivadas y la lista de movimientos.
func (s *Service) Snapshot(ctx context.Context) (appinv.Snapshot, error) {
	movs, err := s.repo.ListAll(ctx)
	if err != nil {
		return appinv.Snapshot{}, fmt.Errorf("listar movimientos: %w", err)
	}
	thresholds, err := s.repo.Thresholds(ctx)
	if err != nil {
		return appinv.Snapshot{}, fmt.Errorf("listar umbrales: %w", err)
	}
	positions := inventory.Replay(movs, thresholds)
	for key, th := range thresholds {
		if _, ok := positions[key]; !ok {
			pos := entity.NewStockPosition(key)
			pos.ProductName = th.ProductName
			pos.Unit = th.Unit
			pos.MinThreshold = th.MinThreshold
			pos.OptimalThreshold = th.OptimalThreshold
			positions[key] = pos
		}
	}
	out := appinv.Snapshot{
		Positions: make([]entity.StockPosition, 0, len(positions)),
		Movements: make([]entity.Movement, 0, len(movs)),
		Full:      true,
	}
	for _, p := range positions {
		out.Positions = append(out.Positions, p)
	}
	sort.Slice(out.Positions, func(i, j int) bool { return out.Positions[i].ProductKey < out.Positions[j].ProductKey })
	out.Movements = append(out.Movements, movs...)
	return out, nil
}

// Movements lista completa en orden de llegada.
func (s *Service) Movements(ctx context.Context) ([]entity.Movement, error) {
	return s.repo.ListAll(ctx)
}

// DeleteMovement corrección administrativa. ErrNotFound si el id no existe.
func (s *Service) DeleteMovement(ctx context.Context, id string) (entity.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return entity.Movement{}, fmt.Errorf("eliminar movimiento: %w", err)
	}
	if removed == nil {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", id, domain.ErrNotFound)
	}
	s.log.Warn().Str("id", id).Str("product", removed.ProductKey()).Msg("movimiento eliminado por corrección administrativa")
	return *removed, nil
}

// SetThresholds fija los umbrales de un producto en la autoridad.
func (s *Service) SetThresholds(ctx context.Context, product, unit string, minThreshold, optimal decimal.Decimal) (entity.StockPosition, error) {
	key := entity.ProductKey(product)
	if key == "" {
		return entity.StockPosition{}, &domain.ValidationError{Field: "product", Message: "producto obligatorio"}
	}
	if minThreshold.IsNegative() || optimal.IsNegative() {
		return entity.StockPosition{}, &domain.ValidationError{Field: "min_threshold", Message: "los umbrales no pueden ser negativos"}
	}
	if !optimal.IsZero() && optimal.LessThan(minThreshold) {
		return entity.StockPosition{}, &domain.ValidationError{Field: "optimal_threshold", Message: "el óptimo no puede ser menor que el mínimo"}
	}
	pos := entity.NewStockPosition(key)
	pos.ProductName = strings.TrimSpace(product)
	pos.Unit = unit
	pos.MinThreshold = minThreshold
	pos.OptimalThreshold = optimal
	pos.UpdatedAt = s.now()
	if err := s.repo.SetThresholds(ctx, pos); err != nil {
		return entity.StockPosition{}, fmt.Errorf("guardar umbrales: %w", err)
	}
	return pos, nil
}
