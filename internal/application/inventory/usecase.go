package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/dedup"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
	"github.com/shopspring/decimal"
)

// Thresholds umbrales que reciben los productos al crear su posición.
type Thresholds struct {
	Min     decimal.Decimal
	Optimal decimal.Decimal
}

// Service único escritor del estado local: libro, posiciones y cola de sincronización.
// Cada mutación (append -> proyección -> persistencia -> umbral) es atómica respecto de las demás;
// si la transacción del almacén falla, el estado en memoria vuelve al punto previo.
type Service struct {
	mu        sync.Mutex
	ledger    *inventory.Ledger
	positions map[string]entity.StockPosition
	states    map[string]entity.SyncState
	meta      entity.SyncMeta

	tx       TxRunner
	monitor  *Monitor
	resolver *dedup.Resolver
	defaults Thresholds
	metrics  Metrics
	log      *logger.Logger
	now      func() time.Time
	pending  chan struct{}
}

// NewService construye el servicio. Llamar Load antes de usarlo con un almacén con datos.
func NewService(tx TxRunner, monitor *Monitor, defaults Thresholds, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if monitor == nil {
		monitor = NewMonitor(nil, 1, log)
	}
	return &Service{
		ledger:    inventory.NewLedger(),
		positions: make(map[string]entity.StockPosition),
		states:    make(map[string]entity.SyncState),
		tx:        tx,
		monitor:   monitor,
		resolver:  dedup.NewResolver(),
		defaults:  defaults,
		metrics:   nopMetrics{},
		log:       log.Component("inventory"),
		now:       time.Now,
		pending:   make(chan struct{}, 1),
	}
}

// UseMetrics registra los contadores del motor.
func (s *Service) UseMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// PendingSignal se activa cada vez que hay movimientos nuevos por enviar.
func (s *Service) PendingSignal() <-chan struct{} {
	return s.pending
}

func (s *Service) signalPending() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Load arranque en frío: restaura libro, posiciones y cola desde el almacén.
// Los envíos que quedaron Sent vuelven a Pending (la confirmación se perdió con el proceso)
// y cada producto pasa una comprobación de nivel.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		movs   []entity.Movement
		stored []entity.StockPosition
		states []entity.SyncState
		meta   entity.SyncMeta
	)
	err := s.tx.Run(ctx, func(movRepo repository.MovementRepository, posRepo repository.StockPositionRepository, metaRepo repository.SyncMetaRepository) error {
		var err error
		if movs, err = movRepo.ListAll(ctx); err != nil {
			return err
		}
		if stored, err = posRepo.List(ctx); err != nil {
			return err
		}
		if states, err = metaRepo.ListStates(ctx); err != nil {
			return err
		}
		meta, err = metaRepo.GetMeta(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("cargar almacén local: %w", err)
	}

	ledger := inventory.NewLedger()
	if err := ledger.Restore(movs); err != nil {
		return fmt.Errorf("restaurar libro: %w", err)
	}
	s.ledger = ledger
	s.meta = meta
	s.positions = make(map[string]entity.StockPosition, len(stored))
	for _, p := range stored {
		s.positions[p.ProductKey] = p
	}
	s.states = make(map[string]entity.SyncState, len(states))
	for _, st := range states {
		s.states[st.LocalID] = st
	}

	cs := &changeSet{}
	now := s.now()
	for _, m := range ledger.Filter(func(m entity.Movement) bool { return m.IsProvisional() }) {
		status := m.SyncStatus
		if status == entity.SyncStatusSent {
			_ = s.ledger.SetStatus(m.LocalID, entity.SyncStatusPending)
			status = entity.SyncStatusPending
			cs.movement(m.LocalID)
		}
		st, ok := s.states[m.LocalID]
		if !ok || st.Status != status {
			st.LocalID = m.LocalID
			st.Status = status
			st.SentAt = nil
			st.UpdatedAt = now
			cs.state(m.LocalID)
		}
		s.states[m.LocalID] = st
	}
	for _, key := range s.productKeys() {
		if _, ok := s.positions[key]; !ok {
			s.reproject(key)
			cs.position(key)
		}
	}
	if !cs.empty() {
		if err := s.persist(ctx, cs); err != nil {
			return fmt.Errorf("normalizar estado local: %w", err)
		}
	}

	alerts := 0
	for _, pos := range s.sortedPositions() {
		if s.monitor.Level(pos) != nil {
			alerts++
		}
	}
	s.log.Info().
		Int("movements", s.ledger.Len()).
		Int("positions", len(s.positions)).
		Int("pending", len(s.states)).
		Int("alerts", alerts).
		Msg("estado local cargado")
	return nil
}

// Submit valida, registra y proyecta un movimiento creado por la UI. El movimiento queda Pending
// hasta que la autoridad lo confirme.
func (s *Service) Submit(ctx context.Context, req entity.MovementRequest) (entity.Movement, error) {
	m, err := entity.NewMovement(req, s.now())
	if err != nil {
		return entity.Movement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.checkpoint()
	stored, err := s.ledger.Append(m)
	if err != nil {
		return entity.Movement{}, err
	}
	prev, next := s.apply(stored)
	s.states[stored.LocalID] = entity.SyncState{
		LocalID:   stored.LocalID,
		Status:    entity.SyncStatusPending,
		UpdatedAt: s.now(),
	}

	cs := &changeSet{}
	cs.movement(stored.LocalID)
	cs.position(next.ProductKey)
	cs.state(stored.LocalID)
	if err := s.commit(ctx, cp, cs); err != nil {
		return entity.Movement{}, err
	}

	s.metrics.MovementRecorded(stored.Type, stored.Origin)
	s.monitor.Edge(prev, next)
	s.log.Debug().
		Str("local_id", stored.LocalID).
		Str("type", string(stored.Type)).
		Str("product", next.ProductKey).
		Str("quantity", stored.Quantity.String()).
		Msg("movimiento registrado")
	s.signalPending()
	return stored, nil
}

// ReplacePending corrige un movimiento offline que todavía no se ha enviado.
// Tras el primer intento de envío la autoridad puede haberlo guardado aunque
// la confirmación no llegara, así que deja de ser corregible.
func (s *Service) ReplacePending(ctx context.Context, localID string, req entity.MovementRequest) (entity.Movement, error) {
	m, err := entity.NewMovement(req, s.now())
	if err != nil {
		return entity.Movement{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.ledger.FindByID(localID)
	if !ok {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", localID, domain.ErrNotFound)
	}
	if st, ok := s.states[cur.LocalID]; ok && st.Attempts > 0 {
		return entity.Movement{}, fmt.Errorf("movimiento %s ya enviado %d veces: %w", cur.LocalID, st.Attempts, domain.ErrConflict)
	}
	cp := s.checkpoint()
	stored, err := s.ledger.Replace(cur.LocalID, m)
	if err != nil {
		return entity.Movement{}, err
	}

	cs := &changeSet{}
	cs.movement(stored.LocalID)
	var trans []transition
	for _, key := range uniqueKeys(cur.ProductKey(), stored.ProductKey()) {
		prev, next := s.reproject(key)
		trans = append(trans, transition{prev: prev, next: next})
		cs.position(key)
	}
	if err := s.commit(ctx, cp, cs); err != nil {
		return entity.Movement{}, err
	}
	s.emit(trans)
	s.signalPending()
	return stored, nil
}

// Movements lectura del libro completo en el orden pedido.
func (s *Service) Movements(order inventory.Order) []entity.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ReadAll(order)
}

// Movement busca por id vigente o LocalID.
func (s *Service) Movement(id string) (entity.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.ledger.FindByID(id)
	if !ok {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

// Positions todas las posiciones ordenadas por clave de producto.
func (s *Service) Positions() []entity.StockPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedPositions()
}

// Position posición de un producto; acepta el nombre sin normalizar.
func (s *Service) Position(product string) (entity.StockPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[entity.ProductKey(product)]
	if !ok {
		return entity.StockPosition{}, fmt.Errorf("producto %s: %w", product, domain.ErrNotFound)
	}
	return pos, nil
}

// SetThresholds configura los umbrales de un producto. Si el cambio deja la posición
// por debajo del mínimo cuando antes no lo estaba, se emite alerta.
func (s *Service) SetThresholds(ctx context.Context, product string, minThreshold, optimal decimal.Decimal) (entity.StockPosition, error) {
	if minThreshold.IsNegative() {
		return entity.StockPosition{}, &domain.ValidationError{Field: "min_threshold", Message: "el mínimo no puede ser negativo"}
	}
	if optimal.IsNegative() || (!optimal.IsZero() && optimal.LessThan(minThreshold)) {
		return entity.StockPosition{}, &domain.ValidationError{Field: "optimal_threshold", Message: "el óptimo debe ser mayor o igual al mínimo"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entity.ProductKey(product)
	prev, ok := s.positions[key]
	if !ok {
		return entity.StockPosition{}, fmt.Errorf("producto %s: %w", product, domain.ErrNotFound)
	}
	cp := s.checkpoint()
	next := prev
	next.MinThreshold = minThreshold
	next.OptimalThreshold = optimal
	s.positions[key] = next

	cs := &changeSet{}
	cs.position(key)
	if err := s.commit(ctx, cp, cs); err != nil {
		return entity.StockPosition{}, err
	}
	if !prev.BelowMin() && next.BelowMin() {
		s.monitor.Level(next)
	}
	return next, nil
}

// Replenishment productos por debajo del mínimo, del más grave al menos grave.
func (s *Service) Replenishment() []entity.StockPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.StockPosition
	for _, p := range s.positions {
		if p.BelowMin() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := severityRank(out[i]), severityRank(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i].ProductKey < out[j].ProductKey
	})
	return out
}

func severityRank(p entity.StockPosition) int {
	switch inventory.SeverityFor(p.QuantityOnHand, p.MinThreshold) {
	case entity.SeverityUrgent:
		return 0
	case entity.SeverityHigh:
		return 1
	default:
		return 2
	}
}

// ── helpers internos (llamar con s.mu tomado) ──

// transition cambio de una posición que debe pasar por la regla de cruce.
type transition struct {
	prev, next entity.StockPosition
}

func (s *Service) emit(trans []transition) {
	for _, t := range trans {
		s.monitor.Edge(t.prev, t.next)
	}
}

func (s *Service) newPosition(key string) entity.StockPosition {
	pos := entity.NewStockPosition(key)
	pos.MinThreshold = s.defaults.Min
	pos.OptimalThreshold = s.defaults.Optimal
	return pos
}

func (s *Service) positionFor(key string) entity.StockPosition {
	if pos, ok := s.positions[key]; ok {
		return pos
	}
	return s.newPosition(key)
}

// counts indica si el movimiento participa en la proyección local (los rechazados no).
func counts(m entity.Movement) bool {
	return m.SyncStatus != entity.SyncStatusFailed
}

// apply proyecta un movimiento recién incorporado. Si llega con fecha anterior al último
// movimiento aplicado, el producto se re-deriva completo para respetar el orden cronológico.
func (s *Service) apply(m entity.Movement) (prev, next entity.StockPosition) {
	key := m.ProductKey()
	prev = s.positionFor(key)
	if prev.LastMovement != nil && m.Timestamp.Before(prev.LastMovement.Timestamp) {
		return s.reproject(key)
	}
	next = inventory.Project(prev, m)
	s.positions[key] = next
	return prev, next
}

// reproject re-deriva la posición de un producto desde el libro, conservando sus umbrales.
func (s *Service) reproject(key string) (prev, next entity.StockPosition) {
	prev = s.positionFor(key)
	movs := s.ledger.Filter(func(m entity.Movement) bool {
		return counts(m) && m.ProductKey() == key
	})
	next = inventory.ReplayProduct(key, movs, prev)
	if len(movs) == 0 {
		next.UpdatedAt = s.now()
	}
	s.positions[key] = next
	return prev, next
}

func (s *Service) productKeys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, m := range s.ledger.ReadAll(inventory.OrderArrival) {
		k := m.ProductKey()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func (s *Service) sortedPositions() []entity.StockPosition {
	out := make([]entity.StockPosition, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductKey < out[j].ProductKey })
	return out
}

func uniqueKeys(keys ...string) []string {
	var out []string
	for _, k := range keys {
		dup := false
		for _, o := range out {
			if o == k {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, k)
		}
	}
	return out
}

// checkpoint copia del estado en memoria para deshacer una mutación no persistida.
type checkpoint struct {
	ledger    *inventory.Ledger
	positions map[string]entity.StockPosition
	states    map[string]entity.SyncState
	meta      entity.SyncMeta
}

// checkpoint copia completa: coste lineal en el tamaño del libro en cada mutación.
// TODO: copiar solo los registros y posiciones del changeSet si el libro local supera
// unas decenas de miles de movimientos.
func (s *Service) checkpoint() checkpoint {
	cp := checkpoint{
		ledger:    s.ledger.Clone(),
		positions: make(map[string]entity.StockPosition, len(s.positions)),
		states:    make(map[string]entity.SyncState, len(s.states)),
		meta:      s.meta,
	}
	for k, v := range s.positions {
		cp.positions[k] = v
	}
	for k, v := range s.states {
		cp.states[k] = v
	}
	return cp
}

func (s *Service) rollback(cp checkpoint) {
	s.ledger = cp.ledger
	s.positions = cp.positions
	s.states = cp.states
	s.meta = cp.meta
}

func (s *Service) commit(ctx context.Context, cp checkpoint, cs *changeSet) error {
	if err := s.persist(ctx, cs); err != nil {
		s.rollback(cp)
		s.log.Error().Err(err).Msg("persistencia fallida, estado en memoria restaurado")
		return fmt.Errorf("persistir cambios: %w", err)
	}
	return nil
}

// changeSet registros tocados por una mutación. Cada entrada se escribe según el estado final
// en memoria: si el registro ya no existe, se borra del almacén.
type changeSet struct {
	movements    []string
	positions    []string
	allPositions bool
	states       []string
	lastSync     *time.Time
}

func (cs *changeSet) movement(localID string) { cs.movements = append(cs.movements, localID) }
func (cs *changeSet) position(key string)     { cs.positions = append(cs.positions, key) }
func (cs *changeSet) state(localID string)    { cs.states = append(cs.states, localID) }

func (cs *changeSet) empty() bool {
	return len(cs.movements) == 0 && len(cs.positions) == 0 && !cs.allPositions &&
		len(cs.states) == 0 && cs.lastSync == nil
}

func (s *Service) persist(ctx context.Context, cs *changeSet) error {
	return s.tx.Run(ctx, func(movRepo repository.MovementRepository, posRepo repository.StockPositionRepository, metaRepo repository.SyncMetaRepository) error {
		for _, id := range uniqueKeys(cs.movements...) {
			m, ok := s.ledger.Get(id)
			if !ok {
				if err := movRepo.Delete(ctx, id); err != nil {
					return err
				}
				continue
			}
			if err := movRepo.Save(ctx, m); err != nil {
				return err
			}
		}
		if cs.allPositions {
			if err := posRepo.ReplaceAll(ctx, s.sortedPositions()); err != nil {
				return err
			}
		} else {
			for _, key := range uniqueKeys(cs.positions...) {
				if pos, ok := s.positions[key]; ok {
					if err := posRepo.Upsert(ctx, pos); err != nil {
						return err
					}
				}
			}
		}
		for _, id := range uniqueKeys(cs.states...) {
			st, ok := s.states[id]
			if !ok {
				if err := metaRepo.DeleteState(ctx, id); err != nil {
					return err
				}
				continue
			}
			if err := metaRepo.UpsertState(ctx, st); err != nil {
				return err
			}
		}
		if cs.lastSync != nil {
			if err := metaRepo.SetLastSync(ctx, *cs.lastSync); err != nil {
				return err
			}
		}
		return nil
	})
}
