package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/dedup"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// Snapshot estado que publica la autoridad (evento inventory-updated).
// Movements nil significa que el evento no trae lista de movimientos.
type Snapshot struct {
	Positions []entity.StockPosition
	Movements []entity.Movement
	Full      bool
}

// SnapshotResult resumen de la aplicación de un snapshot.
type SnapshotResult struct {
	Inserted    int
	Rebound     int
	Duplicates  int
	Ambiguities int
	Removed     int
	Skipped     int
	Alerts      int
}

// SyncReport conteos de la cola de sincronización.
type SyncReport struct {
	Total      int        `json:"total"`
	Pending    int        `json:"pending"`
	Sent       int        `json:"sent"`
	Synced     int        `json:"synced"`
	Failed     int        `json:"failed"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// PendingMovements movimientos locales listos para enviar, en orden de llegada.
func (s *Service) PendingMovements() []entity.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Filter(func(m entity.Movement) bool {
		return m.Origin == entity.OriginLocal && m.SyncStatus == entity.SyncStatusPending
	})
}

// MarkSent Pending -> Sent justo antes de escribir en el canal.
func (s *Service) MarkSent(ctx context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.ledger.Get(localID)
	if !ok {
		return fmt.Errorf("movimiento %s: %w", localID, domain.ErrNotFound)
	}
	if m.SyncStatus != entity.SyncStatusPending {
		return fmt.Errorf("movimiento %s en estado %s: %w", localID, m.SyncStatus, domain.ErrConflict)
	}
	cp := s.checkpoint()
	_ = s.ledger.SetStatus(localID, entity.SyncStatusSent)
	now := s.now()
	st := s.states[localID]
	st.LocalID = localID
	st.Status = entity.SyncStatusSent
	st.Attempts++
	st.SentAt = &now
	st.UpdatedAt = now
	s.states[localID] = st

	cs := &changeSet{}
	cs.movement(localID)
	cs.state(localID)
	return s.commit(ctx, cp, cs)
}

// MarkPending Sent -> Pending tras un fallo de transporte; el movimiento se reenviará.
func (s *Service) MarkPending(ctx context.Context, localID string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.revertSent(ctx, func(st entity.SyncState) bool { return st.LocalID == localID }, cause)
	return err
}

// ResetSent devuelve a Pending todo lo que estaba Sent (desconexión del canal).
func (s *Service) ResetSent(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revertSent(ctx, func(entity.SyncState) bool { return true }, domain.ErrSyncTransport)
}

// ExpireSent devuelve a Pending los envíos sin confirmación después de timeout.
func (s *Service) ExpireSent(ctx context.Context, timeout time.Duration) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	return s.revertSent(ctx, func(st entity.SyncState) bool {
		return st.SentAt != nil && now.Sub(*st.SentAt) >= timeout
	}, errors.New("confirmación no recibida a tiempo"))
}

func (s *Service) revertSent(ctx context.Context, match func(entity.SyncState) bool, cause error) ([]string, error) {
	cp := s.checkpoint()
	cs := &changeSet{}
	var reverted []string
	now := s.now()
	for id, st := range s.states {
		if st.Status != entity.SyncStatusSent || !match(st) {
			continue
		}
		m, ok := s.ledger.Get(id)
		if !ok || m.SyncStatus != entity.SyncStatusSent {
			continue
		}
		_ = s.ledger.SetStatus(id, entity.SyncStatusPending)
		st.Status = entity.SyncStatusPending
		st.SentAt = nil
		st.UpdatedAt = now
		if cause != nil {
			st.LastError = cause.Error()
		}
		s.states[id] = st
		cs.movement(id)
		cs.state(id)
		reverted = append(reverted, id)
	}
	if len(reverted) == 0 {
		return nil, nil
	}
	if err := s.commit(ctx, cp, cs); err != nil {
		return nil, err
	}
	s.signalPending()
	return reverted, nil
}

// MarkFailed la autoridad rechazó el movimiento: queda visible como Failed, no se reenvía
// y deja de contar en la posición local.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.ledger.FindByID(id)
	if !ok {
		return fmt.Errorf("movimiento %s: %w", id, domain.ErrNotFound)
	}
	if !m.IsProvisional() {
		return fmt.Errorf("movimiento %s ya confirmado: %w", id, domain.ErrConflict)
	}
	cp := s.checkpoint()
	_ = s.ledger.SetStatus(m.LocalID, entity.SyncStatusFailed)
	st := s.states[m.LocalID]
	st.LocalID = m.LocalID
	st.Status = entity.SyncStatusFailed
	st.LastError = reason
	st.SentAt = nil
	st.UpdatedAt = s.now()
	s.states[m.LocalID] = st

	prev, next := s.reproject(m.ProductKey())
	cs := &changeSet{}
	cs.movement(m.LocalID)
	cs.state(m.LocalID)
	cs.position(next.ProductKey)
	if err := s.commit(ctx, cp, cs); err != nil {
		return err
	}
	s.log.Warn().Str("local_id", m.LocalID).Str("reason", reason).Msg("movimiento rechazado por la autoridad")
	s.emit([]transition{{prev: prev, next: next}})
	return nil
}

// MergeRemote incorpora un movimiento autoritativo (eco propio o de otro cliente) y
// re-proyecta solo los productos afectados.
func (s *Service) MergeRemote(ctx context.Context, remote entity.Movement) (dedup.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.checkpoint()
	cs := &changeSet{}
	res, trans, err := s.mergeLocked(remote, cs)
	if err != nil {
		s.rollback(cp)
		return dedup.Resolution{}, err
	}
	if !res.Changed() {
		return res, nil
	}
	if err := s.commit(ctx, cp, cs); err != nil {
		return dedup.Resolution{}, err
	}
	s.afterMerge(res)
	s.emit(trans)
	return res, nil
}

func (s *Service) mergeLocked(remote entity.Movement, cs *changeSet) (dedup.Resolution, []transition, error) {
	res, err := s.resolver.Merge(s.ledger, remote)
	if err != nil {
		return dedup.Resolution{}, nil, err
	}
	if !res.Changed() {
		return res, nil, nil
	}
	localID := res.Movement.LocalID
	cs.movement(localID)
	if _, ok := s.states[localID]; ok {
		delete(s.states, localID)
		cs.state(localID)
	}

	var trans []transition
	if res.Action == dedup.ActionInserted {
		prev, next := s.apply(res.Movement)
		trans = append(trans, transition{prev: prev, next: next})
		cs.position(next.ProductKey)
		return res, trans, nil
	}
	for _, key := range res.AffectedKeys {
		prev, next := s.reproject(key)
		trans = append(trans, transition{prev: prev, next: next})
		cs.position(key)
	}
	return res, trans, nil
}

func (s *Service) afterMerge(res dedup.Resolution) {
	if res.Action == dedup.ActionInserted {
		s.metrics.MovementRecorded(res.Movement.Type, entity.OriginRemote)
	}
	if res.Ambiguity != nil {
		s.metrics.MergeAmbiguity()
		s.log.Warn().
			Str("key", res.Ambiguity.Key).
			Str("local_id", res.Ambiguity.LocalID).
			Str("remote_id", res.Ambiguity.RemoteID).
			Strs("fields", res.Ambiguity.Fields).
			Msg("registro autoritativo difiere del local, se conserva el autoritativo")
	}
}

// RemoveMovement acción compensatoria: elimina un registro por id (evento movement-deleted).
func (s *Service) RemoveMovement(ctx context.Context, id string) (entity.Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.checkpoint()
	removed, err := s.ledger.Remove(id)
	if err != nil {
		return entity.Movement{}, err
	}
	delete(s.states, removed.LocalID)
	prev, next := s.reproject(removed.ProductKey())

	cs := &changeSet{}
	cs.movement(removed.LocalID)
	cs.state(removed.LocalID)
	cs.position(next.ProductKey)
	if err := s.commit(ctx, cp, cs); err != nil {
		return entity.Movement{}, err
	}
	s.emit([]transition{{prev: prev, next: next}})
	return removed, nil
}

// ApplySnapshot aplica un inventory-updated de la autoridad.
//   - La lista de movimientos se fusiona en orden cronológico; los pendientes locales sin pareja se conservan.
//   - Con Full, los registros confirmados que la autoridad ya no tiene se eliminan, las posiciones se
//     sustituyen en bloque, se re-aplican encima los movimientos locales aún no confirmados y cada
//     producto pasa una comprobación de nivel.
//   - Sin Full, cada posición recibida se actualiza y pasa la regla de cruce.
func (s *Service) ApplySnapshot(ctx context.Context, snap Snapshot) (SnapshotResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.checkpoint()
	cs := &changeSet{}
	var (
		result SnapshotResult
		trans  []transition
		merged []dedup.Resolution
	)

	if snap.Movements != nil {
		ordered := make([]entity.Movement, len(snap.Movements))
		copy(ordered, snap.Movements)
		inventory.SortChronological(ordered)
		seen := make(map[string]struct{}, len(ordered))
		for _, m := range ordered {
			res, t, err := s.mergeLocked(m, cs)
			if err != nil {
				result.Skipped++
				s.log.Warn().Err(err).Str("id", m.ID).Msg("movimiento remoto descartado en snapshot")
				continue
			}
			seen[res.Movement.ID] = struct{}{}
			merged = append(merged, res)
			trans = append(trans, t...)
			switch res.Action {
			case dedup.ActionInserted:
				result.Inserted++
			case dedup.ActionRebound:
				result.Rebound++
			default:
				result.Duplicates++
			}
			if res.Ambiguity != nil {
				result.Ambiguities++
			}
		}
		if snap.Full {
			stale := s.ledger.Filter(func(m entity.Movement) bool {
				_, ok := seen[m.ID]
				return m.SyncStatus == entity.SyncStatusSynced && !ok
			})
			for _, m := range stale {
				if _, err := s.ledger.Remove(m.LocalID); err == nil {
					cs.movement(m.LocalID)
					result.Removed++
					if !snapHasPositions(snap) {
						prev, next := s.reproject(m.ProductKey())
						trans = append(trans, transition{prev: prev, next: next})
						cs.position(next.ProductKey)
					}
				}
			}
		}
	}

	if snap.Full && snapHasPositions(snap) {
		s.replacePositions(snap.Positions)
		cs.allPositions = true
		trans = nil
	} else {
		for _, p := range snap.Positions {
			key := positionKey(p)
			prev := s.positionFor(key)
			next := s.rebase(key, p, prev)
			s.positions[key] = next
			trans = append(trans, transition{prev: prev, next: next})
			cs.position(key)
		}
	}

	now := s.now()
	s.meta.LastSyncAt = &now
	cs.lastSync = &now
	if err := s.commit(ctx, cp, cs); err != nil {
		return SnapshotResult{}, err
	}

	for _, res := range merged {
		if res.Changed() {
			s.afterMerge(res)
		}
	}
	if snap.Full {
		for _, pos := range s.sortedPositions() {
			if s.monitor.Level(pos) != nil {
				result.Alerts++
			}
		}
	} else {
		for _, t := range trans {
			if s.monitor.Edge(t.prev, t.next) != nil {
				result.Alerts++
			}
		}
	}
	s.log.Info().
		Bool("full", snap.Full).
		Int("positions", len(snap.Positions)).
		Int("inserted", result.Inserted).
		Int("rebound", result.Rebound).
		Int("removed", result.Removed).
		Int("alerts", result.Alerts).
		Msg("snapshot de inventario aplicado")
	return result, nil
}

func snapHasPositions(snap Snapshot) bool {
	return len(snap.Positions) > 0
}

func positionKey(p entity.StockPosition) string {
	if p.ProductKey != "" {
		return entity.ProductKey(p.ProductKey)
	}
	return entity.ProductKey(p.ProductName)
}

// unsynced movimientos locales que la autoridad aún no refleja, en orden cronológico.
func (s *Service) unsynced(key string) []entity.Movement {
	movs := s.ledger.Filter(func(m entity.Movement) bool {
		return m.Origin == entity.OriginLocal &&
			(m.SyncStatus == entity.SyncStatusPending || m.SyncStatus == entity.SyncStatusSent) &&
			(key == "" || m.ProductKey() == key)
	})
	inventory.SortChronological(movs)
	return movs
}

// rebase toma la posición autoritativa, conserva los umbrales locales si la autoridad no los
// informa y re-aplica encima los movimientos locales no confirmados del producto.
func (s *Service) rebase(key string, authoritative, local entity.StockPosition) entity.StockPosition {
	pos := authoritative
	pos.ProductKey = key
	if pos.ProductName == "" {
		pos.ProductName = local.ProductName
	}
	if pos.Category == "" {
		pos.Category = local.Category
	}
	if pos.Unit == "" {
		pos.Unit = local.Unit
	}
	if pos.MinThreshold.IsZero() && pos.OptimalThreshold.IsZero() {
		pos.MinThreshold = local.MinThreshold
		pos.OptimalThreshold = local.OptimalThreshold
	}
	if pos.QuantityOnHand.IsNegative() {
		pos.QuantityOnHand = decimal.Zero
	}
	for _, m := range s.unsynced(key) {
		pos = inventory.Project(pos, m)
	}
	return pos
}

// replacePositions sustitución en bloque por un snapshot completo. Los productos del libro que la
// autoridad no incluye se re-derivan desde el libro; los que no tienen movimientos se conservan.
func (s *Service) replacePositions(remote []entity.StockPosition) {
	old := s.positions
	fresh := make(map[string]entity.StockPosition, len(remote))
	for _, p := range remote {
		key := positionKey(p)
		local, ok := old[key]
		if !ok {
			local = s.newPosition(key)
		}
		fresh[key] = s.rebase(key, p, local)
	}
	s.positions = fresh
	for _, key := range s.productKeys() {
		if _, ok := fresh[key]; ok {
			continue
		}
		if prev, ok := old[key]; ok {
			s.positions[key] = prev
		}
		s.reproject(key)
	}
	for key, p := range old {
		if _, ok := s.positions[key]; !ok {
			s.positions[key] = p
		}
	}
}

// SyncReport conteos por estado y última sincronización.
func (s *Service) SyncReport() SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := SyncReport{Total: s.ledger.Len(), LastSyncAt: s.meta.LastSyncAt}
	for _, m := range s.ledger.ReadAll(inventory.OrderArrival) {
		switch m.SyncStatus {
		case entity.SyncStatusPending:
			r.Pending++
		case entity.SyncStatusSent:
			r.Sent++
		case entity.SyncStatusSynced:
			r.Synced++
		case entity.SyncStatusFailed:
			r.Failed++
		}
	}
	return r
}
