package inventory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// Order orden de lectura del libro.
type Order int

const (
	// OrderArrival orden de llegada (para la UI).
	OrderArrival Order = iota
	// OrderChronological orden por timestamp (para proyección).
	OrderChronological
)

// Ledger libro de movimientos en memoria, append-only, con patrón arena+índice:
// cada movimiento recibe un LocalID estable al entrar y la reconciliación solo re-vincula
// su ID autoritativo, sin cambiar la identidad que ven los consumidores.
// No es seguro para uso concurrente; el Service serializa el acceso.
type Ledger struct {
	entries []*entity.Movement
	byLocal map[string]int
	byID    map[string]int
	seq     int64
}

// NewLedger construye un libro vacío.
func NewLedger() *Ledger {
	return &Ledger{
		byLocal: make(map[string]int),
		byID:    make(map[string]int),
	}
}

// NewProvisionalID genera un identificador local provisional.
func NewProvisionalID() string {
	return entity.ProvisionalPrefix + uuid.New().String()
}

// Append valida y almacena el movimiento. Asigna identificador provisional si falta
// y el número de secuencia de llegada. Devuelve una copia del registro almacenado.
func (l *Ledger) Append(m *entity.Movement) (entity.Movement, error) {
	if m == nil {
		return entity.Movement{}, &domain.ValidationError{Field: "movement", Message: "movimiento vacío"}
	}
	if err := m.Validate(); err != nil {
		return entity.Movement{}, err
	}
	if m.LocalID == "" {
		if m.ID != "" {
			m.LocalID = m.ID
		} else {
			m.LocalID = NewProvisionalID()
		}
	}
	if m.ID == "" {
		m.ID = m.LocalID
	}
	if _, ok := l.byLocal[m.LocalID]; ok {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", m.LocalID, domain.ErrDuplicate)
	}
	if _, ok := l.byID[m.ID]; ok {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrDuplicate)
	}
	if m.Seq == 0 {
		l.seq++
		m.Seq = l.seq
	} else if m.Seq > l.seq {
		l.seq = m.Seq
	}
	stored := m.Clone()
	l.entries = append(l.entries, &stored)
	idx := len(l.entries) - 1
	l.byLocal[stored.LocalID] = idx
	l.byID[stored.ID] = idx
	return stored.Clone(), nil
}

// Restore carga registros ya persistidos (arranque en frío), conservando sus secuencias.
func (l *Ledger) Restore(movs []entity.Movement) error {
	for i := range movs {
		m := movs[i]
		if _, err := l.Append(&m); err != nil {
			return err
		}
	}
	return nil
}

// Len número de registros.
func (l *Ledger) Len() int { return len(l.entries) }

// Get busca por LocalID.
func (l *Ledger) Get(localID string) (entity.Movement, bool) {
	idx, ok := l.byLocal[localID]
	if !ok {
		return entity.Movement{}, false
	}
	return l.entries[idx].Clone(), true
}

// FindByID busca por el ID vigente (provisional o autoritativo) o por LocalID.
func (l *Ledger) FindByID(id string) (entity.Movement, bool) {
	if idx, ok := l.byID[id]; ok {
		return l.entries[idx].Clone(), true
	}
	return l.Get(id)
}

// ReadAll devuelve la secuencia completa (copias de solo lectura) en el orden pedido.
func (l *Ledger) ReadAll(order Order) []entity.Movement {
	out := make([]entity.Movement, 0, len(l.entries))
	for _, m := range l.entries {
		out = append(out, m.Clone())
	}
	if order == OrderChronological {
		SortChronological(out)
	}
	return out
}

// ByProduct movimientos de un producto en orden cronológico.
func (l *Ledger) ByProduct(key string) []entity.Movement {
	var out []entity.Movement
	for _, m := range l.entries {
		if m.ProductKey() == key {
			out = append(out, m.Clone())
		}
	}
	SortChronological(out)
	return out
}

// Filter devuelve los registros que cumplen pred, en orden de llegada.
func (l *Ledger) Filter(pred func(entity.Movement) bool) []entity.Movement {
	var out []entity.Movement
	for _, m := range l.entries {
		if pred(*m) {
			out = append(out, m.Clone())
		}
	}
	return out
}

// SetStatus cambia el estado de sincronización de un registro.
func (l *Ledger) SetStatus(localID string, status entity.SyncStatus) error {
	idx, ok := l.byLocal[localID]
	if !ok {
		return fmt.Errorf("movimiento %s: %w", localID, domain.ErrNotFound)
	}
	l.entries[idx].SyncStatus = status
	return nil
}

// Rebind vincula el registro local al identificador autoritativo y lo sustituye por la versión remota
// (la autoridad gana). LocalID y Seq se conservan.
func (l *Ledger) Rebind(localID string, authoritative entity.Movement) (entity.Movement, error) {
	idx, ok := l.byLocal[localID]
	if !ok {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", localID, domain.ErrNotFound)
	}
	newID := authoritative.ID
	if newID == "" {
		newID = authoritative.RemoteID
	}
	if other, taken := l.byID[newID]; taken && other != idx {
		return entity.Movement{}, fmt.Errorf("id autoritativo %s: %w", newID, domain.ErrDuplicate)
	}
	cur := l.entries[idx]
	delete(l.byID, cur.ID)

	next := authoritative.Clone()
	next.ID = newID
	next.RemoteID = newID
	next.LocalID = cur.LocalID
	next.Seq = cur.Seq
	next.Origin = entity.OriginRemote
	next.SyncStatus = entity.SyncStatusSynced
	if next.MovementValue.IsZero() {
		next.MovementValue = next.ComputedValue()
	}

	l.entries[idx] = &next
	l.byID[newID] = idx
	return next.Clone(), nil
}

// Replace sustituye el contenido de un registro aún no confirmado (corrección offline antes de sincronizar).
func (l *Ledger) Replace(localID string, m *entity.Movement) (entity.Movement, error) {
	idx, ok := l.byLocal[localID]
	if !ok {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", localID, domain.ErrNotFound)
	}
	cur := l.entries[idx]
	if cur.SyncStatus != entity.SyncStatusPending || cur.Origin != entity.OriginLocal {
		return entity.Movement{}, fmt.Errorf("movimiento %s en estado %s: %w", localID, cur.SyncStatus, domain.ErrConflict)
	}
	if err := m.Validate(); err != nil {
		return entity.Movement{}, err
	}
	next := m.Clone()
	next.ID = cur.ID
	next.LocalID = cur.LocalID
	next.Seq = cur.Seq
	next.Origin = entity.OriginLocal
	next.SyncStatus = entity.SyncStatusPending
	l.entries[idx] = &next
	return next.Clone(), nil
}

// Remove elimina un registro (acción compensatoria administrativa). Devuelve el registro eliminado.
func (l *Ledger) Remove(id string) (entity.Movement, error) {
	idx, ok := l.byID[id]
	if !ok {
		idx, ok = l.byLocal[id]
	}
	if !ok {
		return entity.Movement{}, fmt.Errorf("movimiento %s: %w", id, domain.ErrNotFound)
	}
	removed := l.entries[idx].Clone()
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	l.reindex()
	return removed, nil
}

func (l *Ledger) reindex() {
	l.byLocal = make(map[string]int, len(l.entries))
	l.byID = make(map[string]int, len(l.entries))
	for i, m := range l.entries {
		l.byLocal[m.LocalID] = i
		l.byID[m.ID] = i
	}
}

// Clone copia profunda del libro (punto de restauración si falla la persistencia).
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		entries: make([]*entity.Movement, len(l.entries)),
		seq:     l.seq,
	}
	for i, m := range l.entries {
		cp := m.Clone()
		c.entries[i] = &cp
	}
	c.reindex()
	return c
}
