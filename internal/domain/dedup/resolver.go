package dedup

import (
	"fmt"

	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
)

// Action resultado de fusionar un registro remoto en el libro.
type Action string

const (
	ActionInserted  Action = "inserted"  // movimiento nuevo de otro cliente
	ActionRebound   Action = "rebound"   // provisional local re-vinculado al id autoritativo
	ActionDuplicate Action = "duplicate" // ya estaba presente; sin efecto salvo corrección autoritativa
)

// Resolution detalle de una fusión.
type Resolution struct {
	Action     Action
	Movement   entity.Movement
	PreviousID string
	// Ambiguity no nil cuando los registros coinciden en clave (o id) pero difieren en otros campos.
	Ambiguity *domain.ConflictMergeAmbiguity
	// AffectedKeys productos cuya posición debe re-proyectarse.
	AffectedKeys []string
}

// Changed indica si la fusión modificó el libro.
func (r Resolution) Changed() bool {
	return r.Action != ActionDuplicate || r.Ambiguity != nil
}

// Resolver colapsa movimientos duplicados que llegan por caminos distintos
// (eco local por el canal, reconciliación tras reconectar). El registro autoritativo
// siempre sustituye al provisional local, que conserva su LocalID.
type Resolver struct{}

// NewResolver construye el resolvedor.
func NewResolver() *Resolver { return &Resolver{} }

// Merge fusiona un movimiento autoritativo en el libro.
func (r *Resolver) Merge(l *inventory.Ledger, remote entity.Movement) (Resolution, error) {
	if remote.ID == "" {
		return Resolution{}, &domain.ValidationError{Field: "id", Message: "movimiento remoto sin identificador"}
	}
	remote.Origin = entity.OriginRemote
	remote.SyncStatus = entity.SyncStatusSynced
	remote.RemoteID = remote.ID

	// 1. Mismo identificador: eco de un envío propio o reentrega del mismo registro.
	if existing, ok := l.FindByID(remote.ID); ok {
		diff := diffFields(existing, remote)
		if !existing.IsProvisional() && len(diff) == 0 {
			return Resolution{Action: ActionDuplicate, Movement: existing}, nil
		}
		return r.rebind(l, existing, remote, diff)
	}

	// 2. Provisional propio cuyo id definitivo derivado coincide: eco aunque la autoridad
	// haya normalizado cantidades o timestamp.
	if local, ok := provisionalWithAuthoritativeID(l, remote.ID); ok {
		return r.rebind(l, local, remote, diffFields(local, remote))
	}

	// 3. Misma clave que un provisional local: se re-vincula en lugar de duplicar.
	key := MovementKey(remote)
	if local, ok := firstProvisionalWithKey(l, key); ok {
		return r.rebind(l, local, remote, diffFields(local, remote))
	}

	// 4. Movimiento nuevo.
	remote.LocalID = ""
	remote.Seq = 0
	if remote.MovementValue.IsZero() {
		remote.MovementValue = remote.ComputedValue()
	}
	stored, err := l.Append(&remote)
	if err != nil {
		return Resolution{}, fmt.Errorf("insertar movimiento remoto: %w", err)
	}
	return Resolution{
		Action:       ActionInserted,
		Movement:     stored,
		AffectedKeys: []string{stored.ProductKey()},
	}, nil
}

func (r *Resolver) rebind(l *inventory.Ledger, local, remote entity.Movement, diff []string) (Resolution, error) {
	stored, err := l.Rebind(local.LocalID, remote)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{
		Action:       ActionRebound,
		Movement:     stored,
		PreviousID:   local.ID,
		AffectedKeys: affected(local, stored),
	}
	if !local.IsProvisional() {
		res.Action = ActionDuplicate
	}
	if len(diff) > 0 {
		res.Ambiguity = &domain.ConflictMergeAmbiguity{
			Key:      MovementKey(remote),
			LocalID:  local.LocalID,
			RemoteID: stored.ID,
			Fields:   diff,
		}
	}
	return res, nil
}

func awaitingAck(m entity.Movement) bool {
	if m.Origin != entity.OriginLocal {
		return false
	}
	return m.SyncStatus == entity.SyncStatusPending || m.SyncStatus == entity.SyncStatusSent
}

func provisionalWithAuthoritativeID(l *inventory.Ledger, id string) (entity.Movement, bool) {
	if entity.IsProvisionalID(id) {
		return entity.Movement{}, false
	}
	found := l.Filter(func(m entity.Movement) bool {
		return awaitingAck(m) && entity.IsProvisionalID(m.ID) && entity.AuthoritativeID(m.ID) == id
	})
	if len(found) == 0 {
		return entity.Movement{}, false
	}
	return found[0], true
}

// firstProvisionalWithKey primer registro local pendiente de confirmación (Pending o Sent)
// con la clave dada, en orden de llegada. Cada remoto empareja como mucho un local.
func firstProvisionalWithKey(l *inventory.Ledger, key string) (entity.Movement, bool) {
	candidates := l.Filter(func(m entity.Movement) bool {
		return awaitingAck(m) && MovementKey(m) == key
	})
	if len(candidates) == 0 {
		return entity.Movement{}, false
	}
	return candidates[0], true
}

func affected(before, after entity.Movement) []string {
	a, b := before.ProductKey(), after.ProductKey()
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}
