package syncengine

import (
	"context"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// ConnState estado observable del canal con la autoridad.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// EventKind tipo de evento recibido por el canal.
type EventKind int

const (
	EventDisconnected EventKind = iota
	EventInventoryUpdated
	EventMovementAdded
	EventMovementDeleted
	EventMovementRejected
)

func (k EventKind) String() string {
	switch k {
	case EventDisconnected:
		return "disconnected"
	case EventInventoryUpdated:
		return "inventory-updated"
	case EventMovementAdded:
		return "movement-added"
	case EventMovementDeleted:
		return "movement-deleted"
	case EventMovementRejected:
		return "movement-rejected"
	}
	return "unknown"
}

// Event mensaje entrante ya decodificado. Conn identifica la conexión que lo produjo:
// los eventos de una conexión anterior se descartan.
type Event struct {
	Kind     EventKind
	Conn     uint64
	Snapshot appinv.Snapshot
	Movement entity.Movement
	ID       string
	Reason   string
	Err      error
}

// Channel canal bidireccional con la autoridad (WebSocket en producción).
// Connect devuelve el número de conexión; cada reconexión lo incrementa.
type Channel interface {
	Connect(ctx context.Context) (uint64, error)
	SendMovement(ctx context.Context, m entity.Movement) error
	RequestInventory(ctx context.Context) error
	Events() <-chan Event
	State() ConnState
	Close() error
}
