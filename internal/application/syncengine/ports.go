package syncengine

import (
	"context"
	"time"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain/dedup"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// Store operaciones del libro local que usa el coordinador. Lo implementa *inventory.Service.
type Store interface {
	PendingMovements() []entity.Movement
	PendingSignal() <-chan struct{}
	MarkSent(ctx context.Context, localID string) error
	MarkPending(ctx context.Context, localID string, cause error) error
	ResetSent(ctx context.Context) ([]string, error)
	ExpireSent(ctx context.Context, timeout time.Duration) ([]string, error)
	MarkFailed(ctx context.Context, id, reason string) error
	MergeRemote(ctx context.Context, remote entity.Movement) (dedup.Resolution, error)
	RemoveMovement(ctx context.Context, id string) (entity.Movement, error)
	ApplySnapshot(ctx context.Context, snap appinv.Snapshot) (appinv.SnapshotResult, error)
	SyncReport() appinv.SyncReport
}

var _ Store = (*appinv.Service)(nil)

// Metrics contadores del ciclo de sincronización.
type Metrics interface {
	ConnectionState(state ConnState)
	MovementSent()
	AckTimeouts(n int)
	Reconnect()
	SnapshotApplied(full bool)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionState(ConnState) {}
func (nopMetrics) MovementSent()             {}
func (nopMetrics) AckTimeouts(int)           {}
func (nopMetrics) Reconnect()                {}
func (nopMetrics) SnapshotApplied(bool)      {}
