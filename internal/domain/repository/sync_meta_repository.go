package repository

import (
	"context"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// SyncMetaRepository puerto para syncMeta: marca de última sincronización y cola de estados por movimiento.
type SyncMetaRepository interface {
	GetMeta(ctx context.Context) (entity.SyncMeta, error)
	SetLastSync(ctx context.Context, at time.Time) error
	UpsertState(ctx context.Context, st entity.SyncState) error
	DeleteState(ctx context.Context, localID string) error
	ListStates(ctx context.Context) ([]entity.SyncState, error)
}
