package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
)

var _ repository.SyncMetaRepository = (*SyncMetaRepo)(nil)

// SyncMetaRepo marca de última sincronización y cola de estados por movimiento.
type SyncMetaRepo struct {
	q querier
}

// NewSyncMetaRepository construye el adaptador de syncMeta.
func NewSyncMetaRepository(q querier) *SyncMetaRepo {
	return &SyncMetaRepo{q: q}
}

// GetMeta devuelve la meta vacía si nunca se sincronizó.
func (r *SyncMetaRepo) GetMeta(ctx context.Context) (entity.SyncMeta, error) {
	var last sql.NullString
	err := r.q.QueryRowContext(ctx, `SELECT last_sync_at FROM sync_meta WHERE id = 1`).Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.SyncMeta{}, nil
		}
		return entity.SyncMeta{}, fmt.Errorf("get sync meta: %w", err)
	}
	at, err := parseNullTime(last)
	if err != nil {
		return entity.SyncMeta{}, err
	}
	return entity.SyncMeta{LastSyncAt: at}, nil
}

// SetLastSync registra la marca de la última reconciliación.
func (r *SyncMetaRepo) SetLastSync(ctx context.Context, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sync_meta (id, last_sync_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET last_sync_at = excluded.last_sync_at`, formatTime(at))
	if err != nil {
		return fmt.Errorf("set last sync: %w", err)
	}
	return nil
}

// UpsertState inserta o actualiza el estado de envío de un movimiento.
func (r *SyncMetaRepo) UpsertState(ctx context.Context, st entity.SyncState) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sync_queue (local_id, remote_id, status, attempts, last_error, sent_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			remote_id = excluded.remote_id, status = excluded.status, attempts = excluded.attempts,
			last_error = excluded.last_error, sent_at = excluded.sent_at, updated_at = excluded.updated_at`,
		st.LocalID, st.RemoteID, string(st.Status), st.Attempts, st.LastError, nullTime(st.SentAt), formatTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}

// DeleteState saca el movimiento de la cola.
func (r *SyncMetaRepo) DeleteState(ctx context.Context, localID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM sync_queue WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete sync state: %w", err)
	}
	return nil
}

// ListStates estados de la cola.
func (r *SyncMetaRepo) ListStates(ctx context.Context) ([]entity.SyncState, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT local_id, remote_id, status, attempts, last_error, sent_at, updated_at
		FROM sync_queue ORDER BY local_id`)
	if err != nil {
		return nil, fmt.Errorf("list sync states: %w", err)
	}
	defer rows.Close()

	var list []entity.SyncState
	for rows.Next() {
		var (
			st      entity.SyncState
			status  string
			sentAt  sql.NullString
			updated string
		)
		if err := rows.Scan(&st.LocalID, &st.RemoteID, &status, &st.Attempts, &st.LastError, &sentAt, &updated); err != nil {
			return nil, fmt.Errorf("scan sync state: %w", err)
		}
		st.Status = entity.SyncStatus(status)
		if st.SentAt, err = parseNullTime(sentAt); err != nil {
			return nil, err
		}
		if st.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		list = append(list, st)
	}
	return list, rows.Err()
}
