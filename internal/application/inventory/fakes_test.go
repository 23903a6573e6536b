package inventory_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
)

// memStore almacén en memoria que imita la semántica transaccional del TxRunner:
// los cambios de fn solo se aplican si fn no devuelve error.
type memStore struct {
	mu        sync.Mutex
	movements map[string]entity.Movement
	positions map[string]entity.StockPosition
	states    map[string]entity.SyncState
	lastSync  *time.Time
	failNext  bool
	runs      int
}

func newMemStore() *memStore {
	return &memStore{
		movements: make(map[string]entity.Movement),
		positions: make(map[string]entity.StockPosition),
		states:    make(map[string]entity.SyncState),
	}
}

var errStore = errors.New("disco lleno")

var _ appinv.TxRunner = (*memStore)(nil)

func (s *memStore) Run(ctx context.Context, fn func(repository.MovementRepository, repository.StockPositionRepository, repository.SyncMetaRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	tx := &memTx{
		movements: cloneMap(s.movements),
		positions: cloneMap(s.positions),
		states:    cloneMap(s.states),
		lastSync:  s.lastSync,
	}
	if err := fn(tx, tx, tx); err != nil {
		return err
	}
	if s.failNext {
		s.failNext = false
		return errStore
	}
	s.movements, s.positions, s.states, s.lastSync = tx.movements, tx.positions, tx.states, tx.lastSync
	return nil
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memTx struct {
	movements map[string]entity.Movement
	positions map[string]entity.StockPosition
	states    map[string]entity.SyncState
	lastSync  *time.Time
}

func (t *memTx) Save(_ context.Context, m entity.Movement) error {
	t.movements[m.LocalID] = m
	return nil
}

func (t *memTx) Delete(_ context.Context, localID string) error {
	delete(t.movements, localID)
	return nil
}

func (t *memTx) ListAll(context.Context) ([]entity.Movement, error) {
	out := make([]entity.Movement, 0, len(t.movements))
	for _, m := range t.movements {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (t *memTx) Get(_ context.Context, key string) (*entity.StockPosition, error) {
	p, ok := t.positions[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) Upsert(_ context.Context, pos entity.StockPosition) error {
	t.positions[pos.ProductKey] = pos
	return nil
}

func (t *memTx) ReplaceAll(_ context.Context, positions []entity.StockPosition) error {
	t.positions = make(map[string]entity.StockPosition, len(positions))
	for _, p := range positions {
		t.positions[p.ProductKey] = p
	}
	return nil
}

func (t *memTx) List(context.Context) ([]entity.StockPosition, error) {
	out := make([]entity.StockPosition, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out, nil
}

func (t *memTx) GetMeta(context.Context) (entity.SyncMeta, error) {
	return entity.SyncMeta{LastSyncAt: t.lastSync}, nil
}

func (t *memTx) SetLastSync(_ context.Context, at time.Time) error {
	t.lastSync = &at
	return nil
}

func (t *memTx) UpsertState(_ context.Context, st entity.SyncState) error {
	t.states[st.LocalID] = st
	return nil
}

func (t *memTx) DeleteState(_ context.Context, localID string) error {
	delete(t.states, localID)
	return nil
}

func (t *memTx) ListStates(context.Context) ([]entity.SyncState, error) {
	out := make([]entity.SyncState, 0, len(t.states))
	for _, st := range t.states {
		out = append(out, st)
	}
	return out, nil
}

// recordingDispatcher guarda las notificaciones entregadas.
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []appinv.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n appinv.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) all() []appinv.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]appinv.Notification, len(d.sent))
	copy(out, d.sent)
	return out
}

// blockingDispatcher no devuelve hasta que se cierra release.
type blockingDispatcher struct {
	release chan struct{}
}

func (d *blockingDispatcher) Dispatch(ctx context.Context, _ appinv.Notification) error {
	select {
	case <-d.release:
	case <-ctx.Done():
	}
	return nil
}
