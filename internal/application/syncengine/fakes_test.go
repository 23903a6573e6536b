package syncengine_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/application/syncengine"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/repository"
)

// nopTx almacén que acepta todo y no guarda nada.
type nopTx struct{}

func (nopTx) Run(_ context.Context, fn func(repository.MovementRepository, repository.StockPositionRepository, repository.SyncMetaRepository) error) error {
	r := nopRepos{}
	return fn(r, r, r)
}

type nopRepos struct{}

func (nopRepos) Save(context.Context, entity.Movement) error                { return nil }
func (nopRepos) Delete(context.Context, string) error                       { return nil }
func (nopRepos) ListAll(context.Context) ([]entity.Movement, error)         { return nil, nil }
func (nopRepos) Get(context.Context, string) (*entity.StockPosition, error) { return nil, nil }
func (nopRepos) Upsert(context.Context, entity.StockPosition) error         { return nil }
func (nopRepos) ReplaceAll(context.Context, []entity.StockPosition) error   { return nil }
func (nopRepos) List(context.Context) ([]entity.StockPosition, error)       { return nil, nil }
func (nopRepos) GetMeta(context.Context) (entity.SyncMeta, error)           { return entity.SyncMeta{}, nil }
func (nopRepos) SetLastSync(context.Context, time.Time) error               { return nil }
func (nopRepos) UpsertState(context.Context, entity.SyncState) error        { return nil }
func (nopRepos) DeleteState(context.Context, string) error                  { return nil }
func (nopRepos) ListStates(context.Context) ([]entity.SyncState, error)     { return nil, nil }

var errDial = errors.New("connection refused")

// fakeChannel canal en memoria; los tests inyectan eventos con push.
type fakeChannel struct {
	mu          sync.Mutex
	gen         uint64
	state       syncengine.ConnState
	failConnect int
	sendErr     error
	sent        []entity.Movement
	requests    int
	connects    int
	events      chan syncengine.Event
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		state:  syncengine.StateDisconnected,
		events: make(chan syncengine.Event, 16),
	}
}

func (f *fakeChannel) Connect(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.failConnect > 0 {
		f.failConnect--
		return 0, errDial
	}
	f.gen++
	f.state = syncengine.StateConnected
	return f.gen, nil
}

func (f *fakeChannel) SendMovement(_ context.Context, m entity.Movement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		err := f.sendErr
		f.sendErr = nil
		return err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeChannel) RequestInventory(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return nil
}

func (f *fakeChannel) Events() <-chan syncengine.Event { return f.events }

func (f *fakeChannel) State() syncengine.ConnState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = syncengine.StateDisconnected
	return nil
}

func (f *fakeChannel) push(ev syncengine.Event) { f.events <- ev }

func (f *fakeChannel) conn() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChannel) sentAt(i int) entity.Movement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[i]
}

func (f *fakeChannel) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeChannel) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}
