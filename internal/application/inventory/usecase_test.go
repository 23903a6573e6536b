package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/dedup"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func req(typ entity.MovementType, product, qty, price string, at time.Time) entity.MovementRequest {
	return entity.MovementRequest{
		Type:      typ,
		Product:   entity.Product{Name: product, Category: "farine"},
		Quantity:  dec(qty),
		Unit:      "kg",
		UnitPrice: dec(price),
		Timestamp: at,
	}
}

type harness struct {
	svc        *appinv.Service
	store      *memStore
	dispatcher *recordingDispatcher
	monitor    *appinv.Monitor
}

func newHarness(t *testing.T, store *memStore, minThreshold string) *harness {
	t.Helper()
	d := &recordingDispatcher{}
	mon := appinv.NewMonitor(d, 16, logger.Nop())
	mon.Start(context.Background())
	svc := appinv.NewService(store, mon, appinv.Thresholds{Min: dec(minThreshold)}, logger.Nop())
	return &harness{svc: svc, store: store, dispatcher: d, monitor: mon}
}

// alerts detiene el monitor y devuelve todo lo entregado.
func (h *harness) alerts() []appinv.Notification {
	h.monitor.Stop()
	return h.dispatcher.all()
}

func TestSubmit_EjemploFarinaCompleto(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "20")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "100", "0.80", t0))
	require.NoError(t, err)
	pos, err := h.svc.Position("farina 00")
	require.NoError(t, err)
	assert.True(t, pos.QuantityOnHand.Equal(dec("100")))
	assert.True(t, pos.WeightedAverageCost.Equal(dec("0.80")))

	_, err = h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "50", "1.00", t0.Add(time.Hour)))
	require.NoError(t, err)
	pos, _ = h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("150")))
	assert.Equal(t, "0.8667", pos.WeightedAverageCost.StringFixed(4))

	_, err = h.svc.Submit(ctx, req(entity.MovementTypeScarico, "Farina 00", "130", "0", t0.Add(2*time.Hour)))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, req(entity.MovementTypeScarico, "Farina 00", "15", "0", t0.Add(3*time.Hour)))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, req(entity.MovementTypeScarico, "Farina 00", "1", "0", t0.Add(4*time.Hour)))
	require.NoError(t, err)

	pos, _ = h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("4")))
	assert.Equal(t, "0.8667", pos.WeightedAverageCost.StringFixed(4), "las salidas no cambian el costo promedio")

	alerts := h.alerts()
	require.Len(t, alerts, 1, "solo el cruce 20 -> 5 genera alerta")
	assert.Equal(t, entity.SeverityHigh, alerts[0].Severity)
	assert.True(t, alerts[0].QuantityOnHand.Equal(dec("5")))
	assert.Equal(t, "Farina 00", alerts[0].Product)
	assert.Equal(t, "kg", alerts[0].Unit)

	movs := h.svc.Movements(inventory.OrderArrival)
	require.Len(t, movs, 5)
	for _, m := range movs {
		assert.Equal(t, entity.SyncStatusPending, m.SyncStatus)
		assert.NotEmpty(t, m.LocalID)
	}
	assert.Len(t, h.store.movements, 5)
	assert.Len(t, h.store.states, 5)
}

func TestSubmit_ValidacionNoPersiste(t *testing.T) {
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.Submit(context.Background(), req(entity.MovementTypeCarico, "Farina 00", "0", "1", t0))
	require.Error(t, err)
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.Submit(context.Background(), req(entity.MovementTypeCarico, "  ", "1", "1", t0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.Submit(context.Background(), req("reso", "Farina 00", "1", "1", t0))
	assert.ErrorIs(t, err, domain.ErrInvalidType)

	assert.Empty(t, h.svc.Movements(inventory.OrderArrival))
	assert.Zero(t, h.store.runs)
}

func TestSubmit_FalloPersistenciaRestauraEstado(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := newHarness(t, store, "0")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Zucchero", "10", "2", t0))
	require.NoError(t, err)

	store.failNext = true
	_, err = h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Zucchero", "5", "2", t0.Add(time.Minute)))
	require.Error(t, err)

	assert.Len(t, h.svc.Movements(inventory.OrderArrival), 1)
	pos, err := h.svc.Position("zucchero")
	require.NoError(t, err)
	assert.True(t, pos.QuantityOnHand.Equal(dec("10")))
	assert.Len(t, store.movements, 1)
}

func TestSubmit_ScaricoNuncaNegativo(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Lievito", "3", "1", t0))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, req(entity.MovementTypeScarico, "Lievito", "10", "0", t0.Add(time.Minute)))
	require.NoError(t, err)

	pos, _ := h.svc.Position("Lievito")
	assert.True(t, pos.QuantityOnHand.IsZero())
}

func TestSubmit_MovimientoAtrasadoReproyecta(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeInventario, "Olio", "10", "0", t0.Add(2*time.Hour)))
	require.NoError(t, err)
	// carico anterior al conteo: el conteo absoluto posterior manda
	_, err = h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Olio", "5", "4", t0))
	require.NoError(t, err)

	pos, _ := h.svc.Position("Olio")
	assert.True(t, pos.QuantityOnHand.Equal(dec("10")))
	require.NotNil(t, pos.LastMovement)
	assert.Equal(t, entity.MovementTypeInventario, pos.LastMovement.Type)
}

func remoteFrom(m entity.Movement, id string) entity.Movement {
	r := m
	r.ID = id
	r.LocalID = ""
	r.Seq = 0
	r.Origin = entity.OriginRemote
	r.SyncStatus = entity.SyncStatusSynced
	return r
}

func TestMergeRemote_EcoReVinculaProvisional(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	local, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "100", "0.80", t0))
	require.NoError(t, err)
	require.NoError(t, h.svc.MarkSent(ctx, local.LocalID))

	res, err := h.svc.MergeRemote(ctx, remoteFrom(local, "srv-1"))
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionRebound, res.Action)
	assert.Equal(t, local.ID, res.PreviousID)

	movs := h.svc.Movements(inventory.OrderArrival)
	require.Len(t, movs, 1)
	assert.Equal(t, "srv-1", movs[0].ID)
	assert.Equal(t, local.LocalID, movs[0].LocalID)
	assert.Equal(t, entity.SyncStatusSynced, movs[0].SyncStatus)

	report := h.svc.SyncReport()
	assert.Equal(t, 1, report.Synced)
	assert.Zero(t, report.Pending+report.Sent)
	assert.Empty(t, h.store.states)

	pos, _ := h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("100")))
}

func TestMergeRemote_Idempotente(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	remote := entity.Movement{
		ID:        "srv-7",
		Type:      entity.MovementTypeCarico,
		Product:   entity.Product{Name: "Sale"},
		Quantity:  dec("4"),
		UnitPrice: dec("0.5"),
		Timestamp: t0,
	}
	first, err := h.svc.MergeRemote(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionInserted, first.Action)

	second, err := h.svc.MergeRemote(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionDuplicate, second.Action)
	assert.False(t, second.Changed())

	assert.Len(t, h.svc.Movements(inventory.OrderArrival), 1)
	pos, _ := h.svc.Position("sale")
	assert.True(t, pos.QuantityOnHand.Equal(dec("4")))
	assert.True(t, pos.WeightedAverageCost.Equal(dec("0.5")))
}

func TestMergeRemote_MovimientoAjenoDisparaAlerta(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "10")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Burro", "12", "6", t0))
	require.NoError(t, err)
	_, err = h.svc.MergeRemote(ctx, entity.Movement{
		ID: "srv-2", Type: entity.MovementTypeScarico, Product: entity.Product{Name: "burro"},
		Quantity: dec("12"), Timestamp: t0.Add(time.Hour),
	})
	require.NoError(t, err)

	alerts := h.alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, entity.SeverityUrgent, alerts[0].Severity)
}

func TestApplySnapshot_ConvergenciaUnSoloSynced(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	local, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "100", "0.80", t0))
	require.NoError(t, err)

	res, err := h.svc.ApplySnapshot(ctx, appinv.Snapshot{
		Full:      true,
		Movements: []entity.Movement{remoteFrom(local, "srv-1")},
		Positions: []entity.StockPosition{{
			ProductKey:          "farina 00",
			ProductName:         "Farina 00",
			QuantityOnHand:      dec("100"),
			WeightedAverageCost: dec("0.80"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rebound)

	movs := h.svc.Movements(inventory.OrderArrival)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.SyncStatusSynced, movs[0].SyncStatus)
	assert.Equal(t, "srv-1", movs[0].ID)

	pos, _ := h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("100")), "el movimiento confirmado no se aplica dos veces")
	assert.NotNil(t, h.svc.SyncReport().LastSyncAt)
	assert.NotNil(t, h.store.lastSync)
}

func TestApplySnapshot_EcoPerdidoConFormaDeLaAutoridad(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	at := t0.Add(499 * time.Millisecond)
	local, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "1.2345", "0.80", at))
	require.NoError(t, err)
	require.NoError(t, h.svc.MarkSent(ctx, local.LocalID))
	_, err = h.svc.ResetSent(ctx)
	require.NoError(t, err)

	// La confirmación se perdió y la autoridad devuelve el registro con otro timestamp.
	stored := remoteFrom(local, entity.AuthoritativeID(local.ID))
	stored.Timestamp = t0.Add(500 * time.Millisecond)
	stored.Quantity = dec("1.2345000")
	require.NotEqual(t, dedup.MovementKey(local), dedup.MovementKey(stored))

	res, err := h.svc.ApplySnapshot(ctx, appinv.Snapshot{
		Full:      true,
		Movements: []entity.Movement{stored},
		Positions: []entity.StockPosition{{
			ProductKey:          "farina 00",
			ProductName:         "Farina 00",
			QuantityOnHand:      dec("1.2345"),
			WeightedAverageCost: dec("0.80"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rebound)
	assert.Zero(t, res.Inserted)

	movs := h.svc.Movements(inventory.OrderArrival)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.SyncStatusSynced, movs[0].SyncStatus)
	assert.Equal(t, local.LocalID, movs[0].LocalID)
	assert.Empty(t, h.svc.PendingMovements())

	pos, _ := h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("1.2345")))
}

func TestSubmit_RechazaMasDecimalesDeLosQueGuardaLaAutoridad(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "1.23456", "0.80", t0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, h.svc.Movements(inventory.OrderArrival))
}

func TestApplySnapshot_ReaplicaPendientesSobreAutoritativo(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeScarico, "Farina 00", "10", "0", t0))
	require.NoError(t, err)

	_, err = h.svc.ApplySnapshot(ctx, appinv.Snapshot{
		Full:      true,
		Movements: []entity.Movement{},
		Positions: []entity.StockPosition{{ProductKey: "farina 00", ProductName: "Farina 00", QuantityOnHand: dec("100")}},
	})
	require.NoError(t, err)

	pos, _ := h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("90")))
	require.Len(t, h.svc.PendingMovements(), 1, "el pendiente sin pareja se conserva para reenviarlo")
}

func TestApplySnapshot_CompletoEliminaConfirmadosAusentes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.MergeRemote(ctx, entity.Movement{
		ID: "srv-3", Type: entity.MovementTypeCarico, Product: entity.Product{Name: "Uova"},
		Quantity: dec("30"), Timestamp: t0,
	})
	require.NoError(t, err)

	res, err := h.svc.ApplySnapshot(ctx, appinv.Snapshot{Full: true, Movements: []entity.Movement{}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Empty(t, h.svc.Movements(inventory.OrderArrival))

	pos, err := h.svc.Position("Uova")
	require.NoError(t, err, "la posición no se elimina aunque quede en cero")
	assert.True(t, pos.QuantityOnHand.IsZero())
}

func TestApplySnapshot_CompletoHaceComprobacionDeNivel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "10")

	_, err := h.svc.ApplySnapshot(ctx, appinv.Snapshot{
		Full: true,
		Positions: []entity.StockPosition{
			{ProductKey: "farina 00", ProductName: "Farina 00", QuantityOnHand: dec("3"), MinThreshold: dec("10")},
			{ProductKey: "sale", ProductName: "Sale", QuantityOnHand: dec("50"), MinThreshold: dec("10")},
		},
	})
	require.NoError(t, err)

	alerts := h.alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "farina 00", alerts[0].ProductKey)
	assert.Equal(t, entity.SeverityHigh, alerts[0].Severity)
}

func TestApplySnapshot_ParcialUsaReglaDeCruce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "10")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Sale", "20", "1", t0))
	require.NoError(t, err)
	require.NoError(t, h.svc.MarkSent(ctx, h.svc.Movements(inventory.OrderArrival)[0].LocalID))
	_, err = h.svc.MergeRemote(ctx, remoteFrom(h.svc.Movements(inventory.OrderArrival)[0], "srv-10"))
	require.NoError(t, err)

	_, err = h.svc.ApplySnapshot(ctx, appinv.Snapshot{
		Positions: []entity.StockPosition{{ProductKey: "sale", QuantityOnHand: dec("8")}},
	})
	require.NoError(t, err)
	pos, _ := h.svc.Position("Sale")
	assert.True(t, pos.QuantityOnHand.Equal(dec("8")))
	assert.True(t, pos.MinThreshold.Equal(dec("10")), "los umbrales locales se conservan")

	_, err = h.svc.ApplySnapshot(ctx, appinv.Snapshot{
		Positions: []entity.StockPosition{{ProductKey: "sale", QuantityOnHand: dec("7")}},
	})
	require.NoError(t, err)

	assert.Len(t, h.alerts(), 1)
}

func TestSyncStates_EnvioExpiraYVuelveAPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	m, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Sale", "1", "1", t0))
	require.NoError(t, err)
	require.NoError(t, h.svc.MarkSent(ctx, m.LocalID))
	assert.Empty(t, h.svc.PendingMovements())
	assert.Equal(t, 1, h.svc.SyncReport().Sent)

	err = h.svc.MarkSent(ctx, m.LocalID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	reverted, err := h.svc.ExpireSent(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, reverted, "todavía dentro del plazo")

	reverted, err = h.svc.ExpireSent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{m.LocalID}, reverted)
	assert.Len(t, h.svc.PendingMovements(), 1)

	st := h.store.states[m.LocalID]
	assert.Equal(t, entity.SyncStatusPending, st.Status)
	assert.Equal(t, 1, st.Attempts)
	assert.NotEmpty(t, st.LastError)
}

func TestSyncStates_DesconexionDevuelveEnviados(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	a, _ := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Sale", "1", "1", t0))
	b, _ := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Sale", "2", "1", t0.Add(time.Second)))
	require.NoError(t, h.svc.MarkSent(ctx, a.LocalID))
	require.NoError(t, h.svc.MarkSent(ctx, b.LocalID))

	reverted, err := h.svc.ResetSent(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.LocalID, b.LocalID}, reverted)

	pending := h.svc.PendingMovements()
	require.Len(t, pending, 2)
	assert.Equal(t, a.LocalID, pending[0].LocalID, "orden de llegada")
}

func TestMarkFailed_RechazadoNoCuentaNiSeReenvia(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	m, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Lievito", "10", "1", t0))
	require.NoError(t, err)
	require.NoError(t, h.svc.MarkSent(ctx, m.LocalID))
	require.NoError(t, h.svc.MarkFailed(ctx, m.ID, "producto desconocido"))

	got, err := h.svc.Movement(m.LocalID)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusFailed, got.SyncStatus)
	assert.Empty(t, h.svc.PendingMovements())
	assert.Equal(t, 1, h.svc.SyncReport().Failed)

	pos, _ := h.svc.Position("Lievito")
	assert.True(t, pos.QuantityOnHand.IsZero())
	assert.Equal(t, "producto desconocido", h.store.states[m.LocalID].LastError)
}

func TestReplacePending_SoloAntesDeEnviar(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	m, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "10", "1", t0))
	require.NoError(t, err)

	fixed, err := h.svc.ReplacePending(ctx, m.LocalID, req(entity.MovementTypeCarico, "Farina 00", "12", "1", t0))
	require.NoError(t, err)
	assert.Equal(t, m.LocalID, fixed.LocalID)
	assert.Equal(t, m.Seq, fixed.Seq)
	pos, _ := h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("12")))

	require.NoError(t, h.svc.MarkSent(ctx, m.LocalID))
	_, err = h.svc.ReplacePending(ctx, m.LocalID, req(entity.MovementTypeCarico, "Farina 00", "13", "1", t0))
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = h.svc.ReplacePending(ctx, "loc-inexistente", req(entity.MovementTypeCarico, "Farina 00", "13", "1", t0))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReplacePending_TrasEnvioSinConfirmarNoSeCorrige(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	m, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "10", "1", t0))
	require.NoError(t, err)
	require.NoError(t, h.svc.MarkSent(ctx, m.LocalID))
	reverted, err := h.svc.ExpireSent(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{m.LocalID}, reverted)

	// Vuelve a Pending, pero la autoridad pudo haberlo guardado.
	_, err = h.svc.ReplacePending(ctx, m.LocalID, req(entity.MovementTypeCarico, "Farina 00", "13", "1", t0.Add(time.Minute)))
	assert.ErrorIs(t, err, domain.ErrConflict)

	stored := remoteFrom(m, entity.AuthoritativeID(m.ID))
	res, err := h.svc.MergeRemote(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionRebound, res.Action)
	res, err = h.svc.MergeRemote(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionDuplicate, res.Action)

	movs := h.svc.Movements(inventory.OrderArrival)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.SyncStatusSynced, movs[0].SyncStatus)
	pos, _ := h.svc.Position("Farina 00")
	assert.True(t, pos.QuantityOnHand.Equal(dec("10")))
}

func TestRemoveMovement_Compensatorio(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.MergeRemote(ctx, entity.Movement{
		ID: "srv-4", Type: entity.MovementTypeCarico, Product: entity.Product{Name: "Sale"},
		Quantity: dec("5"), Timestamp: t0,
	})
	require.NoError(t, err)

	removed, err := h.svc.RemoveMovement(ctx, "srv-4")
	require.NoError(t, err)
	assert.Equal(t, "srv-4", removed.ID)
	pos, _ := h.svc.Position("Sale")
	assert.True(t, pos.QuantityOnHand.IsZero())
	assert.Empty(t, h.store.movements)

	_, err = h.svc.RemoveMovement(ctx, "srv-4")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoad_ArranqueEnFrio(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	first := newHarness(t, store, "50")

	a, err := first.svc.Submit(ctx, req(entity.MovementTypeCarico, "Farina 00", "100", "0.80", t0))
	require.NoError(t, err)
	_, err = first.svc.Submit(ctx, req(entity.MovementTypeScarico, "Farina 00", "70", "0", t0.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, first.svc.MarkSent(ctx, a.LocalID))
	first.alerts()

	second := newHarness(t, store, "50")
	require.NoError(t, second.svc.Load(ctx))

	movs := second.svc.Movements(inventory.OrderArrival)
	require.Len(t, movs, 2)
	assert.Equal(t, entity.SyncStatusPending, movs[0].SyncStatus, "Sent vuelve a Pending al reiniciar")
	assert.Len(t, second.svc.PendingMovements(), 2)

	pos, err := second.svc.Position("Farina 00")
	require.NoError(t, err)
	assert.True(t, pos.QuantityOnHand.Equal(dec("30")))

	alerts := second.alerts()
	require.Len(t, alerts, 1, "comprobación de nivel en frío")
	assert.Equal(t, entity.SeverityMedium, alerts[0].Severity)

	// nuevos movimientos continúan la secuencia
	c, err := second.svc.Submit(ctx, req(entity.MovementTypeCarico, "Sale", "1", "1", t0.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Seq)
}

func TestSetThresholds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Sale", "5", "1", t0))
	require.NoError(t, err)

	_, err = h.svc.SetThresholds(ctx, "Sale", dec("-1"), dec("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.svc.SetThresholds(ctx, "Sale", dec("10"), dec("5"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.svc.SetThresholds(ctx, "Pepe", dec("1"), dec("2"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pos, err := h.svc.SetThresholds(ctx, "sale", dec("10"), dec("40"))
	require.NoError(t, err)
	assert.True(t, pos.MinThreshold.Equal(dec("10")))
	assert.True(t, h.store.positions["sale"].OptimalThreshold.Equal(dec("40")))

	list := h.svc.GenerateReplenishmentList()
	require.Len(t, list, 1)
	assert.True(t, list[0].SuggestedOrderQty.Equal(dec("35")))
	assert.Equal(t, 1, list[0].Priority)
	assert.Equal(t, string(entity.SeverityMedium), list[0].Severity)

	alerts := h.alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, entity.SeverityMedium, alerts[0].Severity)
}

func TestGenerateReplenishmentList_GravedadPorProducto(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newMemStore(), "0")

	_, err := h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Burro", "5", "6", t0))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, req(entity.MovementTypeScarico, "Burro", "5", "0", t0.Add(time.Minute)))
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx, req(entity.MovementTypeCarico, "Zucchero", "2", "1", t0))
	require.NoError(t, err)
	for _, name := range []string{"Burro", "Zucchero"} {
		_, err = h.svc.SetThresholds(ctx, name, dec("10"), dec("20"))
		require.NoError(t, err)
	}

	list := h.svc.GenerateReplenishmentList()
	require.Len(t, list, 2)
	assert.Equal(t, "burro", list[0].ProductKey)
	assert.Equal(t, string(entity.SeverityUrgent), list[0].Severity)
	assert.Equal(t, "zucchero", list[1].ProductKey)
	assert.Equal(t, string(entity.SeverityHigh), list[1].Severity)
	assert.True(t, list[1].SuggestedOrderQty.Equal(dec("18")))
}

func TestMonitor_ColaLlenaNoBloquea(t *testing.T) {
	d := &blockingDispatcher{release: make(chan struct{})}
	mon := appinv.NewMonitor(d, 1, logger.Nop())
	mon.Start(context.Background())

	prev := entity.StockPosition{ProductKey: "sale", QuantityOnHand: dec("10"), MinThreshold: dec("5")}
	next := prev
	next.QuantityOnHand = dec("1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			mon.Edge(prev, next)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publicar alertas bloqueó el camino del movimiento")
	}
	close(d.release)
	mon.Stop()
}
