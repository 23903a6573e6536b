package dedup_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/dedup"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/internal/domain/inventory"
)

var t0 = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func carico(qty string, at time.Time) entity.Movement {
	return entity.Movement{
		Type:        entity.MovementTypeCarico,
		Product:     entity.Product{Name: "Farina 00", Category: "farine"},
		Quantity:    decimal.RequireFromString(qty),
		Unit:        "kg",
		UnitPrice:   decimal.RequireFromString("0.80"),
		DocumentRef: "DDT-12",
		Timestamp:   at,
		Origin:      entity.OriginLocal,
		SyncStatus:  entity.SyncStatusPending,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// MovementKey
// ─────────────────────────────────────────────────────────────────────────────

func TestMovementKey_IgualParaRegistrosEquivalentes(t *testing.T) {
	a := carico("10", t0)
	b := carico("10.00", t0.Add(300*time.Millisecond))
	b.Product.Name = "  FARINA   00 "
	b.UnitPrice = decimal.RequireFromString("0.8")
	assert.Equal(t, dedup.MovementKey(a), dedup.MovementKey(b))
}

func TestMovementKey_DifiereSiCambiaUnCampoDeLaClave(t *testing.T) {
	a := carico("10", t0)
	b := carico("10", t0)
	b.Lot = "L-7"
	c := carico("10", t0.Add(2*time.Second))
	assert.NotEqual(t, dedup.MovementKey(a), dedup.MovementKey(b))
	assert.NotEqual(t, dedup.MovementKey(a), dedup.MovementKey(c))
}

// ─────────────────────────────────────────────────────────────────────────────
// Resolver.Merge
// ─────────────────────────────────────────────────────────────────────────────

func TestMerge_EcoPorClaveReVinculaProvisional(t *testing.T) {
	l := inventory.NewLedger()
	local := carico("10", t0)
	stored, err := l.Append(&local)
	require.NoError(t, err)

	remote := carico("10", t0)
	remote.ID = "srv-1"
	res, err := dedup.NewResolver().Merge(l, remote)
	require.NoError(t, err)

	assert.Equal(t, dedup.ActionRebound, res.Action)
	assert.Equal(t, stored.ID, res.PreviousID)
	assert.Equal(t, stored.LocalID, res.Movement.LocalID)
	assert.Equal(t, "srv-1", res.Movement.ID)
	assert.Nil(t, res.Ambiguity)
	assert.Equal(t, 1, l.Len())
}

func TestMerge_EcoPorIdDelProvisional(t *testing.T) {
	l := inventory.NewLedger()
	local := carico("10", t0)
	stored, err := l.Append(&local)
	require.NoError(t, err)

	remote := stored
	res, err := dedup.NewResolver().Merge(l, remote)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionRebound, res.Action)
	assert.Equal(t, entity.SyncStatusSynced, res.Movement.SyncStatus)
	assert.Equal(t, 1, l.Len())
}

func TestMerge_EcoNormalizadoPorLaAutoridadSeReconocePorIdDerivado(t *testing.T) {
	l := inventory.NewLedger()
	local := carico("1.2345", t0.Add(400*time.Millisecond))
	stored, err := l.Append(&local)
	require.NoError(t, err)

	// La autoridad redondea la cantidad y trunca el timestamp: la clave ya no coincide.
	remote := carico("1.235", t0.Add(time.Second))
	remote.ID = entity.AuthoritativeID(stored.ID)
	require.NotEqual(t, dedup.MovementKey(stored), dedup.MovementKey(remote))

	res, err := dedup.NewResolver().Merge(l, remote)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionRebound, res.Action)
	assert.Equal(t, stored.LocalID, res.Movement.LocalID)
	assert.Equal(t, remote.ID, res.Movement.ID)
	assert.True(t, res.Movement.Quantity.Equal(decimal.RequireFromString("1.235")))
	assert.Equal(t, 1, l.Len())
}

func TestMerge_IdDerivadoNoEmparejaRegistrosYaConfirmados(t *testing.T) {
	l := inventory.NewLedger()
	local := carico("10", t0)
	stored, err := l.Append(&local)
	require.NoError(t, err)
	require.NoError(t, l.SetStatus(stored.LocalID, entity.SyncStatusFailed))

	remote := carico("3", t0.Add(time.Hour))
	remote.ID = entity.AuthoritativeID(stored.ID)
	res, err := dedup.NewResolver().Merge(l, remote)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionInserted, res.Action)
	assert.Equal(t, 2, l.Len())
}

func TestMerge_ReentregaEsDuplicadoSinEfecto(t *testing.T) {
	l := inventory.NewLedger()
	remote := carico("10", t0)
	remote.ID = "srv-1"
	r := dedup.NewResolver()

	first, err := r.Merge(l, remote)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionInserted, first.Action)

	second, err := r.Merge(l, remote)
	require.NoError(t, err)
	assert.Equal(t, dedup.ActionDuplicate, second.Action)
	assert.False(t, second.Changed())
	assert.Equal(t, 1, l.Len())
}

func TestMerge_AmbiguedadGanaLaAutoridad(t *testing.T) {
	l := inventory.NewLedger()
	local := carico("10", t0)
	local.Supplier = "Molino Rossi"
	_, err := l.Append(&local)
	require.NoError(t, err)

	remote := carico("10", t0)
	remote.ID = "srv-1"
	remote.Supplier = "Molino Bianchi"
	res, err := dedup.NewResolver().Merge(l, remote)
	require.NoError(t, err)

	require.NotNil(t, res.Ambiguity)
	assert.Contains(t, res.Ambiguity.Fields, "supplier")
	assert.True(t, errors.Is(res.Ambiguity, domain.ErrMergeAmbiguity))
	assert.Equal(t, "Molino Bianchi", res.Movement.Supplier)
}

func TestMerge_CadaRemotoEmparejaUnSoloLocal(t *testing.T) {
	l := inventory.NewLedger()
	for i := 0; i < 2; i++ {
		m := carico("10", t0)
		_, err := l.Append(&m)
		require.NoError(t, err)
	}
	remote := carico("10", t0)
	remote.ID = "srv-1"
	_, err := dedup.NewResolver().Merge(l, remote)
	require.NoError(t, err)

	synced := l.Filter(func(m entity.Movement) bool { return m.SyncStatus == entity.SyncStatusSynced })
	assert.Len(t, synced, 1)
	assert.Equal(t, 2, l.Len())
}

func TestMerge_SinIdEsInvalido(t *testing.T) {
	_, err := dedup.NewResolver().Merge(inventory.NewLedger(), carico("10", t0))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMerge_InsertadoCalculaValor(t *testing.T) {
	remote := carico("10", t0)
	remote.ID = "srv-9"
	res, err := dedup.NewResolver().Merge(inventory.NewLedger(), remote)
	require.NoError(t, err)
	assert.True(t, res.Movement.MovementValue.Equal(decimal.RequireFromString("8")))
	assert.Equal(t, entity.OriginRemote, res.Movement.Origin)
	assert.Equal(t, []string{"farina 00"}, res.AffectedKeys)
}
