package entity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

var now = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func request(typ entity.MovementType, qty string) entity.MovementRequest {
	return entity.MovementRequest{
		Type:     typ,
		Product:  entity.Product{Name: " Farina 00 ", Category: "farine"},
		Quantity: decimal.RequireFromString(qty),
		Unit:     "kg",
	}
}

func TestNewMovement_ValoresPorDefecto(t *testing.T) {
	req := request(entity.MovementTypeCarico, "10")
	req.UnitPrice = decimal.RequireFromString("0.80")
	m, err := entity.NewMovement(req, now)
	require.NoError(t, err)

	assert.Equal(t, "Farina 00", m.Product.Name)
	assert.Equal(t, now, m.Timestamp)
	assert.Equal(t, entity.OriginLocal, m.Origin)
	assert.Equal(t, entity.SyncStatusPending, m.SyncStatus)
	assert.True(t, m.MovementValue.Equal(decimal.RequireFromString("8")))
	assert.True(t, m.IsProvisional())
}

func TestNewMovement_ReglasPorTipo(t *testing.T) {
	cases := []struct {
		name string
		typ  entity.MovementType
		qty  string
		ok   bool
	}{
		{"carico positivo", entity.MovementTypeCarico, "1", true},
		{"carico cero", entity.MovementTypeCarico, "0", false},
		{"scarico negativo", entity.MovementTypeScarico, "-1", false},
		{"rettifica negativa", entity.MovementTypeRettifica, "-3", true},
		{"rettifica cero", entity.MovementTypeRettifica, "0", false},
		{"inventario cero", entity.MovementTypeInventario, "0", true},
		{"inventario negativo", entity.MovementTypeInventario, "-1", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := entity.NewMovement(request(c.typ, c.qty), now)
			if c.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestNewMovement_TipoDesconocido(t *testing.T) {
	_, err := entity.NewMovement(request("reso", "1"), now)
	var typeErr *domain.InvalidTypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "reso", typeErr.Type)
}

func TestNewMovement_SinProductoNiPrecioNegativo(t *testing.T) {
	req := request(entity.MovementTypeCarico, "1")
	req.Product.Name = "   "
	_, err := entity.NewMovement(req, now)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	req = request(entity.MovementTypeCarico, "1")
	req.UnitPrice = decimal.RequireFromString("-1")
	_, err = entity.NewMovement(req, now)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestNewMovement_MaximoCuatroDecimales(t *testing.T) {
	_, err := entity.NewMovement(request(entity.MovementTypeCarico, "1.23456"), now)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "quantity", verr.Field)

	req := request(entity.MovementTypeCarico, "1")
	req.UnitPrice = decimal.RequireFromString("0.12345")
	_, err = entity.NewMovement(req, now)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "unitPrice", verr.Field)

	req = request(entity.MovementTypeCarico, "1.2340000")
	req.UnitPrice = decimal.RequireFromString("0.1234")
	_, err = entity.NewMovement(req, now)
	assert.NoError(t, err, "los ceros finales no cuentan como decimales")
}

func TestNewMovement_TimestampAMicrosegundos(t *testing.T) {
	req := request(entity.MovementTypeCarico, "1")
	req.Timestamp = now.Add(1234567 * time.Nanosecond)
	m, err := entity.NewMovement(req, now)
	require.NoError(t, err)
	assert.True(t, m.Timestamp.Equal(now.Add(1234*time.Microsecond)))
}

func TestProductKey_Normaliza(t *testing.T) {
	assert.Equal(t, "farina 00", entity.ProductKey("  Farina   00 "))
	assert.Equal(t, entity.ProductKey("CAFFÈ"), entity.ProductKey("caffè"))
	assert.Equal(t, entity.ProductKey("Straße"), entity.ProductKey("STRASSE"))
}

func TestStockPosition_ValorYBajoMinimo(t *testing.T) {
	p := entity.NewStockPosition("farina 00")
	p.QuantityOnHand = decimal.RequireFromString("4")
	p.WeightedAverageCost = decimal.RequireFromString("0.5")
	p.MinThreshold = decimal.RequireFromString("5")
	assert.True(t, p.StockValue().Equal(decimal.RequireFromString("2")))
	assert.True(t, p.BelowMin())
}
