package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LastMovement resumen del último movimiento aplicado a una posición.
type LastMovement struct {
	Timestamp time.Time
	Type      MovementType
	Quantity  decimal.Decimal
}

// StockPosition giacenza derivada de un producto. Se crea al primer movimiento y no se elimina
// aunque quede en cero. QuantityOnHand nunca es negativa.
type StockPosition struct {
	ProductKey          string
	ProductName         string
	Category            string
	Unit                string
	QuantityOnHand      decimal.Decimal
	WeightedAverageCost decimal.Decimal
	MinThreshold        decimal.Decimal
	OptimalThreshold    decimal.Decimal
	LastMovement        *LastMovement
	UpdatedAt           time.Time
}

// NewStockPosition posición vacía para la clave indicada.
func NewStockPosition(key string) StockPosition {
	return StockPosition{
		ProductKey:          key,
		QuantityOnHand:      decimal.Zero,
		WeightedAverageCost: decimal.Zero,
		MinThreshold:        decimal.Zero,
		OptimalThreshold:    decimal.Zero,
	}
}

// StockValue valor del inventario al costo promedio ponderado.
func (p StockPosition) StockValue() decimal.Decimal {
	return p.QuantityOnHand.Mul(p.WeightedAverageCost)
}

// BelowMin indica si la posición está por debajo de su umbral mínimo.
func (p StockPosition) BelowMin() bool {
	return p.QuantityOnHand.LessThan(p.MinThreshold)
}
