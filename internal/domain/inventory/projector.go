package inventory

import (
	"sort"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Project aplica un movimiento a una posición y devuelve la nueva posición (función pura).
//   - carico: suma cantidad; recalcula el promedio ponderado si trae precio positivo.
//   - scarico: resta cantidad con piso en cero.
//   - inventario: fija la cantidad contada; el promedio solo cambia si se informa un precio.
//   - rettifica: delta con signo, con piso en cero.
func Project(pos entity.StockPosition, m entity.Movement) entity.StockPosition {
	next := pos
	if next.ProductKey == "" {
		next.ProductKey = m.ProductKey()
	}
	if next.ProductName == "" {
		next.ProductName = m.Product.Name
	}
	if m.Product.Category != "" {
		next.Category = m.Product.Category
	}
	if m.Unit != "" {
		next.Unit = m.Unit
	}

	qty := pos.QuantityOnHand
	switch m.Type {
	case entity.MovementTypeCarico:
		newQty := qty.Add(m.Quantity)
		if m.UnitPrice.IsPositive() && newQty.IsPositive() {
			next.WeightedAverageCost = CostCalculator(clampZero(qty), pos.WeightedAverageCost, m.Quantity, m.UnitPrice)
		}
		next.QuantityOnHand = clampZero(newQty)
	case entity.MovementTypeScarico:
		next.QuantityOnHand = clampZero(qty.Sub(m.Quantity))
	case entity.MovementTypeInventario:
		next.QuantityOnHand = clampZero(m.Quantity)
		if m.UnitPrice.IsPositive() {
			next.WeightedAverageCost = m.UnitPrice
		}
	case entity.MovementTypeRettifica:
		next.QuantityOnHand = clampZero(qty.Add(m.Quantity))
	}

	next.LastMovement = &entity.LastMovement{
		Timestamp: m.Timestamp,
		Type:      m.Type,
		Quantity:  m.Quantity,
	}
	next.UpdatedAt = m.Timestamp
	return next
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SortChronological ordena por timestamp; empates por orden de llegada y luego por ID,
// de modo que la misma secuencia produzca siempre el mismo resultado.
func SortChronological(movs []entity.Movement) {
	sort.SliceStable(movs, func(i, j int) bool {
		a, b := movs[i], movs[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.LocalID < b.LocalID
	})
}

// Replay deriva las posiciones desde cero plegando los movimientos en orden cronológico.
// base aporta los umbrales configurados por producto (puede ser nil); las cantidades y costos de base se ignoran.
func Replay(movs []entity.Movement, base map[string]entity.StockPosition) map[string]entity.StockPosition {
	ordered := make([]entity.Movement, len(movs))
	copy(ordered, movs)
	SortChronological(ordered)

	out := make(map[string]entity.StockPosition)
	for _, m := range ordered {
		key := m.ProductKey()
		pos, ok := out[key]
		if !ok {
			pos = seedPosition(key, base)
		}
		out[key] = Project(pos, m)
	}
	return out
}

// ReplayProduct re-deriva la posición de un único producto (re-proyección parcial tras un merge).
func ReplayProduct(key string, movs []entity.Movement, seed entity.StockPosition) entity.StockPosition {
	ordered := make([]entity.Movement, 0, len(movs))
	for _, m := range movs {
		if m.ProductKey() == key {
			ordered = append(ordered, m)
		}
	}
	SortChronological(ordered)
	pos := resetPosition(key, seed)
	for _, m := range ordered {
		pos = Project(pos, m)
	}
	return pos
}

func seedPosition(key string, base map[string]entity.StockPosition) entity.StockPosition {
	if b, ok := base[key]; ok {
		return resetPosition(key, b)
	}
	return entity.NewStockPosition(key)
}

// resetPosition conserva identidad y umbrales, y vuelve cantidad y costo a cero.
func resetPosition(key string, seed entity.StockPosition) entity.StockPosition {
	pos := entity.NewStockPosition(key)
	pos.ProductName = seed.ProductName
	pos.Category = seed.Category
	pos.Unit = seed.Unit
	pos.MinThreshold = seed.MinThreshold
	pos.OptimalThreshold = seed.OptimalThreshold
	return pos
}
