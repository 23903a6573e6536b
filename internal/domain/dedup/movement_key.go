package dedup

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// TimestampResolution granularidad con la que se redondea el timestamp en la clave.
const TimestampResolution = time.Second

// MovementKey clave compuesta y determinista de un movimiento lógico, independiente del origen:
// tipo, producto, cantidad, precio unitario, timestamp redondeado, documento y lote.
// Dos movimientos son duplicados solo si coinciden todos estos campos.
func MovementKey(m entity.Movement) string {
	return strings.Join([]string{
		string(m.Type),
		m.ProductKey(),
		m.Quantity.String(),
		m.UnitPrice.String(),
		fmt.Sprintf("%d", m.Timestamp.UTC().Round(TimestampResolution).Unix()),
		strings.TrimSpace(m.DocumentRef),
		strings.TrimSpace(m.Lot),
	}, "|")
}

// diffFields campos fuera de la clave en los que difieren dos registros con la misma clave.
func diffFields(a, b entity.Movement) []string {
	var out []string
	if a.Product.Category != b.Product.Category {
		out = append(out, "product.category")
	}
	if a.Unit != b.Unit {
		out = append(out, "unit")
	}
	if a.Supplier != b.Supplier {
		out = append(out, "supplier")
	}
	if a.Note != b.Note {
		out = append(out, "note")
	}
	if !sameExpiry(a.Expiry, b.Expiry) {
		out = append(out, "expiry")
	}
	if MovementKey(a) != MovementKey(b) {
		out = append(out, "key")
	}
	return out
}

func sameExpiry(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
