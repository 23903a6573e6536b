package dedup

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// OrderLine línea de un pedido tal como llega desde el formulario de pedidos.
type OrderLine struct {
	Product  string
	Quantity decimal.Decimal
}

// OrderRef datos mínimos de un pedido para detectar envíos repetidos.
type OrderRef struct {
	CustomerName  string
	CustomerPhone string
	Date          time.Time
	Lines         []OrderLine
}

// OrderKey política de dedup de pedidos/clientes, independiente de MovementKey:
// identidad del cliente (teléfono si existe, si no nombre normalizado), día del pedido
// y líneas normalizadas sin importar su orden.
func OrderKey(o OrderRef) string {
	customer := digitsOnly(o.CustomerPhone)
	if customer == "" {
		customer = entity.ProductKey(o.CustomerName)
	}
	lines := make([]string, 0, len(o.Lines))
	for _, ln := range o.Lines {
		lines = append(lines, entity.ProductKey(ln.Product)+":"+ln.Quantity.String())
	}
	sort.Strings(lines)
	return strings.Join([]string{
		customer,
		o.Date.UTC().Format("2006-01-02"),
		strings.Join(lines, ","),
	}, "|")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
