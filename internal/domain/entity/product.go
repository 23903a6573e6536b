package entity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Product identidad descriptiva del artículo movido (p. ej. "Farina 00", categoría "farine").
type Product struct {
	Name     string
	Category string
}

var folder = cases.Fold()

// ProductKey normaliza el nombre del producto para usarlo como identidad:
// NFC, plegado de mayúsculas Unicode y espacios colapsados. "  Farina  00" y "farina 00" coinciden.
func ProductKey(name string) string {
	n := norm.NFC.String(strings.TrimSpace(name))
	n = strings.Join(strings.Fields(n), " ")
	return folder.String(n)
}
