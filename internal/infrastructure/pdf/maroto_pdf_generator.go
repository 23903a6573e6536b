// Package pdf genera la orden de reposición imprimible del puesto a partir de la
// lista de productos bajo mínimo.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Puesto + título     │  Fecha + N° de líneas        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Prio | Producto | Actual | Mín | Pedir | Costo est.  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTAL: costo estimado de la orden                           │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/magazzino-sync/internal/application/dto"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorUrgent  = &props.Color{Red: 170, Green: 20, Blue: 20}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator genera la orden de reposición con Maroto v2.
type MarotoPDFGenerator struct {
	station string
	now     func() time.Time
}

// NewMarotoPDFGenerator construye el generador para el puesto indicado.
func NewMarotoPDFGenerator(station string) *MarotoPDFGenerator {
	return &MarotoPDFGenerator{station: station, now: time.Now}
}

// GenerateReplenishmentPDF genera el PDF y devuelve sus bytes. Una lista vacía produce
// un documento con la leyenda "sin productos bajo mínimo".
func (g *MarotoPDFGenerator) GenerateReplenishmentPDF(_ context.Context, items []dto.ReplenishmentSuggestionDTO) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Orden de reposición", true).
		WithAuthor(g.station, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(g.station, g.now(), len(items)))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	if len(items) == 0 {
		m.AddRows(row.New(12).Add(col.New(12).Add(
			text.New("Sin productos bajo mínimo.", props.Text{
				Size: 10, Align: align.Center, Color: colorGray, Top: 3,
			}),
		)))
	} else {
		m.AddRows(tableHeaderRow())
		m.AddRows(tableDetailRows(items)...)
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(totalRow(items))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(station string, at time.Time, lines int) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New("ORDEN DE REPOSICIÓN", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Puesto: "+nonEmpty(station, "-"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("Fecha: "+at.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 2, Color: colorGray,
			}),
			text.New(fmt.Sprintf("%d productos", lines), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 8,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Prio", 1, align.Center),
		h("Producto", 4, align.Left),
		h("Actual", 2, align.Right),
		h("Mínimo", 1, align.Right),
		h("Pedir", 2, align.Right),
		h("Costo est.", 2, align.Right),
	)
}

// tableDetailRows una fila por producto; las urgencias en rojo.
func tableDetailRows(items []dto.ReplenishmentSuggestionDTO) []core.Row {
	out := make([]core.Row, 0, len(items))
	for _, it := range items {
		color := (*props.Color)(nil)
		if it.Severity == "urgent" {
			color = colorUrgent
		}
		cell := func(s string, a align.Type) core.Component {
			return text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1, Color: color})
		}
		out = append(out, row.New(7).Add(
			col.New(1).Add(cell(fmt.Sprintf("%d", it.Priority), align.Center)),
			col.New(4).Add(cell(it.ProductName, align.Left)),
			col.New(2).Add(cell(withUnit(it.CurrentStock, it.Unit), align.Right)),
			col.New(1).Add(cell(it.MinThreshold.String(), align.Right)),
			col.New(2).Add(cell(withUnit(it.SuggestedOrderQty, it.Unit), align.Right)),
			col.New(2).Add(cell(formatMoney(it.EstimatedOrderCost), align.Right)),
		))
	}
	return out
}

func totalRow(items []dto.ReplenishmentSuggestionDTO) core.Row {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.EstimatedOrderCost)
	}
	return row.New(10).Add(
		col.New(6),
		col.New(3).Add(text.New("TOTAL ESTIMADO:", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2, Right: 2,
		})),
		col.New(3).Add(text.New(formatMoney(total), props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2, Right: 1,
		})),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func withUnit(q decimal.Decimal, unit string) string {
	if unit == "" {
		return q.String()
	}
	return q.String() + " " + unit
}

// formatMoney dos decimales con punto de miles y coma decimal.
// Ej: 1234.5 → "1.234,50"
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return sign + string(buf) + "," + frac
}
