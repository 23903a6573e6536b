package pdf

import "time"

var FormatMoney = formatMoney

func (g *MarotoPDFGenerator) SetClock(now func() time.Time) { g.now = now }
