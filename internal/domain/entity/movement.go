package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/shopspring/decimal"
)

// MovementType tipos de movimiento de magazzino.
type MovementType string

const (
	MovementTypeCarico     MovementType = "carico"     // entrada de mercancía
	MovementTypeScarico    MovementType = "scarico"    // salida
	MovementTypeRettifica  MovementType = "rettifica"  // ajuste con signo (delta)
	MovementTypeInventario MovementType = "inventario" // conteo físico: cantidad absoluta
)

// Valid indica si el tipo pertenece al conjunto permitido.
func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeCarico, MovementTypeScarico, MovementTypeRettifica, MovementTypeInventario:
		return true
	}
	return false
}

// Origin procedencia del registro.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Movement registro inmutable del libro de movimientos.
// ID es el identificador vigente: el provisional (LocalID) hasta que la autoridad lo reasigna (RemoteID).
// LocalID no cambia nunca: es el índice estable que usan los consumidores de la UI.
type Movement struct {
	ID            string
	LocalID       string
	RemoteID      string
	Type          MovementType
	Product       Product
	Quantity      decimal.Decimal // carico/scarico > 0; rettifica delta con signo; inventario conteo >= 0
	Unit          string
	UnitPrice     decimal.Decimal
	MovementValue decimal.Decimal // Quantity * UnitPrice cuando aplica precio
	Supplier      string
	DocumentRef   string
	Lot           string
	Expiry        *time.Time
	Note          string
	Timestamp     time.Time
	Origin        Origin
	SyncStatus    SyncStatus
	Seq           int64 // orden de llegada al libro
}

// MovementRequest datos de creación que entrega la UI.
type MovementRequest struct {
	Type        MovementType
	Product     Product
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	Supplier    string
	DocumentRef string
	Lot         string
	Expiry      *time.Time
	Note        string
	Timestamp   time.Time
}

// NewMovement construye un movimiento local validado según su tipo.
// El identificador provisional lo asigna el Ledger al hacer Append.
func NewMovement(req MovementRequest, now time.Time) (*Movement, error) {
	m := &Movement{
		Type:        req.Type,
		Product:     Product{Name: strings.TrimSpace(req.Product.Name), Category: strings.TrimSpace(req.Product.Category)},
		Quantity:    req.Quantity,
		Unit:        strings.TrimSpace(req.Unit),
		UnitPrice:   req.UnitPrice,
		Supplier:    req.Supplier,
		DocumentRef: req.DocumentRef,
		Lot:         req.Lot,
		Expiry:      req.Expiry,
		Note:        req.Note,
		Timestamp:   req.Timestamp,
		Origin:      OriginLocal,
		SyncStatus:  SyncStatusPending,
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	// Precisión de TIMESTAMPTZ en la autoridad.
	m.Timestamp = m.Timestamp.Truncate(time.Microsecond)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.MovementValue = m.ComputedValue()
	return m, nil
}

// Validate aplica las reglas de construcción por tipo.
func (m *Movement) Validate() error {
	if !m.Type.Valid() {
		return &domain.InvalidTypeError{Type: string(m.Type)}
	}
	if strings.TrimSpace(m.Product.Name) == "" {
		return &domain.ValidationError{Field: "product.name", Message: "producto obligatorio"}
	}
	switch m.Type {
	case MovementTypeCarico, MovementTypeScarico:
		if !m.Quantity.IsPositive() {
			return &domain.ValidationError{Field: "quantity", Message: "la cantidad debe ser mayor que cero"}
		}
	case MovementTypeRettifica:
		if m.Quantity.IsZero() {
			return &domain.ValidationError{Field: "quantity", Message: "el ajuste no puede ser cero"}
		}
	case MovementTypeInventario:
		if m.Quantity.IsNegative() {
			return &domain.ValidationError{Field: "quantity", Message: "el conteo no puede ser negativo"}
		}
	}
	if m.UnitPrice.IsNegative() {
		return &domain.ValidationError{Field: "unitPrice", Message: "el precio no puede ser negativo"}
	}
	if !fitsScale(m.Quantity) {
		return &domain.ValidationError{Field: "quantity", Message: fmt.Sprintf("máximo %d decimales", MaxScale)}
	}
	if !fitsScale(m.UnitPrice) {
		return &domain.ValidationError{Field: "unitPrice", Message: fmt.Sprintf("máximo %d decimales", MaxScale)}
	}
	return nil
}

// MaxScale decimales que admite el libro autoritativo (NUMERIC(18,4)).
const MaxScale = 4

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MaxScale))
}

// ComputedValue Quantity * UnitPrice, o cero si no aplica precio.
func (m *Movement) ComputedValue() decimal.Decimal {
	if !m.UnitPrice.IsPositive() {
		return decimal.Zero
	}
	return m.Quantity.Mul(m.UnitPrice)
}

// ProductKey clave de identidad del producto afectado.
func (m *Movement) ProductKey() string {
	return ProductKey(m.Product.Name)
}

// IsProvisional indica un registro local aún no confirmado por la autoridad.
func (m *Movement) IsProvisional() bool {
	return m.Origin == OriginLocal && m.SyncStatus != SyncStatusSynced
}

// Clone copia profunda (Expiry incluido) para exponer registros de solo lectura.
func (m *Movement) Clone() Movement {
	c := *m
	if m.Expiry != nil {
		e := *m.Expiry
		c.Expiry = &e
	}
	return c
}
