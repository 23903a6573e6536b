package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
)

// Nombres de evento del protocolo con la autoridad.
const (
	EventAddMovement      = "add-movement"      // cliente -> autoridad
	EventRequestInventory = "request-inventory" // cliente -> autoridad
	EventInventoryUpdated = "inventory-updated" // autoridad -> cliente
	EventMovementAdded    = "movement-added"    // autoridad -> todos
	EventMovementDeleted  = "movement-deleted"  // autoridad -> todos
	EventMovementRejected = "movement-rejected" // autoridad -> emisor
)

// Envelope trama JSON: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ProductPayload producto en la trama.
type ProductPayload struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// MovementPayload movimiento en la trama.
type MovementPayload struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Product       ProductPayload  `json:"product"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit,omitempty"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	MovementValue decimal.Decimal `json:"movementValue"`
	Supplier      string          `json:"supplier,omitempty"`
	DocumentRef   string          `json:"documentRef,omitempty"`
	Lot           string          `json:"lot,omitempty"`
	Expiry        *time.Time      `json:"expiry,omitempty"`
	Note          string          `json:"note,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// LastMovementPayload último movimiento de una posición.
type LastMovementPayload struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// PositionPayload posición en la trama.
type PositionPayload struct {
	ProductKey          string               `json:"productKey"`
	ProductName         string               `json:"productName"`
	Category            string               `json:"category,omitempty"`
	Unit                string               `json:"unit,omitempty"`
	QuantityOnHand      decimal.Decimal      `json:"quantityOnHand"`
	WeightedAverageCost decimal.Decimal      `json:"weightedAverageCost"`
	MinThreshold        decimal.Decimal      `json:"minThreshold"`
	OptimalThreshold    decimal.Decimal      `json:"optimalThreshold"`
	LastMovement        *LastMovementPayload `json:"lastMovement,omitempty"`
}

// InventoryPayload datos de inventory-updated. Movements null significa "sin lista";
// un arreglo vacío es una lista vacía.
type InventoryPayload struct {
	Positions []PositionPayload `json:"positions"`
	Movements []MovementPayload `json:"movements"`
	Full      bool              `json:"full"`
}

// MovementEnvelope datos de add-movement y movement-added.
type MovementEnvelope struct {
	Movement MovementPayload `json:"movement"`
}

// IDPayload datos de movement-deleted y movement-rejected.
type IDPayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// Encode arma la trama de un evento.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("codificar %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode lee la trama; los datos se decodifican según el evento.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("trama inválida: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("trama sin evento")
	}
	return env, nil
}

// DecodeData decodifica env.Data en v.
func DecodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s sin datos", env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("datos de %s: %w", env.Event, err)
	}
	return nil
}

// ToMovementPayload convierte el movimiento de dominio a la trama.
func ToMovementPayload(m entity.Movement) MovementPayload {
	return MovementPayload{
		ID:            m.ID,
		Type:          string(m.Type),
		Product:       ProductPayload{Name: m.Product.Name, Category: m.Product.Category},
		Quantity:      m.Quantity,
		Unit:          m.Unit,
		UnitPrice:     m.UnitPrice,
		MovementValue: m.MovementValue,
		Supplier:      m.Supplier,
		DocumentRef:   m.DocumentRef,
		Lot:           m.Lot,
		Expiry:        m.Expiry,
		Note:          m.Note,
		Timestamp:     m.Timestamp,
	}
}

// ToEntity movimiento de dominio tal como lo envió el otro extremo.
func (p MovementPayload) ToEntity() entity.Movement {
	return entity.Movement{
		ID:            p.ID,
		Type:          entity.MovementType(p.Type),
		Product:       entity.Product{Name: p.Product.Name, Category: p.Product.Category},
		Quantity:      p.Quantity,
		Unit:          p.Unit,
		UnitPrice:     p.UnitPrice,
		MovementValue: p.MovementValue,
		Supplier:      p.Supplier,
		DocumentRef:   p.DocumentRef,
		Lot:           p.Lot,
		Expiry:        p.Expiry,
		Note:          p.Note,
		Timestamp:     p.Timestamp,
	}
}

// ToPositionPayload convierte la posición a la trama.
func ToPositionPayload(p entity.StockPosition) PositionPayload {
	out := PositionPayload{
		ProductKey:          p.ProductKey,
		ProductName:         p.ProductName,
		Category:            p.Category,
		Unit:                p.Unit,
		QuantityOnHand:      p.QuantityOnHand,
		WeightedAverageCost: p.WeightedAverageCost,
		MinThreshold:        p.MinThreshold,
		OptimalThreshold:    p.OptimalThreshold,
	}
	if p.LastMovement != nil {
		out.LastMovement = &LastMovementPayload{
			Timestamp: p.LastMovement.Timestamp,
			Type:      string(p.LastMovement.Type),
			Quantity:  p.LastMovement.Quantity,
		}
	}
	return out
}

// ToEntity posición de dominio.
func (p PositionPayload) ToEntity() entity.StockPosition {
	out := entity.StockPosition{
		ProductKey:          p.ProductKey,
		ProductName:         p.ProductName,
		Category:            p.Category,
		Unit:                p.Unit,
		QuantityOnHand:      p.QuantityOnHand,
		WeightedAverageCost: p.WeightedAverageCost,
		MinThreshold:        p.MinThreshold,
		OptimalThreshold:    p.OptimalThreshold,
	}
	if p.LastMovement != nil {
		out.LastMovement = &entity.LastMovement{
			Timestamp: p.LastMovement.Timestamp,
			Type:      entity.MovementType(p.LastMovement.Type),
			Quantity:  p.LastMovement.Quantity,
		}
		out.UpdatedAt = p.LastMovement.Timestamp
	}
	return out
}

// ToInventoryPayload snapshot de la autoridad a la trama.
func ToInventoryPayload(s appinv.Snapshot) InventoryPayload {
	out := InventoryPayload{
		Positions: make([]PositionPayload, 0, len(s.Positions)),
		Full:      s.Full,
	}
	for _, p := range s.Positions {
		out.Positions = append(out.Positions, ToPositionPayload(p))
	}
	if s.Movements != nil {
		out.Movements = make([]MovementPayload, 0, len(s.Movements))
		for _, m := range s.Movements {
			out.Movements = append(out.Movements, ToMovementPayload(m))
		}
	}
	return out
}

// ToSnapshot trama a snapshot conservando la diferencia entre lista ausente y vacía.
func (p InventoryPayload) ToSnapshot() appinv.Snapshot {
	out := appinv.Snapshot{Full: p.Full}
	for _, pos := range p.Positions {
		out.Positions = append(out.Positions, pos.ToEntity())
	}
	if p.Movements != nil {
		out.Movements = make([]entity.Movement, 0, len(p.Movements))
		for _, m := range p.Movements {
			out.Movements = append(out.Movements, m.ToEntity())
		}
	}
	return out
}
