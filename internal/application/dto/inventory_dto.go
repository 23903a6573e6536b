package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterMovementRequest body para POST /api/inventory/movements y PUT /api/inventory/movements/:id.
type RegisterMovementRequest struct {
	Type        string          `json:"type"` // carico | scarico | rettifica | inventario
	ProductName string          `json:"product_name"`
	Category    string          `json:"category,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Supplier    string          `json:"supplier,omitempty"`
	DocumentRef string          `json:"document_ref,omitempty"`
	Lot         string          `json:"lot,omitempty"`
	Expiry      *time.Time      `json:"expiry,omitempty"`
	Note        string          `json:"note,omitempty"`
	Timestamp   *time.Time      `json:"timestamp,omitempty"` // vacío = ahora
}

// MovementResponse movimiento tal como lo ve la UI.
type MovementResponse struct {
	ID            string          `json:"id"`
	LocalID       string          `json:"local_id"`
	RemoteID      string          `json:"remote_id,omitempty"`
	Type          string          `json:"type"`
	ProductName   string          `json:"product_name"`
	ProductKey    string          `json:"product_key"`
	Category      string          `json:"category,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	MovementValue decimal.Decimal `json:"movement_value"`
	Supplier      string          `json:"supplier,omitempty"`
	DocumentRef   string          `json:"document_ref,omitempty"`
	Lot           string          `json:"lot,omitempty"`
	Expiry        *time.Time      `json:"expiry,omitempty"`
	Note          string          `json:"note,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Origin        string          `json:"origin"`
	SyncStatus    string          `json:"sync_status"`
	Seq           int64           `json:"seq"`
}

// MovementListResponse listado paginado del libro.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// LastMovementDTO resumen del último movimiento aplicado.
type LastMovementDTO struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// StockPositionResponse giacenza derivada de un producto.
type StockPositionResponse struct {
	ProductKey          string           `json:"product_key"`
	ProductName         string           `json:"product_name"`
	Category            string           `json:"category,omitempty"`
	Unit                string           `json:"unit,omitempty"`
	QuantityOnHand      decimal.Decimal  `json:"quantity_on_hand"`
	WeightedAverageCost decimal.Decimal  `json:"weighted_average_cost"`
	StockValue          decimal.Decimal  `json:"stock_value"`
	MinThreshold        decimal.Decimal  `json:"min_threshold"`
	OptimalThreshold    decimal.Decimal  `json:"optimal_threshold"`
	BelowMin            bool             `json:"below_min"`
	LastMovement        *LastMovementDTO `json:"last_movement,omitempty"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ThresholdsRequest body para PUT /api/inventory/positions/:key/thresholds.
type ThresholdsRequest struct {
	MinThreshold     decimal.Decimal `json:"min_threshold"`
	OptimalThreshold decimal.Decimal `json:"optimal_threshold"`
}

// ReplenishmentSuggestionDTO producto por debajo del mínimo con la cantidad sugerida
// para volver al nivel óptimo.
type ReplenishmentSuggestionDTO struct {
	ProductKey         string          `json:"product_key"`
	ProductName        string          `json:"product_name"`
	Unit               string          `json:"unit,omitempty"`
	CurrentStock       decimal.Decimal `json:"current_stock"`
	MinThreshold       decimal.Decimal `json:"min_threshold"`
	OptimalThreshold   decimal.Decimal `json:"optimal_threshold"`
	SuggestedOrderQty  decimal.Decimal `json:"suggested_order_qty"`  // óptimo (o mínimo) - actual
	UnitCost           decimal.Decimal `json:"unit_cost"`            // costo promedio ponderado
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"` // SuggestedOrderQty * UnitCost
	Severity           string          `json:"severity"`
	Priority           int             `json:"priority"` // 1 = más urgente
}

// SyncStatusResponse estado del canal y de la cola de sincronización.
type SyncStatusResponse struct {
	State      string     `json:"state"`
	Cycle      uint64     `json:"cycle"`
	Total      int        `json:"total"`
	Pending    int        `json:"pending"`
	Sent       int        `json:"sent"`
	Synced     int        `json:"synced"`
	Failed     int        `json:"failed"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}
