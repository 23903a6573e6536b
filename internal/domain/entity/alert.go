package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity gravedad de una alerta de stock bajo.
type Severity string

const (
	SeverityUrgent Severity = "urgent"
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Alert evento efímero producido por el monitor de umbrales; no forma parte del libro.
type Alert struct {
	ProductKey      string
	ProductName     string
	Unit            string
	CurrentQuantity decimal.Decimal
	Threshold       decimal.Decimal
	Severity        Severity
	Timestamp       time.Time
}
