package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	appinv "github.com/jhoicas/magazzino-sync/internal/application/inventory"
)

// WebhookPayload cuerpo JSON que recibe el webhook de alertas.
type WebhookPayload struct {
	Event          string          `json:"event"`
	Product        string          `json:"product"`
	ProductKey     string          `json:"productKey"`
	QuantityOnHand decimal.Decimal `json:"quantityOnHand"`
	Unit           string          `json:"unit,omitempty"`
	MinThreshold   decimal.Decimal `json:"minThreshold"`
	Severity       string          `json:"severity"`
	Timestamp      time.Time       `json:"timestamp"`
}

// WebhookDispatcher publica las alertas por HTTP POST.
type WebhookDispatcher struct {
	httpClient *resty.Client
	url        string
}

// NewWebhookDispatcher construye el despachador. Reintenta dos veces ante errores de red o 5xx.
func NewWebhookDispatcher(url string, timeout time.Duration) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &WebhookDispatcher{httpClient: restyClient, url: url}
}

// Dispatch envía la alerta. Un 4xx no se reintenta.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, n appinv.Notification) error {
	payload := WebhookPayload{
		Event:          "low-stock",
		Product:        n.Product,
		ProductKey:     n.ProductKey,
		QuantityOnHand: n.QuantityOnHand,
		Unit:           n.Unit,
		MinThreshold:   n.MinThreshold,
		Severity:       string(n.Severity),
		Timestamp:      n.Timestamp.UTC(),
	}
	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(d.url)
	if err != nil {
		return fmt.Errorf("webhook de alertas: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("webhook de alertas: status=%d", resp.StatusCode())
	}
	return nil
}
