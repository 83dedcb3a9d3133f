// Package notify is the fire-and-forget bridge to the external
// notification service. Content and delivery live elsewhere; the
// engine only emits events. A dispatch failure is logged and dropped —
// it must never roll back a ledger transition.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Event names emitted by the repayment engine.
const (
	EventPaymentFailed         = "payment_failed"
	EventPaymentOverdue        = "payment_overdue"
	EventPaymentRequiresAction = "payment_requires_action"
	EventLoanPaidOff           = "loan_paid_off"
	EventLoanDefaulted         = "loan_defaulted"
	EventLoanSentToCollections = "loan_sent_to_collections"
)

type Dispatcher interface {
	// Notify never returns an error; delivery is best-effort.
	Notify(ctx context.Context, event, loanID, paymentID string)
}

// HTTPDispatcher posts events to the notification service.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPDispatcher(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type eventPayload struct {
	Event     string `json:"event"`
	LoanID    string `json:"loan_id"`
	PaymentID string `json:"payment_id,omitempty"`
}

func (d *HTTPDispatcher) Notify(ctx context.Context, event, loanID, paymentID string) {
	body, err := json.Marshal(eventPayload{Event: event, LoanID: loanID, PaymentID: paymentID})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/events", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("notification dispatch failed",
				zap.String("event", event),
				zap.String("loan_id", loanID),
				zap.Error(err),
			)
		}
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 && d.logger != nil {
		d.logger.Warn("notification dispatch rejected",
			zap.String("event", event),
			zap.String("loan_id", loanID),
			zap.Int("http_status", resp.StatusCode),
		)
	}
}

// Noop discards all events; used where notifications are disabled.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string) {}
