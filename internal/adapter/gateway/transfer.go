// Package gateway adapts the external ACH transfer provider. The
// engine never moves money itself: it hands debit intents to the
// provider here and ingests settlement callbacks through the HTTP
// surface.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferGateway initiates an ACH debit against a borrower's linked
// account. A nil error means the transfer was accepted and will settle
// (or fail) asynchronously via callback.
type TransferGateway interface {
	InitiateTransfer(ctx context.Context, accountRef string, amount decimal.Decimal, description string) (transferRef string, err error)
}

// Error is a provider failure mapped onto the engine's taxonomy.
// Terminal failures (closed or invalid accounts) go straight to
// requires_action and are never auto-retried.
type Error struct {
	Code     string
	Message  string
	Terminal bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer gateway: %s (%s)", e.Message, e.Code)
}

// terminalCodes are the provider codes that no amount of retrying will
// fix.
var terminalCodes = map[string]bool{
	"account_closed":        true,
	"account_invalid":       true,
	"account_frozen":        true,
	"authorization_revoked": true,
}

// TerminalCode reports whether a provider failure code is terminal.
// Unknown codes are treated as transient; the retry cap bounds them.
func TerminalCode(code string) bool { return terminalCodes[code] }

// HTTPGateway talks to the transfer provider over JSON/HTTP. The
// client timeout is the ceiling on any single initiation, so a stuck
// provider cannot stall a sweep worker indefinitely.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type initiateRequest struct {
	AccountRef  string `json:"account_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

type initiateResponse struct {
	TransferRef string `json:"transfer_ref"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
}

func (g *HTTPGateway) InitiateTransfer(ctx context.Context, accountRef string, amount decimal.Decimal, description string) (string, error) {
	body, err := json.Marshal(initiateRequest{
		AccountRef:  accountRef,
		Amount:      amount.StringFixed(2),
		Currency:    "USD",
		Description: description,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		// Network-level failures are transient: the next sweep retries.
		return "", &Error{Code: "gateway_unreachable", Message: err.Error(), Terminal: false}
	}
	defer resp.Body.Close()

	var out initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Code: "gateway_bad_response", Message: err.Error(), Terminal: false}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out.TransferRef == "" {
			return "", &Error{Code: "gateway_bad_response", Message: "missing transfer_ref", Terminal: false}
		}
		return out.TransferRef, nil
	}

	ge := &Error{Code: out.Code, Message: out.Message, Terminal: TerminalCode(out.Code)}
	if ge.Code == "" {
		ge.Code = fmt.Sprintf("http_%d", resp.StatusCode)
	}
	if g.logger != nil {
		g.logger.Warn("transfer initiation rejected",
			zap.String("code", ge.Code),
			zap.Bool("terminal", ge.Terminal),
			zap.Int("http_status", resp.StatusCode),
		)
	}
	return "", ge
}
