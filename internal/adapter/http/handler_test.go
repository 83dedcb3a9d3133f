package http

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"hearthpay/internal/testutil/gatewaymock"
	"hearthpay/internal/testutil/memstore"
	"hearthpay/internal/usecase/collections"
	"hearthpay/internal/usecase/servicing"
)

// -------- helpers --------

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func newUsecases(t *testing.T) (*servicing.Usecase, *collections.Usecase, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	notifier := &gatewaymock.Notifier{}
	col := collections.NewUsecase(store, store.Loans(), notifier, zap.NewNop())
	svc := servicing.NewUsecase(store, store.Loans(), store.Payments(), col, notifier,
		servicing.RetryPolicy{MaxRetries: 3, Backoff: 24 * time.Hour}, zap.NewNop())
	return svc, col, store
}

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func createLoanBody() map[string]any {
	return map[string]any{
		"borrower_id":         "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"account_ref":         "acct_1",
		"principal":           "10000",
		"annual_rate_percent": "19.99",
		"term_months":         36,
		"funding_date":        "2025-01-15",
	}
}
