package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	loanDomain "hearthpay/internal/domain/loan"
	paymentDomain "hearthpay/internal/domain/payment"
)

// ---- helpers ----

const actorHeader = "X-Actor-Id"

// actor identifies who asked for a mutation; audit entries and
// collection notes carry it. Defaults to "api" for unattributed calls.
func actor(c echo.Context) string {
	if a := strings.TrimSpace(c.Request().Header.Get(actorHeader)); a != "" {
		return a
	}
	return "api"
}

// asOfOrNow parses an optional as_of query param (RFC3339 or
// YYYY-MM-DD). An empty param means "now".
func asOfOrNow(c echo.Context) (time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam("as_of"))
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New("as_of must be RFC3339 or YYYY-MM-DD")
}

// domainStatus maps ledger sentinels onto HTTP codes so every handler
// reports conflicts and misses the same way.
func domainStatus(err error) int {
	switch {
	case errors.Is(err, loanDomain.ErrNotFound), errors.Is(err, paymentDomain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loanDomain.ErrPayoffExists),
		errors.Is(err, loanDomain.ErrAlreadyEscalated),
		errors.Is(err, paymentDomain.ErrAlreadySettled),
		errors.Is(err, paymentDomain.ErrStateConflict):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func jsonError(c echo.Context, err error) error {
	return c.JSON(domainStatus(err), ErrorResponse{Error: err.Error()})
}
