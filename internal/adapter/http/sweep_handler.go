package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"hearthpay/internal/orchestrator"
)

// SweepHandler exposes the repayment sweep for operators; the cron
// runner drives the same code path on a schedule.
type SweepHandler struct{ orch *orchestrator.Orchestrator }

func NewSweepHandler(orch *orchestrator.Orchestrator) *SweepHandler {
	return &SweepHandler{orch: orch}
}

func (h *SweepHandler) Run(c echo.Context) error {
	asOf, err := asOfOrNow(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	sum, err := h.orch.Sweep(c.Request().Context(), asOf)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, sum)
}
