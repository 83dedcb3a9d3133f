package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"hearthpay/internal/adapter/gateway"
	"hearthpay/internal/usecase/servicing"
)

// TransferCallbackHandler receives the payment provider's settlement
// webhooks. Callbacks are at-least-once; replays land on an already
// settled payment and are absorbed by the ledger's conditional update.
type TransferCallbackHandler struct{ uc *servicing.Usecase }

func NewTransferCallbackHandler(uc *servicing.Usecase) *TransferCallbackHandler {
	return &TransferCallbackHandler{uc: uc}
}

type transferCallbackReq struct {
	TransferRef string `json:"transfer_ref" validate:"required,max=64"`
	Outcome     string `json:"outcome"      validate:"required,oneof=settled failed"`
	FailureCode string `json:"failure_code" validate:"omitempty,max=64"`
	// RFC3339; empty means "now".
	ReceivedAt string `json:"received_at"  validate:"omitempty"`
}

func (h *TransferCallbackHandler) HandleCallback(c echo.Context) error {
	var req transferCallbackReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}

	receivedAt := time.Now().UTC()
	if req.ReceivedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "received_at must be RFC3339"})
		}
		receivedAt = t.UTC()
	}

	err := h.uc.ApplySettlement(c.Request().Context(), servicing.SettlementInput{
		TransferRef: req.TransferRef,
		Outcome:     req.Outcome,
		FailureCode: req.FailureCode,
		ReceivedAt:  receivedAt,
	}, gateway.TerminalCode)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}
