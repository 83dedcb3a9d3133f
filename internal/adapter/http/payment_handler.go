package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"hearthpay/internal/usecase/servicing"
)

type PaymentHandler struct{ uc *servicing.Usecase }

func NewPaymentHandler(uc *servicing.Usecase) *PaymentHandler { return &PaymentHandler{uc: uc} }

// RetryPayment puts a failed or parked payment back into the next
// sweep's selection.
func (h *PaymentHandler) RetryPayment(c echo.Context) error {
	paymentID := c.Param("payment_id")
	if err := h.uc.RetryPayment(c.Request().Context(), paymentID, actor(c), time.Now().UTC()); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"payment_id": paymentID,
		"status":     "scheduled",
	})
}

type markPaidReq struct {
	Note string `json:"note" validate:"required,max=2000"`
}

// MarkPaymentPaid settles a payment out of band, e.g. a borrower paid
// by check. The note is mandatory; it becomes the paper trail.
func (h *PaymentHandler) MarkPaymentPaid(c echo.Context) error {
	var req markPaidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	paymentID := c.Param("payment_id")
	if err := h.uc.MarkPaymentPaidManually(c.Request().Context(), paymentID, req.Note, actor(c), time.Now().UTC()); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"payment_id": paymentID,
		"status":     "completed",
	})
}
