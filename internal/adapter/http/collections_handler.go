package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	loanDomain "hearthpay/internal/domain/loan"
	"hearthpay/internal/usecase/collections"
)

type CollectionsHandler struct{ uc *collections.Usecase }

func NewCollectionsHandler(uc *collections.Usecase) *CollectionsHandler {
	return &CollectionsHandler{uc: uc}
}

// Queue lists the loans in one work queue band: at_risk, defaulted or
// in_collections.
func (h *CollectionsHandler) Queue(c echo.Context) error {
	band := loanDomain.CollectionBand(c.Param("band"))
	loans, err := h.uc.ListQueue(c.Request().Context(), band)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"band":  band,
		"loans": loans,
	})
}

type sendToCollectionsReq struct {
	Agency string `json:"agency" validate:"required,max=128"`
}

func (h *CollectionsHandler) SendToCollections(c echo.Context) error {
	var req sendToCollectionsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	loanID := c.Param("loan_id")
	if err := h.uc.SendToCollections(c.Request().Context(), loanID, req.Agency, actor(c), time.Now().UTC()); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"loan_id": loanID,
		"agency":  req.Agency,
	})
}

type addNoteReq struct {
	Body string `json:"body" validate:"required,max=2000"`
}

func (h *CollectionsHandler) AddNote(c echo.Context) error {
	var req addNoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.AddNote(c.Request().Context(), c.Param("loan_id"), actor(c), req.Body)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *CollectionsHandler) ListNotes(c echo.Context) error {
	notes, err := h.uc.ListNotes(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"notes": notes})
}
