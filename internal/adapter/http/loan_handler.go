package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"hearthpay/internal/usecase/servicing"
)

type LoanHandler struct{ uc *servicing.Usecase }

func NewLoanHandler(uc *servicing.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type createLoanReq struct {
	BorrowerID        string `json:"borrower_id"         validate:"required,hex32"`
	AccountRef        string `json:"account_ref"         validate:"required,max=64"`
	Principal         string `json:"principal"           validate:"required,money"`
	AnnualRatePercent string `json:"annual_rate_percent" validate:"required,rate"`
	TermMonths        int    `json:"term_months"         validate:"required,gte=1,lte=120"`
	// Canonical date `YYYY-MM-DD` (aligns with schema DATE)
	FundingDate string `json:"funding_date"        validate:"required,datetime=2006-01-02"`
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	funded, _ := time.Parse("2006-01-02", req.FundingDate)

	dto, err := h.uc.CreateLoan(c.Request().Context(), servicing.CreateLoanInput{
		BorrowerID:        req.BorrowerID,
		AccountRef:        req.AccountRef,
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		TermMonths:        req.TermMonths,
		FundingDate:       funded,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	dto, err := h.uc.GetLoan(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListPayments(c echo.Context) error {
	ps, err := h.uc.ListPayments(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"payments": ps})
}

func (h *LoanHandler) GetPayoffQuote(c echo.Context) error {
	asOf, err := asOfOrNow(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	q, err := h.uc.GetPayoffQuote(c.Request().Context(), c.Param("loan_id"), asOf)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *LoanHandler) InitiatePayoff(c echo.Context) error {
	asOf, err := asOfOrNow(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	dto, err := h.uc.InitiatePayoff(c.Request().Context(), c.Param("loan_id"), asOf)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}
