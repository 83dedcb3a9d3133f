package http

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"hearthpay/internal/usecase/servicing"
)

func postLoan(t *testing.T, e *echo.Echo, h *LoanHandler, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(stdhttp.MethodPost, "/v1/loans", mustJSON(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	return rec
}

func TestCreateLoan_Success(t *testing.T) {
	e := newEchoWithValidator()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	rec := postLoan(t, e, h, createLoanBody())
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var got servicing.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.LoanID == "" || got.Status != "funded" || got.TermMonths != 36 {
		t.Fatalf("unexpected dto: %+v", got)
	}
}

func TestCreateLoan_BindError(t *testing.T) {
	e := newEchoWithValidator()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	req := httptest.NewRequest(stdhttp.MethodPost, "/v1/loans", strings.NewReader(`{"borrower_id":`)) // broken JSON
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var er ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &er)
	if er.Error != "invalid body" {
		t.Fatalf("error = %q, want %q", er.Error, "invalid body")
	}
}

func TestCreateLoan_ValidationError(t *testing.T) {
	e := newEchoWithValidator()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	// invalid: borrower_id not hex32, principal has 3 decimal places,
	// rate negative, term over the cap
	body := createLoanBody()
	body["borrower_id"] = "NOT_HEX_32"
	body["principal"] = "10000.125"
	body["annual_rate_percent"] = "-1"
	body["term_months"] = 600

	rec := postLoan(t, e, h, body)
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if er.Error != "validation failed" {
		t.Fatalf("error = %q, want %q", er.Error, "validation failed")
	}
	if !containsFieldMsg(er.Details, "BorrowerID", "32-char lowercase hex") {
		t.Fatalf("missing hex32 detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "Principal", "2 decimal places") {
		t.Fatalf("missing money detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "AnnualRatePercent", "non-negative") {
		t.Fatalf("missing rate detail: %+v", er.Details)
	}
	if !containsFieldMsg(er.Details, "TermMonths", "less than or equal to") {
		t.Fatalf("missing term detail: %+v", er.Details)
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	e := echo.New()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	req := httptest.NewRequest(stdhttp.MethodGet, "/v1/loans/xxx", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("loan_id")
	c.SetParamValues("xxx")

	if err := h.GetLoan(c); err != nil {
		t.Fatalf("GetLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListPayments_ReturnsFullSchedule(t *testing.T) {
	e := newEchoWithValidator()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	rec := postLoan(t, e, h, createLoanBody())
	var dto servicing.LoanDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &dto)

	req := httptest.NewRequest(stdhttp.MethodGet, "/v1/loans/"+dto.LoanID+"/payments", nil)
	rec2 := httptest.NewRecorder()
	c := e.NewContext(req, rec2)
	c.SetParamNames("loan_id")
	c.SetParamValues(dto.LoanID)

	if err := h.ListPayments(c); err != nil {
		t.Fatalf("ListPayments error: %v", err)
	}
	if rec2.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec2.Code)
	}
	var got struct {
		Payments []servicing.PaymentDTO `json:"payments"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if len(got.Payments) != 36 {
		t.Fatalf("payments = %d, want 36", len(got.Payments))
	}
	if got.Payments[0].Amount != "371.58" {
		t.Fatalf("amount = %s, want 371.58", got.Payments[0].Amount)
	}
}

func TestGetPayoffQuote_AtFunding(t *testing.T) {
	e := newEchoWithValidator()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	rec := postLoan(t, e, h, createLoanBody())
	var dto servicing.LoanDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &dto)

	req := httptest.NewRequest(stdhttp.MethodGet, "/v1/loans/"+dto.LoanID+"/payoff-quote?as_of=2025-01-15", nil)
	rec2 := httptest.NewRecorder()
	c := e.NewContext(req, rec2)
	c.SetParamNames("loan_id")
	c.SetParamValues(dto.LoanID)

	if err := h.GetPayoffQuote(c); err != nil {
		t.Fatalf("GetPayoffQuote error: %v", err)
	}
	if rec2.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec2.Code, rec2.Body.String())
	}
	var q servicing.QuoteDTO
	if err := json.Unmarshal(rec2.Body.Bytes(), &q); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if q.TotalPayoff != "10000.00" || q.AccruedInterest != "0.00" {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestGetPayoffQuote_BadAsOf(t *testing.T) {
	e := newEchoWithValidator()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	req := httptest.NewRequest(stdhttp.MethodGet, "/v1/loans/x/payoff-quote?as_of=yesterday", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("loan_id")
	c.SetParamValues("x")

	if err := h.GetPayoffQuote(c); err != nil {
		t.Fatalf("GetPayoffQuote error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInitiatePayoff_SecondCallConflicts(t *testing.T) {
	e := newEchoWithValidator()
	svc, _, _ := newUsecases(t)
	h := NewLoanHandler(svc)

	rec := postLoan(t, e, h, createLoanBody())
	var dto servicing.LoanDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &dto)

	payoff := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(stdhttp.MethodPost, "/v1/loans/"+dto.LoanID+"/payoff?as_of=2025-01-25", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("loan_id")
		c.SetParamValues(dto.LoanID)
		if err := h.InitiatePayoff(c); err != nil {
			t.Fatalf("InitiatePayoff error: %v", err)
		}
		return rec
	}

	first := payoff()
	if first.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", first.Code, first.Body.String())
	}
	var pd servicing.PayoffDTO
	_ = json.Unmarshal(first.Body.Bytes(), &pd)
	if pd.PaymentID == "" || pd.PayoffAmount == "" {
		t.Fatalf("unexpected payoff dto: %+v", pd)
	}

	second := payoff()
	if second.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", second.Code)
	}
}
