package servicing

import "time"

// CreateLoanInput carries the fixed offer terms handed down by the
// upstream decisioning engine. Currency amounts travel as strings so
// no float ever touches money.
type CreateLoanInput struct {
	BorrowerID        string    `json:"borrower_id"`
	AccountRef        string    `json:"account_ref"`
	Principal         string    `json:"principal"`
	AnnualRatePercent string    `json:"annual_rate_percent"`
	TermMonths        int       `json:"term_months"`
	FundingDate       time.Time `json:"funding_date"`
}

type LoanDTO struct {
	LoanID              string     `json:"loan_id"`
	BorrowerID          string     `json:"borrower_id"`
	Principal           string     `json:"principal"`
	AnnualRatePercent   string     `json:"annual_rate_percent"`
	TermMonths          int        `json:"term_months"`
	FundingDate         time.Time  `json:"funding_date"`
	Status              string     `json:"status"`
	DaysOverdue         int        `json:"days_overdue"`
	SentToCollectionsAt *time.Time `json:"sent_to_collections_at,omitempty"`
	CollectionsAgency   string     `json:"collections_agency,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type PaymentDTO struct {
	PaymentID        string     `json:"payment_id"`
	LoanID           string     `json:"loan_id"`
	PaymentNumber    int        `json:"payment_number"`
	Kind             string     `json:"kind"`
	Amount           string     `json:"amount"`
	PrincipalPortion string     `json:"principal_portion"`
	InterestPortion  string     `json:"interest_portion"`
	DueDate          time.Time  `json:"due_date"`
	Status           string     `json:"status"`
	RetryCount       int        `json:"retry_count"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

type QuoteDTO struct {
	LoanID             string    `json:"loan_id"`
	AsOf               time.Time `json:"as_of"`
	RemainingPrincipal string    `json:"remaining_principal"`
	AccruedInterest    string    `json:"accrued_interest"`
	TotalPayoff        string    `json:"total_payoff"`
}

type PayoffDTO struct {
	PaymentID    string `json:"payment_id"`
	PayoffAmount string `json:"payoff_amount"`
}
