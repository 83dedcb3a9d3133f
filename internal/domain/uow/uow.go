package uow

import (
	"context"

	"hearthpay/internal/domain/audit"
	"hearthpay/internal/domain/loan"
	"hearthpay/internal/domain/payment"
)

type Repos struct {
	Loans    loan.Repository
	Payments payment.Repository
	Audit    audit.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock the loan row first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
