package payment

import (
	"context"
	"time"
)

type Repository interface {
	CreateBatch(ctx context.Context, ps []*Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error)
	GetByTransferRef(ctx context.Context, transferRef string) (*Payment, error)
	ListByLoan(ctx context.Context, loanPK uint64) ([]Payment, error)

	// ListDue returns payments the orchestrator should attempt:
	// scheduled with due_date <= asOf, plus failed with
	// next_retry_at <= asOf. Ordered by loan then payment_number.
	ListDue(ctx context.Context, asOf time.Time) ([]Payment, error)

	// ListOverdueCandidates returns scheduled/failed payments whose due
	// date is on or before cutoff (due date plus grace already past).
	ListOverdueCandidates(ctx context.Context, cutoff time.Time) ([]Payment, error)

	// Apply executes ch as a single conditional update. It returns
	// ErrStateConflict when the payment is no longer in one of the
	// expected states, and ErrNotFound when the payment id is unknown.
	Apply(ctx context.Context, paymentID string, ch Change) error
}
