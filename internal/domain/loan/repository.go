package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// GetByLoanIDForUpdate locks the loan row for the duration of the
	// enclosing transaction.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	Save(ctx context.Context, l *Loan) error

	// CountByStatus tallies active loans per lifecycle status.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// ListBand returns the loans in a collections work queue. At-risk
	// and defaulted queues exclude loans already escalated.
	ListBand(ctx context.Context, band CollectionBand) ([]Loan, error)

	AddNote(ctx context.Context, n *CollectionNote) error
	// ListNotes returns a loan's notes newest first.
	ListNotes(ctx context.Context, loanPK uint64) ([]CollectionNote, error)
}
