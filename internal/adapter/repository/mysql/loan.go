package mysql

import (
	"context"
	"errors"

	loanDomain "hearthpay/internal/domain/loan"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, loanDomain.ErrNotFound
	}
	return &out, res.Error
}

func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, loanDomain.ErrNotFound
	}
	return &out, res.Error
}

func (r *LoanRepository) CountByStatus(ctx context.Context) (map[loanDomain.Status]int, error) {
	var rows []struct {
		Status loanDomain.Status
		N      int
	}
	res := r.db.WithContext(ctx).
		Model(&loanDomain.Loan{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	out := make(map[loanDomain.Status]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

// ListBand implements the collections queues. The at-risk and defaulted
// queues exclude loans already stamped for an external agency; those
// live only in the manual in_collections lane.
func (r *LoanRepository) ListBand(ctx context.Context, band loanDomain.CollectionBand) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	q := r.db.WithContext(ctx).Model(&loanDomain.Loan{})

	switch band {
	case loanDomain.BandAtRisk:
		q = q.Where("days_overdue >= ? AND days_overdue < ?", loanDomain.AtRiskDays, loanDomain.DefaultDays).
			Where("status <> ?", loanDomain.StatusDefaulted).
			Where("sent_to_collections_at IS NULL")
	case loanDomain.BandDefaulted:
		q = q.Where("status = ? OR days_overdue >= ?", loanDomain.StatusDefaulted, loanDomain.DefaultDays).
			Where("sent_to_collections_at IS NULL")
	case loanDomain.BandInCollections:
		q = q.Where("sent_to_collections_at IS NOT NULL")
	default:
		return nil, loanDomain.ErrUnknownBand
	}

	res := q.Order("days_overdue DESC, id ASC").Find(&out)
	return out, res.Error
}

func (r *LoanRepository) AddNote(ctx context.Context, n *loanDomain.CollectionNote) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *LoanRepository) ListNotes(ctx context.Context, loanPK uint64) ([]loanDomain.CollectionNote, error) {
	var out []loanDomain.CollectionNote
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanPK).
		Order("created_at DESC, id DESC").
		Find(&out)
	return out, res.Error
}
