package mysql

import (
	"context"
	"errors"

	paymentDomain "hearthpay/internal/domain/payment"
	"time"

	"gorm.io/gorm"
)

type PaymentRepository struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) *PaymentRepository { return &PaymentRepository{db: db} }

func (r *PaymentRepository) CreateBatch(ctx context.Context, ps []*paymentDomain.Payment) error {
	if len(ps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(ps).Error
}

func (r *PaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*paymentDomain.Payment, error) {
	var out paymentDomain.Payment
	res := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, paymentDomain.ErrNotFound
	}
	return &out, res.Error
}

func (r *PaymentRepository) GetByTransferRef(ctx context.Context, transferRef string) (*paymentDomain.Payment, error) {
	var out paymentDomain.Payment
	res := r.db.WithContext(ctx).Where("transfer_ref = ?", transferRef).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, paymentDomain.ErrNotFound
	}
	return &out, res.Error
}

func (r *PaymentRepository) ListByLoan(ctx context.Context, loanPK uint64) ([]paymentDomain.Payment, error) {
	var out []paymentDomain.Payment
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanPK).
		Order("payment_number ASC").
		Find(&out)
	return out, res.Error
}

func (r *PaymentRepository) ListDue(ctx context.Context, asOf time.Time) ([]paymentDomain.Payment, error) {
	var out []paymentDomain.Payment
	res := r.db.WithContext(ctx).
		Where("(status = ? AND due_date <= ?) OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?)",
			paymentDomain.StatusScheduled, asOf, paymentDomain.StatusFailed, asOf).
		Order("loan_id ASC, payment_number ASC").
		Find(&out)
	return out, res.Error
}

func (r *PaymentRepository) ListOverdueCandidates(ctx context.Context, cutoff time.Time) ([]paymentDomain.Payment, error) {
	var out []paymentDomain.Payment
	res := r.db.WithContext(ctx).
		Where("status IN ? AND due_date <= ?",
			[]paymentDomain.Status{paymentDomain.StatusScheduled, paymentDomain.StatusFailed}, cutoff).
		Order("loan_id ASC, payment_number ASC").
		Find(&out)
	return out, res.Error
}

// Apply is the ledger's compare-and-swap: one UPDATE guarded by the
// expected prior statuses. Zero rows affected means someone else moved
// the payment first; callers treat that as a benign race.
func (r *PaymentRepository) Apply(ctx context.Context, paymentID string, ch paymentDomain.Change) error {
	res := r.db.WithContext(ctx).
		Model(&paymentDomain.Payment{}).
		Where("payment_id = ? AND status IN ?", paymentID, ch.Expect).
		Updates(ch.Set)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish unknown id from a lost race.
		var n int64
		if err := r.db.WithContext(ctx).
			Model(&paymentDomain.Payment{}).
			Where("payment_id = ?", paymentID).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return paymentDomain.ErrNotFound
		}
		return paymentDomain.ErrStateConflict
	}
	return nil
}
