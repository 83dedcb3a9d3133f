package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "hearthpay/internal/domain/payment"
	"hearthpay/pkg/id"
)

func makePayment(loanPK uint64, number int, status domain.Status, due time.Time) *domain.Payment {
	return &domain.Payment{
		PaymentID:        id.NewID32(),
		LoanPK:           loanPK,
		LoanID:           "loan-public",
		PaymentNumber:    number,
		Kind:             domain.KindInstallment,
		Amount:           decimal.RequireFromString("371.58"),
		PrincipalPortion: decimal.RequireFromString("205.00"),
		InterestPortion:  decimal.RequireFromString("166.58"),
		DueDate:          due,
		Status:           status,
	}
}

func TestApply_ClaimMovesScheduledToProcessing(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	due := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	p := makePayment(1, 1, domain.StatusScheduled, due)
	if err := repo.CreateBatch(ctx, []*domain.Payment{p}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	if err := repo.Apply(ctx, p.PaymentID, domain.ClaimChange()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	got, err := repo.GetByPaymentID(ctx, p.PaymentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusProcessing {
		t.Fatalf("status=%s, want processing", got.Status)
	}
}

func TestApply_SecondClaimConflicts(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := makePayment(1, 1, domain.StatusScheduled, time.Now())
	if err := repo.CreateBatch(ctx, []*domain.Payment{p}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	if err := repo.Apply(ctx, p.PaymentID, domain.ClaimChange()); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// The double-debit guard: a concurrent sweep loses the race.
	err := repo.Apply(ctx, p.PaymentID, domain.ClaimChange())
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("second claim err=%v, want ErrStateConflict", err)
	}
}

func TestApply_UnknownPaymentIsNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)

	err := repo.Apply(context.Background(), id.NewID32(), domain.ClaimChange())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestApply_SettleClearsRetryFields(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := makePayment(1, 1, domain.StatusScheduled, time.Now())
	if err := repo.CreateBatch(ctx, []*domain.Payment{p}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := repo.Apply(ctx, p.PaymentID, domain.ClaimChange()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	settledAt := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)
	if err := repo.Apply(ctx, p.PaymentID, domain.SettleChange("tr_123", settledAt)); err != nil {
		t.Fatalf("settle: %v", err)
	}

	got, _ := repo.GetByPaymentID(ctx, p.PaymentID)
	if got.Status != domain.StatusCompleted {
		t.Fatalf("status=%s", got.Status)
	}
	if got.TransferRef == nil || *got.TransferRef != "tr_123" {
		t.Fatalf("transfer_ref=%v", got.TransferRef)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if got.RetryCount != 0 || got.NextRetryAt != nil || got.FailureReason != "" {
		t.Fatalf("retry fields not cleared: %+v", got)
	}

	// A completed payment is settled for good.
	err := repo.Apply(ctx, p.PaymentID, domain.ManualSettleChange(time.Now()))
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("resettle err=%v, want ErrStateConflict", err)
	}
}

func TestApply_FailRecordsReasonAndBackoff(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := makePayment(1, 1, domain.StatusScheduled, time.Now())
	if err := repo.CreateBatch(ctx, []*domain.Payment{p}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := repo.Apply(ctx, p.PaymentID, domain.ClaimChange()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	next := time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)
	if err := repo.Apply(ctx, p.PaymentID, domain.FailChange("insufficient funds", "insufficient_funds", 1, next)); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, _ := repo.GetByPaymentID(ctx, p.PaymentID)
	if got.Status != domain.StatusFailed {
		t.Fatalf("status=%s", got.Status)
	}
	if got.RetryCount != 1 || got.FailureCode != "insufficient_funds" {
		t.Fatalf("retry bookkeeping: %+v", got)
	}
	if got.TransferRef != nil {
		t.Fatalf("transfer_ref should be cleared on failure, got %v", *got.TransferRef)
	}
	if got.NextRetryAt == nil || !got.NextRetryAt.Equal(next) {
		t.Fatalf("next_retry_at=%v", got.NextRetryAt)
	}
}

func TestListDue_SelectsScheduledDueAndRetryDueFailed(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	asOf := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	past := asOf.AddDate(0, 0, -2)
	future := asOf.AddDate(0, 0, 10)

	dueNow := makePayment(1, 1, domain.StatusScheduled, past)
	notYet := makePayment(1, 2, domain.StatusScheduled, future)
	retryDue := makePayment(1, 3, domain.StatusFailed, past)
	retryDue.NextRetryAt = &past
	retryLater := makePayment(1, 4, domain.StatusFailed, past)
	retryLater.NextRetryAt = &future
	done := makePayment(1, 5, domain.StatusCompleted, past)

	if err := repo.CreateBatch(ctx, []*domain.Payment{dueNow, notYet, retryDue, retryLater, done}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	got, err := repo.ListDue(ctx, asOf)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2", len(got))
	}
	if got[0].PaymentID != dueNow.PaymentID || got[1].PaymentID != retryDue.PaymentID {
		t.Fatalf("unexpected selection: %s, %s", got[0].PaymentID, got[1].PaymentID)
	}
}

func TestListOverdueCandidates(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	cutoff := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	stale := makePayment(1, 1, domain.StatusScheduled, cutoff.AddDate(0, 0, -1))
	staleFailed := makePayment(1, 2, domain.StatusFailed, cutoff.AddDate(0, 0, -5))
	fresh := makePayment(1, 3, domain.StatusScheduled, cutoff.AddDate(0, 0, 3))
	inFlight := makePayment(1, 4, domain.StatusProcessing, cutoff.AddDate(0, 0, -1))

	if err := repo.CreateBatch(ctx, []*domain.Payment{stale, staleFailed, fresh, inFlight}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	got, err := repo.ListOverdueCandidates(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListOverdueCandidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2", len(got))
	}
}

func TestGetByTransferRef(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	p := makePayment(1, 1, domain.StatusScheduled, time.Now())
	if err := repo.CreateBatch(ctx, []*domain.Payment{p}); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if err := repo.Apply(ctx, p.PaymentID, domain.ClaimChange()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.Apply(ctx, p.PaymentID, domain.AttachTransferChange("tr_abc")); err != nil {
		t.Fatalf("attach: %v", err)
	}

	got, err := repo.GetByTransferRef(ctx, "tr_abc")
	if err != nil {
		t.Fatalf("GetByTransferRef: %v", err)
	}
	if got.PaymentID != p.PaymentID {
		t.Fatalf("got %s", got.PaymentID)
	}

	if _, err := repo.GetByTransferRef(ctx, "tr_missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing ref err=%v", err)
	}
}
