package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "hearthpay/internal/domain/loan"
	"hearthpay/pkg/id"
)

func makeLoan(loanID, borrowerID string) *domain.Loan {
	return &domain.Loan{
		LoanID:            loanID,
		BorrowerID:        borrowerID,
		AccountRef:        "acct_test",
		Principal:         decimal.RequireFromString("10000.00"),
		AnnualRatePercent: decimal.RequireFromString("19.990"),
		TermMonths:        36,
		FundingDate:       time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:            domain.StatusFunded,
		StatusUpdatedAt:   time.Now().UTC(),
	}
}

func TestCreateAndGetByLoanID(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	l := makeLoan(id.NewID32(), id.NewID32())
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByLoanID(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("GetByLoanID: %v", err)
	}
	if got.LoanID != l.LoanID || got.Status != domain.StatusFunded {
		t.Fatalf("got %+v", got)
	}

	if _, err := repo.GetByLoanID(ctx, id.NewID32()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing loan err=%v, want ErrNotFound", err)
	}
}

func TestListBand_Queues(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	current := makeLoan(id.NewID32(), id.NewID32())
	current.Status = domain.StatusRepaying
	current.DaysOverdue = 0

	atRisk := makeLoan(id.NewID32(), id.NewID32())
	atRisk.Status = domain.StatusRepaying
	atRisk.DaysOverdue = 45

	boundary := makeLoan(id.NewID32(), id.NewID32())
	boundary.Status = domain.StatusRepaying
	boundary.DaysOverdue = 30 // inclusive lower bound

	defaulted := makeLoan(id.NewID32(), id.NewID32())
	defaulted.Status = domain.StatusDefaulted
	defaulted.DaysOverdue = 75

	escalated := makeLoan(id.NewID32(), id.NewID32())
	escalated.Status = domain.StatusDefaulted
	escalated.DaysOverdue = 90
	sent := time.Now().UTC()
	escalated.SentToCollectionsAt = &sent
	escalated.CollectionsAgency = "Northstar Recovery"

	for _, l := range []*domain.Loan{current, atRisk, boundary, defaulted, escalated} {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.ListBand(ctx, domain.BandAtRisk)
	if err != nil {
		t.Fatalf("at_risk: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("at_risk len=%d, want 2", len(got))
	}

	got, err = repo.ListBand(ctx, domain.BandDefaulted)
	if err != nil {
		t.Fatalf("defaulted: %v", err)
	}
	// escalated loan is excluded from the automatic queue
	if len(got) != 1 || got[0].LoanID != defaulted.LoanID {
		t.Fatalf("defaulted queue: %+v", got)
	}

	got, err = repo.ListBand(ctx, domain.BandInCollections)
	if err != nil {
		t.Fatalf("in_collections: %v", err)
	}
	if len(got) != 1 || got[0].LoanID != escalated.LoanID {
		t.Fatalf("in_collections queue: %+v", got)
	}

	if _, err := repo.ListBand(ctx, domain.CollectionBand("bogus")); !errors.Is(err, domain.ErrUnknownBand) {
		t.Fatalf("bogus band err=%v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	for _, s := range []domain.Status{domain.StatusFunded, domain.StatusRepaying, domain.StatusRepaying, domain.StatusDefaulted} {
		l := makeLoan(id.NewID32(), id.NewID32())
		l.Status = s
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[domain.StatusFunded] != 1 || counts[domain.StatusRepaying] != 2 || counts[domain.StatusDefaulted] != 1 {
		t.Fatalf("counts=%v", counts)
	}
	if counts[domain.StatusPaidOff] != 0 {
		t.Fatalf("paid_off=%d, want 0", counts[domain.StatusPaidOff])
	}
}

func TestNotes_AppendOnlyNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewLoanRepository(db)
	ctx := context.Background()

	l := makeLoan(id.NewID32(), id.NewID32())
	if err := repo.Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i, body := range []string{"left voicemail", "promised payment friday"} {
		n := &domain.CollectionNote{
			NoteID:    id.NewID32(),
			LoanID:    l.ID,
			Actor:     "admin:ops1",
			Body:      body,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := repo.AddNote(ctx, n); err != nil {
			t.Fatalf("AddNote: %v", err)
		}
	}

	notes, err := repo.ListNotes(ctx, l.ID)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len=%d", len(notes))
	}
	if notes[0].Body != "promised payment friday" {
		t.Fatalf("order: %q first", notes[0].Body)
	}
}
