// Package collections keeps Loan.days_overdue and Loan.status
// consistent with the payment ledger and manages escalation to
// external agencies.
package collections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hearthpay/internal/adapter/notify"
	auditDomain "hearthpay/internal/domain/audit"
	loanDomain "hearthpay/internal/domain/loan"
	paymentDomain "hearthpay/internal/domain/payment"
	"hearthpay/internal/domain/uow"
	"hearthpay/pkg/id"
)

type Usecase struct {
	uow      uow.UnitOfWork
	loans    loanDomain.Repository
	notifier notify.Dispatcher
	logger   *zap.Logger
}

func NewUsecase(u uow.UnitOfWork, loans loanDomain.Repository, n notify.Dispatcher, logger *zap.Logger) *Usecase {
	return &Usecase{uow: u, loans: loans, notifier: n, logger: logger}
}

// unresolved are the payment states that count toward delinquency once
// the due date has passed. requires_action is included: it is terminal
// until a human steps in, and excluding it would let a loan sit
// delinquent forever without ever defaulting.
func unresolved(s paymentDomain.Status) bool {
	switch s {
	case paymentDomain.StatusOverdue, paymentDomain.StatusFailed, paymentDomain.StatusRequiresAction:
		return true
	}
	return false
}

// DaysOverdue derives the loan-level delinquency counter: days since
// the earliest unresolved payment's due date, zero when none exist.
func DaysOverdue(ps []paymentDomain.Payment, asOf time.Time) int {
	days := 0
	for _, p := range ps {
		if !unresolved(p.Status) || !p.DueDate.Before(asOf) {
			continue
		}
		if d := daysBetween(p.DueDate, asOf); d > days {
			days = d
		}
	}
	return days
}

func daysBetween(a, b time.Time) int {
	au := time.Date(a.UTC().Year(), a.UTC().Month(), a.UTC().Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.UTC().Year(), b.UTC().Month(), b.UTC().Day(), 0, 0, 0, 0, time.UTC)
	if d := int(bu.Sub(au).Hours() / 24); d > 0 {
		return d
	}
	return 0
}

// DeriveStatus computes the loan status the ledger implies. The caller
// still applies the monotonicity guard; this function is pure.
func DeriveStatus(ps []paymentDomain.Payment, daysOverdue int) loanDomain.Status {
	if len(ps) > 0 {
		outstanding := false
		settled := 0
		for _, p := range ps {
			switch p.Status {
			case paymentDomain.StatusCompleted:
				settled++
			case paymentDomain.StatusSuperseded:
				// closed by a completed payoff; not outstanding
			default:
				outstanding = true
			}
		}
		if !outstanding && settled > 0 {
			return loanDomain.StatusPaidOff
		}
	}
	if daysOverdue >= loanDomain.DefaultDays {
		return loanDomain.StatusDefaulted
	}
	for _, p := range ps {
		if p.Status != paymentDomain.StatusScheduled {
			return loanDomain.StatusRepaying
		}
	}
	return loanDomain.StatusFunded
}

// Recompute re-derives days_overdue and status for one loan from its
// payments. Status only moves forward; defaulted does not silently
// revert to repaying when the counter drops (the documented admin
// override is the exception path).
func (u *Usecase) Recompute(ctx context.Context, loanID string, asOf time.Time) (*loanDomain.Loan, error) {
	var (
		out  *loanDomain.Loan
		prev loanDomain.Status
	)
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loanDomain.Loan) error {
		ps, err := r.Payments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}

		prev = l.Status
		days := DaysOverdue(ps, asOf)
		next := DeriveStatus(ps, days)

		changed := false
		if l.DaysOverdue != days {
			l.DaysOverdue = days
			changed = true
		}
		if next != l.Status && loanDomain.Advances(l.Status, next) {
			l.Status = next
			l.StatusUpdatedAt = asOf
			changed = true
			if err := r.Audit.Append(ctx, &auditDomain.Entry{
				EntityType: auditDomain.EntityLoan,
				EntityID:   l.LoanID,
				Action:     "loan.status_changed",
				Actor:      auditDomain.ActorSystem,
				Detail:     fmt.Sprintf("%s -> %s", prev, next),
			}); err != nil {
				return err
			}
		}
		if changed {
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Status != prev {
		switch out.Status {
		case loanDomain.StatusDefaulted:
			u.notifier.Notify(ctx, notify.EventLoanDefaulted, out.LoanID, "")
		case loanDomain.StatusPaidOff:
			u.notifier.Notify(ctx, notify.EventLoanPaidOff, out.LoanID, "")
		}
		u.logger.Info("loan status changed",
			zap.String("loan_id", out.LoanID),
			zap.String("from", string(prev)),
			zap.String("to", string(out.Status)),
			zap.Int("days_overdue", out.DaysOverdue),
		)
	}
	return out, nil
}

// SendToCollections stamps a loan for an external agency. A second
// call is an explicit error and leaves the first stamp untouched.
func (u *Usecase) SendToCollections(ctx context.Context, loanID, agency, actor string, asOf time.Time) error {
	if agency == "" {
		return errors.New("agency is required")
	}
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loanDomain.Loan) error {
		if l.InCollections() {
			return loanDomain.ErrAlreadyEscalated
		}
		at := asOf.UTC()
		l.SentToCollectionsAt = &at
		l.CollectionsAgency = agency
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		if err := r.Loans.AddNote(ctx, &loanDomain.CollectionNote{
			NoteID: id.NewID32(),
			LoanID: l.ID,
			Actor:  actor,
			Body:   fmt.Sprintf("sent to collections: %s", agency),
		}); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &auditDomain.Entry{
			EntityType: auditDomain.EntityLoan,
			EntityID:   l.LoanID,
			Action:     "loan.sent_to_collections",
			Actor:      actor,
			Detail:     agency,
		})
	})
	if err != nil {
		return err
	}

	u.notifier.Notify(ctx, notify.EventLoanSentToCollections, loanID, "")
	return nil
}

type NoteDTO struct {
	NoteID    string    `json:"note_id"`
	Actor     string    `json:"actor"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *Usecase) AddNote(ctx context.Context, loanID, actor, body string) (*NoteDTO, error) {
	if body == "" {
		return nil, errors.New("note body is required")
	}
	var dto *NoteDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loanDomain.Loan) error {
		n := &loanDomain.CollectionNote{
			NoteID: id.NewID32(),
			LoanID: l.ID,
			Actor:  actor,
			Body:   body,
		}
		if err := r.Loans.AddNote(ctx, n); err != nil {
			return err
		}
		dto = &NoteDTO{NoteID: n.NoteID, Actor: n.Actor, Body: n.Body, CreatedAt: n.CreatedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (u *Usecase) ListNotes(ctx context.Context, loanID string) ([]NoteDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	notes, err := u.loans.ListNotes(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	out := make([]NoteDTO, 0, len(notes))
	for _, n := range notes {
		out = append(out, NoteDTO{NoteID: n.NoteID, Actor: n.Actor, Body: n.Body, CreatedAt: n.CreatedAt})
	}
	return out, nil
}

// ListQueue returns the loans in one collections band.
func (u *Usecase) ListQueue(ctx context.Context, band loanDomain.CollectionBand) ([]loanDomain.Loan, error) {
	return u.loans.ListBand(ctx, band)
}
