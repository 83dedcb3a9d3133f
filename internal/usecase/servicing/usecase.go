// Package servicing owns the borrower- and admin-facing loan
// operations: funding a loan with its full schedule, payoff quotes and
// early payoff, manual retry / mark-paid, and settlement ingestion.
package servicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"hearthpay/internal/adapter/notify"
	"hearthpay/internal/amortization"
	auditDomain "hearthpay/internal/domain/audit"
	loanDomain "hearthpay/internal/domain/loan"
	paymentDomain "hearthpay/internal/domain/payment"
	"hearthpay/internal/domain/uow"
	"hearthpay/internal/usecase/collections"
	"hearthpay/pkg/id"
)

// RetryPolicy bounds automatic collection attempts.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

type Usecase struct {
	uow         uow.UnitOfWork
	loans       loanDomain.Repository
	payments    paymentDomain.Repository
	collections *collections.Usecase
	notifier    notify.Dispatcher
	policy      RetryPolicy
	logger      *zap.Logger
}

func NewUsecase(
	u uow.UnitOfWork,
	loans loanDomain.Repository,
	payments paymentDomain.Repository,
	col *collections.Usecase,
	n notify.Dispatcher,
	policy RetryPolicy,
	logger *zap.Logger,
) *Usecase {
	return &Usecase{
		uow:         u,
		loans:       loans,
		payments:    payments,
		collections: col,
		notifier:    n,
		policy:      policy,
		logger:      logger,
	}
}

// CreateLoan materializes a funded loan and its entire payment
// schedule in one transaction. The offer terms arrive fixed from
// upstream and are immutable afterwards.
func (u *Usecase) CreateLoan(ctx context.Context, in CreateLoanInput) (*LoanDTO, error) {
	if in.BorrowerID == "" || len(in.BorrowerID) != 32 || in.AccountRef == "" {
		return nil, loanDomain.ErrInvalidOfferTerms
	}
	principal, err := decimal.NewFromString(in.Principal)
	if err != nil || !principal.IsPositive() {
		return nil, loanDomain.ErrInvalidOfferTerms
	}
	rate, err := decimal.NewFromString(in.AnnualRatePercent)
	if err != nil || rate.IsNegative() {
		return nil, loanDomain.ErrInvalidOfferTerms
	}

	schedule, err := amortization.BuildSchedule(principal, rate, in.TermMonths, in.FundingDate)
	if err != nil {
		return nil, err
	}

	l := &loanDomain.Loan{
		LoanID:            id.NewID32(),
		BorrowerID:        in.BorrowerID,
		AccountRef:        in.AccountRef,
		Principal:         principal,
		AnnualRatePercent: rate,
		TermMonths:        in.TermMonths,
		FundingDate:       in.FundingDate.UTC(),
		Status:            loanDomain.StatusFunded,
		StatusUpdatedAt:   time.Now().UTC(),
	}

	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		ps := make([]*paymentDomain.Payment, 0, len(schedule))
		for _, ins := range schedule {
			ps = append(ps, &paymentDomain.Payment{
				PaymentID:        id.NewID32(),
				LoanPK:           l.ID,
				LoanID:           l.LoanID,
				PaymentNumber:    ins.PaymentNumber,
				Kind:             paymentDomain.KindInstallment,
				Amount:           ins.Amount,
				PrincipalPortion: ins.PrincipalPortion,
				InterestPortion:  ins.InterestPortion,
				DueDate:          ins.DueDate,
				Status:           paymentDomain.StatusScheduled,
			})
		}
		if err := r.Payments.CreateBatch(ctx, ps); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &auditDomain.Entry{
			EntityType: auditDomain.EntityLoan,
			EntityID:   l.LoanID,
			Action:     "loan.created",
			Actor:      auditDomain.ActorSystem,
			Detail:     fmt.Sprintf("principal=%s rate=%s term=%d", principal, rate, in.TermMonths),
		})
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("loan funded",
		zap.String("loan_id", l.LoanID),
		zap.String("principal", principal.StringFixed(2)),
		zap.Int("term_months", in.TermMonths),
	)
	return loanToDTO(l), nil
}

func (u *Usecase) GetLoan(ctx context.Context, loanID string) (*LoanDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return loanToDTO(l), nil
}

func (u *Usecase) ListPayments(ctx context.Context, loanID string) ([]PaymentDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	ps, err := u.payments.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentDTO, 0, len(ps))
	for i := range ps {
		out = append(out, paymentToDTO(&ps[i]))
	}
	return out, nil
}

// GetPayoffQuote prices full early satisfaction of the loan as of a
// date: remaining principal plus simple daily interest accrued since
// the later of funding and the last completed payment.
func (u *Usecase) GetPayoffQuote(ctx context.Context, loanID string, asOf time.Time) (*QuoteDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	ps, err := u.payments.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}

	remaining, lastEvent := remainingPrincipal(l, ps)
	q, err := amortization.PayoffQuote(remaining, l.AnnualRatePercent, lastEvent, asOf)
	if err != nil {
		return nil, err
	}
	return &QuoteDTO{
		LoanID:             l.LoanID,
		AsOf:               asOf,
		RemainingPrincipal: q.RemainingPrincipal.StringFixed(2),
		AccruedInterest:    q.AccruedInterest.StringFixed(2),
		TotalPayoff:        q.TotalPayoff.StringFixed(2),
	}, nil
}

// InitiatePayoff creates the loan's single payoff payment, due
// immediately; the next orchestrator sweep collects it like any other
// due payment. Completion of the payoff supersedes every remaining
// scheduled payment.
func (u *Usecase) InitiatePayoff(ctx context.Context, loanID string, asOf time.Time) (*PayoffDTO, error) {
	var dto *PayoffDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loanDomain.Loan) error {
		ps, err := r.Payments.ListByLoan(ctx, l.ID)
		if err != nil {
			return err
		}
		maxNumber := 0
		for _, p := range ps {
			if p.Kind == paymentDomain.KindPayoff {
				return loanDomain.ErrPayoffExists
			}
			if p.PaymentNumber > maxNumber {
				maxNumber = p.PaymentNumber
			}
		}

		remaining, lastEvent := remainingPrincipal(l, ps)
		if remaining.IsZero() {
			return loanDomain.ErrNothingToPayOff
		}
		q, err := amortization.PayoffQuote(remaining, l.AnnualRatePercent, lastEvent, asOf)
		if err != nil {
			return err
		}

		p := &paymentDomain.Payment{
			PaymentID:        id.NewID32(),
			LoanPK:           l.ID,
			LoanID:           l.LoanID,
			PaymentNumber:    maxNumber + 1,
			Kind:             paymentDomain.KindPayoff,
			Amount:           q.TotalPayoff,
			PrincipalPortion: q.RemainingPrincipal,
			InterestPortion:  q.AccruedInterest,
			DueDate:          asOf,
			Status:           paymentDomain.StatusScheduled,
		}
		if err := r.Payments.CreateBatch(ctx, []*paymentDomain.Payment{p}); err != nil {
			return err
		}
		if err := r.Audit.Append(ctx, &auditDomain.Entry{
			EntityType: auditDomain.EntityPayment,
			EntityID:   p.PaymentID,
			Action:     "payment.payoff_created",
			Actor:      auditDomain.ActorSystem,
			Detail:     fmt.Sprintf("loan=%s amount=%s", l.LoanID, q.TotalPayoff.StringFixed(2)),
		}); err != nil {
			return err
		}
		dto = &PayoffDTO{PaymentID: p.PaymentID, PayoffAmount: q.TotalPayoff.StringFixed(2)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

// RetryPayment resets a non-settled payment back to scheduled on admin
// request, clearing retry bookkeeping and the stale transfer ref. The
// reset can take the payment out of the unresolved set, so the loan's
// delinquency counter is re-derived immediately rather than waiting
// for the next sweep.
func (u *Usecase) RetryPayment(ctx context.Context, paymentID, actor string, asOf time.Time) error {
	p, err := u.payments.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Settled() {
		return paymentDomain.ErrAlreadySettled
	}

	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		ch := paymentDomain.ManualRetryChange()
		if err := r.Payments.Apply(ctx, paymentID, ch); err != nil {
			if errors.Is(err, paymentDomain.ErrStateConflict) {
				// Settled between our read and the update.
				return paymentDomain.ErrAlreadySettled
			}
			return err
		}
		return r.Audit.Append(ctx, &auditDomain.Entry{
			EntityType: auditDomain.EntityPayment,
			EntityID:   paymentID,
			Action:     ch.Action,
			Actor:      actor,
		})
	})
	if err != nil {
		return err
	}

	if _, err := u.collections.Recompute(ctx, p.LoanID, asOf); err != nil {
		u.logger.Warn("recompute after manual retry failed",
			zap.String("loan_id", p.LoanID), zap.Error(err))
	}
	return nil
}

// MarkPaymentPaidManually records an out-of-band settlement (check or
// cash). The reason note is mandatory and lands both as a collection
// note and in the audit trail; the gateway is bypassed entirely.
func (u *Usecase) MarkPaymentPaidManually(ctx context.Context, paymentID, noteBody, actor string, asOf time.Time) error {
	if noteBody == "" {
		return errors.New("a reason note is required to mark a payment paid")
	}

	p, err := u.payments.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Settled() {
		return paymentDomain.ErrAlreadySettled
	}

	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		ch := paymentDomain.ManualSettleChange(asOf.UTC())
		if err := r.Payments.Apply(ctx, paymentID, ch); err != nil {
			if errors.Is(err, paymentDomain.ErrStateConflict) {
				cur, gerr := r.Payments.GetByPaymentID(ctx, paymentID)
				if gerr == nil && cur.Settled() {
					return paymentDomain.ErrAlreadySettled
				}
				return fmt.Errorf("payment %s cannot be marked paid in state %s", paymentID, p.Status)
			}
			return err
		}
		if err := r.Loans.AddNote(ctx, &loanDomain.CollectionNote{
			NoteID: id.NewID32(),
			LoanID: p.LoanPK,
			Actor:  actor,
			Body:   noteBody,
		}); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &auditDomain.Entry{
			EntityType: auditDomain.EntityPayment,
			EntityID:   paymentID,
			Action:     ch.Action,
			Actor:      actor,
			Detail:     noteBody,
		})
	})
	if err != nil {
		return err
	}

	if p.Kind == paymentDomain.KindPayoff {
		u.SupersedeRemaining(ctx, p.LoanID, p.PaymentID)
	}
	if _, err := u.collections.Recompute(ctx, p.LoanID, asOf); err != nil {
		u.logger.Warn("recompute after manual settlement failed",
			zap.String("loan_id", p.LoanID), zap.Error(err))
	}
	return nil
}

// SettlementInput is the asynchronous outcome delivered by the
// transfer gateway callback.
type SettlementInput struct {
	TransferRef string
	Outcome     string // "settled" or "failed"
	FailureCode string
	ReceivedAt  time.Time
}

const (
	OutcomeSettled = "settled"
	OutcomeFailed  = "failed"
)

// ApplySettlement drives a processing payment to completed or failed
// from a gateway callback. terminalCode classifies provider failure
// codes. Conflicts are benign: a manual settlement may have beaten the
// callback.
func (u *Usecase) ApplySettlement(ctx context.Context, in SettlementInput, terminalCode func(string) bool) error {
	p, err := u.payments.GetByTransferRef(ctx, in.TransferRef)
	if err != nil {
		return err
	}

	switch in.Outcome {
	case OutcomeSettled:
		err = u.applyAudited(ctx, p.PaymentID, paymentDomain.SettleChange(in.TransferRef, in.ReceivedAt.UTC()), "")
		if errors.Is(err, paymentDomain.ErrStateConflict) {
			u.logger.Debug("settlement raced another transition",
				zap.String("payment_id", p.PaymentID),
				zap.String("transfer_ref", in.TransferRef))
			return nil
		}
		if err != nil {
			return err
		}
		if p.Kind == paymentDomain.KindPayoff {
			u.SupersedeRemaining(ctx, p.LoanID, p.PaymentID)
		}

	case OutcomeFailed:
		attempt := p.RetryCount + 1
		var ch paymentDomain.Change
		var event string
		if terminalCode(in.FailureCode) {
			ch = paymentDomain.RequiresActionChange("transfer failed permanently", in.FailureCode)
			event = notify.EventPaymentRequiresAction
		} else if attempt >= u.policy.MaxRetries {
			ch = paymentDomain.RequiresActionChange("automatic retries exhausted", in.FailureCode)
			event = notify.EventPaymentRequiresAction
		} else {
			next := paymentDomain.NextRetry(in.ReceivedAt.UTC(), u.policy.Backoff, attempt)
			ch = paymentDomain.FailChange("transfer failed", in.FailureCode, attempt, next)
			event = notify.EventPaymentFailed
		}
		err = u.applyAudited(ctx, p.PaymentID, ch, in.FailureCode)
		if errors.Is(err, paymentDomain.ErrStateConflict) {
			u.logger.Debug("failure callback raced another transition",
				zap.String("payment_id", p.PaymentID))
			return nil
		}
		if err != nil {
			return err
		}
		u.notifier.Notify(ctx, event, p.LoanID, p.PaymentID)

	default:
		return fmt.Errorf("unknown settlement outcome %q", in.Outcome)
	}

	if _, err := u.collections.Recompute(ctx, p.LoanID, in.ReceivedAt); err != nil {
		u.logger.Warn("recompute after settlement failed",
			zap.String("loan_id", p.LoanID), zap.Error(err))
	}
	return nil
}

// SupersedeRemaining administratively closes every non-settled payment
// of a loan after its payoff completed. Each closure is a real ledger
// transition; conflicts mean the payment settled concurrently and are
// skipped.
func (u *Usecase) SupersedeRemaining(ctx context.Context, loanID, payoffPaymentID string) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		u.logger.Warn("supersede: load loan", zap.String("loan_id", loanID), zap.Error(err))
		return
	}
	ps, err := u.payments.ListByLoan(ctx, l.ID)
	if err != nil {
		u.logger.Warn("supersede: list payments", zap.String("loan_id", loanID), zap.Error(err))
		return
	}
	for _, p := range ps {
		if p.PaymentID == payoffPaymentID || paymentDomain.Terminal(p.Status) {
			continue
		}
		err := u.applyAudited(ctx, p.PaymentID, paymentDomain.SupersedeChange(),
			fmt.Sprintf("superseded by payoff %s", payoffPaymentID))
		if err != nil && !errors.Is(err, paymentDomain.ErrStateConflict) {
			u.logger.Warn("supersede payment",
				zap.String("payment_id", p.PaymentID), zap.Error(err))
		}
	}
}

// applyAudited runs one conditional transition and its audit entry in
// a single transaction.
func (u *Usecase) applyAudited(ctx context.Context, paymentID string, ch paymentDomain.Change, detail string) error {
	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Payments.Apply(ctx, paymentID, ch); err != nil {
			return err
		}
		return r.Audit.Append(ctx, &auditDomain.Entry{
			EntityType: auditDomain.EntityPayment,
			EntityID:   paymentID,
			Action:     ch.Action,
			Actor:      auditDomain.ActorSystem,
			Detail:     detail,
		})
	})
}

func loanToDTO(l *loanDomain.Loan) *LoanDTO {
	return &LoanDTO{
		LoanID:              l.LoanID,
		BorrowerID:          l.BorrowerID,
		Principal:           l.Principal.StringFixed(2),
		AnnualRatePercent:   l.AnnualRatePercent.String(),
		TermMonths:          l.TermMonths,
		FundingDate:         l.FundingDate,
		Status:              string(l.Status),
		DaysOverdue:         l.DaysOverdue,
		SentToCollectionsAt: l.SentToCollectionsAt,
		CollectionsAgency:   l.CollectionsAgency,
		CreatedAt:           l.CreatedAt,
	}
}

func paymentToDTO(p *paymentDomain.Payment) PaymentDTO {
	return PaymentDTO{
		PaymentID:        p.PaymentID,
		LoanID:           p.LoanID,
		PaymentNumber:    p.PaymentNumber,
		Kind:             string(p.Kind),
		Amount:           p.Amount.StringFixed(2),
		PrincipalPortion: p.PrincipalPortion.StringFixed(2),
		InterestPortion:  p.InterestPortion.StringFixed(2),
		DueDate:          p.DueDate,
		Status:           string(p.Status),
		RetryCount:       p.RetryCount,
		FailureReason:    p.FailureReason,
		CompletedAt:      p.CompletedAt,
	}
}

// remainingPrincipal sums completed principal portions against the
// funded principal and finds the accrual anchor: the later of funding
// and the last completed payment.
func remainingPrincipal(l *loanDomain.Loan, ps []paymentDomain.Payment) (decimal.Decimal, time.Time) {
	remaining := l.Principal
	lastEvent := l.FundingDate
	for _, p := range ps {
		if p.Status != paymentDomain.StatusCompleted {
			continue
		}
		remaining = remaining.Sub(p.PrincipalPortion)
		if p.CompletedAt != nil && p.CompletedAt.After(lastEvent) {
			lastEvent = *p.CompletedAt
		}
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return remaining, lastEvent
}
