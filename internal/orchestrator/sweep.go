// Package orchestrator is the cron-driven control loop: it scans the
// ledger for due work, pushes debits through the transfer gateway, and
// drives the delinquency sweep. The reference time is always passed
// in, never read from the wall clock, so sweeps are replayable in
// tests.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hearthpay/internal/adapter/gateway"
	"hearthpay/internal/adapter/notify"
	auditDomain "hearthpay/internal/domain/audit"
	loanDomain "hearthpay/internal/domain/loan"
	paymentDomain "hearthpay/internal/domain/payment"
	"hearthpay/internal/usecase/collections"
	"hearthpay/pkg/metrics"
)

// Policy bounds one sweep's behavior.
type Policy struct {
	// Workers is the size of the per-sweep worker pool.
	Workers int
	// MaxRetries caps automatic attempts per payment.
	MaxRetries int
	// Backoff is the base retry interval, doubled per attempt.
	Backoff time.Duration
	// GraceDays is how long past the due date a payment may linger
	// before the delinquency sweep flips it to overdue.
	GraceDays int
	// GatewayTimeout bounds each transfer initiation so one stuck call
	// cannot stall the sweep.
	GatewayTimeout time.Duration
}

// Summary is the per-sweep observability record.
type Summary struct {
	Due            int `json:"due"`
	Claimed        int `json:"claimed"`
	Initiated      int `json:"initiated"`
	Failed         int `json:"failed"`
	RequiresAction int `json:"requires_action"`
	Overdue        int `json:"overdue"`
	Conflicts      int `json:"conflicts"`
}

type Orchestrator struct {
	payments    paymentDomain.Repository
	loans       loanDomain.Repository
	audit       auditDomain.Repository
	gateway     gateway.TransferGateway
	collections *collections.Usecase
	notifier    notify.Dispatcher
	metrics     *metrics.Collector
	policy      Policy
	logger      *zap.Logger
}

func New(
	payments paymentDomain.Repository,
	loans loanDomain.Repository,
	audit auditDomain.Repository,
	gw gateway.TransferGateway,
	col *collections.Usecase,
	n notify.Dispatcher,
	m *metrics.Collector,
	policy Policy,
	logger *zap.Logger,
) *Orchestrator {
	if policy.Workers < 1 {
		policy.Workers = 1
	}
	return &Orchestrator{
		payments:    payments,
		loans:       loans,
		audit:       audit,
		gateway:     gw,
		collections: col,
		notifier:    n,
		metrics:     m,
		policy:      policy,
		logger:      logger,
	}
}

// Sweep runs one full pass: collect due payments, then the delinquency
// sweep, then a recompute for every touched loan. Safe to run
// concurrently with itself; the ledger's conditional transitions
// resolve all races.
func (o *Orchestrator) Sweep(ctx context.Context, asOf time.Time) (Summary, error) {
	start := time.Now()

	var (
		mu      sync.Mutex
		sum     Summary
		touched = map[string]struct{}{}
	)
	touch := func(loanID string) {
		mu.Lock()
		touched[loanID] = struct{}{}
		mu.Unlock()
	}

	// Delinquency first: anything beyond the grace window flips to
	// overdue and leaves the collection selection, so a stale schedule
	// is never debited weeks late.
	overdue, err := o.sweepOverdue(ctx, asOf, touch)
	if err != nil {
		o.logger.Error("overdue sweep failed", zap.Error(err))
	}
	sum.Overdue = overdue

	due, err := o.payments.ListDue(ctx, asOf)
	if err != nil {
		return sum, fmt.Errorf("list due payments: %w", err)
	}
	sum.Due = len(due)

	// Bounded worker pool; one unit of work per payment, each isolated
	// so a single failure never aborts the batch.
	sem := make(chan struct{}, o.policy.Workers)
	var wg sync.WaitGroup
	for i := range due {
		p := due[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res := o.collect(ctx, &p, asOf)
			mu.Lock()
			sum.Claimed += res.claimed
			sum.Initiated += res.initiated
			sum.Failed += res.failed
			sum.RequiresAction += res.requiresAction
			sum.Conflicts += res.conflicts
			mu.Unlock()
			if res.touchedLoan {
				touch(p.LoanID)
			}
		}()
	}
	wg.Wait()

	for loanID := range touched {
		if _, err := o.collections.Recompute(ctx, loanID, asOf); err != nil {
			o.logger.Warn("loan recompute failed", zap.String("loan_id", loanID), zap.Error(err))
		}
	}

	if o.metrics != nil {
		o.metrics.RecordSweep(time.Since(start), sum.Initiated, sum.Failed, sum.Overdue, sum.Conflicts)
		o.publishLoanGauges(ctx)
	}
	o.logger.Info("sweep complete",
		zap.Time("as_of", asOf),
		zap.Int("due", sum.Due),
		zap.Int("claimed", sum.Claimed),
		zap.Int("initiated", sum.Initiated),
		zap.Int("failed", sum.Failed),
		zap.Int("requires_action", sum.RequiresAction),
		zap.Int("overdue", sum.Overdue),
		zap.Int("conflicts", sum.Conflicts),
		zap.Duration("took", time.Since(start)),
	)
	return sum, nil
}

type collectResult struct {
	claimed, initiated, failed, requiresAction, conflicts int
	touchedLoan                                           bool
}

// collect processes one due payment: exhaustion check, claim, initiate.
func (o *Orchestrator) collect(ctx context.Context, p *paymentDomain.Payment, asOf time.Time) collectResult {
	var res collectResult

	// A failed payment out of attempts goes to manual remediation
	// instead of another claim.
	if p.Status == paymentDomain.StatusFailed && p.RetryCount >= o.policy.MaxRetries {
		ch := paymentDomain.RequiresActionChange("automatic retries exhausted", p.FailureCode)
		if err := o.apply(ctx, p.PaymentID, ch, ""); err != nil {
			if !errors.Is(err, paymentDomain.ErrStateConflict) {
				o.logger.Error("park exhausted payment", zap.String("payment_id", p.PaymentID), zap.Error(err))
			}
			res.conflicts++
			return res
		}
		res.requiresAction++
		res.touchedLoan = true
		o.notifier.Notify(ctx, notify.EventPaymentRequiresAction, p.LoanID, p.PaymentID)
		return res
	}

	// Claim. Losing the conditional update means a concurrent run owns
	// this payment; skip silently.
	if err := o.apply(ctx, p.PaymentID, paymentDomain.ClaimChange(), ""); err != nil {
		if errors.Is(err, paymentDomain.ErrStateConflict) {
			o.logger.Debug("claim lost to concurrent run", zap.String("payment_id", p.PaymentID))
		} else {
			o.logger.Error("claim payment", zap.String("payment_id", p.PaymentID), zap.Error(err))
		}
		res.conflicts++
		return res
	}
	res.claimed++
	res.touchedLoan = true

	l, err := o.loans.GetByLoanID(ctx, p.LoanID)
	if err != nil {
		o.failPayment(ctx, p, asOf, &res, "loan lookup failed", "internal_error", false)
		return res
	}

	gctx, cancel := context.WithTimeout(ctx, o.policy.GatewayTimeout)
	defer cancel()
	desc := fmt.Sprintf("loan %s payment %d", p.LoanID, p.PaymentNumber)
	ref, err := o.gateway.InitiateTransfer(gctx, l.AccountRef, p.Amount, desc)
	if err != nil {
		code, terminal := "gateway_error", false
		var ge *gateway.Error
		if errors.As(err, &ge) {
			code, terminal = ge.Code, ge.Terminal
		}
		o.failPayment(ctx, p, asOf, &res, err.Error(), code, terminal)
		return res
	}

	if err := o.apply(ctx, p.PaymentID, paymentDomain.AttachTransferChange(ref), ref); err != nil {
		// The claim is ours, so this only fails if an admin raced us;
		// the settlement callback will still find the payment by ref
		// once the provider reports.
		o.logger.Warn("attach transfer ref", zap.String("payment_id", p.PaymentID), zap.Error(err))
	}
	res.initiated++
	return res
}

// failPayment maps a synchronous initiation failure onto the retry
// taxonomy: terminal or exhausted → requires_action, else failed with
// backoff.
func (o *Orchestrator) failPayment(ctx context.Context, p *paymentDomain.Payment, asOf time.Time, res *collectResult, reason, code string, terminal bool) {
	attempt := p.RetryCount + 1
	var ch paymentDomain.Change
	event := notify.EventPaymentFailed
	switch {
	case terminal:
		ch = paymentDomain.RequiresActionChange(reason, code)
		event = notify.EventPaymentRequiresAction
		res.requiresAction++
	case attempt >= o.policy.MaxRetries:
		ch = paymentDomain.RequiresActionChange("automatic retries exhausted: "+reason, code)
		event = notify.EventPaymentRequiresAction
		res.requiresAction++
	default:
		next := paymentDomain.NextRetry(asOf, o.policy.Backoff, attempt)
		ch = paymentDomain.FailChange(reason, code, attempt, next)
		res.failed++
	}

	if err := o.apply(ctx, p.PaymentID, ch, code); err != nil {
		o.logger.Error("record transfer failure", zap.String("payment_id", p.PaymentID), zap.Error(err))
		return
	}
	o.notifier.Notify(ctx, event, p.LoanID, p.PaymentID)
}

// publishLoanGauges refreshes the per-status loan gauge after a sweep.
// Every status is set so a bucket that empties drops back to zero.
func (o *Orchestrator) publishLoanGauges(ctx context.Context) {
	counts, err := o.loans.CountByStatus(ctx)
	if err != nil {
		o.logger.Warn("count loans by status", zap.Error(err))
		return
	}
	for _, s := range loanDomain.AllStatuses {
		o.metrics.SetLoanGauge(string(s), counts[s])
	}
}

// sweepOverdue flips payments past due date plus grace to overdue.
func (o *Orchestrator) sweepOverdue(ctx context.Context, asOf time.Time, touch func(string)) (int, error) {
	cutoff := asOf.AddDate(0, 0, -o.policy.GraceDays)
	cands, err := o.payments.ListOverdueCandidates(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range cands {
		p := cands[i]
		// A failed payment with a pending retry still belongs to the
		// retry loop; the collection pass decides whether it retries or
		// goes to manual remediation.
		if p.Status == paymentDomain.StatusFailed && p.NextRetryAt != nil {
			continue
		}
		if err := o.apply(ctx, p.PaymentID, paymentDomain.OverdueChange(), ""); err != nil {
			if !errors.Is(err, paymentDomain.ErrStateConflict) {
				o.logger.Error("flip overdue", zap.String("payment_id", p.PaymentID), zap.Error(err))
			}
			continue
		}
		count++
		touch(p.LoanID)
		o.notifier.Notify(ctx, notify.EventPaymentOverdue, p.LoanID, p.PaymentID)
	}
	return count, nil
}

func (o *Orchestrator) apply(ctx context.Context, paymentID string, ch paymentDomain.Change, detail string) error {
	if err := o.payments.Apply(ctx, paymentID, ch); err != nil {
		return err
	}
	if err := o.audit.Append(ctx, &auditDomain.Entry{
		EntityType: auditDomain.EntityPayment,
		EntityID:   paymentID,
		Action:     ch.Action,
		Actor:      auditDomain.ActorSystem,
		Detail:     detail,
	}); err != nil {
		o.logger.Warn("audit append failed", zap.String("payment_id", paymentID), zap.Error(err))
	}
	return nil
}
