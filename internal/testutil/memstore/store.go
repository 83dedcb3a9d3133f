// Package memstore is an in-memory implementation of the engine's
// repositories and unit of work, with real conditional-update
// semantics, for usecase and orchestrator tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	auditDomain "hearthpay/internal/domain/audit"
	loanDomain "hearthpay/internal/domain/loan"
	paymentDomain "hearthpay/internal/domain/payment"
	"hearthpay/internal/domain/uow"
)

type Store struct {
	mu       sync.Mutex
	nextPK   uint64
	loans    map[string]*loanDomain.Loan
	payments map[string]*paymentDomain.Payment
	notes    []loanDomain.CollectionNote
	audit    []auditDomain.Entry
}

func New() *Store {
	return &Store{
		loans:    map[string]*loanDomain.Loan{},
		payments: map[string]*paymentDomain.Payment{},
	}
}

func (s *Store) pk() uint64 { s.nextPK++; return s.nextPK }

// Loans returns the store viewed as a loan repository; likewise
// Payments and Audit. All views share one lock.
func (s *Store) Loans() loanDomain.Repository       { return (*loanRepo)(s) }
func (s *Store) Payments() paymentDomain.Repository { return (*paymentRepo)(s) }
func (s *Store) Audit() auditDomain.Repository      { return (*auditRepo)(s) }

// AuditEntries snapshots the audit log for assertions.
func (s *Store) AuditEntries() []auditDomain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auditDomain.Entry, len(s.audit))
	copy(out, s.audit)
	return out
}

// --- unit of work ---

func (s *Store) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return fn(uow.Repos{Loans: s.Loans(), Payments: s.Payments(), Audit: s.Audit()})
}

func (s *Store) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loanDomain.Loan) error) error {
	l, err := s.Loans().GetByLoanIDForUpdate(ctx, loanID)
	if err != nil {
		return err
	}
	return fn(uow.Repos{Loans: s.Loans(), Payments: s.Payments(), Audit: s.Audit()}, l)
}

// --- loan repository ---

type loanRepo Store

func (r *loanRepo) Create(_ context.Context, l *loanDomain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = (*Store)(r).pk()
	cp := *l
	r.loans[l.LoanID] = &cp
	return nil
}

func (r *loanRepo) get(loanID string) (*loanDomain.Loan, error) {
	l, ok := r.loans[loanID]
	if !ok {
		return nil, loanDomain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *loanRepo) GetByLoanID(_ context.Context, loanID string) (*loanDomain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(loanID)
}

func (r *loanRepo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	return r.GetByLoanID(ctx, loanID)
}

func (r *loanRepo) Save(_ context.Context, l *loanDomain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loans[l.LoanID]; !ok {
		return loanDomain.ErrNotFound
	}
	cp := *l
	r.loans[l.LoanID] = &cp
	return nil
}

func (r *loanRepo) CountByStatus(_ context.Context) (map[loanDomain.Status]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[loanDomain.Status]int{}
	for _, l := range r.loans {
		out[l.Status]++
	}
	return out, nil
}

func (r *loanRepo) ListBand(_ context.Context, band loanDomain.CollectionBand) ([]loanDomain.Loan, error) {
	switch band {
	case loanDomain.BandAtRisk, loanDomain.BandDefaulted, loanDomain.BandInCollections:
	default:
		return nil, loanDomain.ErrUnknownBand
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []loanDomain.Loan
	for _, l := range r.loans {
		switch band {
		case loanDomain.BandAtRisk:
			if l.DaysOverdue >= loanDomain.AtRiskDays && l.DaysOverdue < loanDomain.DefaultDays &&
				l.Status != loanDomain.StatusDefaulted && !l.InCollections() {
				out = append(out, *l)
			}
		case loanDomain.BandDefaulted:
			if (l.Status == loanDomain.StatusDefaulted || l.DaysOverdue >= loanDomain.DefaultDays) && !l.InCollections() {
				out = append(out, *l)
			}
		case loanDomain.BandInCollections:
			if l.InCollections() {
				out = append(out, *l)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DaysOverdue > out[j].DaysOverdue })
	return out, nil
}

func (r *loanRepo) AddNote(_ context.Context, n *loanDomain.CollectionNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = (*Store)(r).pk()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.notes = append(r.notes, *n)
	return nil
}

func (r *loanRepo) ListNotes(_ context.Context, loanPK uint64) ([]loanDomain.CollectionNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []loanDomain.CollectionNote
	for _, n := range r.notes {
		if n.LoanID == loanPK {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- payment repository ---

type paymentRepo Store

func (r *paymentRepo) CreateBatch(_ context.Context, ps []*paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ps {
		p.ID = (*Store)(r).pk()
		cp := *p
		r.payments[p.PaymentID] = &cp
	}
	return nil
}

func (r *paymentRepo) GetByPaymentID(_ context.Context, paymentID string) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, paymentDomain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *paymentRepo) GetByTransferRef(_ context.Context, ref string) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.TransferRef != nil && *p.TransferRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, paymentDomain.ErrNotFound
}

func (r *paymentRepo) ListByLoan(_ context.Context, loanPK uint64) ([]paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []paymentDomain.Payment
	for _, p := range r.payments {
		if p.LoanPK == loanPK {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentNumber < out[j].PaymentNumber })
	return out, nil
}

func (r *paymentRepo) ListDue(_ context.Context, asOf time.Time) ([]paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []paymentDomain.Payment
	for _, p := range r.payments {
		switch {
		case p.Status == paymentDomain.StatusScheduled && !p.DueDate.After(asOf):
			out = append(out, *p)
		case p.Status == paymentDomain.StatusFailed && p.NextRetryAt != nil && !p.NextRetryAt.After(asOf):
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoanPK != out[j].LoanPK {
			return out[i].LoanPK < out[j].LoanPK
		}
		return out[i].PaymentNumber < out[j].PaymentNumber
	})
	return out, nil
}

func (r *paymentRepo) ListOverdueCandidates(_ context.Context, cutoff time.Time) ([]paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []paymentDomain.Payment
	for _, p := range r.payments {
		if (p.Status == paymentDomain.StatusScheduled || p.Status == paymentDomain.StatusFailed) &&
			!p.DueDate.After(cutoff) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentNumber < out[j].PaymentNumber })
	return out, nil
}

// Apply mirrors the SQL conditional update: check-and-set under one
// lock.
func (r *paymentRepo) Apply(_ context.Context, paymentID string, ch paymentDomain.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return paymentDomain.ErrNotFound
	}
	matched := false
	for _, s := range ch.Expect {
		if p.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return paymentDomain.ErrStateConflict
	}

	for col, v := range ch.Set {
		switch col {
		case "status":
			p.Status = v.(paymentDomain.Status)
		case "transfer_ref":
			if v == nil {
				p.TransferRef = nil
			} else {
				s := v.(string)
				p.TransferRef = &s
			}
		case "completed_at":
			t := v.(time.Time)
			p.CompletedAt = &t
		case "retry_count":
			p.RetryCount = v.(int)
		case "next_retry_at":
			if v == nil {
				p.NextRetryAt = nil
			} else {
				t := v.(time.Time)
				p.NextRetryAt = &t
			}
		case "failure_reason":
			p.FailureReason = v.(string)
		case "failure_code":
			p.FailureCode = v.(string)
		}
	}
	return nil
}

// --- audit repository ---

type auditRepo Store

func (r *auditRepo) Append(_ context.Context, e *auditDomain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = (*Store)(r).pk()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.audit = append(r.audit, *e)
	return nil
}

func (r *auditRepo) ListByEntity(_ context.Context, entityType, entityID string) ([]auditDomain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []auditDomain.Entry
	for _, e := range r.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
