package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"gorm.io/gorm"
)

type Status string

const (
	StatusScheduled      Status = "scheduled"
	StatusProcessing     Status = "processing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusOverdue        Status = "overdue"
	StatusRequiresAction Status = "requires_action"
	// StatusSuperseded is the administrative closure applied to the
	// remaining payments of a loan once its payoff payment completes.
	// It is a real ledger transition, not a deletion.
	StatusSuperseded Status = "superseded"
)

type Kind string

const (
	KindInstallment Kind = "installment"
	KindPayoff      Kind = "payoff"
)

// transitions is the full ledger state machine. Anything not listed is
// rejected. completed and superseded are terminal.
var transitions = map[Status][]Status{
	StatusScheduled:      {StatusProcessing, StatusOverdue, StatusSuperseded},
	StatusProcessing:     {StatusCompleted, StatusFailed, StatusOverdue, StatusSuperseded},
	StatusFailed:         {StatusScheduled, StatusProcessing, StatusRequiresAction, StatusOverdue, StatusCompleted, StatusSuperseded},
	StatusOverdue:        {StatusScheduled, StatusCompleted, StatusSuperseded},
	StatusRequiresAction: {StatusScheduled, StatusCompleted, StatusSuperseded},
	StatusCompleted:      {},
	StatusSuperseded:     {},
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func Terminal(s Status) bool { return len(transitions[s]) == 0 }

type Payment struct {
	ID        uint64 `gorm:"primaryKey;column:id" json:"-"`
	PaymentID string `gorm:"size:32;uniqueIndex:ux_payments_payment_id" json:"payment_id"`
	LoanPK    uint64 `gorm:"column:loan_id;not null;index;uniqueIndex:ux_payments_loan_number,priority:1" json:"-"`
	LoanID    string `gorm:"size:32;column:loan_public_id;index" json:"loan_id"`

	// PaymentNumber is 1..N for installments, contiguous and unique per
	// loan; a payoff payment takes N+1.
	PaymentNumber int  `gorm:"column:payment_number;not null;uniqueIndex:ux_payments_loan_number,priority:2" json:"payment_number"`
	Kind          Kind `gorm:"type:enum('installment','payoff');default:'installment'" json:"kind"`

	Amount           decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	PrincipalPortion decimal.Decimal `gorm:"type:decimal(18,2);column:principal_portion" json:"principal_portion"`
	InterestPortion  decimal.Decimal `gorm:"type:decimal(18,2);column:interest_portion" json:"interest_portion"`

	DueDate time.Time `gorm:"type:date;column:due_date;index" json:"due_date"`
	Status  Status    `gorm:"type:enum('scheduled','processing','completed','failed','overdue','requires_action','superseded');default:'scheduled';index" json:"status"`

	RetryCount    int        `gorm:"column:retry_count;default:0" json:"retry_count"`
	NextRetryAt   *time.Time `gorm:"column:next_retry_at" json:"next_retry_at,omitempty"`
	FailureReason string     `gorm:"size:255;column:failure_reason" json:"failure_reason,omitempty"`
	FailureCode   string     `gorm:"size:64;column:failure_code" json:"failure_code,omitempty"`

	// TransferRef is the gateway's transfer identifier; present only
	// while processing or completed, cleared on a retry reset.
	TransferRef *string    `gorm:"size:64;column:transfer_ref;index" json:"transfer_ref,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Payment) TableName() string { return "payments" }

// Settled reports whether the payment has been collected, either via
// the gateway or an out-of-band manual settlement.
func (p *Payment) Settled() bool { return p.Status == StatusCompleted }
