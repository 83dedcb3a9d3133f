package loan

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusFunded    Status = "funded"
	StatusRepaying  Status = "repaying"
	StatusPaidOff   Status = "paid_off"
	StatusDefaulted Status = "defaulted"
)

// AllStatuses lists every lifecycle status, for exhaustive reporting.
var AllStatuses = []Status{StatusFunded, StatusRepaying, StatusPaidOff, StatusDefaulted}

// statusRank orders the lifecycle so a recompute never walks a loan
// backwards (funded → repaying → paid_off/defaulted is monotonic; the
// only sanctioned reversal is a manual admin override).
var statusRank = map[Status]int{
	StatusFunded:    0,
	StatusRepaying:  1,
	StatusDefaulted: 2,
	StatusPaidOff:   3,
}

// Advances reports whether moving from cur to next goes forward in the
// lifecycle. Equal rank is not an advance.
func Advances(cur, next Status) bool {
	return statusRank[next] > statusRank[cur]
}

// CollectionBand buckets loans for collections work queues. Bands are
// derived from days_overdue and the escalation stamp; they are not a
// stored loan state.
type CollectionBand string

const (
	BandAtRisk        CollectionBand = "at_risk"
	BandDefaulted     CollectionBand = "defaulted"
	BandInCollections CollectionBand = "in_collections"
)

const (
	// AtRiskDays is the inclusive lower bound of the at-risk band.
	AtRiskDays = 30
	// DefaultDays is the inclusive lower bound at which a loan is
	// treated as defaulted.
	DefaultDays = 60
)

type Loan struct {
	ID         uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID     string          `gorm:"size:32;uniqueIndex:ux_loans_loan_id_active" json:"loan_id"`
	BorrowerID string          `gorm:"size:32;index:idx_loans_borrower_active" json:"borrower_id"`
	AccountRef string          `gorm:"size:64;column:account_ref" json:"-"`
	Principal  decimal.Decimal `gorm:"type:decimal(18,2)" json:"principal"`
	// AnnualRatePercent is the APR as a percentage, e.g. 19.990.
	AnnualRatePercent decimal.Decimal `gorm:"type:decimal(6,3);column:annual_rate_percent" json:"annual_rate_percent"`
	TermMonths        int             `gorm:"column:term_months" json:"term_months"`
	FundingDate       time.Time       `gorm:"type:date;column:funding_date" json:"funding_date"`

	Status          Status    `gorm:"type:enum('funded','repaying','paid_off','defaulted');default:'funded'" json:"status"`
	StatusUpdatedAt time.Time `gorm:"autoCreateTime" json:"status_updated_at"`

	// DaysOverdue is derived by the collections manager; nothing else
	// writes it.
	DaysOverdue int `gorm:"column:days_overdue;default:0" json:"days_overdue"`

	SentToCollectionsAt *time.Time `gorm:"column:sent_to_collections_at" json:"sent_to_collections_at,omitempty"`
	CollectionsAgency   string     `gorm:"size:128;column:collections_agency" json:"collections_agency,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Loan) TableName() string { return "loans" }

// InCollections reports whether the loan has been escalated to an
// external agency. Escalated loans leave the automatic queues.
func (l *Loan) InCollections() bool { return l.SentToCollectionsAt != nil }

// CollectionNote is an append-only activity record on a loan. Notes are
// never edited or deleted after creation.
type CollectionNote struct {
	ID        uint64    `gorm:"primaryKey;column:id" json:"-"`
	NoteID    string    `gorm:"size:32;uniqueIndex:ux_collection_notes_note_id" json:"note_id"`
	LoanID    uint64    `gorm:"column:loan_id;not null;index" json:"-"`
	Actor     string    `gorm:"size:64" json:"actor"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CollectionNote) TableName() string { return "collection_notes" }
