package mysql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// --- SQLite-friendly schemas only for tests (no ENUM) ---

type loanSQLite struct {
	ID                  uint64 `gorm:"primaryKey;column:id"`
	LoanID              string `gorm:"size:32;column:loan_id"`
	BorrowerID          string `gorm:"size:32;column:borrower_id"`
	AccountRef          string `gorm:"column:account_ref"`
	Principal           decimal.Decimal
	AnnualRatePercent   decimal.Decimal `gorm:"column:annual_rate_percent"`
	TermMonths          int             `gorm:"column:term_months"`
	FundingDate         time.Time       `gorm:"column:funding_date"`
	Status              string          `gorm:"type:text;column:status"` // ← no enum
	StatusUpdatedAt     time.Time       `gorm:"column:status_updated_at"`
	DaysOverdue         int             `gorm:"column:days_overdue"`
	SentToCollectionsAt *time.Time      `gorm:"column:sent_to_collections_at"`
	CollectionsAgency   string          `gorm:"column:collections_agency"`
	CreatedAt           time.Time       `gorm:"column:created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at"`
	DeletedAt           gorm.DeletedAt  `gorm:"column:deleted_at"`
}

func (loanSQLite) TableName() string { return "loans" }

type paymentSQLite struct {
	ID               uint64 `gorm:"primaryKey;column:id"`
	PaymentID        string `gorm:"size:32;column:payment_id"`
	LoanPK           uint64 `gorm:"column:loan_id"`
	LoanID           string `gorm:"column:loan_public_id"`
	PaymentNumber    int    `gorm:"column:payment_number"`
	Kind             string `gorm:"type:text;column:kind"` // ← no enum
	Amount           decimal.Decimal
	PrincipalPortion decimal.Decimal `gorm:"column:principal_portion"`
	InterestPortion  decimal.Decimal `gorm:"column:interest_portion"`
	DueDate          time.Time       `gorm:"column:due_date"`
	Status           string          `gorm:"type:text;column:status"` // ← no enum
	RetryCount       int             `gorm:"column:retry_count"`
	NextRetryAt      *time.Time      `gorm:"column:next_retry_at"`
	FailureReason    string          `gorm:"column:failure_reason"`
	FailureCode      string          `gorm:"column:failure_code"`
	TransferRef      *string         `gorm:"column:transfer_ref"`
	CompletedAt      *time.Time      `gorm:"column:completed_at"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"column:deleted_at"`
}

func (paymentSQLite) TableName() string { return "payments" }

type noteSQLite struct {
	ID        uint64    `gorm:"primaryKey;column:id"`
	NoteID    string    `gorm:"column:note_id"`
	LoanID    uint64    `gorm:"column:loan_id"`
	Actor     string    `gorm:"column:actor"`
	Body      string    `gorm:"column:body"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (noteSQLite) TableName() string { return "collection_notes" }

type auditSQLite struct {
	ID         uint64    `gorm:"primaryKey;column:id"`
	EntityType string    `gorm:"column:entity_type"`
	EntityID   string    `gorm:"column:entity_id"`
	Action     string    `gorm:"column:action"`
	Actor      string    `gorm:"column:actor"`
	Detail     string    `gorm:"column:detail"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (auditSQLite) TableName() string { return "audit_log" }

// openTestDB creates an in-memory sqlite DB and migrates ONLY the
// sqlite-safe schemas, never the domain models.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&loanSQLite{}, &paymentSQLite{}, &noteSQLite{}, &auditSQLite{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}
