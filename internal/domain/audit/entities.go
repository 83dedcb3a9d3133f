package audit

import (
	"context"
	"time"
)

// Entry is an append-only audit record. Entries are written for every
// committed ledger transition and collections escalation; they are
// never updated or deleted.
type Entry struct {
	ID         uint64    `gorm:"primaryKey;column:id" json:"-"`
	EntityType string    `gorm:"size:32;column:entity_type;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   string    `gorm:"size:32;column:entity_id;index:idx_audit_entity,priority:2" json:"entity_id"`
	Action     string    `gorm:"size:64" json:"action"`
	Actor      string    `gorm:"size:64" json:"actor"`
	Detail     string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Entry) TableName() string { return "audit_log" }

const (
	EntityLoan    = "loan"
	EntityPayment = "payment"

	// ActorSystem marks entries produced by the orchestrator and
	// settlement flows rather than an admin.
	ActorSystem = "system"
)

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]Entry, error)
}
