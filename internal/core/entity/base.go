// Package entity provides the fields shared by every ledger record.
package entity

import (
	"context"
	"time"

	"fieldledger/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity contains identity, ownership and audit fields.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// OrgID scopes the record; every query filters on it
	OrgID string `db:"org_id" json:"orgId"`

	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	SoftDelete
}

// NewBaseEntity creates a BaseEntity with a fresh ID stamped at now.
func NewBaseEntity(orgID, userID string, now time.Time) BaseEntity {
	return BaseEntity{
		ID:        id.New(),
		OrgID:     orgID,
		CreatedBy: userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch sets UpdatedAt.
func (b *BaseEntity) Touch(now time.Time) {
	b.UpdatedAt = now
}

// GetID returns the entity id.
func (b *BaseEntity) GetID() id.ID { return b.ID }
