package entity

import "time"

// SoftDelete marks records that are never physically removed.
// A set DeletedAt hides the row from default listings; the row still
// resolves by id.
type SoftDelete struct {
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// IsDeleted returns true if entity has been soft-deleted.
func (s *SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}

// MarkDeleted sets the deletion timestamp.
func (s *SoftDelete) MarkDeleted(at time.Time) {
	s.DeletedAt = &at
}
