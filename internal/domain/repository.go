// Package domain provides types shared by the ledger's domain services.
package domain

import (
	"fieldledger/internal/core/id"
)

// StatusAll is the status filter value meaning "any status".
const StatusAll = "ALL"

const (
	DefaultListLimit = 30
	MaxListLimit     = 200
)

// ListFilter contains the filtering options of list operations.
type ListFilter struct {
	// OrgID scopes the listing; empty means the caller's active organization.
	OrgID string

	// Search is a case-insensitive substring matched against name, number,
	// notes and, for documents, the client name.
	Search string

	// Status filters documents by status; "" or StatusAll disables it.
	Status string

	// ClientID restricts documents to one client.
	ClientID *id.ID

	// IncludeDeleted includes soft-deleted records
	IncludeDeleted bool

	// Pagination. An unset Limit means DefaultListLimit; the rest is
	// clamped to [1, MaxListLimit].
	Limit  int
	Offset int
}

// Normalize clamps pagination and clears the ALL sentinel.
func (f ListFilter) Normalize() ListFilter {
	switch {
	case f.Limit == 0:
		f.Limit = DefaultListLimit
	case f.Limit < 0:
		f.Limit = 1
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Status == StatusAll {
		f.Status = ""
	}
	return f
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
