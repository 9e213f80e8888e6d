// Package context carries the caller identity and request tracing values
// through context.Context. Every ledger operation reads the active
// organization and user from here instead of from process-wide state.
package context

import (
	"context"
	"slices"
)

// UserContext describes who is performing an operation and on behalf of
// which organization.
type UserContext struct {
	UserID string
	// OrgID is the active organization used when an operation does not name one.
	OrgID  string
	Email  string
	Roles  []string
	OrgIDs []string // Organizations the caller may act for
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetOrgID returns the active organization from context or empty string.
func GetOrgID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.OrgID
	}
	return ""
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	return u != nil && slices.Contains(u.Roles, role)
}

// HasOrgAccess checks if the caller may act for orgID.
func HasOrgAccess(ctx context.Context, orgID string) bool {
	u := GetUser(ctx)
	if u == nil || orgID == "" {
		return false
	}
	return u.OrgID == orgID || slices.Contains(u.OrgIDs, orgID)
}
