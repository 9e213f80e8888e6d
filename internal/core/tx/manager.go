// Package tx defines the transaction contract used by domain services.
// The local store implementation lives in infrastructure/storage/sqlite.
package tx

import (
	"context"
)

// Manager runs a unit of work atomically against the local store.
type Manager interface {
	// RunInTransaction executes fn within a transaction carried in ctx.
	// An error from fn rolls back; nested calls join the outer transaction.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
