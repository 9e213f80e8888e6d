// Package outbox defines the operations handed to the sync transport.
//
// Every ledger mutation produces one or more operations, keyed by entity
// kind and id so the transport can apply them idempotently on the server.
package outbox

import (
	"context"
	"sync"
	"time"

	"fieldledger/internal/core/id"
)

// OpType is the kind of change.
type OpType string

const (
	OpCreate OpType = "CREATE"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"
)

// Operation is one queued mutation.
//
// Payload is the full entity for CREATE, {entity, patch} (see UpdatePayload)
// or a map of changed fields for UPDATE, and DeletePayload for DELETE.
type Operation struct {
	EntityKind string    `json:"entityKind"`
	EntityID   id.ID     `json:"entityId"`
	Type       OpType    `json:"op"`
	OrgID      string    `json:"orgId"`
	Timestamp  time.Time `json:"ts"`
	Payload    any       `json:"payload"`
}

// UpdatePayload carries the post-write entity and the patch that produced it.
type UpdatePayload struct {
	Entity any `json:"entity"`
	Patch  any `json:"patch,omitempty"`
}

// DeletePayload is the tombstone of a soft delete.
type DeletePayload struct {
	ID        id.ID     `json:"id"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Emitter receives operations. Emit errors are reported but never undo
// the local write that produced the operation.
type Emitter interface {
	Emit(ctx context.Context, op Operation) error
}

// Recorder is an in-memory Emitter for tests. Err, when set, is returned
// from every Emit after the operation was recorded.
type Recorder struct {
	mu  sync.Mutex
	ops []Operation
	Err error
}

// Emit implements Emitter.
func (r *Recorder) Emit(_ context.Context, op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return r.Err
}

// Ops returns a copy of the recorded operations.
func (r *Recorder) Ops() []Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Operation(nil), r.ops...)
}

// For returns the operations recorded for one entity.
func (r *Recorder) For(entityID id.ID) []Operation {
	var out []Operation
	for _, op := range r.Ops() {
		if op.EntityID == entityID {
			out = append(out, op)
		}
	}
	return out
}

// Reset drops recorded operations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

var _ Emitter = (*Recorder)(nil)
