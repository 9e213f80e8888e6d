// Package audit defines the fire-and-forget audit trail of ledger writes.
package audit

import (
	"context"
	"sync"
	"time"

	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/core/id"
)

// Action is the audited operation.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionPayment   Action = "payment"
	ActionPromotion Action = "number_promotion"
	ActionStatus    Action = "status_change"
)

// Event is one audit record.
type Event struct {
	EntityKind string         `json:"entityKind"`
	EntityID   id.ID          `json:"entityId"`
	Action     Action         `json:"action"`
	OrgID      string         `json:"orgId"`
	UserID     string         `json:"userId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	At         time.Time      `json:"at"`
}

// Sink accepts events without blocking the caller and without reporting
// failures back; implementations log their own errors.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Enrich fills UserID from the caller context when the event has none.
func Enrich(ctx context.Context, ev Event) Event {
	if ev.UserID == "" {
		ev.UserID = appctx.GetUserID(ctx)
	}
	return ev
}

// Recorder is an in-memory Sink for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Sink.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, Enrich(ctx, ev))
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Actions returns the recorded actions for one entity, in order.
func (r *Recorder) Actions(entityID id.ID) []Action {
	var out []Action
	for _, ev := range r.Events() {
		if ev.EntityID == entityID {
			out = append(out, ev.Action)
		}
	}
	return out
}

var _ Sink = (*Recorder)(nil)
