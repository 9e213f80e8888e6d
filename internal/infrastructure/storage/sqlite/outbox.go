package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"fieldledger/internal/core/clock"
	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/outbox"
)

// Outbox message statuses.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
)

// OutboxMessage is a queued operation as stored in sys_outbox.
type OutboxMessage struct {
	ID         id.ID      `db:"id" json:"id"`
	EntityKind string     `db:"entity_kind" json:"entityKind"`
	EntityID   id.ID      `db:"entity_id" json:"entityId"`
	Op         string     `db:"op" json:"op"`
	OrgID      string     `db:"org_id" json:"orgId"`
	Timestamp  time.Time  `db:"ts" json:"ts"`
	Payload    string     `db:"payload" json:"payload"`
	Status     string     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	SentAt     *time.Time `db:"sent_at" json:"sentAt,omitempty"`
}

// Outbox is the local queue of operations awaiting the sync transport.
type Outbox struct {
	txm   *TxManager
	clock clock.Clock
}

func NewOutbox(txm *TxManager, clk clock.Clock) *Outbox {
	if clk == nil {
		clk = clock.System{}
	}
	return &Outbox{txm: txm, clock: clk}
}

var outboxCols = ExtractDBColumns[OutboxMessage]()

// Emit queues op. It joins the transaction carried by ctx, if any.
func (o *Outbox) Emit(ctx context.Context, op outbox.Operation) error {
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op.EntityKind, err)
	}

	msg := OutboxMessage{
		ID:         id.New(),
		EntityKind: op.EntityKind,
		EntityID:   op.EntityID,
		Op:         string(op.Type),
		OrgID:      op.OrgID,
		Timestamp:  op.Timestamp,
		Payload:    string(payload),
		Status:     OutboxPending,
		CreatedAt:  o.clock.Now(),
	}

	query, args, err := builder().Insert("sys_outbox").SetMap(StructToMap(msg)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := o.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// Pending returns up to limit unsent messages in enqueue order.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	query, args, err := builder().
		Select(outboxCols...).
		From("sys_outbox").
		Where(squirrel.Eq{"status": OutboxPending}).
		OrderBy("rowid ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	msgs := []OutboxMessage{}
	if err := sqlscan.Select(ctx, o.txm.GetQuerier(ctx), &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("list pending outbox: %w", err)
	}
	return msgs, nil
}

// MarkSent flags messages as delivered.
func (o *Outbox) MarkSent(ctx context.Context, ids []id.ID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, v := range ids {
		keys[i] = v.String()
	}

	query, args, err := builder().
		Update("sys_outbox").
		Set("status", OutboxSent).
		Set("sent_at", o.clock.Now()).
		Where(squirrel.Eq{"id": keys}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := o.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox sent: %w", err)
	}
	return nil
}

var _ outbox.Emitter = (*Outbox)(nil)
