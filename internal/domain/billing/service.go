package billing

import (
	"context"
	"regexp"
	"strings"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/clock"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/tx"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/outbox"
	"fieldledger/pkg/logger"
)

// FailureRecorder counts outbox emissions that failed.
type FailureRecorder interface {
	RecordOutboxFailure(ctx context.Context, entityKind string)
}

// base carries the collaborators every service writes through.
type base struct {
	outbox  outbox.Emitter
	audit   audit.Sink
	clock   clock.Clock
	tx      tx.Manager
	log     *logger.Logger
	metrics FailureRecorder
}

func newBase(d Deps, component string) base {
	clk := d.Clock
	if clk == nil {
		clk = clock.System{}
	}
	log := d.Logger
	if log == nil {
		log = logger.Default()
	}
	return base{
		outbox:  d.Outbox,
		audit:   d.Audit,
		clock:   clk,
		tx:      d.Tx,
		log:     log.WithComponent(component),
		metrics: d.Metrics,
	}
}

// inTx runs fn in a transaction when a manager is configured.
func (b *base) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.tx == nil {
		return fn(ctx)
	}
	return b.tx.RunInTransaction(ctx, fn)
}

// emit hands op to the outbox. Failures are logged and counted, never
// returned: the local write already happened.
func (b *base) emit(ctx context.Context, kind string, entityID id.ID, orgID string, op outbox.OpType, payload any, at time.Time) {
	if b.outbox == nil {
		return
	}
	err := b.outbox.Emit(ctx, outbox.Operation{
		EntityKind: kind,
		EntityID:   entityID,
		Type:       op,
		OrgID:      orgID,
		Timestamp:  at,
		Payload:    payload,
	})
	if err != nil {
		b.log.WithContext(ctx).Warnw("outbox emit failed",
			"entity_kind", kind, "entity_id", entityID, "op", op, "error", err)
		if b.metrics != nil {
			b.metrics.RecordOutboxFailure(ctx, kind)
		}
	}
}

// emitUpdate emits an UPDATE carrying the entity and the patch applied.
func (b *base) emitUpdate(ctx context.Context, kind string, entityID id.ID, orgID string, entity any, patch map[string]any, at time.Time) {
	b.emit(ctx, kind, entityID, orgID, outbox.OpUpdate, outbox.UpdatePayload{Entity: entity, Patch: patch}, at)
}

// emitDelete emits the tombstone of a soft delete.
func (b *base) emitDelete(ctx context.Context, kind string, entityID id.ID, orgID string, at time.Time) {
	b.emit(ctx, kind, entityID, orgID, outbox.OpDelete, outbox.DeletePayload{ID: entityID, DeletedAt: at}, at)
}

func (b *base) record(ctx context.Context, kind string, entityID id.ID, orgID string, action audit.Action, metadata map[string]any) {
	if b.audit == nil {
		return
	}
	b.audit.Record(ctx, audit.Event{
		EntityKind: kind,
		EntityID:   entityID,
		Action:     action,
		OrgID:      orgID,
		Metadata:   metadata,
		At:         b.clock.Now(),
	})
}

// resolveOrg picks the explicit organization, else the caller's active one.
func resolveOrg(ctx context.Context, explicit string) (string, error) {
	if org := strings.TrimSpace(explicit); org != "" {
		return org, nil
	}
	if org := appctx.GetOrgID(ctx); org != "" {
		return org, nil
	}
	return "", apperror.NewFieldValidation("orgId", "no active organization")
}

// writeScope resolves the organization and the acting user of a write.
func writeScope(ctx context.Context, explicitOrg string) (orgID, userID string, err error) {
	orgID, err = resolveOrg(ctx, explicitOrg)
	if err != nil {
		return "", "", err
	}
	userID = appctx.GetUserID(ctx)
	if userID == "" {
		return "", "", apperror.NewFieldValidation("userId", "no authenticated user")
	}
	return orgID, userID, nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	blankRun      = regexp.MustCompile(`[ \t\f\v]+`)
)

// normalizeText trims s and collapses internal whitespace to single spaces.
func normalizeText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// normalizeOptional normalizes s; empty text becomes nil.
func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := normalizeText(*s)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeMultiline is normalizeOptional for free text that keeps its
// line breaks: blanks collapse within each line.
func normalizeMultiline(s *string) *string {
	if s == nil {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(*s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(blankRun.ReplaceAllString(l, " "))
	}
	v := strings.TrimSpace(strings.Join(lines, "\n"))
	if v == "" {
		return nil
	}
	return &v
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalOptionalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// optionalValue renders an optional text for a patch payload.
func optionalValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
