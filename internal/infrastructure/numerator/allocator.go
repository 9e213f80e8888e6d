// Package numerator implements final number allocation from reserved ranges.
//
// Each (organization, kind) has one cached range in a StateStore. A range
// that is missing, exhausted or running low is refilled from the remote
// authority before a number is consumed; when the authority cannot be
// reached the cached remainder is used, and with nothing left the caller
// receives a TEMP- placeholder.
package numerator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/clock"
	corenumerator "fieldledger/internal/core/numerator"
	"fieldledger/internal/infrastructure/metrics"
	"fieldledger/pkg/keylock"
	"fieldledger/pkg/logger"
)

var tracer = otel.Tracer("fieldledger/numerator")

const (
	DefaultLowWater  = 5
	DefaultBlockSize = 80
)

// Options tunes refills.
type Options struct {
	// LowWater triggers a refill when fewer numbers remain in the range.
	LowWater int64
	// BlockSize is the number of numbers requested per refill.
	BlockSize int
}

// DefaultOptions returns the standard refill policy.
func DefaultOptions() Options {
	return Options{LowWater: DefaultLowWater, BlockSize: DefaultBlockSize}
}

// Allocator implements corenumerator.Allocator.
type Allocator struct {
	store    corenumerator.StateStore
	reserver corenumerator.Reserver // nil: ranges only come from Seed
	clock    clock.Clock
	opts     Options
	metrics  *metrics.Metrics
	log      *logger.Logger

	locks *keylock.Locker
}

var _ corenumerator.Allocator = (*Allocator)(nil)

// Config wires an Allocator.
type Config struct {
	Store    corenumerator.StateStore
	Reserver corenumerator.Reserver
	Clock    clock.Clock
	Options  Options
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

// NewAllocator creates an allocator. Zero options fall back to defaults.
func NewAllocator(cfg Config) *Allocator {
	opts := cfg.Options
	if opts.LowWater <= 0 {
		opts.LowWater = DefaultLowWater
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Allocator{
		store:    cfg.Store,
		reserver: cfg.Reserver,
		clock:    clk,
		opts:     opts,
		metrics:  cfg.Metrics,
		log:      log.WithComponent("numerator"),
		locks:    keylock.New(),
	}
}

func lockKey(orgID string, kind corenumerator.Kind) string {
	return orgID + ":" + string(kind)
}

func validateKey(orgID string, kind corenumerator.Kind) error {
	if orgID == "" {
		return apperror.NewFieldValidation("orgId", "organization is required")
	}
	if !kind.Valid() {
		return apperror.NewFieldValidation("kind", "unknown document kind").WithDetail("value", string(kind))
	}
	return nil
}

// AllocateFinalNumber consumes the next number of the cached range,
// refilling it first when needed. The consumed position is persisted before
// the number is returned. Without any usable range a placeholder is
// returned and the stored state is left untouched.
//
// Allocation for the same (organization, kind) is serialized. Once started
// it ignores cancellation of ctx so a refill is never half applied.
func (a *Allocator) AllocateFinalNumber(ctx context.Context, orgID string, kind corenumerator.Kind) (string, error) {
	if err := validateKey(orgID, kind); err != nil {
		return "", err
	}

	ctx, span := tracer.Start(context.WithoutCancel(ctx), "numerator.allocate",
		trace.WithAttributes(
			attribute.String("org_id", orgID),
			attribute.String("kind", string(kind)),
		))
	defer span.End()

	unlock := a.locks.Lock(lockKey(orgID, kind))
	defer unlock()

	state, err := a.store.Load(ctx, orgID, kind)
	if err != nil {
		return "", fmt.Errorf("load numbering state: %w", err)
	}

	if a.needsRefill(state) {
		if refilled, ok := a.refill(ctx, orgID, kind); ok {
			state = refilled
		}
	}

	if state.Phase() != corenumerator.PhaseHasRange {
		a.metrics.RecordAllocation(ctx, string(kind), "placeholder")
		span.SetAttributes(attribute.Bool("placeholder", true))
		a.log.WithContext(ctx).Infow("no numbering range available, issuing placeholder",
			"org_id", orgID, "kind", kind, "phase", state.Phase())
		return corenumerator.Placeholder(), nil
	}

	now := a.clock.Now()
	n := state.NextNumber
	next := *state
	next.NextNumber = n + 1
	next.UpdatedAt = now
	if err := a.store.Save(ctx, next); err != nil {
		return "", fmt.Errorf("save numbering state: %w", err)
	}

	a.metrics.RecordAllocation(ctx, string(kind), "final")
	return corenumerator.Format(next.Prefix, n, now), nil
}

func (a *Allocator) needsRefill(state *corenumerator.State) bool {
	if a.reserver == nil {
		return false
	}
	return state.Phase() != corenumerator.PhaseHasRange || state.Remaining() < a.opts.LowWater
}

// refill asks the authority for a new block. Any failure keeps the cached
// range; a granted block replaces it entirely.
func (a *Allocator) refill(ctx context.Context, orgID string, kind corenumerator.Kind) (*corenumerator.State, bool) {
	ctx, span := tracer.Start(ctx, "numerator.refill")
	defer span.End()

	rng, err := a.reserver.Reserve(ctx, orgID, kind, a.opts.BlockSize)
	if err == nil && (rng.Start < 1 || rng.End < rng.Start) {
		err = fmt.Errorf("authority returned empty range %d..%d", rng.Start, rng.End)
	}
	if err != nil {
		span.RecordError(err)
		a.metrics.RecordRefill(ctx, string(kind), "failed")
		a.log.WithContext(ctx).Warnw("numbering refill failed, keeping cached range",
			"org_id", orgID, "kind", kind, "offline", corenumerator.IsOffline(err), "error", err)
		return nil, false
	}

	prefix := rng.Prefix
	if prefix == "" {
		prefix = kind.DefaultPrefix()
	}
	a.metrics.RecordRefill(ctx, string(kind), "ok")
	a.log.WithContext(ctx).Infow("numbering range refilled",
		"org_id", orgID, "kind", kind, "prefix", prefix, "start", rng.Start, "end", rng.End)

	return &corenumerator.State{
		OrgID:      orgID,
		Kind:       kind,
		Prefix:     prefix,
		NextNumber: rng.Start,
		EndNumber:  rng.End,
		UpdatedAt:  a.clock.Now(),
	}, true
}

// Seed installs a range obtained out of band, replacing the cached one.
func (a *Allocator) Seed(ctx context.Context, orgID string, kind corenumerator.Kind, prefix string, start, end int64) error {
	if err := validateKey(orgID, kind); err != nil {
		return err
	}
	if start < 1 || end < start {
		return apperror.NewValidation("range must satisfy 1 <= start <= end").
			WithDetail("start", start).WithDetail("end", end)
	}
	if prefix == "" {
		prefix = kind.DefaultPrefix()
	}

	unlock := a.locks.Lock(lockKey(orgID, kind))
	defer unlock()

	return a.store.Save(context.WithoutCancel(ctx), corenumerator.State{
		OrgID:      orgID,
		Kind:       kind,
		Prefix:     prefix,
		NextNumber: start,
		EndNumber:  end,
		UpdatedAt:  a.clock.Now(),
	})
}

// State returns the cached range, nil when none was ever cached.
func (a *Allocator) State(ctx context.Context, orgID string, kind corenumerator.Kind) (*corenumerator.State, error) {
	if err := validateKey(orgID, kind); err != nil {
		return nil, err
	}
	return a.store.Load(ctx, orgID, kind)
}
