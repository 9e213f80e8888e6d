package reservation

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/clock"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/infrastructure/metrics"
	"fieldledger/pkg/logger"
)

var tracer = otel.Tracer("fieldledger/reservation")

// MaxBlock is the largest block one call may reserve.
const MaxBlock = 1000

// Schema creates the reservation table of the authority.
const Schema = `CREATE TABLE IF NOT EXISTS sys_number_reservations (
	org_id      TEXT        NOT NULL,
	kind        TEXT        NOT NULL,
	year        INTEGER     NOT NULL,
	last_number BIGINT      NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (org_id, kind, year)
)`

// Querier is the subset of pgxpool.Pool the authority uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Authority hands out contiguous number blocks per (organization, kind,
// year). The counter lives in one row and is advanced by a single upsert,
// so concurrent reservations never overlap.
type Authority struct {
	db      Querier
	clock   clock.Clock
	metrics *metrics.Metrics
	psql    squirrel.StatementBuilderType
}

func NewAuthority(db Querier, clk clock.Clock, m *metrics.Metrics) *Authority {
	if clk == nil {
		clk = clock.System{}
	}
	return &Authority{
		db:      db,
		clock:   clk,
		metrics: m,
		psql:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Migrate creates the reservation table when missing.
func (a *Authority) Migrate(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create sys_number_reservations: %w", err)
	}
	return nil
}

// Reserve grants the next count numbers of kind for orgID in the current
// year.
func (a *Authority) Reserve(ctx context.Context, orgID string, kind numerator.Kind, count int) (numerator.Range, error) {
	ctx, span := tracer.Start(ctx, "reservation.reserve", trace.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("kind", string(kind)),
		attribute.Int("count", count),
	))
	defer span.End()

	switch {
	case orgID == "":
		return numerator.Range{}, apperror.NewFieldValidation("orgId", "required")
	case !kind.Valid():
		return numerator.Range{}, apperror.NewFieldValidation("kind", "unknown document kind").WithDetail("value", kind)
	case count <= 0 || count > MaxBlock:
		return numerator.Range{}, apperror.NewFieldValidation("count", fmt.Sprintf("must be between 1 and %d", MaxBlock)).
			WithDetail("value", count)
	}

	year := a.clock.Now().Year()
	query, args, err := a.psql.
		Insert("sys_number_reservations").
		Columns("org_id", "kind", "year", "last_number").
		Values(orgID, string(kind), year, count).
		Suffix("ON CONFLICT (org_id, kind, year) DO UPDATE SET " +
			"last_number = sys_number_reservations.last_number + EXCLUDED.last_number, " +
			"updated_at = now() RETURNING last_number").
		ToSql()
	if err != nil {
		return numerator.Range{}, fmt.Errorf("build reservation: %w", err)
	}

	var last int64
	if err := a.db.QueryRow(ctx, query, args...).Scan(&last); err != nil {
		span.RecordError(err)
		return numerator.Range{}, apperror.NewInternal(fmt.Errorf("reserve %s numbers for %s: %w", kind, orgID, err))
	}

	rng := numerator.Range{
		Prefix: fmt.Sprintf("%s-%04d", kind.DefaultPrefix(), year),
		Start:  last - int64(count) + 1,
		End:    last,
	}
	a.metrics.RecordReservation(ctx, string(kind), count)
	logger.Info(ctx, "number block reserved",
		"org_id", orgID, "kind", kind, "start", rng.Start, "end", rng.End)
	return rng, nil
}

var _ numerator.Reserver = (*Authority)(nil)
