// Package cli implements the device command line: it wires the local store,
// the numbering allocator and the ledger services behind cobra commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"

	"fieldledger/internal/config"
	"fieldledger/internal/core/clock"
	appctx "fieldledger/internal/core/context"
	corenumerator "fieldledger/internal/core/numerator"
	"fieldledger/internal/domain/billing"
	"fieldledger/internal/infrastructure/metrics"
	infranumerator "fieldledger/internal/infrastructure/numerator"
	"fieldledger/internal/infrastructure/reservation"
	"fieldledger/internal/infrastructure/storage/sqlite"
	"fieldledger/pkg/logger"
)

// App is one opened local store with every service wired over it.
type App struct {
	cfg   config.Config
	log   *logger.Logger
	clock clock.Clock
	out   io.Writer

	db        *sqlite.DB
	outbox    *sqlite.Outbox
	audit     *sqlite.AuditLog
	allocator *infranumerator.Allocator
	ledger    *billing.Ledger
}

// Open opens the store at cfg.Ledger.DBPath and wires the ledger.
func Open(ctx context.Context, cfg config.Config, log *logger.Logger, clk clock.Clock, out io.Writer) (*App, error) {
	if err := cfg.ValidateDevice(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Default()
	}
	if clk == nil {
		clk = clock.System{}
	}

	db, err := sqlite.Open(ctx, sqlite.DefaultConfig(cfg.Ledger.DBPath))
	if err != nil {
		return nil, err
	}
	txm := db.TxManager()

	m, err := metrics.New(otel.GetMeterProvider())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	auditLog, err := sqlite.NewAuditLog(txm, sqlite.DefaultAuditOptions(), log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var reserver corenumerator.Reserver
	if cfg.Reservation.URL != "" {
		reserver = reservation.NewClient(cfg.Reservation.URL, cfg.Reservation.Token, cfg.Reservation.Timeout)
	}
	allocator := infranumerator.NewAllocator(infranumerator.Config{
		Store:    sqlite.NewNumberingStateStore(txm),
		Reserver: reserver,
		Clock:    clk,
		Options: infranumerator.Options{
			LowWater:  cfg.Numbering.LowWater,
			BlockSize: cfg.Numbering.BlockSize,
		},
		Metrics: m,
		Logger:  log,
	})

	ob := sqlite.NewOutbox(txm, clk)
	ledger := billing.NewLedger(billing.Deps{
		Repos:     sqlite.NewRepositories(txm),
		Allocator: allocator,
		Outbox:    ob,
		Audit:     auditLog,
		Clock:     clk,
		Tx:        txm,
		Logger:    log,
		Metrics:   m,
	})

	return &App{
		cfg:       cfg,
		log:       log,
		clock:     clk,
		out:       out,
		db:        db,
		outbox:    ob,
		audit:     auditLog,
		allocator: allocator,
		ledger:    ledger,
	}, nil
}

// Close flushes the audit trail and closes the store.
func (a *App) Close() error {
	return errors.Join(a.audit.Close(), a.db.Close())
}

// Context returns ctx carrying the device identity and a fresh trace.
func (a *App) Context(ctx context.Context) context.Context {
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext("", ""))
	ctx = appctx.WithUser(ctx, &appctx.UserContext{
		UserID: a.cfg.Ledger.UserID,
		OrgID:  a.cfg.Ledger.OrgID,
	})
	return logger.WithLogger(ctx, a.log)
}

func (a *App) print(v any) error {
	return printJSON(a.out, v)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
