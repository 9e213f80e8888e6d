package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fieldledger/internal/config"
	"fieldledger/internal/core/clock"
	"fieldledger/pkg/logger"
)

const version = "0.1.0"

// annotationNoStore marks commands that run without opening the store.
const annotationNoStore = "no-store"

// Options configures the root command. Zero values use the environment,
// the system clock, stdout and the default logger.
type Options struct {
	Config *config.Config
	Clock  clock.Clock
	Logger *logger.Logger
	Out    io.Writer
}

type session struct {
	opts Options
	cfg  config.Config
	app  *App
}

// Execute runs the command line given by args and closes the store it
// opened, also when the command failed.
func Execute(ctx context.Context, opts Options, args []string) error {
	root, rt := newRootCommand(opts)
	root.SetArgs(args)
	root.SetOut(rt.opts.Out)
	err := root.ExecuteContext(ctx)
	if rt.app != nil {
		err = errors.Join(err, rt.app.Close())
		rt.app = nil
	}
	return err
}

// NewRootCommand builds the ledger command tree.
func NewRootCommand(opts Options) *cobra.Command {
	root, _ := newRootCommand(opts)
	return root
}

func newRootCommand(opts Options) (*cobra.Command, *session) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	rt := &session{opts: opts}
	if opts.Config != nil {
		rt.cfg = *opts.Config
	} else {
		rt.cfg = config.Load()
	}

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Offline billing ledger for field devices",
		Long: `ledger keeps clients, quotes, invoices, line items and payments in a
local SQLite store. Documents leaving draft get a final number from a block
reserved from the numbering authority; without connectivity they stay drafts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationNoStore] == "true" {
				return nil
			}
			app, err := Open(cmd.Context(), rt.cfg, rt.opts.Logger, rt.opts.Clock, rt.opts.Out)
			if err != nil {
				return err
			}
			rt.app = app
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&rt.cfg.Ledger.DBPath, "db", rt.cfg.Ledger.DBPath, "local store path (LEDGER_DB_PATH)")
	pf.StringVar(&rt.cfg.Ledger.OrgID, "org", rt.cfg.Ledger.OrgID, "active organization (LEDGER_ORG_ID)")
	pf.StringVar(&rt.cfg.Ledger.UserID, "user", rt.cfg.Ledger.UserID, "acting user (LEDGER_USER_ID)")
	pf.StringVar(&rt.cfg.Reservation.URL, "authority", rt.cfg.Reservation.URL, "numbering authority base URL (LEDGER_RESERVATION_URL)")
	pf.StringVar(&rt.cfg.Reservation.Token, "token", rt.cfg.Reservation.Token, "device token for the authority (LEDGER_RESERVATION_TOKEN)")
	pf.DurationVar(&rt.cfg.Reservation.Timeout, "timeout", durationOr(rt.cfg.Reservation.Timeout, 10*time.Second), "authority request timeout")

	root.AddCommand(
		newClientCommand(rt),
		newQuoteCommand(rt),
		newInvoiceCommand(rt),
		newLineCommand(rt),
		newPaymentCommand(rt),
		newNumberingCommand(rt),
		newOutboxCommand(rt),
		newAuditCommand(rt),
		newTokenCommand(rt),
	)
	return root, rt
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
