package cli

import (
	"github.com/spf13/cobra"

	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/billing"
)

func newOutboxCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and acknowledge queued sync operations",
	}

	pending := &cobra.Command{
		Use:   "pending",
		Short: "List operations waiting for the sync transport, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			msgs, err := rt.app.outbox.Pending(rt.app.Context(cmd.Context()), limit)
			if err != nil {
				return err
			}
			return rt.app.print(msgs)
		},
	}
	pending.Flags().Int("limit", 100, "maximum number of operations")

	ack := &cobra.Command{
		Use:   "ack <id>...",
		Short: "Mark operations as delivered",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]id.ID, 0, len(args))
			for _, raw := range args {
				v, err := parseID("id", raw)
				if err != nil {
					return err
				}
				ids = append(ids, v)
			}
			if err := rt.app.outbox.MarkSent(rt.app.Context(cmd.Context()), ids); err != nil {
				return err
			}
			return rt.app.print(map[string]int{"acknowledged": len(ids)})
		},
	}

	cmd.AddCommand(pending, ack)
	return cmd
}

func newAuditCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the local audit trail",
	}

	history := &cobra.Command{
		Use:     "history <kind> <id>",
		Short:   "Show the audit trail of one entity, oldest first",
		Example: "  ledger audit history invoice 0190f3c2-6a4e-7c1d-9a8b-1f2e3d4c5b6a",
		Args:    cobra.ExactArgs(2),
		ValidArgs: []string{
			billing.KindClient, billing.KindQuote, billing.KindInvoice, billing.KindLineItem, billing.KindPayment,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := parseID("id", args[1])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			events, err := rt.app.audit.History(rt.app.Context(cmd.Context()), args[0], entityID, limit)
			if err != nil {
				return err
			}
			return rt.app.print(events)
		},
	}
	history.Flags().Int("limit", 100, "maximum number of events")

	cmd.AddCommand(history)
	return cmd
}
