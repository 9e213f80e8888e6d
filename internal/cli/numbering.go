package cli

import (
	"github.com/spf13/cobra"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/numerator"
)

type rangeStatus struct {
	Kind      numerator.Kind   `json:"kind"`
	Phase     numerator.Phase  `json:"phase"`
	Remaining int64            `json:"remaining"`
	State     *numerator.State `json:"state,omitempty"`
}

func newNumberingCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "numbering",
		Short: "Inspect and seed the cached number ranges",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the cached range of each document kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := rt.app.Context(cmd.Context())
			out := make([]rangeStatus, 0, 2)
			for _, kind := range []numerator.Kind{numerator.KindQuote, numerator.KindInvoice} {
				st, err := rt.app.allocator.State(ctx, rt.cfg.Ledger.OrgID, kind)
				if err != nil {
					return err
				}
				out = append(out, rangeStatus{Kind: kind, Phase: st.Phase(), Remaining: st.Remaining(), State: st})
			}
			return rt.app.print(out)
		},
	}

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Install a range obtained out of band, replacing the cached one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rawKind, _ := cmd.Flags().GetString("kind")
			kind := numerator.Kind(rawKind)
			if !kind.Valid() {
				return apperror.NewFieldValidation("kind", "must be quote or invoice").WithDetail("value", rawKind)
			}
			prefix, _ := cmd.Flags().GetString("prefix")
			start, _ := cmd.Flags().GetInt64("start")
			end, _ := cmd.Flags().GetInt64("end")

			ctx := rt.app.Context(cmd.Context())
			if err := rt.app.allocator.Seed(ctx, rt.cfg.Ledger.OrgID, kind, prefix, start, end); err != nil {
				return err
			}
			st, err := rt.app.allocator.State(ctx, rt.cfg.Ledger.OrgID, kind)
			if err != nil {
				return err
			}
			return rt.app.print(rangeStatus{Kind: kind, Phase: st.Phase(), Remaining: st.Remaining(), State: st})
		},
	}
	seed.Flags().String("kind", "", "quote or invoice")
	seed.Flags().String("prefix", "", "number prefix (default: kind prefix)")
	seed.Flags().Int64("start", 0, "first number of the range")
	seed.Flags().Int64("end", 0, "last number of the range")

	cmd.AddCommand(status, seed)
	return cmd
}
