package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"fieldledger/internal/core/clock"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/domain/auth"
)

type issuedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// newTokenCommand mints device tokens for the numbering authority. It runs
// on the operator's machine and never opens the local store.
func newTokenCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint device tokens for the numbering authority",
	}

	issue := &cobra.Command{
		Use:         "issue",
		Short:       "Sign a token for a device user and organization",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoStore: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				secret = rt.cfg.Server.JWTSecret
			}
			if secret == "" {
				return errors.New("a signing secret is required (--secret or JWT_SECRET)")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			orgs, _ := cmd.Flags().GetStringSlice("also-org")

			cfg := auth.DefaultJWTConfig(secret)
			if ttl > 0 {
				cfg.TokenTTL = ttl
			}
			clk := rt.opts.Clock
			if clk == nil {
				clk = clock.System{}
			}
			token, exp, err := auth.NewJWTService(cfg, clk).GenerateToken(appctx.UserContext{
				UserID: rt.cfg.Ledger.UserID,
				OrgID:  rt.cfg.Ledger.OrgID,
				OrgIDs: orgs,
				Roles:  []string{auth.RoleDevice},
			})
			if err != nil {
				return err
			}
			return printJSON(rt.opts.Out, issuedToken{Token: token, ExpiresAt: exp})
		},
	}
	issue.Flags().String("secret", "", "signing secret (default JWT_SECRET)")
	issue.Flags().Duration("ttl", 0, "token lifetime (default 30 days)")
	issue.Flags().StringSlice("also-org", nil, "additional organizations the device may reserve for")

	cmd.AddCommand(issue)
	return cmd
}
