package cli

import (
	"github.com/spf13/cobra"

	"fieldledger/internal/domain/billing"
)

func addClientFields(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "client name")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("phone", "", "phone number")
	cmd.Flags().String("address", "", "postal address")
	cmd.Flags().String("vat", "", "VAT number")
	cmd.Flags().String("notes", "", "free-form notes")
}

func newClientCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			ctx := rt.app.Context(cmd.Context())
			c, err := rt.app.ledger.Clients.Create(ctx, billing.ClientInput{
				Name:      name,
				Email:     changedString(cmd, "email"),
				Phone:     changedString(cmd, "phone"),
				Address:   changedString(cmd, "address"),
				VATNumber: changedString(cmd, "vat"),
				Notes:     changedString(cmd, "notes"),
			})
			if err != nil {
				return err
			}
			return rt.app.print(c)
		},
	}
	addClientFields(create)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			ctx := rt.app.Context(cmd.Context())
			c, err := rt.app.ledger.Clients.Update(ctx, "", clientID, billing.ClientPatch{
				Name:      changedString(cmd, "name"),
				Email:     changedString(cmd, "email"),
				Phone:     changedString(cmd, "phone"),
				Address:   changedString(cmd, "address"),
				VATNumber: changedString(cmd, "vat"),
				Notes:     changedString(cmd, "notes"),
			})
			if err != nil {
				return err
			}
			return rt.app.print(c)
		},
	}
	addClientFields(update)

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			c, err := rt.app.ledger.Clients.Get(rt.app.Context(cmd.Context()), "", clientID)
			if err != nil {
				return err
			}
			return rt.app.print(c)
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			c, err := rt.app.ledger.Clients.Delete(rt.app.Context(cmd.Context()), "", clientID)
			if err != nil {
				return err
			}
			return rt.app.print(c)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List clients, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := listFilter(cmd)
			if err != nil {
				return err
			}
			res, err := rt.app.ledger.Clients.List(rt.app.Context(cmd.Context()), f)
			if err != nil {
				return err
			}
			return rt.app.print(res)
		},
	}
	addListFlags(list)

	cmd.AddCommand(create, update, get, del, list)
	return cmd
}
