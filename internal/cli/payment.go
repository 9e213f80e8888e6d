package cli

import (
	"github.com/spf13/cobra"

	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/billing"
)

func newPaymentCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Record payments against invoices",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Record a payment; the invoice status is reconciled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("invoice")
			invoiceID, err := parseID("invoice", raw)
			if err != nil {
				return err
			}
			method, _ := cmd.Flags().GetString("method")
			if method == "" {
				method = string(billing.MethodTransfer)
			}
			in := billing.PaymentInput{
				InvoiceID: invoiceID,
				Method:    billing.PaymentMethod(method),
				Reference: changedString(cmd, "reference"),
				Notes:     changedString(cmd, "notes"),
			}
			if in.Amount, err = moneyOr(cmd, "amount", types.Zero()); err != nil {
				return err
			}
			if in.PaidAt, err = changedDate(cmd, "paid-at"); err != nil {
				return err
			}
			p, err := rt.app.ledger.Payments.Create(rt.app.Context(cmd.Context()), in)
			if err != nil {
				return err
			}
			return rt.app.print(p)
		},
	}
	addPaymentFields(add)
	add.Flags().String("invoice", "", "invoice id")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			patch := billing.PaymentPatch{
				Reference: changedString(cmd, "reference"),
				Notes:     changedString(cmd, "notes"),
			}
			if patch.Amount, err = changedMoney(cmd, "amount"); err != nil {
				return err
			}
			if patch.PaidAt, err = changedDate(cmd, "paid-at"); err != nil {
				return err
			}
			if m := changedString(cmd, "method"); m != nil {
				method := billing.PaymentMethod(*m)
				patch.Method = &method
			}
			p, err := rt.app.ledger.Payments.Update(rt.app.Context(cmd.Context()), "", paymentID, patch)
			if err != nil {
				return err
			}
			return rt.app.print(p)
		},
	}
	addPaymentFields(update)

	del := idCommand("delete", "Soft-delete a payment", func(cmd *cobra.Command, raw string) error {
		paymentID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		p, err := rt.app.ledger.Payments.Delete(rt.app.Context(cmd.Context()), "", paymentID)
		if err != nil {
			return err
		}
		return rt.app.print(p)
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List payments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := listFilter(cmd)
			if err != nil {
				return err
			}
			res, err := rt.app.ledger.Payments.List(rt.app.Context(cmd.Context()), f)
			if err != nil {
				return err
			}
			return rt.app.print(res)
		},
	}
	addListFlags(list)

	cmd.AddCommand(add, update, del, list)
	return cmd
}

func addPaymentFields(cmd *cobra.Command) {
	cmd.Flags().String("amount", "", "amount received")
	cmd.Flags().String("method", "", "transfer, card, cash, check or other")
	cmd.Flags().String("paid-at", "", "payment date (YYYY-MM-DD, default today)")
	cmd.Flags().String("reference", "", "bank or receipt reference")
	cmd.Flags().String("notes", "", "free-form notes")
}
