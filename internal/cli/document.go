package cli

import (
	"github.com/spf13/cobra"

	"fieldledger/internal/domain/billing"
)

// idCommand builds a command taking one entity id.
func idCommand(use, short string, run func(cmd *cobra.Command, docID string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}
}

func newQuoteCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Manage quotes",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a quote; a non-draft status allocates its number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID, err := changedID(cmd, "client")
			if err != nil {
				return err
			}
			issue, err := changedDate(cmd, "issue-date")
			if err != nil {
				return err
			}
			validUntil, err := changedOptionalDate(cmd, "valid-until")
			if err != nil {
				return err
			}
			in := billing.QuoteInput{IssueDate: issue, ValidUntil: validUntil, Notes: changedString(cmd, "notes")}
			if clientID != nil {
				in.ClientID = *clientID
			}
			if s := changedString(cmd, "status"); s != nil {
				in.Status = billing.QuoteStatus(*s)
			}
			q, err := rt.app.ledger.Quotes.Create(rt.app.Context(cmd.Context()), in)
			if err != nil {
				return err
			}
			return rt.app.print(q)
		},
	}
	addQuoteFields(create)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quoteID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			var patch billing.QuotePatch
			if patch.ClientID, err = changedID(cmd, "client"); err != nil {
				return err
			}
			if patch.IssueDate, err = changedDate(cmd, "issue-date"); err != nil {
				return err
			}
			if patch.ValidUntil, err = changedOptionalDate(cmd, "valid-until"); err != nil {
				return err
			}
			if s := changedString(cmd, "status"); s != nil {
				st := billing.QuoteStatus(*s)
				patch.Status = &st
			}
			patch.Notes = changedString(cmd, "notes")

			q, err := rt.app.ledger.Quotes.Update(rt.app.Context(cmd.Context()), "", quoteID, patch)
			if err != nil {
				return err
			}
			return rt.app.print(q)
		},
	}
	addQuoteFields(update)

	get := idCommand("get", "Show a quote", func(cmd *cobra.Command, raw string) error {
		quoteID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		q, err := rt.app.ledger.Quotes.Get(rt.app.Context(cmd.Context()), "", quoteID)
		if err != nil {
			return err
		}
		return rt.app.print(q)
	})

	del := idCommand("delete", "Soft-delete a quote", func(cmd *cobra.Command, raw string) error {
		quoteID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		q, err := rt.app.ledger.Quotes.Delete(rt.app.Context(cmd.Context()), "", quoteID)
		if err != nil {
			return err
		}
		return rt.app.print(q)
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List quotes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := listFilter(cmd)
			if err != nil {
				return err
			}
			res, err := rt.app.ledger.Quotes.List(rt.app.Context(cmd.Context()), f)
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

func addQuoteFields(cmd *cobra.Command) {
	cmd.Flags().String("client", "", "client id")
	cmd.Flags().String("status", "", "draft, sent, accepted, rejected or expired")
	cmd.Flags().String("issue-date", "", "issue date (YYYY-MM-DD)")
	cmd.Flags().String("valid-until", "", "validity end (YYYY-MM-DD, empty clears)")
	cmd.Flags().String("notes", "", "free-form notes")
}

func newInvoiceCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Manage invoices",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice; a non-draft status allocates its number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID, err := changedID(cmd, "client")
			if err != nil {
				return err
			}
			issue, err := changedDate(cmd, "issue-date")
			if err != nil {
				return err
			}
			due, err := changedOptionalDate(cmd, "due-date")
			if err != nil {
				return err
			}
			in := billing.InvoiceInput{IssueDate: issue, DueDate: due, Notes: changedString(cmd, "notes")}
			if clientID != nil {
				in.ClientID = *clientID
			}
			if s := changedString(cmd, "status"); s != nil {
				in.Status = billing.InvoiceStatus(*s)
			}
			inv, err := rt.app.ledger.Invoices.Create(rt.app.Context(cmd.Context()), in)
			if err != nil {
				return err
			}
			return rt.app.print(inv)
		},
	}
	addInvoiceFields(create)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoiceID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			patch, err := invoicePatch(cmd)
			if err != nil {
				return err
			}
			inv, err := rt.app.ledger.Invoices.Update(rt.app.Context(cmd.Context()), "", invoiceID, patch)
			if err != nil {
				return err
			}
			return rt.app.print(inv)
		},
	}
	addInvoiceFields(update)

	issue := idCommand("issue", "Promote a draft invoice to issued", func(cmd *cobra.Command, raw string) error {
		invoiceID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		st := billing.InvoiceIssued
		inv, err := rt.app.ledger.Invoices.Update(rt.app.Context(cmd.Context()), "", invoiceID, billing.InvoicePatch{Status: &st})
		if err != nil {
			return err
		}
		return rt.app.print(inv)
	})

	get := idCommand("get", "Show an invoice", func(cmd *cobra.Command, raw string) error {
		invoiceID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		inv, err := rt.app.ledger.Invoices.Get(rt.app.Context(cmd.Context()), "", invoiceID)
		if err != nil {
			return err
		}
		return rt.app.print(inv)
	})

	del := idCommand("delete", "Soft-delete an invoice", func(cmd *cobra.Command, raw string) error {
		invoiceID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		inv, err := rt.app.ledger.Invoices.Delete(rt.app.Context(cmd.Context()), "", invoiceID)
		if err != nil {
			return err
		}
		return rt.app.print(inv)
	})

	reconcile := idCommand("reconcile", "Recompute paid total and status from payments", func(cmd *cobra.Command, raw string) error {
		invoiceID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		ctx := rt.app.Context(cmd.Context())
		if _, err := rt.app.ledger.Reconciler.RecomputeDocumentTotals(ctx, "", billing.ParentInvoice, invoiceID); err != nil {
			return err
		}
		inv, err := rt.app.ledger.Reconciler.RecomputeInvoicePayments(ctx, "", invoiceID)
		if err != nil {
			return err
		}
		return rt.app.print(inv)
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List invoices, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := listFilter(cmd)
			if err != nil {
				return err
			}
			res, err := rt.app.ledger.Invoices.List(rt.app.Context(cmd.Context()), f)
			if err != nil {
				return err
			}
			return rt.app.print(res)
		},
	}
	addListFlags(list)

	cmd.AddCommand(create, update, issue, get, del, reconcile, list)
	return cmd
}

func addInvoiceFields(cmd *cobra.Command) {
	cmd.Flags().String("client", "", "client id")
	cmd.Flags().String("status", "", "draft, issued, sent, paid, overdue or cancelled")
	cmd.Flags().String("issue-date", "", "issue date (YYYY-MM-DD)")
	cmd.Flags().String("due-date", "", "due date (YYYY-MM-DD, empty clears)")
	cmd.Flags().String("notes", "", "free-form notes")
}

func invoicePatch(cmd *cobra.Command) (billing.InvoicePatch, error) {
	var (
		patch billing.InvoicePatch
		err   error
	)
	if patch.ClientID, err = changedID(cmd, "client"); err != nil {
		return patch, err
	}
	if patch.IssueDate, err = changedDate(cmd, "issue-date"); err != nil {
		return patch, err
	}
	if patch.DueDate, err = changedOptionalDate(cmd, "due-date"); err != nil {
		return patch, err
	}
	if s := changedString(cmd, "status"); s != nil {
		st := billing.InvoiceStatus(*s)
		patch.Status = &st
	}
	patch.Notes = changedString(cmd, "notes")
	return patch, nil
}
