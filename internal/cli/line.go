package cli

import (
	"github.com/spf13/cobra"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/billing"
)

func newLineCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "line",
		Short: "Manage line items of quotes and invoices",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a line item; the parent totals are recomputed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parentType, parentID, err := parentFlags(cmd)
			if err != nil {
				return err
			}
			label, _ := cmd.Flags().GetString("label")
			in := billing.LineItemInput{
				ParentType: parentType,
				ParentID:   parentID,
				Label:      label,
				Position:   changedInt(cmd, "position"),
			}
			if in.Quantity, err = moneyOr(cmd, "qty", types.MustMoney("1")); err != nil {
				return err
			}
			if in.UnitPrice, err = moneyOr(cmd, "price", types.Zero()); err != nil {
				return err
			}
			if in.TaxRate, err = moneyOr(cmd, "tax", types.Zero()); err != nil {
				return err
			}
			it, err := rt.app.ledger.LineItems.Create(rt.app.Context(cmd.Context()), in)
			if err != nil {
				return err
			}
			return rt.app.print(it)
		},
	}
	addLineFields(add)
	add.Flags().String("parent-type", string(billing.ParentInvoice), "quote or invoice")
	add.Flags().String("parent", "", "parent document id")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the given fields of a line item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID("id", args[0])
			if err != nil {
				return err
			}
			patch := billing.LineItemPatch{
				Label:    changedString(cmd, "label"),
				Position: changedInt(cmd, "position"),
			}
			if patch.Quantity, err = changedMoney(cmd, "qty"); err != nil {
				return err
			}
			if patch.UnitPrice, err = changedMoney(cmd, "price"); err != nil {
				return err
			}
			if patch.TaxRate, err = changedMoney(cmd, "tax"); err != nil {
				return err
			}
			it, err := rt.app.ledger.LineItems.Update(rt.app.Context(cmd.Context()), "", itemID, patch)
			if err != nil {
				return err
			}
			return rt.app.print(it)
		},
	}
	addLineFields(update)

	del := idCommand("delete", "Soft-delete a line item", func(cmd *cobra.Command, raw string) error {
		itemID, err := parseID("id", raw)
		if err != nil {
			return err
		}
		it, err := rt.app.ledger.LineItems.Delete(rt.app.Context(cmd.Context()), "", itemID)
		if err != nil {
			return err
		}
		return rt.app.print(it)
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List the line items of a document in position order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parentType, parentID, err := parentFlags(cmd)
			if err != nil {
				return err
			}
			deleted, _ := cmd.Flags().GetBool("deleted")
			items, err := rt.app.ledger.LineItems.ListByParent(rt.app.Context(cmd.Context()), "", parentType, parentID, deleted)
			if err != nil {
				return err
			}
			return rt.app.print(items)
		},
	}
	list.Flags().String("parent-type", string(billing.ParentInvoice), "quote or invoice")
	list.Flags().String("parent", "", "parent document id")
	list.Flags().Bool("deleted", false, "include soft-deleted items")

	cmd.AddCommand(add, update, del, list)
	return cmd
}

func addLineFields(cmd *cobra.Command) {
	cmd.Flags().String("label", "", "description of the line")
	cmd.Flags().String("qty", "", "quantity (default 1)")
	cmd.Flags().String("price", "", "unit price")
	cmd.Flags().String("tax", "", "tax rate in percent")
	cmd.Flags().Int("position", 0, "sort position (default: after the last line)")
}

func parentFlags(cmd *cobra.Command) (billing.ParentType, id.ID, error) {
	raw, _ := cmd.Flags().GetString("parent-type")
	pt := billing.ParentType(raw)
	if !pt.Valid() {
		return "", id.ID{}, apperror.NewFieldValidation("parentType", "must be quote or invoice").WithDetail("value", raw)
	}
	parent, _ := cmd.Flags().GetString("parent")
	parentID, err := parseID("parent", parent)
	if err != nil {
		return "", id.ID{}, err
	}
	return pt, parentID, nil
}
