package billing

import (
	"context"
	"fmt"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/entity"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/money"
	"fieldledger/internal/domain/outbox"
	"fieldledger/pkg/keylock"
)

// Reconciler keeps document totals and invoice payment state in line with
// the live line items and payments. Work on one document is serialized.
type Reconciler struct {
	base
	repos Repositories
	locks *keylock.Locker
}

func NewReconciler(d Deps) *Reconciler {
	return &Reconciler{
		base:  newBase(d, "reconciler"),
		repos: d.Repos,
		locks: keylock.New(),
	}
}

// lockDocument serializes read-modify-write cycles on one document.
// It must be taken before any transaction is opened.
func (r *Reconciler) lockDocument(pt ParentType, docID id.ID) func() {
	return r.locks.Lock(string(pt) + ":" + docID.String())
}

// RecomputeDocumentTotals recomputes subtotal, tax and total of a document
// from its live line items and writes back the fields that changed.
func (r *Reconciler) RecomputeDocumentTotals(ctx context.Context, orgID string, pt ParentType, docID id.ID) (money.Totals, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return money.Totals{}, err
	}

	unlock := r.lockDocument(pt, docID)
	defer unlock()

	var totals money.Totals
	err = r.inTx(ctx, func(ctx context.Context) error {
		var err error
		totals, err = r.recomputeTotals(ctx, orgID, pt, docID)
		return err
	})
	return totals, err
}

// recomputeTotals expects the document lock to be held.
func (r *Reconciler) recomputeTotals(ctx context.Context, orgID string, pt ParentType, docID id.ID) (money.Totals, error) {
	items, err := r.repos.LineItems.ListByParent(ctx, orgID, pt, docID, false)
	if err != nil {
		return money.Totals{}, err
	}
	inputs := make([]money.Item, len(items))
	for i, it := range items {
		inputs[i] = money.Item{Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate}
	}
	totals, err := money.ComputeTotals(inputs)
	if err != nil {
		return money.Totals{}, err
	}

	doc, err := r.document(ctx, orgID, pt, docID)
	if err != nil {
		return money.Totals{}, err
	}

	cols := map[string]any{}
	changes := map[string]any{}
	set := func(col, field string, cur, next types.Money) {
		if !cur.Equal(next) {
			cols[col] = next
			changes[field] = next
		}
	}
	set("subtotal", "subtotal", doc.Subtotal, totals.Subtotal)
	set("tax_total", "taxTotal", doc.TaxTotal, totals.TaxTotal)
	set("total", "total", doc.Total, totals.Total)
	if len(cols) == 0 {
		return totals, nil
	}

	now := r.clock.Now()
	if err := r.writeDocument(ctx, orgID, pt, docID, cols, changes, now); err != nil {
		return money.Totals{}, err
	}
	return totals, nil
}

// RecomputeInvoicePayments sums the live payments of an invoice and
// derives its status, writing back the fields that changed.
func (r *Reconciler) RecomputeInvoicePayments(ctx context.Context, orgID string, invoiceID id.ID) (*Invoice, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	unlock := r.lockDocument(ParentInvoice, invoiceID)
	defer unlock()

	var inv *Invoice
	err = r.inTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = r.recomputePayments(ctx, orgID, invoiceID)
		return err
	})
	return inv, err
}

// recomputePayments expects the document lock to be held.
func (r *Reconciler) recomputePayments(ctx context.Context, orgID string, invoiceID id.ID) (*Invoice, error) {
	payments, err := r.repos.Payments.ListByInvoice(ctx, orgID, invoiceID, false)
	if err != nil {
		return nil, err
	}
	amounts := make([]types.Money, len(payments))
	for i, p := range payments {
		amounts[i] = p.Amount
	}
	paid := money.Sum(amounts)

	inv, err := r.repos.Invoices.GetByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	status := DeriveInvoiceStatus(inv.Status, paid, inv.Total, inv.DueDate, now)

	cols := map[string]any{}
	changes := map[string]any{}
	if !inv.PaidTotal.Equal(paid) {
		cols["paid_total"] = paid
		changes["paidTotal"] = paid
	}
	prevStatus := inv.Status
	if status != prevStatus {
		cols["status"] = string(status)
		changes["status"] = status
	}
	if len(cols) == 0 {
		return inv, nil
	}

	if err := r.writeDocument(ctx, orgID, ParentInvoice, invoiceID, cols, changes, now); err != nil {
		return nil, err
	}
	inv.PaidTotal = paid
	inv.Status = status
	inv.Touch(now)

	if status != prevStatus {
		r.record(ctx, KindInvoice, invoiceID, orgID, audit.ActionStatus, map[string]any{
			"from":      prevStatus,
			"to":        status,
			"paidTotal": paid,
		})
	}
	return inv, nil
}

// DeriveInvoiceStatus applies the payment rules to an invoice:
// cancelled stays cancelled; fully paid (with a positive total) is paid;
// sent or issued past its due day is overdue; anything else is unchanged.
// The due date is compared at UTC midnight.
func DeriveInvoiceStatus(status InvoiceStatus, paidTotal, total types.Money, dueDate *time.Time, now time.Time) InvoiceStatus {
	if status == InvoiceCancelled {
		return status
	}
	if total.IsPositive() && paidTotal.GreaterThanOrEqual(total) {
		return InvoicePaid
	}
	if (status == InvoiceSent || status == InvoiceIssued) && dueDate != nil && dayOf(*dueDate).Before(now) {
		return InvoiceOverdue
	}
	return status
}

func (r *Reconciler) document(ctx context.Context, orgID string, pt ParentType, docID id.ID) (*entity.BaseDocument, error) {
	switch pt {
	case ParentQuote:
		q, err := r.repos.Quotes.GetByID(ctx, orgID, docID)
		if err != nil {
			return nil, err
		}
		return &q.BaseDocument, nil
	case ParentInvoice:
		inv, err := r.repos.Invoices.GetByID(ctx, orgID, docID)
		if err != nil {
			return nil, err
		}
		return &inv.BaseDocument, nil
	}
	return nil, apperror.NewFieldValidation("parentType", "unknown parent type").WithDetail("value", pt)
}

// writeDocument patches cols plus updated_at and emits an UPDATE carrying
// only the changed fields.
func (r *Reconciler) writeDocument(
	ctx context.Context,
	orgID string,
	pt ParentType,
	docID id.ID,
	cols, changes map[string]any,
	now time.Time,
) error {
	cols["updated_at"] = now
	changes["updatedAt"] = now

	var err error
	kind := KindQuote
	switch pt {
	case ParentQuote:
		err = r.repos.Quotes.Patch(ctx, orgID, docID, cols)
	case ParentInvoice:
		kind = KindInvoice
		err = r.repos.Invoices.Patch(ctx, orgID, docID, cols)
	}
	if err != nil {
		return fmt.Errorf("write %s %s: %w", pt, docID, err)
	}

	changes["id"] = docID
	r.emit(ctx, kind, docID, orgID, outbox.OpUpdate, changes, now)
	return nil
}
