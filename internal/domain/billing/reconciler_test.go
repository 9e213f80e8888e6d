package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/billing"
	"fieldledger/internal/domain/outbox"
)

func TestLineItems_RecomputeQuoteTotals(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t)
	f.outbox.Reset()

	f.item(t, billing.ParentQuote, q.ID, "2", "10", "20")
	f.item(t, billing.ParentQuote, q.ID, "1", "5", "0")

	got, err := f.ledger.Quotes.Get(f.ctx, "", q.ID)
	require.NoError(t, err)
	assertMoney(t, "25", got.Subtotal)
	assertMoney(t, "4", got.TaxTotal)
	assertMoney(t, "29", got.Total)

	// Each item write emits its CREATE, then the parent UPDATE.
	ops := f.outbox.Ops()
	require.Len(t, ops, 4)
	assert.Equal(t, billing.KindLineItem, ops[0].EntityKind)
	assert.Equal(t, billing.KindQuote, ops[1].EntityKind)

	// The second item leaves the tax untouched, so the patch omits it.
	patch := ops[3].Payload.(map[string]any)
	assert.Contains(t, patch, "subtotal")
	assert.Contains(t, patch, "total")
	assert.Contains(t, patch, "updatedAt")
	assert.Equal(t, q.ID, patch["id"])
	assert.NotContains(t, patch, "taxTotal")
}

func TestLineItems_DeletingAllZeroesTotals(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t)
	a := f.item(t, billing.ParentQuote, q.ID, "2", "10", "20")
	b := f.item(t, billing.ParentQuote, q.ID, "1", "5", "0")

	for _, it := range []*billing.LineItem{a, b} {
		_, err := f.ledger.LineItems.Delete(f.ctx, "", it.ID)
		require.NoError(t, err)
	}

	got, err := f.ledger.Quotes.Get(f.ctx, "", q.ID)
	require.NoError(t, err)
	assertMoney(t, "0", got.Subtotal)
	assertMoney(t, "0", got.TaxTotal)
	assertMoney(t, "0", got.Total)

	live, err := f.ledger.LineItems.ListByParent(f.ctx, "", billing.ParentQuote, q.ID, false)
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := f.ledger.LineItems.ListByParent(f.ctx, "", billing.ParentQuote, q.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLineItems_PositionsAppend(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t)

	a := f.item(t, billing.ParentQuote, q.ID, "1", "1", "0")
	b := f.item(t, billing.ParentQuote, q.ID, "1", "1", "0")
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)

	_, err := f.ledger.LineItems.Delete(f.ctx, "", b.ID)
	require.NoError(t, err)

	c := f.item(t, billing.ParentQuote, q.ID, "1", "1", "0")
	assert.Equal(t, 3, c.Position, "deleted lines keep their position")

	explicit, err := f.ledger.LineItems.Create(f.ctx, billing.LineItemInput{
		ParentType: billing.ParentQuote,
		ParentID:   q.ID,
		Label:      "First",
		Quantity:   types.MustMoney("1"),
		UnitPrice:  types.MustMoney("1"),
		TaxRate:    types.MustMoney("0"),
		Position:   ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, explicit.Position)

	items, err := f.ledger.LineItems.ListByParent(f.ctx, "", billing.ParentQuote, q.ID, false)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, explicit.ID, items[0].ID)
	assert.Equal(t, c.ID, items[2].ID)
}

func TestLineItems_UpdateRecomputes(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t)
	it := f.item(t, billing.ParentQuote, q.ID, "2", "10", "20")

	got, err := f.ledger.LineItems.Update(f.ctx, "", it.ID, billing.LineItemPatch{
		Quantity: ptr(types.MustMoney("3")),
		Label:    ptr("  Labour  hours "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Labour hours", got.Label)
	assertMoney(t, "36", got.LineTotal)

	doc, err := f.ledger.Quotes.Get(f.ctx, "", q.ID)
	require.NoError(t, err)
	assertMoney(t, "30", doc.Subtotal)
	assertMoney(t, "6", doc.TaxTotal)
	assertMoney(t, "36", doc.Total)
}

func TestLineItems_Validation(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t)

	base := billing.LineItemInput{
		ParentType: billing.ParentQuote,
		ParentID:   q.ID,
		Label:      "Work",
		Quantity:   types.MustMoney("1"),
		UnitPrice:  types.MustMoney("10"),
		TaxRate:    types.MustMoney("20"),
	}

	tests := []struct {
		name   string
		mutate func(in *billing.LineItemInput)
	}{
		{"blank label", func(in *billing.LineItemInput) { in.Label = "  " }},
		{"negative quantity", func(in *billing.LineItemInput) { in.Quantity = types.MustMoney("-1") }},
		{"negative price", func(in *billing.LineItemInput) { in.UnitPrice = types.MustMoney("-0.01") }},
		{"negative tax rate", func(in *billing.LineItemInput) { in.TaxRate = types.MustMoney("-5") }},
		{"negative position", func(in *billing.LineItemInput) { in.Position = ptr(-1) }},
		{"unknown parent type", func(in *billing.LineItemInput) { in.ParentType = "order" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := f.ledger.LineItems.Create(f.ctx, in)
			require.Error(t, err)
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}

	items, err := f.ledger.LineItems.ListByParent(f.ctx, "", billing.ParentQuote, q.ID, true)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLineItems_ParentMustExist(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.LineItems.Create(f.ctx, billing.LineItemInput{
		ParentType: billing.ParentInvoice,
		ParentID:   id.New(),
		Label:      "Work",
		Quantity:   types.MustMoney("1"),
		UnitPrice:  types.MustMoney("1"),
		TaxRate:    types.MustMoney("0"),
	})
	assert.True(t, apperror.IsNotFound(err))

	q := f.quote(t)
	_, err = f.ledger.Quotes.Delete(f.ctx, "", q.ID)
	require.NoError(t, err)
	_, err = f.ledger.LineItems.Create(f.ctx, billing.LineItemInput{
		ParentType: billing.ParentQuote,
		ParentID:   q.ID,
		Label:      "Work",
		Quantity:   types.MustMoney("1"),
		UnitPrice:  types.MustMoney("1"),
		TaxRate:    types.MustMoney("0"),
	})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.ledger.Payments.Create(f.ctx, billing.PaymentInput{
		InvoiceID: id.New(),
		Amount:    types.MustMoney("10"),
		Method:    billing.MethodCash,
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestPayments_PartialThenFull(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, billing.InvoiceSent, nil)
	f.item(t, billing.ParentInvoice, inv.ID, "1", "100", "0")

	f.pay(t, inv.ID, "40")
	got, err := f.ledger.Invoices.Get(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assertMoney(t, "40", got.PaidTotal)
	assert.Equal(t, billing.InvoiceSent, got.Status)

	f.pay(t, inv.ID, "60")
	got, err = f.ledger.Invoices.Get(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assertMoney(t, "100", got.PaidTotal)
	assert.Equal(t, billing.InvoicePaid, got.Status)

	assert.Contains(t, f.audit.Actions(inv.ID), audit.ActionStatus)
}

func TestPayments_OverdueThenPaid(t *testing.T) {
	f := newFixture(t)
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inv := f.invoice(t, billing.InvoiceSent, &due)
	f.item(t, billing.ParentInvoice, inv.ID, "1", "100", "0")

	f.pay(t, inv.ID, "40")
	got, err := f.ledger.Invoices.Get(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceOverdue, got.Status)

	p := f.pay(t, inv.ID, "60")
	got, err = f.ledger.Invoices.Get(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoicePaid, got.Status)

	// Removing a payment lowers the paid total; paid is not downgraded.
	_, err = f.ledger.Payments.Delete(f.ctx, "", p.ID)
	require.NoError(t, err)
	got, err = f.ledger.Invoices.Get(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assertMoney(t, "40", got.PaidTotal)
	assert.Equal(t, billing.InvoicePaid, got.Status)
}

func TestPayments_CancelledIsUntouched(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, billing.InvoiceCancelled, nil)
	f.item(t, billing.ParentInvoice, inv.ID, "1", "50", "0")

	f.pay(t, inv.ID, "50")
	got, err := f.ledger.Invoices.Get(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceCancelled, got.Status)
	assertMoney(t, "50", got.PaidTotal)
}

func TestPayments_UpdateAmount(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, billing.InvoiceIssued, nil)
	f.item(t, billing.ParentInvoice, inv.ID, "1", "80", "0")
	p := f.pay(t, inv.ID, "30")
	f.outbox.Reset()

	_, err := f.ledger.Payments.Update(f.ctx, "", p.ID, billing.PaymentPatch{Amount: ptr(types.MustMoney("80"))})
	require.NoError(t, err)

	got, err := f.ledger.Invoices.Get(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assertMoney(t, "80", got.PaidTotal)
	assert.Equal(t, billing.InvoicePaid, got.Status)

	ops := f.outbox.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, billing.KindPayment, ops[0].EntityKind)
	assert.Equal(t, outbox.OpUpdate, ops[1].Type)
	assert.Equal(t, billing.KindInvoice, ops[1].EntityKind)
}

func TestPayments_Validation(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t, billing.InvoiceSent, nil)

	_, err := f.ledger.Payments.Create(f.ctx, billing.PaymentInput{InvoiceID: inv.ID, Amount: types.MustMoney("0"), Method: billing.MethodCard})
	assert.True(t, apperror.IsValidation(err), "zero amount")

	_, err = f.ledger.Payments.Create(f.ctx, billing.PaymentInput{InvoiceID: inv.ID, Amount: types.MustMoney("10"), Method: "bitcoin"})
	assert.True(t, apperror.IsValidation(err), "unknown method")
}

func TestRecomputeDocumentTotals_Direct(t *testing.T) {
	f := newFixture(t)
	q := f.quote(t)
	f.item(t, billing.ParentQuote, q.ID, "2", "10", "20")
	f.outbox.Reset()

	totals, err := f.ledger.Reconciler.RecomputeDocumentTotals(f.ctx, "", billing.ParentQuote, q.ID)
	require.NoError(t, err)
	assertMoney(t, "24", totals.Total)
	assert.Empty(t, f.outbox.Ops(), "already in line")

	_, err = f.ledger.Reconciler.RecomputeDocumentTotals(f.ctx, "", billing.ParentInvoice, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestRecomputeInvoicePayments_DerivesOverdue(t *testing.T) {
	f := newFixture(t)
	due := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	inv := f.invoice(t, billing.InvoiceSent, &due)

	got, err := f.ledger.Reconciler.RecomputeInvoicePayments(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceSent, got.Status)

	f.clock.Set(time.Date(2026, 3, 21, 8, 0, 0, 0, time.UTC))
	got, err = f.ledger.Reconciler.RecomputeInvoicePayments(f.ctx, "", inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.InvoiceOverdue, got.Status)
}

func TestDeriveInvoiceStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	past := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	m := types.MustMoney

	tests := []struct {
		name   string
		status billing.InvoiceStatus
		paid   string
		total  string
		due    *time.Time
		want   billing.InvoiceStatus
	}{
		{"cancelled wins", billing.InvoiceCancelled, "100", "100", &past, billing.InvoiceCancelled},
		{"fully paid", billing.InvoiceSent, "100", "100", nil, billing.InvoicePaid},
		{"overpaid", billing.InvoiceIssued, "120", "100", nil, billing.InvoicePaid},
		{"paid beats overdue", billing.InvoiceSent, "100", "100", &past, billing.InvoicePaid},
		{"zero total is never paid", billing.InvoiceSent, "0", "0", nil, billing.InvoiceSent},
		{"past due", billing.InvoiceSent, "10", "100", &past, billing.InvoiceOverdue},
		{"issued past due", billing.InvoiceIssued, "0", "100", &past, billing.InvoiceOverdue},
		{"due today is not overdue", billing.InvoiceSent, "0", "100", &today, billing.InvoiceSent},
		{"draft never overdue", billing.InvoiceDraft, "0", "100", &past, billing.InvoiceDraft},
		{"paid stays paid", billing.InvoicePaid, "40", "100", nil, billing.InvoicePaid},
		{"no due date", billing.InvoiceSent, "0", "100", nil, billing.InvoiceSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := billing.DeriveInvoiceStatus(tt.status, m(tt.paid), m(tt.total), tt.due, now)
			assert.Equal(t, tt.want, got)
		})
	}
}
