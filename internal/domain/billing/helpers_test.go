package billing_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/clock"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/billing"
	"fieldledger/internal/domain/outbox"
	"fieldledger/internal/infrastructure/storage/sqlite"
	"fieldledger/pkg/logger"
)

const testOrg = "org-1"

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	ledger *billing.Ledger
	outbox *outbox.Recorder
	audit  *audit.Recorder
	clock  *clock.FakeClock
	alloc  *numerator.MockAllocator
	seq    atomic.Int64
}

// newFixture builds a ledger over a private in-memory store. The allocator
// starts offline.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(context.Background(), sqlite.Config{Path: sqlite.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		outbox: &outbox.Recorder{},
		audit:  &audit.Recorder{},
		clock:  clock.NewFakeClock(testNow),
		alloc:  &numerator.MockAllocator{},
	}
	f.ctx = appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "user-1", OrgID: testOrg})
	f.ledger = billing.NewLedger(billing.Deps{
		Repos:     sqlite.NewRepositories(db.TxManager()),
		Allocator: f.alloc,
		Outbox:    f.outbox,
		Audit:     f.audit,
		Clock:     f.clock,
		Tx:        db.TxManager(),
		Logger:    logger.Nop(),
	})
	return f
}

// online makes the allocator hand out consecutive final numbers.
func (f *fixture) online() {
	f.alloc.AllocateFunc = func(_ context.Context, _ string, kind numerator.Kind) (string, error) {
		return numerator.Format(kind.DefaultPrefix(), f.seq.Add(1), testNow), nil
	}
}

func (f *fixture) offline() {
	f.alloc.AllocateFunc = nil
}

func (f *fixture) client(t *testing.T, name string) *billing.Client {
	t.Helper()
	c, err := f.ledger.Clients.Create(f.ctx, billing.ClientInput{Name: name})
	require.NoError(t, err)
	return c
}

func (f *fixture) quote(t *testing.T) *billing.Quote {
	t.Helper()
	c := f.client(t, "Quote Client")
	q, err := f.ledger.Quotes.Create(f.ctx, billing.QuoteInput{ClientID: c.ID})
	require.NoError(t, err)
	return q
}

// invoice creates a draft invoice and, for other statuses, moves it there
// with the allocator online.
func (f *fixture) invoice(t *testing.T, status billing.InvoiceStatus, due *time.Time) *billing.Invoice {
	t.Helper()
	c := f.client(t, "Invoice Client")
	inv, err := f.ledger.Invoices.Create(f.ctx, billing.InvoiceInput{ClientID: c.ID, DueDate: due})
	require.NoError(t, err)
	if status == billing.InvoiceDraft {
		return inv
	}

	prev := f.alloc.AllocateFunc
	f.online()
	defer func() { f.alloc.AllocateFunc = prev }()

	inv, err = f.ledger.Invoices.Update(f.ctx, "", inv.ID, billing.InvoicePatch{Status: &status})
	require.NoError(t, err)
	return inv
}

func (f *fixture) item(t *testing.T, pt billing.ParentType, parentID id.ID, qty, price, rate string) *billing.LineItem {
	t.Helper()
	it, err := f.ledger.LineItems.Create(f.ctx, billing.LineItemInput{
		ParentType: pt,
		ParentID:   parentID,
		Label:      "Work",
		Quantity:   types.MustMoney(qty),
		UnitPrice:  types.MustMoney(price),
		TaxRate:    types.MustMoney(rate),
	})
	require.NoError(t, err)
	return it
}

func (f *fixture) pay(t *testing.T, invoiceID id.ID, amount string) *billing.Payment {
	t.Helper()
	p, err := f.ledger.Payments.Create(f.ctx, billing.PaymentInput{
		InvoiceID: invoiceID,
		Amount:    types.MustMoney(amount),
		Method:    billing.MethodTransfer,
	})
	require.NoError(t, err)
	return p
}

func assertMoney(t *testing.T, want string, got types.Money) {
	t.Helper()
	assert.Truef(t, types.MustMoney(want).Equal(got), "want %s, got %s", want, got.String())
}

func opTypes(ops []outbox.Operation) []outbox.OpType {
	out := make([]outbox.OpType, len(ops))
	for i, op := range ops {
		out[i] = op.Type
	}
	return out
}

func ptr[T any](v T) *T { return &v }
