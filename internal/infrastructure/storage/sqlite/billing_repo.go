package sqlite

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"fieldledger/internal/core/id"
	"fieldledger/internal/domain/billing"
)

// ClientRepo stores clients.
type ClientRepo struct {
	*BaseRepo[*billing.Client]
}

func NewClientRepo(txm *TxManager) *ClientRepo {
	return &ClientRepo{newBaseRepo(txm, tableSpec{
		table:      "clients",
		entity:     billing.KindClient,
		searchCols: []string{"name", "email", "notes"},
	}, func() *billing.Client { return &billing.Client{} })}
}

// QuoteRepo stores quotes.
type QuoteRepo struct {
	*BaseRepo[*billing.Quote]
}

func NewQuoteRepo(txm *TxManager) *QuoteRepo {
	return &QuoteRepo{newBaseRepo(txm, documentSpec("quotes", billing.KindQuote),
		func() *billing.Quote { return &billing.Quote{} })}
}

// InvoiceRepo stores invoices.
type InvoiceRepo struct {
	*BaseRepo[*billing.Invoice]
}

func NewInvoiceRepo(txm *TxManager) *InvoiceRepo {
	return &InvoiceRepo{newBaseRepo(txm, documentSpec("invoices", billing.KindInvoice),
		func() *billing.Invoice { return &billing.Invoice{} })}
}

func documentSpec(table, kind string) tableSpec {
	return tableSpec{
		table:            table,
		entity:           kind,
		searchCols:       []string{"number", "notes"},
		searchClientName: true,
		statusCol:        "status",
		clientCol:        "client_id",
	}
}

// LineItemRepo stores line items.
type LineItemRepo struct {
	*BaseRepo[*billing.LineItem]
}

func NewLineItemRepo(txm *TxManager) *LineItemRepo {
	return &LineItemRepo{newBaseRepo(txm, tableSpec{
		table:      "line_items",
		entity:     billing.KindLineItem,
		searchCols: []string{"label"},
	}, func() *billing.LineItem { return &billing.LineItem{} })}
}

// ListByParent returns the items of one document ordered by position.
func (r *LineItemRepo) ListByParent(
	ctx context.Context,
	orgID string,
	parentType billing.ParentType,
	parentID id.ID,
	includeDeleted bool,
) ([]*billing.LineItem, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{
			"org_id":      orgID,
			"parent_type": string(parentType),
			"parent_id":   parentID.String(),
		}).
		OrderBy("position ASC", "created_at ASC", "id ASC")
	if !includeDeleted {
		q = q.Where(squirrel.Eq{"deleted_at": nil})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []*billing.LineItem{}
	if err := sqlscan.Select(ctx, r.querier(ctx), &items, query, args...); err != nil {
		return nil, fmt.Errorf("list line items of %s %s: %w", parentType, parentID, err)
	}
	return items, nil
}

// MaxPosition returns the highest position under the parent, or 0.
func (r *LineItemRepo) MaxPosition(ctx context.Context, orgID string, parentType billing.ParentType, parentID id.ID) (int, error) {
	query, args, err := builder().
		Select("COALESCE(MAX(position), 0)").
		From(r.spec.table).
		Where(squirrel.Eq{
			"org_id":      orgID,
			"parent_type": string(parentType),
			"parent_id":   parentID.String(),
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var pos int
	if err := sqlscan.Get(ctx, r.querier(ctx), &pos, query, args...); err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	return pos, nil
}

// PaymentRepo stores payments.
type PaymentRepo struct {
	*BaseRepo[*billing.Payment]
}

func NewPaymentRepo(txm *TxManager) *PaymentRepo {
	return &PaymentRepo{newBaseRepo(txm, tableSpec{
		table:      "payments",
		entity:     billing.KindPayment,
		searchCols: []string{"reference", "notes"},
		statusCol:  "method",
	}, func() *billing.Payment { return &billing.Payment{} })}
}

// ListByInvoice returns the payments of one invoice ordered by paid_at.
func (r *PaymentRepo) ListByInvoice(ctx context.Context, orgID string, invoiceID id.ID, includeDeleted bool) ([]*billing.Payment, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"org_id": orgID, "invoice_id": invoiceID.String()}).
		OrderBy("paid_at ASC", "created_at ASC", "id ASC")
	if !includeDeleted {
		q = q.Where(squirrel.Eq{"deleted_at": nil})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	payments := []*billing.Payment{}
	if err := sqlscan.Select(ctx, r.querier(ctx), &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list payments of invoice %s: %w", invoiceID, err)
	}
	return payments, nil
}

// NewRepositories builds every billing row store over one transaction manager.
func NewRepositories(txm *TxManager) billing.Repositories {
	return billing.Repositories{
		Clients:   NewClientRepo(txm),
		Quotes:    NewQuoteRepo(txm),
		Invoices:  NewInvoiceRepo(txm),
		LineItems: NewLineItemRepo(txm),
		Payments:  NewPaymentRepo(txm),
	}
}

var (
	_ billing.ClientRepository   = (*ClientRepo)(nil)
	_ billing.QuoteRepository    = (*QuoteRepo)(nil)
	_ billing.InvoiceRepository  = (*InvoiceRepo)(nil)
	_ billing.LineItemRepository = (*LineItemRepo)(nil)
	_ billing.PaymentRepository  = (*PaymentRepo)(nil)
)
