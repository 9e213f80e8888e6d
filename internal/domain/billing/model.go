// Package billing implements the ledger: clients, quotes, invoices, their
// line items and payments, numbering promotion and totals reconciliation.
package billing

import (
	"context"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/entity"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
)

// Entity kinds as seen by the outbox and the audit trail.
const (
	KindClient   = "client"
	KindQuote    = "quote"
	KindInvoice  = "invoice"
	KindLineItem = "line_item"
	KindPayment  = "payment"
)

// MinClientNameLength is the minimum length of a normalized client name.
const MinClientNameLength = 2

// QuoteStatus is the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
	QuoteExpired  QuoteStatus = "expired"
)

// Valid reports whether s is a known quote status.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired:
		return true
	}
	return false
}

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceIssued    InvoiceStatus = "issued"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceIssued, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// ParentType names the document a line item belongs to.
type ParentType string

const (
	ParentQuote   ParentType = "quote"
	ParentInvoice ParentType = "invoice"
)

// Valid reports whether p is a known parent type.
func (p ParentType) Valid() bool {
	return p == ParentQuote || p == ParentInvoice
}

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodTransfer PaymentMethod = "transfer"
	MethodCard     PaymentMethod = "card"
	MethodCash     PaymentMethod = "cash"
	MethodCheck    PaymentMethod = "check"
	MethodOther    PaymentMethod = "other"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodTransfer, MethodCard, MethodCash, MethodCheck, MethodOther:
		return true
	}
	return false
}

// Client is a customer of the organization.
type Client struct {
	entity.BaseEntity

	Name      string  `db:"name" json:"name"`
	Email     *string `db:"email" json:"email,omitempty"`
	Phone     *string `db:"phone" json:"phone,omitempty"`
	Address   *string `db:"address" json:"address,omitempty"`
	VATNumber *string `db:"vat_number" json:"vatNumber,omitempty"`
	Notes     *string `db:"notes" json:"notes,omitempty"`
}

// Validate checks the client invariants.
func (c *Client) Validate(_ context.Context) error {
	if len([]rune(c.Name)) < MinClientNameLength {
		return apperror.NewFieldValidation("name", "must be at least 2 characters")
	}
	return nil
}

// Quote is a priced offer to a client.
type Quote struct {
	entity.BaseDocument

	Status     QuoteStatus `db:"status" json:"status"`
	ValidUntil *time.Time  `db:"valid_until" json:"validUntil,omitempty"`
}

// Validate checks the quote invariants.
func (q *Quote) Validate(_ context.Context) error {
	if !q.Status.Valid() {
		return apperror.NewFieldValidation("status", "unknown quote status").WithDetail("value", q.Status)
	}
	if id.IsNil(q.ClientID) {
		return apperror.NewFieldValidation("clientId", "required")
	}
	return nil
}

// IsDraft reports whether the quote has no final number yet.
func (q *Quote) IsDraft() bool { return q.Status == QuoteDraft }

// Invoice is a bill sent to a client.
type Invoice struct {
	entity.BaseDocument

	Status    InvoiceStatus `db:"status" json:"status"`
	DueDate   *time.Time    `db:"due_date" json:"dueDate,omitempty"`
	PaidTotal types.Money   `db:"paid_total" json:"paidTotal"`
	Currency  string        `db:"currency" json:"currency"`
}

// Validate checks the invoice invariants.
func (inv *Invoice) Validate(_ context.Context) error {
	if !inv.Status.Valid() {
		return apperror.NewFieldValidation("status", "unknown invoice status").WithDetail("value", inv.Status)
	}
	if id.IsNil(inv.ClientID) {
		return apperror.NewFieldValidation("clientId", "required")
	}
	if inv.Currency != types.CurrencyEUR {
		return apperror.NewFieldValidation("currency", "only EUR is supported")
	}
	return nil
}

// IsDraft reports whether the invoice has no final number yet.
func (inv *Invoice) IsDraft() bool { return inv.Status == InvoiceDraft }

// LineItem is one priced row of a quote or invoice.
type LineItem struct {
	entity.BaseEntity

	ParentType ParentType  `db:"parent_type" json:"parentType"`
	ParentID   id.ID       `db:"parent_id" json:"parentId"`
	Label      string      `db:"label" json:"label"`
	Quantity   types.Money `db:"quantity" json:"quantity"`
	UnitPrice  types.Money `db:"unit_price" json:"unitPrice"`
	TaxRate    types.Money `db:"tax_rate" json:"taxRate"`
	LineTotal  types.Money `db:"line_total" json:"lineTotal"`
	Position   int         `db:"position" json:"position"`
}

// Payment is money received against an invoice.
type Payment struct {
	entity.BaseEntity

	InvoiceID id.ID         `db:"invoice_id" json:"invoiceId"`
	Amount    types.Money   `db:"amount" json:"amount"`
	Method    PaymentMethod `db:"method" json:"method"`
	PaidAt    time.Time     `db:"paid_at" json:"paidAt"`
	Reference *string       `db:"reference" json:"reference,omitempty"`
	Notes     *string       `db:"notes" json:"notes,omitempty"`
}

// Validate checks the payment invariants.
func (p *Payment) Validate(_ context.Context) error {
	if !p.Amount.IsPositive() {
		return apperror.NewFieldValidation("amount", "must be greater than 0")
	}
	if !p.Method.Valid() {
		return apperror.NewFieldValidation("method", "unknown payment method").WithDetail("value", p.Method)
	}
	return nil
}
