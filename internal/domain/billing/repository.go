package billing

import (
	"context"

	"fieldledger/internal/core/id"
	"fieldledger/internal/domain"
)

// Repository is the org-scoped row store of one entity kind.
// GetByID resolves soft-deleted rows too; List hides them unless
// the filter asks for them.
type Repository[T any] interface {
	Insert(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T) error
	// Upsert inserts or replaces the row with the same id, as-is.
	Upsert(ctx context.Context, entity T) error
	// Patch writes only the given columns.
	Patch(ctx context.Context, orgID string, entityID id.ID, columns map[string]any) error
	GetByID(ctx context.Context, orgID string, entityID id.ID) (T, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error)
}

type ClientRepository interface {
	Repository[*Client]
}

type QuoteRepository interface {
	Repository[*Quote]
}

type InvoiceRepository interface {
	Repository[*Invoice]
}

// LineItemRepository adds per-parent access to line items.
type LineItemRepository interface {
	Repository[*LineItem]
	// ListByParent returns the items of one document ordered by position.
	ListByParent(ctx context.Context, orgID string, parentType ParentType, parentID id.ID, includeDeleted bool) ([]*LineItem, error)
	// MaxPosition returns the highest position used under the parent, deleted
	// rows included, or 0.
	MaxPosition(ctx context.Context, orgID string, parentType ParentType, parentID id.ID) (int, error)
}

// PaymentRepository adds per-invoice access to payments.
type PaymentRepository interface {
	Repository[*Payment]
	// ListByInvoice returns the payments of one invoice ordered by paid_at.
	ListByInvoice(ctx context.Context, orgID string, invoiceID id.ID, includeDeleted bool) ([]*Payment, error)
}

// Repositories groups the row stores the ledger works with.
type Repositories struct {
	Clients   ClientRepository
	Quotes    QuoteRepository
	Invoices  InvoiceRepository
	LineItems LineItemRepository
	Payments  PaymentRepository
}
