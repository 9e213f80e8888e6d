package entity

import (
	"time"

	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
)

// BaseDocument is the common header of quotes and invoices: one client,
// one number and the money fields derived from the live line items.
type BaseDocument struct {
	BaseEntity

	ClientID  id.ID     `db:"client_id" json:"clientId"`
	Number    string    `db:"number" json:"number"`
	IssueDate time.Time `db:"issue_date" json:"issueDate"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`

	Subtotal types.Money `db:"subtotal" json:"subtotal"`
	TaxTotal types.Money `db:"tax_total" json:"taxTotal"`
	Total    types.Money `db:"total" json:"total"`
}

// NewBaseDocument creates a document header with zero totals.
func NewBaseDocument(orgID, userID string, clientID id.ID, issueDate, now time.Time) BaseDocument {
	return BaseDocument{
		BaseEntity: NewBaseEntity(orgID, userID, now),
		ClientID:   clientID,
		IssueDate:  issueDate,
		Subtotal:   types.Zero(),
		TaxTotal:   types.Zero(),
		Total:      types.Zero(),
	}
}

// SetTotals replaces the money fields.
func (d *BaseDocument) SetTotals(subtotal, taxTotal, total types.Money) {
	d.Subtotal = subtotal
	d.TaxTotal = taxTotal
	d.Total = total
}
