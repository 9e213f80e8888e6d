package billing

import (
	"context"
	"fmt"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/entity"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/outbox"
)

// InvoiceInput creates an invoice. Status defaults to draft and IssueDate
// to today; the currency is always EUR.
type InvoiceInput struct {
	OrgID     string        `json:"orgId,omitempty"`
	ClientID  id.ID         `json:"clientId"`
	Status    InvoiceStatus `json:"status,omitempty"`
	IssueDate *time.Time    `json:"issueDate,omitempty"`
	DueDate   *time.Time    `json:"dueDate,omitempty"`
	Notes     *string       `json:"notes,omitempty"`
}

// InvoicePatch changes an invoice. Totals and paid total follow the line
// items and payments and are not patchable.
type InvoicePatch struct {
	ClientID  *id.ID         `json:"clientId,omitempty"`
	Status    *InvoiceStatus `json:"status,omitempty"`
	IssueDate *time.Time     `json:"issueDate,omitempty"`
	DueDate   *time.Time     `json:"dueDate,omitempty"` // zero time clears
	Notes     *string        `json:"notes,omitempty"`
}

// InvoiceService manages invoices.
type InvoiceService struct {
	documents
	repo InvoiceRepository
}

func NewInvoiceService(d Deps, rec *Reconciler) *InvoiceService {
	return &InvoiceService{documents: newDocuments(d, "invoices", rec), repo: d.Repos.Invoices}
}

// Create stores a new invoice. A draft gets a placeholder number; any
// other status needs a final number and fails with NUMBER_UNAVAILABLE when
// none can be allocated.
func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	orgID, userID, err := writeScope(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = InvoiceDraft
	}
	now := s.clock.Now()
	issue := dayOf(now)
	if in.IssueDate != nil {
		issue = dayOf(*in.IssueDate)
	}

	inv := &Invoice{
		BaseDocument: entity.NewBaseDocument(orgID, userID, in.ClientID, issue, now),
		Status:       status,
		DueDate:      dayPtr(in.DueDate),
		PaidTotal:    types.Zero(),
		Currency:     types.CurrencyEUR,
	}
	inv.Notes = normalizeMultiline(in.Notes)
	inv.Number = numerator.PlaceholderFor(inv.ID)

	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, orgID, inv.ClientID); err != nil {
		return nil, err
	}

	placeholder := inv.Number
	number, promoted, err := s.resolveNumber(ctx, orgID, numerator.KindInvoice, inv.ID, inv.Number, inv.IsDraft())
	if err != nil {
		return nil, err
	}
	inv.Number = number

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		s.emit(ctx, KindInvoice, inv.ID, orgID, outbox.OpCreate, inv, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindInvoice, inv.ID, orgID, audit.ActionCreate, map[string]any{"status": inv.Status})
	if promoted {
		s.recordPromotion(ctx, KindInvoice, inv.ID, orgID, placeholder, inv.Number)
	}
	return inv, nil
}

// Update applies patch to a live invoice. Any status of the enum may be set
// explicitly except draft once a final number is held; leaving draft with a
// placeholder number promotes it first and nothing is written if that fails.
func (s *InvoiceService) Update(ctx context.Context, orgID string, invoiceID id.ID, patch InvoicePatch) (*Invoice, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	unlock := s.reconciler.lockDocument(ParentInvoice, invoiceID)
	defer unlock()

	inv, err := s.live(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}

	prevStatus := inv.Status
	changes := map[string]any{}
	if patch.ClientID != nil && *patch.ClientID != inv.ClientID {
		if err := s.requireClient(ctx, orgID, *patch.ClientID); err != nil {
			return nil, err
		}
		inv.ClientID = *patch.ClientID
		changes["clientId"] = inv.ClientID
	}
	if patch.Status != nil && *patch.Status != inv.Status {
		if err := checkBackToDraft(*patch.Status == InvoiceDraft, inv.Number); err != nil {
			return nil, err
		}
		inv.Status = *patch.Status
		changes["status"] = inv.Status
	}
	if patch.IssueDate != nil && !dayOf(*patch.IssueDate).Equal(inv.IssueDate) {
		inv.IssueDate = dayOf(*patch.IssueDate)
		changes["issueDate"] = inv.IssueDate
	}
	if v, ok := patchDay(patch.DueDate, inv.DueDate); ok {
		inv.DueDate = v
		changes["dueDate"] = optionalDay(v)
	}
	if patch.Notes != nil {
		if v := normalizeMultiline(patch.Notes); !equalOptional(v, inv.Notes) {
			inv.Notes = v
			changes["notes"] = optionalValue(v)
		}
	}

	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}

	placeholder := inv.Number
	number, promoted, err := s.resolveNumber(ctx, orgID, numerator.KindInvoice, inv.ID, inv.Number, inv.IsDraft())
	if err != nil {
		return nil, err
	}
	if promoted {
		inv.Number = number
		changes["number"] = number
	}
	if len(changes) == 0 {
		return inv, nil
	}

	now := s.clock.Now()
	inv.Touch(now)
	changes["updatedAt"] = now

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		s.emitUpdate(ctx, KindInvoice, inv.ID, orgID, inv, changes, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindInvoice, inv.ID, orgID, audit.ActionUpdate, changes)
	if inv.Status != prevStatus {
		s.record(ctx, KindInvoice, inv.ID, orgID, audit.ActionStatus, map[string]any{"from": prevStatus, "to": inv.Status})
	}
	if promoted {
		s.recordPromotion(ctx, KindInvoice, inv.ID, orgID, placeholder, inv.Number)
	}
	return inv, nil
}

// Delete soft-deletes an invoice. Its line items and payments are left as
// they are.
func (s *InvoiceService) Delete(ctx context.Context, orgID string, invoiceID id.ID) (*Invoice, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	unlock := s.reconciler.lockDocument(ParentInvoice, invoiceID)
	defer unlock()

	inv, err := s.repo.GetByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.IsDeleted() {
		return inv, nil
	}

	now := s.clock.Now()
	inv.MarkDeleted(now)
	inv.Touch(now)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, inv); err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		s.emitUpdate(ctx, KindInvoice, inv.ID, orgID, inv, map[string]any{"deletedAt": now, "updatedAt": now}, now)
		s.emitDelete(ctx, KindInvoice, inv.ID, orgID, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindInvoice, inv.ID, orgID, audit.ActionDelete, nil)
	return inv, nil
}

// Get returns an invoice, deleted or not.
func (s *InvoiceService) Get(ctx context.Context, orgID string, invoiceID id.ID) (*Invoice, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orgID, invoiceID)
}

// List returns a page of invoices.
func (s *InvoiceService) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Invoice], error) {
	orgID, err := resolveOrg(ctx, filter.OrgID)
	if err != nil {
		return domain.ListResult[*Invoice]{}, err
	}
	filter.OrgID = orgID
	if st := filter.Normalize().Status; st != "" && !InvoiceStatus(st).Valid() {
		return domain.ListResult[*Invoice]{}, apperror.NewFieldValidation("status", "unknown invoice status").WithDetail("value", st)
	}
	return s.repo.List(ctx, filter)
}

func (s *InvoiceService) live(ctx context.Context, orgID string, invoiceID id.ID) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.IsDeleted() {
		return nil, apperror.NewNotFound(KindInvoice, invoiceID)
	}
	return inv, nil
}
