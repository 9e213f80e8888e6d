package billing

import (
	"context"
	"fmt"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/entity"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/outbox"
)

// PaymentInput records a payment. PaidAt defaults to now.
type PaymentInput struct {
	OrgID     string        `json:"orgId,omitempty"`
	InvoiceID id.ID         `json:"invoiceId"`
	Amount    types.Money   `json:"amount"`
	Method    PaymentMethod `json:"method"`
	PaidAt    *time.Time    `json:"paidAt,omitempty"`
	Reference *string       `json:"reference,omitempty"`
	Notes     *string       `json:"notes,omitempty"`
}

// PaymentPatch changes a payment.
type PaymentPatch struct {
	Amount    *types.Money   `json:"amount,omitempty"`
	Method    *PaymentMethod `json:"method,omitempty"`
	PaidAt    *time.Time     `json:"paidAt,omitempty"`
	Reference *string        `json:"reference,omitempty"`
	Notes     *string        `json:"notes,omitempty"`
}

// PaymentService manages payments. Every write recomputes the paid total
// and status of the invoice in the same transaction.
type PaymentService struct {
	base
	repo       PaymentRepository
	invoices   InvoiceRepository
	reconciler *Reconciler
	hooks      *domain.HookRegistry[*Payment]
}

func NewPaymentService(d Deps, rec *Reconciler) *PaymentService {
	s := &PaymentService{
		base:       newBase(d, "payments"),
		repo:       d.Repos.Payments,
		invoices:   d.Repos.Invoices,
		reconciler: rec,
		hooks:      domain.NewHookRegistry[*Payment](),
	}
	s.hooks.OnAnyWrite(func(ctx context.Context, p *Payment) error {
		_, err := rec.recomputePayments(ctx, p.OrgID, p.InvoiceID)
		return err
	})
	return s
}

// Hooks exposes the post-write hooks; they run inside the write transaction
// with the invoice locked.
func (s *PaymentService) Hooks() *domain.HookRegistry[*Payment] {
	return s.hooks
}

// Create records a payment against a live invoice.
func (s *PaymentService) Create(ctx context.Context, in PaymentInput) (*Payment, error) {
	orgID, userID, err := writeScope(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	paidAt := now
	if in.PaidAt != nil {
		paidAt = in.PaidAt.UTC()
	}
	p := &Payment{
		BaseEntity: entity.NewBaseEntity(orgID, userID, now),
		InvoiceID:  in.InvoiceID,
		Amount:     in.Amount,
		Method:     in.Method,
		PaidAt:     paidAt,
		Reference:  normalizeOptional(in.Reference),
		Notes:      normalizeMultiline(in.Notes),
	}
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	unlock := s.reconciler.lockDocument(ParentInvoice, p.InvoiceID)
	defer unlock()

	if err := s.requireInvoice(ctx, orgID, p.InvoiceID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		s.emit(ctx, KindPayment, p.ID, orgID, outbox.OpCreate, p, now)
		return s.hooks.Run(ctx, domain.AfterCreate, p)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindPayment, p.ID, orgID, audit.ActionPayment, map[string]any{
		"invoiceId": p.InvoiceID,
		"amount":    p.Amount,
		"method":    p.Method,
	})
	return p, nil
}

// Update applies patch to a live payment.
func (s *PaymentService) Update(ctx context.Context, orgID string, paymentID id.ID, patch PaymentPatch) (*Payment, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	p, err := s.live(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	unlock := s.reconciler.lockDocument(ParentInvoice, p.InvoiceID)
	defer unlock()

	if p, err = s.live(ctx, orgID, paymentID); err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if patch.Amount != nil && !patch.Amount.Equal(p.Amount) {
		p.Amount = *patch.Amount
		changes["amount"] = p.Amount
	}
	if patch.Method != nil && *patch.Method != p.Method {
		p.Method = *patch.Method
		changes["method"] = p.Method
	}
	if patch.PaidAt != nil && !patch.PaidAt.Equal(p.PaidAt) {
		p.PaidAt = patch.PaidAt.UTC()
		changes["paidAt"] = p.PaidAt
	}
	if patch.Reference != nil {
		if v := normalizeOptional(patch.Reference); !equalOptional(v, p.Reference) {
			p.Reference = v
			changes["reference"] = optionalValue(v)
		}
	}
	if patch.Notes != nil {
		if v := normalizeMultiline(patch.Notes); !equalOptional(v, p.Notes) {
			p.Notes = v
			changes["notes"] = optionalValue(v)
		}
	}

	if err := p.Validate(ctx); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return p, nil
	}

	now := s.clock.Now()
	p.Touch(now)
	changes["updatedAt"] = now

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		s.emitUpdate(ctx, KindPayment, p.ID, orgID, p, changes, now)
		return s.hooks.Run(ctx, domain.AfterUpdate, p)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindPayment, p.ID, orgID, audit.ActionUpdate, changes)
	return p, nil
}

// Delete soft-deletes a payment.
func (s *PaymentService) Delete(ctx context.Context, orgID string, paymentID id.ID) (*Payment, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return p, nil
	}
	unlock := s.reconciler.lockDocument(ParentInvoice, p.InvoiceID)
	defer unlock()

	if p, err = s.repo.GetByID(ctx, orgID, paymentID); err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return p, nil
	}

	now := s.clock.Now()
	p.MarkDeleted(now)
	p.Touch(now)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		s.emitUpdate(ctx, KindPayment, p.ID, orgID, p, map[string]any{"deletedAt": now, "updatedAt": now}, now)
		s.emitDelete(ctx, KindPayment, p.ID, orgID, now)
		return s.hooks.Run(ctx, domain.AfterDelete, p)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindPayment, p.ID, orgID, audit.ActionDelete, nil)
	return p, nil
}

// Get returns a payment, deleted or not.
func (s *PaymentService) Get(ctx context.Context, orgID string, paymentID id.ID) (*Payment, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orgID, paymentID)
}

// ListByInvoice returns the payments of an invoice ordered by paid_at.
func (s *PaymentService) ListByInvoice(ctx context.Context, orgID string, invoiceID id.ID, includeDeleted bool) ([]*Payment, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByInvoice(ctx, orgID, invoiceID, includeDeleted)
}

// List returns a page of payments; the status filter matches the method.
func (s *PaymentService) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Payment], error) {
	orgID, err := resolveOrg(ctx, filter.OrgID)
	if err != nil {
		return domain.ListResult[*Payment]{}, err
	}
	filter.OrgID = orgID
	return s.repo.List(ctx, filter)
}

func (s *PaymentService) live(ctx context.Context, orgID string, paymentID id.ID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return nil, apperror.NewNotFound(KindPayment, paymentID)
	}
	return p, nil
}

func (s *PaymentService) requireInvoice(ctx context.Context, orgID string, invoiceID id.ID) error {
	inv, err := s.invoices.GetByID(ctx, orgID, invoiceID)
	if err != nil {
		return err
	}
	if inv.IsDeleted() {
		return apperror.NewNotFound(KindInvoice, invoiceID)
	}
	return nil
}
