package billing

import (
	"context"
	"fmt"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/entity"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
	"fieldledger/internal/domain"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/money"
	"fieldledger/internal/domain/outbox"
)

// LineItemInput adds a line to a quote or invoice. Position defaults to
// the next one after the parent's current maximum.
type LineItemInput struct {
	OrgID      string      `json:"orgId,omitempty"`
	ParentType ParentType  `json:"parentType"`
	ParentID   id.ID       `json:"parentId"`
	Label      string      `json:"label"`
	Quantity   types.Money `json:"quantity"`
	UnitPrice  types.Money `json:"unitPrice"`
	TaxRate    types.Money `json:"taxRate"`
	Position   *int        `json:"position,omitempty"`
}

// LineItemPatch changes a line item.
type LineItemPatch struct {
	Label     *string      `json:"label,omitempty"`
	Quantity  *types.Money `json:"quantity,omitempty"`
	UnitPrice *types.Money `json:"unitPrice,omitempty"`
	TaxRate   *types.Money `json:"taxRate,omitempty"`
	Position  *int         `json:"position,omitempty"`
}

// LineItemService manages line items. Every write recomputes the totals of
// the parent document in the same transaction.
type LineItemService struct {
	base
	repo       LineItemRepository
	repos      Repositories
	reconciler *Reconciler
	hooks      *domain.HookRegistry[*LineItem]
}

func NewLineItemService(d Deps, rec *Reconciler) *LineItemService {
	s := &LineItemService{
		base:       newBase(d, "line_items"),
		repo:       d.Repos.LineItems,
		repos:      d.Repos,
		reconciler: rec,
		hooks:      domain.NewHookRegistry[*LineItem](),
	}
	s.hooks.OnAnyWrite(func(ctx context.Context, it *LineItem) error {
		_, err := rec.recomputeTotals(ctx, it.OrgID, it.ParentType, it.ParentID)
		return err
	})
	return s
}

// Hooks exposes the post-write hooks; they run inside the write transaction
// with the parent document locked.
func (s *LineItemService) Hooks() *domain.HookRegistry[*LineItem] {
	return s.hooks
}

// Create validates and stores a line item, then refreshes the parent totals.
func (s *LineItemService) Create(ctx context.Context, in LineItemInput) (*LineItem, error) {
	orgID, userID, err := writeScope(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}
	if !in.ParentType.Valid() {
		return nil, apperror.NewFieldValidation("parentType", "unknown parent type").WithDetail("value", in.ParentType)
	}

	now := s.clock.Now()
	it := &LineItem{
		BaseEntity: entity.NewBaseEntity(orgID, userID, now),
		ParentType: in.ParentType,
		ParentID:   in.ParentID,
		Label:      normalizeText(in.Label),
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		TaxRate:    in.TaxRate,
	}
	if in.Position != nil {
		it.Position = *in.Position
	}
	if err := validateLine(it); err != nil {
		return nil, err
	}
	it.LineTotal = money.LineTotal(it.moneyItem())

	unlock := s.reconciler.lockDocument(it.ParentType, it.ParentID)
	defer unlock()

	if err := s.requireParent(ctx, orgID, it.ParentType, it.ParentID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if in.Position == nil {
			maxPos, err := s.repo.MaxPosition(ctx, orgID, it.ParentType, it.ParentID)
			if err != nil {
				return err
			}
			it.Position = maxPos + 1
		}
		if err := s.repo.Insert(ctx, it); err != nil {
			return fmt.Errorf("create line item: %w", err)
		}
		s.emit(ctx, KindLineItem, it.ID, orgID, outbox.OpCreate, it, now)
		return s.hooks.Run(ctx, domain.AfterCreate, it)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindLineItem, it.ID, orgID, audit.ActionCreate, map[string]any{
		"parentType": it.ParentType,
		"parentId":   it.ParentID,
		"lineTotal":  it.LineTotal,
	})
	return it, nil
}

// Update applies patch to a live line item and refreshes the parent totals.
func (s *LineItemService) Update(ctx context.Context, orgID string, itemID id.ID, patch LineItemPatch) (*LineItem, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	it, err := s.live(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}
	unlock := s.reconciler.lockDocument(it.ParentType, it.ParentID)
	defer unlock()

	// Re-read under the parent lock.
	if it, err = s.live(ctx, orgID, itemID); err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if patch.Label != nil {
		if v := normalizeText(*patch.Label); v != it.Label {
			it.Label = v
			changes["label"] = v
		}
	}
	setMoney := func(field string, dst *types.Money, src *types.Money) {
		if src != nil && !dst.Equal(*src) {
			*dst = *src
			changes[field] = *src
		}
	}
	setMoney("quantity", &it.Quantity, patch.Quantity)
	setMoney("unitPrice", &it.UnitPrice, patch.UnitPrice)
	setMoney("taxRate", &it.TaxRate, patch.TaxRate)
	if patch.Position != nil && *patch.Position != it.Position {
		it.Position = *patch.Position
		changes["position"] = it.Position
	}

	if err := validateLine(it); err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return it, nil
	}
	if lt := money.LineTotal(it.moneyItem()); !lt.Equal(it.LineTotal) {
		it.LineTotal = lt
		changes["lineTotal"] = lt
	}

	now := s.clock.Now()
	it.Touch(now)
	changes["updatedAt"] = now

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, it); err != nil {
			return fmt.Errorf("update line item: %w", err)
		}
		s.emitUpdate(ctx, KindLineItem, it.ID, orgID, it, changes, now)
		return s.hooks.Run(ctx, domain.AfterUpdate, it)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindLineItem, it.ID, orgID, audit.ActionUpdate, changes)
	return it, nil
}

// Delete soft-deletes a line item and refreshes the parent totals.
func (s *LineItemService) Delete(ctx context.Context, orgID string, itemID id.ID) (*LineItem, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	it, err := s.repo.GetByID(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}
	if it.IsDeleted() {
		return it, nil
	}
	unlock := s.reconciler.lockDocument(it.ParentType, it.ParentID)
	defer unlock()

	if it, err = s.repo.GetByID(ctx, orgID, itemID); err != nil {
		return nil, err
	}
	if it.IsDeleted() {
		return it, nil
	}

	now := s.clock.Now()
	it.MarkDeleted(now)
	it.Touch(now)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, it); err != nil {
			return fmt.Errorf("delete line item: %w", err)
		}
		s.emitUpdate(ctx, KindLineItem, it.ID, orgID, it, map[string]any{"deletedAt": now, "updatedAt": now}, now)
		s.emitDelete(ctx, KindLineItem, it.ID, orgID, now)
		return s.hooks.Run(ctx, domain.AfterDelete, it)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindLineItem, it.ID, orgID, audit.ActionDelete, nil)
	return it, nil
}

// Get returns a line item, deleted or not.
func (s *LineItemService) Get(ctx context.Context, orgID string, itemID id.ID) (*LineItem, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orgID, itemID)
}

// ListByParent returns the items of a document ordered by position.
func (s *LineItemService) ListByParent(ctx context.Context, orgID string, pt ParentType, parentID id.ID, includeDeleted bool) ([]*LineItem, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !pt.Valid() {
		return nil, apperror.NewFieldValidation("parentType", "unknown parent type").WithDetail("value", pt)
	}
	return s.repo.ListByParent(ctx, orgID, pt, parentID, includeDeleted)
}

// List returns a page of line items across documents.
func (s *LineItemService) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*LineItem], error) {
	orgID, err := resolveOrg(ctx, filter.OrgID)
	if err != nil {
		return domain.ListResult[*LineItem]{}, err
	}
	filter.OrgID = orgID
	return s.repo.List(ctx, filter)
}

func (s *LineItemService) live(ctx context.Context, orgID string, itemID id.ID) (*LineItem, error) {
	it, err := s.repo.GetByID(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}
	if it.IsDeleted() {
		return nil, apperror.NewNotFound(KindLineItem, itemID)
	}
	return it, nil
}

// requireParent fails with NOT_FOUND unless the document is live in orgID.
func (s *LineItemService) requireParent(ctx context.Context, orgID string, pt ParentType, parentID id.ID) error {
	var deleted bool
	switch pt {
	case ParentQuote:
		q, err := s.repos.Quotes.GetByID(ctx, orgID, parentID)
		if err != nil {
			return err
		}
		deleted = q.IsDeleted()
	case ParentInvoice:
		inv, err := s.repos.Invoices.GetByID(ctx, orgID, parentID)
		if err != nil {
			return err
		}
		deleted = inv.IsDeleted()
	}
	if deleted {
		return apperror.NewNotFound(string(pt), parentID)
	}
	return nil
}

func validateLine(it *LineItem) error {
	if it.Label == "" {
		return apperror.NewFieldValidation("label", "required")
	}
	if it.Position < 0 {
		return apperror.NewFieldValidation("position", "must not be negative")
	}
	return money.ValidateItem(it.moneyItem())
}

func (it *LineItem) moneyItem() money.Item {
	return money.Item{Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate}
}
