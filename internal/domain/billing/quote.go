package billing

import (
	"context"
	"fmt"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/entity"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/domain"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/outbox"
)

// QuoteInput creates a quote. Status defaults to draft and IssueDate to
// today.
type QuoteInput struct {
	OrgID      string      `json:"orgId,omitempty"`
	ClientID   id.ID       `json:"clientId"`
	Status     QuoteStatus `json:"status,omitempty"`
	IssueDate  *time.Time  `json:"issueDate,omitempty"`
	ValidUntil *time.Time  `json:"validUntil,omitempty"`
	Notes      *string     `json:"notes,omitempty"`
}

// QuotePatch changes a quote. Totals are not patchable: they follow the
// line items.
type QuotePatch struct {
	ClientID   *id.ID       `json:"clientId,omitempty"`
	Status     *QuoteStatus `json:"status,omitempty"`
	IssueDate  *time.Time   `json:"issueDate,omitempty"`
	ValidUntil *time.Time   `json:"validUntil,omitempty"` // zero time clears
	Notes      *string      `json:"notes,omitempty"`
}

// QuoteService manages quotes.
type QuoteService struct {
	documents
	repo QuoteRepository
}

func NewQuoteService(d Deps, rec *Reconciler) *QuoteService {
	return &QuoteService{documents: newDocuments(d, "quotes", rec), repo: d.Repos.Quotes}
}

// Create stores a new quote. A draft gets a placeholder number; any other
// status needs a final number and fails with NUMBER_UNAVAILABLE when none
// can be allocated.
func (s *QuoteService) Create(ctx context.Context, in QuoteInput) (*Quote, error) {
	orgID, userID, err := writeScope(ctx, in.OrgID)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = QuoteDraft
	}
	now := s.clock.Now()
	issue := dayOf(now)
	if in.IssueDate != nil {
		issue = dayOf(*in.IssueDate)
	}

	q := &Quote{
		BaseDocument: entity.NewBaseDocument(orgID, userID, in.ClientID, issue, now),
		Status:       status,
		ValidUntil:   dayPtr(in.ValidUntil),
	}
	q.Notes = normalizeMultiline(in.Notes)
	q.Number = numerator.PlaceholderFor(q.ID)

	if err := q.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.requireClient(ctx, orgID, q.ClientID); err != nil {
		return nil, err
	}

	placeholder := q.Number
	number, promoted, err := s.resolveNumber(ctx, orgID, numerator.KindQuote, q.ID, q.Number, q.IsDraft())
	if err != nil {
		return nil, err
	}
	q.Number = number

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, q); err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		s.emit(ctx, KindQuote, q.ID, orgID, outbox.OpCreate, q, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindQuote, q.ID, orgID, audit.ActionCreate, map[string]any{"status": q.Status})
	if promoted {
		s.recordPromotion(ctx, KindQuote, q.ID, orgID, placeholder, q.Number)
	}
	return q, nil
}

// Update applies patch to a live quote. Moving a placeholder-numbered quote
// out of draft promotes its number first; if that fails nothing is written.
func (s *QuoteService) Update(ctx context.Context, orgID string, quoteID id.ID, patch QuotePatch) (*Quote, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	unlock := s.reconciler.lockDocument(ParentQuote, quoteID)
	defer unlock()

	q, err := s.live(ctx, orgID, quoteID)
	if err != nil {
		return nil, err
	}

	prevStatus := q.Status
	changes := map[string]any{}
	if patch.ClientID != nil && *patch.ClientID != q.ClientID {
		if err := s.requireClient(ctx, orgID, *patch.ClientID); err != nil {
			return nil, err
		}
		q.ClientID = *patch.ClientID
		changes["clientId"] = q.ClientID
	}
	if patch.Status != nil && *patch.Status != q.Status {
		if err := checkBackToDraft(*patch.Status == QuoteDraft, q.Number); err != nil {
			return nil, err
		}
		q.Status = *patch.Status
		changes["status"] = q.Status
	}
	if patch.IssueDate != nil && !dayOf(*patch.IssueDate).Equal(q.IssueDate) {
		q.IssueDate = dayOf(*patch.IssueDate)
		changes["issueDate"] = q.IssueDate
	}
	if v, ok := patchDay(patch.ValidUntil, q.ValidUntil); ok {
		q.ValidUntil = v
		changes["validUntil"] = optionalDay(v)
	}
	if patch.Notes != nil {
		if v := normalizeMultiline(patch.Notes); !equalOptional(v, q.Notes) {
			q.Notes = v
			changes["notes"] = optionalValue(v)
		}
	}

	if err := q.Validate(ctx); err != nil {
		return nil, err
	}

	placeholder := q.Number
	number, promoted, err := s.resolveNumber(ctx, orgID, numerator.KindQuote, q.ID, q.Number, q.IsDraft())
	if err != nil {
		return nil, err
	}
	if promoted {
		q.Number = number
		changes["number"] = number
	}
	if len(changes) == 0 {
		return q, nil
	}

	now := s.clock.Now()
	q.Touch(now)
	changes["updatedAt"] = now

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, q); err != nil {
			return fmt.Errorf("update quote: %w", err)
		}
		s.emitUpdate(ctx, KindQuote, q.ID, orgID, q, changes, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindQuote, q.ID, orgID, audit.ActionUpdate, changes)
	if q.Status != prevStatus {
		s.record(ctx, KindQuote, q.ID, orgID, audit.ActionStatus, map[string]any{"from": prevStatus, "to": q.Status})
	}
	if promoted {
		s.recordPromotion(ctx, KindQuote, q.ID, orgID, placeholder, q.Number)
	}
	return q, nil
}

// Delete soft-deletes a quote. Its line items are left as they are.
func (s *QuoteService) Delete(ctx context.Context, orgID string, quoteID id.ID) (*Quote, error) {
	orgID, _, err := writeScope(ctx, orgID)
	if err != nil {
		return nil, err
	}

	unlock := s.reconciler.lockDocument(ParentQuote, quoteID)
	defer unlock()

	q, err := s.repo.GetByID(ctx, orgID, quoteID)
	if err != nil {
		return nil, err
	}
	if q.IsDeleted() {
		return q, nil
	}

	now := s.clock.Now()
	q.MarkDeleted(now)
	q.Touch(now)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, q); err != nil {
			return fmt.Errorf("delete quote: %w", err)
		}
		s.emitUpdate(ctx, KindQuote, q.ID, orgID, q, map[string]any{"deletedAt": now, "updatedAt": now}, now)
		s.emitDelete(ctx, KindQuote, q.ID, orgID, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, KindQuote, q.ID, orgID, audit.ActionDelete, nil)
	return q, nil
}

// Get returns a quote, deleted or not.
func (s *QuoteService) Get(ctx context.Context, orgID string, quoteID id.ID) (*Quote, error) {
	orgID, err := resolveOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, orgID, quoteID)
}

// List returns a page of quotes.
func (s *QuoteService) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Quote], error) {
	orgID, err := resolveOrg(ctx, filter.OrgID)
	if err != nil {
		return domain.ListResult[*Quote]{}, err
	}
	filter.OrgID = orgID
	if st := filter.Normalize().Status; st != "" && !QuoteStatus(st).Valid() {
		return domain.ListResult[*Quote]{}, apperror.NewFieldValidation("status", "unknown quote status").WithDetail("value", st)
	}
	return s.repo.List(ctx, filter)
}

func (s *QuoteService) live(ctx context.Context, orgID string, quoteID id.ID) (*Quote, error) {
	q, err := s.repo.GetByID(ctx, orgID, quoteID)
	if err != nil {
		return nil, err
	}
	if q.IsDeleted() {
		return nil, apperror.NewNotFound(KindQuote, quoteID)
	}
	return q, nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := dayOf(*t)
	return &d
}

// patchDay resolves an optional date patch against cur. A nil patch leaves
// the date alone and a zero time clears it.
func patchDay(patch, cur *time.Time) (*time.Time, bool) {
	if patch == nil {
		return nil, false
	}
	next := dayPtr(patch)
	if equalOptionalTime(next, cur) {
		return nil, false
	}
	return next, true
}

func optionalDay(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
