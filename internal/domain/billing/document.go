package billing

import (
	"context"
	"fmt"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/domain/audit"
)

// documents holds what the quote and invoice services share: client
// checks, number promotion and the per-document lock of the reconciler.
type documents struct {
	base
	clients    ClientRepository
	allocator  numerator.Allocator
	reconciler *Reconciler
}

func newDocuments(d Deps, component string, rec *Reconciler) documents {
	return documents{
		base:       newBase(d, component),
		clients:    d.Repos.Clients,
		allocator:  d.Allocator,
		reconciler: rec,
	}
}

// requireClient fails with NOT_FOUND unless the client is live in orgID.
func (d *documents) requireClient(ctx context.Context, orgID string, clientID id.ID) error {
	c, err := d.clients.GetByID(ctx, orgID, clientID)
	if err != nil {
		return err
	}
	if c.IsDeleted() {
		return apperror.NewNotFound(KindClient, clientID)
	}
	return nil
}

// finalNumber allocates a final number for docID. A placeholder from the
// allocator means no range is available and fails the operation.
func (d *documents) finalNumber(ctx context.Context, orgID string, kind numerator.Kind, docID id.ID) (string, error) {
	if d.allocator == nil {
		return "", apperror.NewNumberUnavailable(string(kind), docID)
	}
	n, err := d.allocator.AllocateFinalNumber(ctx, orgID, kind)
	if err != nil {
		return "", fmt.Errorf("allocate %s number: %w", kind, err)
	}
	if numerator.IsPlaceholder(n) {
		return "", apperror.NewNumberUnavailable(string(kind), docID)
	}
	return n, nil
}

// resolveNumber returns the number a document must carry in its next
// state: the current one unless a non-draft document still holds a
// placeholder. promoted reports a newly allocated final number.
func (d *documents) resolveNumber(
	ctx context.Context,
	orgID string,
	kind numerator.Kind,
	docID id.ID,
	current string,
	draft bool,
) (number string, promoted bool, err error) {
	if draft || !numerator.IsPlaceholder(current) {
		return current, false, nil
	}
	n, err := d.finalNumber(ctx, orgID, kind, docID)
	if err != nil {
		return "", false, err
	}
	return n, true, nil
}

// checkBackToDraft refuses to return a numbered document to draft: a final
// number is consumed and drafts only carry placeholders.
func checkBackToDraft(toDraft bool, number string) error {
	if toDraft && !numerator.IsPlaceholder(number) {
		return apperror.NewFieldValidation("status", "a numbered document cannot return to draft").
			WithDetail("number", number)
	}
	return nil
}

func (d *documents) recordPromotion(ctx context.Context, kind string, docID id.ID, orgID, from, to string) {
	d.record(ctx, kind, docID, orgID, audit.ActionPromotion, map[string]any{"from": from, "to": to})
}
