package billing

import (
	"context"
	"fmt"
	"time"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/types"
)

// SyncService applies server-authoritative document states.
//
// A merged document is stored as received, totals and number included:
// nothing is recomputed and nothing is emitted, the change came from the
// server.
type SyncService struct {
	base
	repos      Repositories
	reconciler *Reconciler
}

func NewSyncService(d Deps, rec *Reconciler) *SyncService {
	return &SyncService{base: newBase(d, "sync"), repos: d.Repos, reconciler: rec}
}

// MergeRemoteQuote inserts or replaces a quote with the server state.
func (s *SyncService) MergeRemoteQuote(ctx context.Context, q *Quote) error {
	if err := checkRemote(q.ID, q.OrgID); err != nil {
		return err
	}
	if err := q.Validate(ctx); err != nil {
		return err
	}
	normalizeRemoteTimes(&q.CreatedAt, &q.UpdatedAt)

	unlock := s.reconciler.lockDocument(ParentQuote, q.ID)
	defer unlock()

	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Quotes.Upsert(ctx, q); err != nil {
			return fmt.Errorf("merge quote %s: %w", q.ID, err)
		}
		return nil
	})
}

// MergeRemoteInvoice inserts or replaces an invoice with the server state.
func (s *SyncService) MergeRemoteInvoice(ctx context.Context, inv *Invoice) error {
	if err := checkRemote(inv.ID, inv.OrgID); err != nil {
		return err
	}
	if inv.Currency == "" {
		inv.Currency = types.CurrencyEUR
	}
	if err := inv.Validate(ctx); err != nil {
		return err
	}
	normalizeRemoteTimes(&inv.CreatedAt, &inv.UpdatedAt)

	unlock := s.reconciler.lockDocument(ParentInvoice, inv.ID)
	defer unlock()

	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Invoices.Upsert(ctx, inv); err != nil {
			return fmt.Errorf("merge invoice %s: %w", inv.ID, err)
		}
		return nil
	})
}

func checkRemote(docID id.ID, orgID string) error {
	if id.IsNil(docID) {
		return apperror.NewFieldValidation("id", "required")
	}
	if orgID == "" {
		return apperror.NewFieldValidation("orgId", "required")
	}
	return nil
}

// normalizeRemoteTimes stores server timestamps in UTC like local ones.
func normalizeRemoteTimes(ts ...*time.Time) {
	for _, t := range ts {
		*t = t.UTC()
	}
}
