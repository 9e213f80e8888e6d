package sqlite

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"fieldledger/internal/core/numerator"
)

// NumberingStateStore persists cached number ranges in numbering_state.
type NumberingStateStore struct {
	txm *TxManager
}

func NewNumberingStateStore(txm *TxManager) *NumberingStateStore {
	return &NumberingStateStore{txm: txm}
}

var numberingCols = ExtractDBColumns[numerator.State]()

// Load returns the cached range, or (nil, nil) when none was ever cached.
func (s *NumberingStateStore) Load(ctx context.Context, orgID string, kind numerator.Kind) (*numerator.State, error) {
	query, args, err := builder().
		Select(numberingCols...).
		From("numbering_state").
		Where(squirrel.Eq{"org_id": orgID, "kind": string(kind)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var st numerator.State
	if err := sqlscan.Get(ctx, s.txm.GetQuerier(ctx), &st, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load numbering state %s/%s: %w", orgID, kind, err)
	}
	return &st, nil
}

// Save replaces the cached range of (state.OrgID, state.Kind).
func (s *NumberingStateStore) Save(ctx context.Context, state numerator.State) error {
	query, args, err := builder().
		Insert("numbering_state").
		SetMap(StructToMap(state)).
		Suffix("ON CONFLICT (org_id, kind) DO UPDATE SET " +
			"prefix = excluded.prefix, next_number = excluded.next_number, " +
			"end_number = excluded.end_number, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save numbering state %s/%s: %w", state.OrgID, state.Kind, err)
	}
	return nil
}

var _ numerator.StateStore = (*NumberingStateStore)(nil)
