package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/id"
	"fieldledger/internal/domain"
)

// immutableColumns are never rewritten by Update or Upsert conflicts.
var immutableColumns = []string{"id", "org_id", "created_at", "created_by"}

// tableSpec describes how an entity table is filtered in List.
type tableSpec struct {
	table string
	// entity names the kind in not-found errors.
	entity string
	// searchCols are matched case-insensitively by ListFilter.Search.
	searchCols []string
	// searchClientName also matches the name of the referenced client.
	searchClientName bool
	statusCol        string
	clientCol        string
}

// BaseRepo provides the org-scoped CRUD shared by every entity table.
// T is a pointer to a struct with "db" tags.
type BaseRepo[T any] struct {
	spec  tableSpec
	cols  []string
	newFn func() T
	txm   *TxManager
}

func newBaseRepo[T any](txm *TxManager, spec tableSpec, newFn func() T) *BaseRepo[T] {
	return &BaseRepo[T]{
		spec:  spec,
		cols:  ExtractDBColumns[T](),
		newFn: newFn,
		txm:   txm,
	}
}

func (r *BaseRepo[T]) querier(ctx context.Context) Querier {
	return r.txm.GetQuerier(ctx)
}

// Insert adds a new row.
func (r *BaseRepo[T]) Insert(ctx context.Context, entity T) error {
	data := pick(StructToMap(entity), r.cols)
	if len(data) == 0 {
		return fmt.Errorf("insert %s: no db columns", r.spec.table)
	}

	query, args, err := builder().Insert(r.spec.table).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.spec.table, err)
	}
	return nil
}

// Update rewrites every mutable column of an existing row.
func (r *BaseRepo[T]) Update(ctx context.Context, entity T) error {
	data := StructToMap(entity)
	entityID, orgID, err := r.keyOf(data)
	if err != nil {
		return err
	}
	return r.Patch(ctx, orgID, entityID, pick(data, r.cols, immutableColumns...))
}

// Upsert inserts the row or, when the id exists in the same organization,
// replaces its mutable columns.
func (r *BaseRepo[T]) Upsert(ctx context.Context, entity T) error {
	data := pick(StructToMap(entity), r.cols)
	if len(data) == 0 {
		return fmt.Errorf("upsert %s: no db columns", r.spec.table)
	}

	var sets []string
	for _, c := range r.cols {
		if contains(immutableColumns, c) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	sort.Strings(sets)
	suffix := fmt.Sprintf("ON CONFLICT (id) DO UPDATE SET %s WHERE %s.org_id = excluded.org_id",
		strings.Join(sets, ", "), r.spec.table)

	query, args, err := builder().Insert(r.spec.table).SetMap(data).Suffix(suffix).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", r.spec.table, err)
	}
	return nil
}

// Patch writes only the given columns. Unknown or immutable columns are
// rejected.
func (r *BaseRepo[T]) Patch(ctx context.Context, orgID string, entityID id.ID, columns map[string]any) error {
	if len(columns) == 0 {
		return nil
	}
	for c := range columns {
		if !contains(r.cols, c) || contains(immutableColumns, c) {
			return fmt.Errorf("patch %s: column %q is not writable", r.spec.table, c)
		}
	}

	query, args, err := builder().
		Update(r.spec.table).
		SetMap(columns).
		Where(squirrel.Eq{"id": entityID.String(), "org_id": orgID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.spec.table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperror.NewNotFound(r.spec.entity, entityID)
	}
	return nil
}

// GetByID returns the row, soft-deleted or not.
func (r *BaseRepo[T]) GetByID(ctx context.Context, orgID string, entityID id.ID) (T, error) {
	entity := r.newFn()

	query, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": entityID.String(), "org_id": orgID}).
		Limit(1).
		ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := sqlscan.Get(ctx, r.querier(ctx), entity, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.spec.entity, entityID)
		}
		return entity, fmt.Errorf("get %s by id: %w", r.spec.entity, err)
	}
	return entity, nil
}

// List returns one page of rows, most recently updated first.
func (r *BaseRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	filter = filter.Normalize()
	result := domain.ListResult[T]{Items: []T{}, Limit: filter.Limit, Offset: filter.Offset}

	q := r.applyFilter(r.baseSelect(), filter)

	countSQL, countArgs, err := q.RemoveColumns().Columns("COUNT(*)").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := sqlscan.Get(ctx, r.querier(ctx), &result.TotalCount, countSQL, countArgs...); err != nil {
		return result, fmt.Errorf("count %s: %w", r.spec.table, err)
	}

	query, args, err := q.
		OrderBy("updated_at DESC", "id DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build list: %w", err)
	}
	if err := sqlscan.Select(ctx, r.querier(ctx), &result.Items, query, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", r.spec.table, err)
	}
	return result, nil
}

func (r *BaseRepo[T]) baseSelect() squirrel.SelectBuilder {
	return builder().Select(r.cols...).From(r.spec.table)
}

func (r *BaseRepo[T]) applyFilter(q squirrel.SelectBuilder, f domain.ListFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"org_id": f.OrgID})
	if !f.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deleted_at": nil})
	}
	if f.Status != "" && r.spec.statusCol != "" {
		q = q.Where(squirrel.Eq{r.spec.statusCol: f.Status})
	}
	if f.ClientID != nil && r.spec.clientCol != "" {
		q = q.Where(squirrel.Eq{r.spec.clientCol: f.ClientID.String()})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where(r.searchPredicate(f.OrgID, s))
	}
	return q
}

// searchPredicate matches s as a literal substring. SQLite LOWER folds
// ASCII only.
func (r *BaseRepo[T]) searchPredicate(orgID, s string) squirrel.Sqlizer {
	pattern := "%" + escapeLike(strings.ToLower(s)) + "%"

	or := squirrel.Or{}
	for _, col := range r.spec.searchCols {
		or = append(or, squirrel.Expr("LOWER("+col+") LIKE ? ESCAPE '\\'", pattern))
	}
	if r.spec.searchClientName {
		or = append(or, squirrel.Expr(
			"client_id IN (SELECT id FROM clients WHERE org_id = ? AND LOWER(name) LIKE ? ESCAPE '\\')",
			orgID, pattern))
	}
	return or
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *BaseRepo[T]) keyOf(data map[string]any) (id.ID, string, error) {
	entityID, ok := data["id"].(id.ID)
	if !ok {
		return id.ID{}, "", fmt.Errorf("%s: entity has no id column", r.spec.table)
	}
	orgID, ok := data["org_id"].(string)
	if !ok {
		return id.ID{}, "", fmt.Errorf("%s: entity has no org_id column", r.spec.table)
	}
	return entityID, orgID, nil
}
