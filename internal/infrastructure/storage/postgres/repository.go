package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
	"apiresource/internal/filter"
	"apiresource/internal/query"
)

// relationDepth is how many relation hops are loaded eagerly. Deeper
// relations carry only their identifier.
const relationDepth = 2

// PostgreSQL error codes.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

var _ domain.Repository = (*Repository)(nil)

// Repository stores one entity type in its table. Columns come from the
// field descriptors of the type.
type Repository struct {
	store *Store
	typ   *entity.Type
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repository) idColumn() string {
	return r.typ.IdentifierField().Column
}

func (r *Repository) selectColumns() []string {
	cols := make([]string, 0, len(r.typ.Fields))
	for _, f := range r.typ.Fields {
		cols = append(cols, rootAlias+"."+f.Column)
	}
	return cols
}

func (r *Repository) baseSelect() squirrel.SelectBuilder {
	return builder().
		Select(r.selectColumns()...).
		From(r.typ.Table + " " + rootAlias)
}

// selectQuery builds the filtered select without pagination.
func (r *Repository) selectQuery(q *query.Query) (squirrel.SelectBuilder, []string, error) {
	tr := newTranslator(r.store.catalog, r.typ)
	where, err := tr.where(q.Constraint())
	if err != nil {
		return squirrel.SelectBuilder{}, nil, err
	}
	order, err := tr.orderBy(q.Orderings())
	if err != nil {
		return squirrel.SelectBuilder{}, nil, err
	}
	sb := tr.apply(r.baseSelect())
	if where != nil {
		sb = sb.Where(where)
	}
	return sb, order, nil
}

// listQueries returns the count and page queries of a collection request.
func (r *Repository) listQueries(q *query.Query, page domain.Page) (count, list squirrel.SelectBuilder, err error) {
	sb, order, err := r.selectQuery(q)
	if err != nil {
		return count, list, err
	}
	count = builder().Select("COUNT(*)").FromSelect(sb, "sub")
	list = sb.OrderBy(order...).Limit(uint64(page.Size)).Offset(uint64(page.Offset()))
	return count, list, nil
}

func (r *Repository) FindByIdentifier(ctx context.Context, id int64) (entity.Entity, error) {
	return r.find(ctx, id, relationDepth, map[string]entity.Entity{})
}

func (r *Repository) find(ctx context.Context, id int64, depth int, seen map[string]entity.Entity) (entity.Entity, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{rootAlias + "." + r.idColumn(): id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []map[string]any
	if err := pgxscan.Select(ctx, r.store.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("get %s: %w", r.typ.Table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return r.hydrate(ctx, rows[0], depth, seen)
}

func (r *Repository) FindFiltered(ctx context.Context, specs []filter.Spec, params url.Values, page domain.Page) (*domain.CollectionResult, error) {
	q, err := domain.BuildQuery(specs, params)
	if err != nil {
		return nil, err
	}
	countQ, listQ, err := r.listQueries(q, page)
	if err != nil {
		return nil, err
	}

	result := &domain.CollectionResult{Page: page}
	querier := r.store.querier(ctx)

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count query: %w", err)
	}
	if err := pgxscan.Get(ctx, querier, &result.TotalItems, countSQL, countArgs...); err != nil {
		return nil, fmt.Errorf("count %s: %w", r.typ.Table, err)
	}

	sql, args, err := listQ.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []map[string]any
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.typ.Table, err)
	}

	seen := map[string]entity.Entity{}
	result.Members = make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := r.hydrate(ctx, row, relationDepth, seen)
		if err != nil {
			return nil, err
		}
		result.Members = append(result.Members, e)
	}
	return result, nil
}

// hydrate builds an entity from a row keyed by column name.
func (r *Repository) hydrate(ctx context.Context, row map[string]any, depth int, seen map[string]entity.Entity) (entity.Entity, error) {
	e := r.typ.New()
	for _, f := range r.typ.Fields {
		raw := row[f.Column]
		if f.Kind != entity.KindRelation {
			if err := f.Set(e, raw); err != nil {
				return nil, fmt.Errorf("%s: %w", r.typ.Table, err)
			}
			continue
		}
		if raw == nil {
			continue
		}
		id, err := entity.ToInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.typ.Table, f.Column, err)
		}
		rel, err := r.related(ctx, f.Target, id, depth-1, seen)
		if err != nil {
			return nil, err
		}
		if rel != nil {
			if err := f.Set(e, rel); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

// related loads a related entity, or an identifier-only stub when depth is exhausted.
func (r *Repository) related(ctx context.Context, typeName string, id int64, depth int, seen map[string]entity.Entity) (entity.Entity, error) {
	target, ok := r.store.catalog.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("unknown entity %s", typeName)
	}
	if depth <= 0 {
		stub := target.New()
		stub.SetIdentifier(id)
		return stub, nil
	}
	key := fmt.Sprintf("%s#%d#%d", typeName, id, depth)
	if e, ok := seen[key]; ok {
		return e, nil
	}
	repo := &Repository{store: r.store, typ: target}
	e, err := repo.find(ctx, id, depth, seen)
	if err != nil {
		return nil, err
	}
	seen[key] = e
	return e, nil
}

// values returns the column values of e, without the identifier.
func (r *Repository) values(e entity.Entity) map[string]any {
	out := make(map[string]any, len(r.typ.Fields))
	for _, f := range r.typ.Fields {
		if f.Identifier {
			continue
		}
		v := f.Get(e)
		switch f.Kind {
		case entity.KindRelation:
			if rel, ok := v.(entity.Entity); ok && rel != nil {
				v = rel.Identifier()
			} else {
				v = nil
			}
		case entity.KindStrings:
			if v.([]string) == nil {
				v = []string{}
			}
		}
		out[f.Column] = v
	}
	return out
}

// insertQuery inserts e, or upserts it when it already has an identifier.
func (r *Repository) insertQuery(e entity.Entity) squirrel.InsertBuilder {
	values := r.values(e)
	idCol := r.idColumn()
	if e.Identifier() == 0 {
		return builder().Insert(r.typ.Table).SetMap(values).Suffix("RETURNING " + idCol)
	}

	values[idCol] = e.Identifier()
	cols := make([]string, 0, len(values))
	for col := range values {
		if col != idCol {
			cols = append(cols, col)
		}
	}
	slices.Sort(cols)
	set := make([]string, len(cols))
	for i, col := range cols {
		set[i] = col + " = EXCLUDED." + col
	}
	return builder().Insert(r.typ.Table).SetMap(values).
		Suffix(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s", idCol, strings.Join(set, ", "), idCol))
}

func (r *Repository) Add(ctx context.Context, e entity.Entity) error {
	sql, args, err := r.insertQuery(e).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	var id int64
	if err := r.store.querier(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return r.writeError("insert", err)
	}
	e.SetIdentifier(id)
	return nil
}

func (r *Repository) updateQuery(e entity.Entity) squirrel.UpdateBuilder {
	return builder().
		Update(r.typ.Table).
		SetMap(r.values(e)).
		Where(squirrel.Eq{r.idColumn(): e.Identifier()})
}

func (r *Repository) Update(ctx context.Context, e entity.Entity) error {
	sql, args, err := r.updateQuery(e).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.store.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.writeError("update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.typ.Name, e.Identifier())
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, e entity.Entity) error {
	sql, args, err := builder().
		Delete(r.typ.Table).
		Where(squirrel.Eq{r.idColumn(): e.Identifier()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.store.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.writeError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.typ.Name, e.Identifier())
	}
	return nil
}

// writeError maps constraint violations to application errors.
func (r *Repository) writeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			if op == "delete" {
				return apperror.NewConflict(fmt.Sprintf("%s is still referenced", r.typ.Name)).
					WithDetail("entity", r.typ.Name).
					WithDetail("constraint", pgErr.ConstraintName).
					WithCause(err)
			}
			return apperror.NewInvalidInput(fmt.Sprintf("%s references a missing entity", r.typ.Name)).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case codeUniqueViolation:
			return apperror.NewConflict(fmt.Sprintf("%s already exists", r.typ.Name)).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(r.typ.Name, nil)
	}
	return fmt.Errorf("%s %s: %w", op, r.typ.Table, err)
}
