package postgres

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"apiresource/internal/core/entity"
	"apiresource/internal/query"
)

const rootAlias = "t"

// join is one LEFT JOIN added for a dotted property path.
type join struct {
	alias string
	table string
	on    string
}

// translator turns constraint trees into squirrel expressions over the
// root table, joining related tables for dotted paths.
type translator struct {
	catalog *entity.Catalog
	root    *entity.Type

	joins   []join
	aliases map[string]string // relation path prefix -> alias
}

func newTranslator(catalog *entity.Catalog, root *entity.Type) *translator {
	return &translator{catalog: catalog, root: root, aliases: map[string]string{}}
}

// column returns the qualified column of a property path.
func (tr *translator) column(path string) (string, error) {
	steps, err := tr.catalog.ResolvePath(tr.root, path)
	if err != nil {
		return "", err
	}

	// "author.uid" reads the foreign key instead of joining the author table
	if n := len(steps); n > 1 && steps[n-1].Field.Identifier {
		steps = steps[:n-1]
	}

	alias := rootAlias
	prefix := ""
	for _, step := range steps[:len(steps)-1] {
		prefix += step.Field.Name + "."
		next, ok := tr.aliases[prefix]
		if !ok {
			target, _ := tr.catalog.Lookup(step.Field.Target)
			next = fmt.Sprintf("j%d", len(tr.joins)+1)
			tr.joins = append(tr.joins, join{
				alias: next,
				table: target.Table,
				on:    fmt.Sprintf("%s.%s = %s.%s", next, target.IdentifierField().Column, alias, step.Field.Column),
			})
			tr.aliases[prefix] = next
		}
		alias = next
	}
	return alias + "." + steps[len(steps)-1].Field.Column, nil
}

// where translates c. A nil constraint yields nil.
func (tr *translator) where(c query.Constraint) (squirrel.Sqlizer, error) {
	switch v := c.(type) {
	case nil:
		return nil, nil
	case query.None:
		return squirrel.Expr("1 = 0"), nil
	case query.Not:
		inner, err := tr.where(v.Inner)
		if err != nil {
			return nil, err
		}
		return notExpr{inner}, nil
	case query.And:
		out := make(squirrel.And, 0, len(v))
		for _, child := range v {
			s, err := tr.where(child)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case query.Or:
		out := make(squirrel.Or, 0, len(v))
		for _, child := range v {
			s, err := tr.where(child)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case query.Comparison:
		return tr.comparison(v)
	}
	return nil, fmt.Errorf("unsupported constraint %T", c)
}

func (tr *translator) comparison(c query.Comparison) (squirrel.Sqlizer, error) {
	col, err := tr.column(c.Path)
	if err != nil {
		return nil, err
	}
	switch c.Operator {
	case query.OpEqual:
		return squirrel.Eq{col: c.Value}, nil
	case query.OpIn:
		return squirrel.Eq{col: c.Value}, nil
	case query.OpIsNull:
		return squirrel.Eq{col: nil}, nil
	case query.OpLess:
		return squirrel.Lt{col: c.Value}, nil
	case query.OpLessOrEqual:
		return squirrel.LtOrEq{col: c.Value}, nil
	case query.OpGreater:
		return squirrel.Gt{col: c.Value}, nil
	case query.OpGreaterOrEqual:
		return squirrel.GtOrEq{col: c.Value}, nil
	case query.OpLike:
		op := "ILIKE"
		if c.CaseSensitive {
			op = "LIKE"
		}
		return squirrel.Expr(col+" "+op+" ? ESCAPE '\\'", c.Value), nil
	}
	return nil, fmt.Errorf("unsupported operator %q", c.Operator)
}

// orderBy returns ORDER BY terms. The identifier is always the last key.
func (tr *translator) orderBy(orderings []query.Ordering) ([]string, error) {
	out := make([]string, 0, len(orderings)+1)
	for _, o := range orderings {
		col, err := tr.column(o.Path)
		if err != nil {
			return nil, err
		}
		dir := query.Asc
		if o.Direction == query.Desc {
			dir = query.Desc
		}
		out = append(out, col+" "+string(dir))
	}
	return append(out, rootAlias+"."+tr.root.IdentifierField().Column+" ASC"), nil
}

// apply adds the collected joins to q.
func (tr *translator) apply(q squirrel.SelectBuilder) squirrel.SelectBuilder {
	for _, j := range tr.joins {
		q = q.LeftJoin(j.table + " " + j.alias + " ON " + j.on)
	}
	return q
}

// notExpr negates a squirrel expression.
type notExpr struct {
	inner squirrel.Sqlizer
}

func (n notExpr) ToSql() (string, []any, error) {
	sql, args, err := n.inner.ToSql()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + strings.TrimSpace(sql) + ")", args, nil
}
