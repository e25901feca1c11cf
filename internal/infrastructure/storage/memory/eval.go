package memory

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"apiresource/internal/core/entity"
	"apiresource/internal/query"
)

// evaluator applies constraint trees to entities in process.
type evaluator struct {
	catalog *entity.Catalog
}

func (ev evaluator) match(c query.Constraint, e entity.Entity) (bool, error) {
	switch v := c.(type) {
	case nil:
		return true, nil
	case query.None:
		return false, nil
	case query.Not:
		ok, err := ev.match(v.Inner, e)
		return !ok, err
	case query.And:
		for _, child := range v {
			ok, err := ev.match(child, e)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case query.Or:
		for _, child := range v {
			ok, err := ev.match(child, e)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case query.Comparison:
		return ev.compare(v, e)
	}
	return false, fmt.Errorf("unsupported constraint %T", c)
}

func (ev evaluator) compare(c query.Comparison, e entity.Entity) (bool, error) {
	actual, ok := ev.catalog.ValueAt(e, c.Path)
	if !ok {
		return false, fmt.Errorf("unknown property path %q", c.Path)
	}
	actual = scalar(actual)

	switch c.Operator {
	case query.OpIsNull:
		return actual == nil, nil
	case query.OpEqual:
		n, ok := compareValues(actual, c.Value)
		return ok && n == 0, nil
	case query.OpIn:
		values, _ := c.Value.([]any)
		for _, want := range values {
			if n, ok := compareValues(actual, want); ok && n == 0 {
				return true, nil
			}
		}
		return false, nil
	case query.OpLike:
		s, ok := actual.(string)
		if !ok {
			return false, nil
		}
		pattern, _ := c.Value.(string)
		re, err := likePattern(pattern, c.CaseSensitive)
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	case query.OpLess, query.OpLessOrEqual, query.OpGreater, query.OpGreaterOrEqual:
		n, ok := compareValues(actual, c.Value)
		if !ok {
			return false, nil
		}
		switch c.Operator {
		case query.OpLess:
			return n < 0, nil
		case query.OpLessOrEqual:
			return n <= 0, nil
		case query.OpGreater:
			return n > 0, nil
		default:
			return n >= 0, nil
		}
	}
	return false, fmt.Errorf("unsupported operator %q", c.Operator)
}

// scalar replaces a related entity with its identifier, as a foreign key column would.
func scalar(v any) any {
	if e, ok := v.(entity.Entity); ok {
		if e == nil {
			return nil
		}
		return e.Identifier()
	}
	return v
}

// compareValues orders a against b. ok is false when they are not comparable.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case time.Time:
		y, err := entity.ToTime(b)
		if err != nil {
			return 0, false
		}
		return x.Compare(y), true
	case decimal.Decimal:
		y, err := entity.ToDecimal(b)
		if err != nil {
			return 0, false
		}
		return x.Cmp(y), true
	case int64:
		if y, err := entity.ToInt(b); err == nil {
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	fa, errA := entity.ToFloat(a)
	fb, errB := entity.ToFloat(b)
	if errA != nil || errB != nil {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

// likePattern compiles a LIKE pattern using backslash escapes.
func likePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)")
	if !caseSensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// sort orders entities like the SQL driver does: NULLS LAST ascending,
// NULLS FIRST descending, then by identifier.
func (ev evaluator) sort(list []entity.Entity, orderings []query.Ordering) {
	sort.SliceStable(list, func(i, j int) bool {
		for _, o := range orderings {
			a, _ := ev.catalog.ValueAt(list[i], o.Path)
			b, _ := ev.catalog.ValueAt(list[j], o.Path)
			n := orderValues(scalar(a), scalar(b))
			if n == 0 {
				continue
			}
			if o.Direction == query.Desc {
				return n > 0
			}
			return n < 0
		}
		return list[i].Identifier() < list[j].Identifier()
	})
}

func orderValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	n, _ := compareValues(a, b)
	return n
}

func sortByIdentifier(list []entity.Entity) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Identifier() < list[j].Identifier()
	})
}
