// Package query is the storage-neutral constraint model produced by filters
// and translated by storage drivers.
package query

// Operator определяет вид сравнения.
type Operator string

const (
	OpEqual          Operator = "eq"
	OpIn             Operator = "in"
	OpLike           Operator = "like"
	OpLess           Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpGreater        Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpIsNull         Operator = "null"
)

// Constraint is a node of a constraint tree.
type Constraint interface {
	constraint()
}

// Comparison compares a property path with a value.
// For OpIn, Value is a slice. For OpLike, Value is a pattern using % and _.
type Comparison struct {
	Path     string
	Operator Operator
	Value    any

	// CaseSensitive applies to OpLike only.
	CaseSensitive bool
}

// Not negates a constraint.
type Not struct {
	Inner Constraint
}

// And matches when all children match. An empty And matches everything.
type And []Constraint

// Or matches when any child matches. An empty Or matches nothing.
type Or []Constraint

// None matches nothing.
type None struct{}

func (Comparison) constraint() {}
func (Not) constraint()        {}
func (And) constraint()        {}
func (Or) constraint()         {}
func (None) constraint()       {}

// In builds a set membership constraint.
func In[V any](path string, values []V) Constraint {
	if len(values) == 0 {
		return None{}
	}
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return Comparison{Path: path, Operator: OpIn, Value: list}
}

// Equals builds an equality constraint.
func Equals(path string, value any) Constraint {
	return Comparison{Path: path, Operator: OpEqual, Value: value}
}

// Like builds a pattern constraint.
func Like(path, pattern string, caseSensitive bool) Constraint {
	return Comparison{Path: path, Operator: OpLike, Value: pattern, CaseSensitive: caseSensitive}
}

// Compare builds an ordering constraint (lt, lte, gt, gte).
func Compare(path string, op Operator, value any) Constraint {
	return Comparison{Path: path, Operator: op, Value: value}
}

// IsNull matches empty properties.
func IsNull(path string) Constraint {
	return Comparison{Path: path, Operator: OpIsNull}
}

// IsNotNull matches filled properties.
func IsNotNull(path string) Constraint {
	return Not{Inner: IsNull(path)}
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Ordering sorts results by a property path.
type Ordering struct {
	Path      string
	Direction Direction
}

// Query collects constraints and orderings for one collection request.
type Query struct {
	constraints []Constraint
	orderings   []Ordering
}

// New returns an empty query.
func New() *Query {
	return &Query{}
}

// Where adds a constraint; all constraints are combined with AND.
func (q *Query) Where(c Constraint) *Query {
	if c != nil {
		q.constraints = append(q.constraints, c)
	}
	return q
}

// OrderBy appends an ordering.
func (q *Query) OrderBy(path string, dir Direction) *Query {
	q.orderings = append(q.orderings, Ordering{Path: path, Direction: dir})
	return q
}

// Constraint returns the combined constraint or nil when unconstrained.
func (q *Query) Constraint() Constraint {
	switch len(q.constraints) {
	case 0:
		return nil
	case 1:
		return q.constraints[0]
	}
	return And(q.constraints)
}

// Orderings returns orderings in the order they were added.
func (q *Query) Orderings() []Ordering {
	return q.orderings
}

// Paths returns every property path referenced by constraints and orderings.
func (q *Query) Paths() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	var walk func(c Constraint)
	walk = func(c Constraint) {
		switch v := c.(type) {
		case Comparison:
			add(v.Path)
		case Not:
			walk(v.Inner)
		case And:
			for _, child := range v {
				walk(child)
			}
		case Or:
			for _, child := range v {
				walk(child)
			}
		}
	}
	for _, c := range q.constraints {
		walk(c)
	}
	for _, o := range q.orderings {
		add(o.Path)
	}
	return out
}
