// Package filter translates query string parameters into constraints.
//
// Each filter kind owns its coercion and constraint building. A value that
// merely fails to parse yields a no-match constraint; only an unusable
// parameter (present without a value) is reported as an error.
package filter

import (
	"fmt"
	"net/url"

	"apiresource/internal/query"
)

// Kind selects the filter strategy.
type Kind int

const (
	Numeric Kind = iota + 1
	String
	Boolean
	Date
	Exists
	Order
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Date:
		return "date"
	case Exists:
		return "exists"
	case Order:
		return "order"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Spec binds a query parameter to a strategy and an entity property.
type Spec struct {
	Kind Kind

	// Property is a dotted path, e.g. "author.publisher.uid".
	Property string

	// Parameter overrides the query parameter name. Defaults to Property,
	// or "exists"/"order" for those kinds.
	Parameter string

	// Arguments configure the strategy:
	//   String: "strategy" (exact, partial, start, end, word_start), "caseSensitive"
	//   Order:  "default" (asc, desc)
	Arguments map[string]string
}

// ParameterName returns the query parameter this spec reads.
func (s Spec) ParameterName() string {
	if s.Parameter != "" {
		return s.Parameter
	}
	switch s.Kind {
	case Exists:
		return "exists"
	case Order:
		return "order"
	}
	return s.Property
}

func (s Spec) argument(name string) string {
	if s.Arguments == nil {
		return ""
	}
	return s.Arguments[name]
}

// Parameter documents one query parameter accepted by a filter.
type Parameter struct {
	Name     string   `json:"name"`
	Property string   `json:"property"`
	Schema   string   `json:"type"`
	Format   string   `json:"format,omitempty"`
	Enum     []string `json:"enum,omitempty"`
	Multiple bool     `json:"multiple,omitempty"`
}

// Validate checks the static configuration of a spec.
func Validate(s Spec) error {
	if s.Property == "" {
		return fmt.Errorf("filter %s: property is required", s.Kind)
	}
	switch s.Kind {
	case Numeric, Boolean, Date, Exists:
		return nil
	case String:
		if _, ok := stringStrategies[s.strategy()]; !ok {
			return fmt.Errorf("filter string on %s: unknown strategy %q", s.Property, s.strategy())
		}
		return nil
	case Order:
		if d := s.argument("default"); d != "" {
			if _, ok := parseDirection(d); !ok {
				return fmt.Errorf("filter order on %s: invalid default direction %q", s.Property, d)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown filter kind %d", int(s.Kind))
}

// Apply adds the constraints and orderings of every spec whose parameter
// is present in params. Specs are applied in declaration order.
func Apply(specs []Spec, params url.Values, q *query.Query) error {
	for _, s := range specs {
		c, err := filterProperty(s, params, q)
		if err != nil {
			return err
		}
		q.Where(c)
	}
	return nil
}

func filterProperty(s Spec, params url.Values, q *query.Query) (query.Constraint, error) {
	switch s.Kind {
	case Numeric:
		values, ok := lookup(params, s.ParameterName())
		if !ok {
			return nil, nil
		}
		return numericConstraint(s, values)
	case String:
		values, ok := lookup(params, s.ParameterName())
		if !ok {
			return nil, nil
		}
		return stringConstraint(s, values)
	case Boolean:
		values, ok := lookup(params, s.ParameterName())
		if !ok {
			return nil, nil
		}
		return booleanConstraint(s, values), nil
	case Date:
		return dateConstraint(s, params)
	case Exists:
		values, ok := nested(params, s.ParameterName(), s.Property)
		if !ok {
			return nil, nil
		}
		return existsConstraint(s, values), nil
	case Order:
		values, ok := nested(params, s.ParameterName(), s.Property)
		if !ok {
			return nil, nil
		}
		applyOrder(s, values, q)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown filter kind %d", int(s.Kind))
}

// Describe returns the documentation parameters of a spec.
func Describe(s Spec) []Parameter {
	name := s.ParameterName()
	switch s.Kind {
	case Numeric:
		return []Parameter{
			{Name: name, Property: s.Property, Schema: "integer"},
			{Name: name + "[]", Property: s.Property, Schema: "integer", Multiple: true},
		}
	case String:
		return []Parameter{
			{Name: name, Property: s.Property, Schema: "string"},
			{Name: name + "[]", Property: s.Property, Schema: "string", Multiple: true},
		}
	case Boolean:
		return []Parameter{{Name: name, Property: s.Property, Schema: "boolean"}}
	case Date:
		out := make([]Parameter, 0, len(dateBounds))
		for _, b := range dateBounds {
			out = append(out, Parameter{
				Name:     fmt.Sprintf("%s[%s]", name, b.key),
				Property: s.Property,
				Schema:   "string",
				Format:   "date-time",
			})
		}
		return out
	case Exists:
		return []Parameter{{Name: fmt.Sprintf("%s[%s]", name, s.Property), Property: s.Property, Schema: "boolean"}}
	case Order:
		return []Parameter{{
			Name:     fmt.Sprintf("%s[%s]", name, s.Property),
			Property: s.Property,
			Schema:   "string",
			Enum:     []string{"asc", "desc"},
		}}
	}
	return nil
}
