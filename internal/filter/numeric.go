package filter

import (
	"apiresource/internal/core/apperror"
	"apiresource/internal/query"
)

// numericConstraint casts every value to an integer and matches any of them.
func numericConstraint(s Spec, values []string) (query.Constraint, error) {
	if allEmpty(values) {
		return nil, apperror.NewFilterCoercion(s.ParameterName(), "numeric filter requires a value")
	}
	ints := make([]int64, len(values))
	for i, v := range values {
		ints[i] = IntVal(v)
	}
	return query.In(s.Property, ints), nil
}
