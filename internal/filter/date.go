package filter

import (
	"net/url"
	"strings"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
	"apiresource/internal/query"
)

type dateBound struct {
	key string
	op  query.Operator
}

var dateBounds = []dateBound{
	{"before", query.OpLessOrEqual},
	{"strictly_before", query.OpLess},
	{"after", query.OpGreaterOrEqual},
	{"strictly_after", query.OpGreater},
}

func dateConstraint(s Spec, params url.Values) (query.Constraint, error) {
	var all query.And
	for _, b := range dateBounds {
		values, ok := nested(params, s.ParameterName(), b.key)
		if !ok {
			continue
		}
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				return nil, apperror.NewFilterCoercion(s.ParameterName()+"["+b.key+"]", "date filter requires a value")
			}
			t, err := entity.ParseTime(v)
			if err != nil {
				return query.None{}, nil
			}
			all = append(all, query.Compare(s.Property, b.op, t))
		}
	}
	switch len(all) {
	case 0:
		return nil, nil
	case 1:
		return all[0], nil
	}
	return all, nil
}
