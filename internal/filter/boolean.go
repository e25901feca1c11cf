package filter

import (
	"strings"

	"apiresource/internal/query"
)

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on", "yes":
		return true, true
	case "false", "0", "off", "no":
		return false, true
	}
	return false, false
}

func booleanConstraint(s Spec, values []string) query.Constraint {
	var parsed []bool
	for _, v := range values {
		if b, ok := parseBool(v); ok {
			parsed = append(parsed, b)
		}
	}
	// query.In returns None for an empty set
	return query.In(s.Property, parsed)
}

func existsConstraint(s Spec, values []string) query.Constraint {
	if len(values) == 0 {
		return query.None{}
	}
	b, ok := parseBool(values[len(values)-1])
	if !ok {
		return query.None{}
	}
	if b {
		return query.IsNotNull(s.Property)
	}
	return query.IsNull(s.Property)
}
