package filter

import (
	"strings"

	"apiresource/internal/query"
)

func parseDirection(v string) (query.Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "asc":
		return query.Asc, true
	case "desc":
		return query.Desc, true
	}
	return "", false
}

func applyOrder(s Spec, values []string, q *query.Query) {
	v := ""
	if len(values) > 0 {
		v = values[len(values)-1]
	}
	if strings.TrimSpace(v) == "" {
		v = s.argument("default")
	}
	if dir, ok := parseDirection(v); ok {
		q.OrderBy(s.Property, dir)
	}
}
