package filter

import (
	"strings"

	"apiresource/internal/core/apperror"
	"apiresource/internal/query"
)

const (
	StrategyExact     = "exact"
	StrategyPartial   = "partial"
	StrategyStart     = "start"
	StrategyEnd       = "end"
	StrategyWordStart = "word_start"
)

var stringStrategies = map[string]struct{}{
	StrategyExact:     {},
	StrategyPartial:   {},
	StrategyStart:     {},
	StrategyEnd:       {},
	StrategyWordStart: {},
}

func (s Spec) strategy() string {
	if v := s.argument("strategy"); v != "" {
		return v
	}
	return StrategyExact
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters with a backslash.
func EscapeLike(v string) string {
	return likeEscaper.Replace(v)
}

func stringConstraint(s Spec, values []string) (query.Constraint, error) {
	if len(values) == 0 {
		return nil, apperror.NewFilterCoercion(s.ParameterName(), "string filter requires a value")
	}
	caseSensitive := s.argument("caseSensitive") == "true"
	strategy := s.strategy()

	if strategy == StrategyExact && caseSensitive {
		return query.In(s.Property, values), nil
	}

	var alts query.Or
	for _, v := range values {
		e := EscapeLike(v)
		switch strategy {
		case StrategyExact:
			alts = append(alts, query.Like(s.Property, e, caseSensitive))
		case StrategyPartial:
			alts = append(alts, query.Like(s.Property, "%"+e+"%", caseSensitive))
		case StrategyStart:
			alts = append(alts, query.Like(s.Property, e+"%", caseSensitive))
		case StrategyEnd:
			alts = append(alts, query.Like(s.Property, "%"+e, caseSensitive))
		case StrategyWordStart:
			alts = append(alts,
				query.Like(s.Property, e+"%", caseSensitive),
				query.Like(s.Property, "% "+e+"%", caseSensitive),
			)
		}
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return alts, nil
}
