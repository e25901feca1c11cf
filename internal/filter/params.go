package filter

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// lookup returns the values of name, accepting both "name" and "name[]".
func lookup(params url.Values, name string) ([]string, bool) {
	var out []string
	found := false
	for _, key := range []string{name, name + "[]"} {
		if vs, ok := params[key]; ok {
			found = true
			out = append(out, vs...)
		}
	}
	return out, found
}

// nested returns the values of "name[key]".
func nested(params url.Values, name, key string) ([]string, bool) {
	vs, ok := params[name+"["+key+"]"]
	return vs, ok
}

var numericPrefix = regexp.MustCompile(`^[ \t\n\r\v\f]*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// IntVal converts a string to an integer the way a loose integer cast
// does: the leading numeric prefix is used, anything else yields 0.
// "3abc" → 3, "abc" → 0, "1e3" → 1000, "-4.7" → -4.
func IntVal(s string) int64 {
	m := numericPrefix.FindString(s)
	if m == "" {
		return 0
	}
	m = strings.TrimLeft(m, " \t\n\r\v\f")
	if !strings.ContainsAny(m, ".eE") {
		i, err := strconv.ParseInt(m, 10, 64)
		if err == nil {
			return i
		}
		if strings.HasPrefix(m, "-") {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0
	}
	return int64(f)
}

func allEmpty(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
