package metadata

import (
	"fmt"
	"regexp"
	"strings"
)

// DateTimeLayout is the layout carried by date/time type descriptors:
// RFC 3339 with milliseconds.
const DateTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// DateTimeDescriptor is the descriptor every known date/time type resolves to.
var DateTimeDescriptor = FormatDescriptor("DateTime", DateTimeLayout)

var (
	unionSpacing = regexp.MustCompile(`\s*\|\s*`)
	genericType  = regexp.MustCompile(`^([^<>]+)<(.*)>$`)
)

var dateTypes = map[string]struct{}{
	"DateTime":          {},
	"DateTimeImmutable": {},
	"DateTimeInterface": {},
	"time.Time":         {},
}

// collection wrappers normalized to array<T>
var collectionWrappers = map[string]struct{}{
	"array":             {},
	"ObjectStorage":     {},
	"LazyObjectStorage": {},
}

// ParseTypeHint turns a declared type hint into a type descriptor.
//
//	"string[] list of tags"  → array<string>
//	"\\Foo|null"             → Foo
//	"\\DateTime"             → DateTime<"2006-01-02T15:04:05.000Z07:00">
//	"ObjectStorage<\\Tag>"   → array<Tag>
func ParseTypeHint(hint string) string {
	hint = unionSpacing.ReplaceAllString(strings.TrimSpace(hint), "|")
	if hint == "" {
		return ""
	}
	// anything after the type token is free-text description
	if i := strings.IndexFunc(hint, isSpace); i >= 0 {
		hint = hint[:i]
	}

	typ := stripNullable(hint)
	typ = strings.TrimPrefix(typ, `\`)

	if inner, ok := strings.CutSuffix(typ, "[]"); ok {
		if inner == "" {
			return "array"
		}
		return "array<" + strings.TrimPrefix(inner, `\`) + ">"
	}

	if m := genericType.FindStringSubmatch(typ); m != nil {
		name, inner := m[1], strings.TrimPrefix(m[2], `\`)
		if _, ok := collectionWrappers[shortName(name)]; ok {
			if inner == "" {
				return "array"
			}
			return "array<" + inner + ">"
		}
		return name + "<" + inner + ">"
	}

	if _, ok := dateTypes[typ]; ok {
		return DateTimeDescriptor
	}
	return typ
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func stripNullable(hint string) string {
	parts := strings.Split(hint, "|")
	for _, p := range parts {
		if !strings.EqualFold(p, "null") && p != "" {
			return p
		}
	}
	return parts[0]
}

// shortName returns the last namespace segment of a type name.
func shortName(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

var descriptorQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// FormatDescriptor renders Name<"p1","p2",...>. Params are stringified in order.
func FormatDescriptor(name string, params ...any) string {
	quoted := make([]string, len(params))
	for i, p := range params {
		s := ""
		if p != nil {
			s = fmt.Sprint(p)
		}
		quoted[i] = `"` + descriptorQuoter.Replace(s) + `"`
	}
	return name + "<" + strings.Join(quoted, ",") + ">"
}

// ParseDescriptor splits a descriptor into its name and parameters.
// Quoted and bare parameters are both accepted: `DateTime<"Y-m-d">`,
// `array<string>`.
func ParseDescriptor(descriptor string) (string, []string) {
	m := genericType.FindStringSubmatch(descriptor)
	if m == nil {
		return descriptor, nil
	}
	return m[1], splitParams(m[2])
}

func splitParams(raw string) []string {
	var (
		out     []string
		current strings.Builder
		quoted  bool
		escaped bool
		started bool
	)
	flush := func() {
		if started {
			out = append(out, current.String())
		}
		current.Reset()
		started = false
	}
	for _, r := range raw {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && r == ',':
			flush()
		case !quoted && isSpace(r):
		default:
			current.WriteRune(r)
			started = true
		}
	}
	flush()
	return out
}
