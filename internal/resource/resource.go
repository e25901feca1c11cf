// Package resource holds the declarative description of REST resources and
// the ordered registry used to route requests to them.
package resource

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"apiresource/internal/core/entity"
	"apiresource/internal/filter"
)

// OperationKind distinguishes item-scoped from collection-scoped operations.
type OperationKind int

const (
	ItemOperation OperationKind = iota + 1
	CollectionOperation
)

func (k OperationKind) String() string {
	switch k {
	case ItemOperation:
		return "item"
	case CollectionOperation:
		return "collection"
	}
	return fmt.Sprintf("OperationKind(%d)", int(k))
}

// IDPlaceholder is the path parameter carrying the entity identifier.
const IDPlaceholder = "{id}"

// Operation is one HTTP-exposed action on a resource.
type Operation struct {
	Name   string
	Kind   OperationKind
	Method string

	// Path is a template with named placeholders, e.g. "/articles/{id}".
	Path string

	// Main marks the item operation used to compute @id values.
	Main bool

	// Security is evaluated before deserialization, SecurityPostDenormalize after.
	// Empty expressions grant access.
	Security                string
	SecurityPostDenormalize string

	NormalizationGroups   []string
	DenormalizationGroups []string

	resource *Resource
	pattern  *regexp.Regexp
}

// Resource returns the owning resource.
func (o *Operation) Resource() *Resource {
	return o.resource
}

// IsWrite reports whether the operation changes state.
func (o *Operation) IsWrite() bool {
	switch o.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// match reports whether path matches the template and returns the placeholders.
func (o *Operation) match(path string) (map[string]string, bool) {
	m := o.pattern.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(m)-1)
	for i, name := range o.pattern.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = m[i]
		}
	}
	return params, true
}

// Resource is a REST-exposed entity type with its operations and filters.
type Resource struct {
	// Name is the short name used by metadata endpoints; defaults to Entity.
	Name string

	// Entity is the entity type name registered in the catalog.
	Entity string

	Operations []*Operation
	Filters    []filter.Spec

	// ItemsPerPage overrides the default page size for collections.
	ItemsPerPage int

	typ  *entity.Type
	main *Operation
}

// Type returns the entity type descriptor.
func (r *Resource) Type() *entity.Type {
	return r.typ
}

// MainItemOperation returns the operation used to build identifiers, or nil.
func (r *Resource) MainItemOperation() *Operation {
	return r.main
}

// ItemPath returns the main item route with the identifier substituted.
func (r *Resource) ItemPath(id int64) (string, bool) {
	if r.main == nil {
		return "", false
	}
	return strings.ReplaceAll(r.main.Path, IDPlaceholder, strconv.FormatInt(id, 10)), true
}

// IdentifierFromPath extracts the identifier from a main item route path,
// e.g. "/articles/12" → 12.
func (r *Resource) IdentifierFromPath(path string) (int64, bool) {
	if r.main == nil {
		return 0, false
	}
	params, ok := r.main.match(NormalizePath(path))
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(params["id"], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Operation returns an operation by name.
func (r *Resource) Operation(name string) (*Operation, bool) {
	for _, op := range r.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return nil, false
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// compileTemplate turns "/articles/{id}" into an anchored regexp.
func compileTemplate(path string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholder.FindAllStringSubmatchIndex(path, -1) {
		b.WriteString(regexp.QuoteMeta(path[last:loc[0]]))
		b.WriteString("(?P<" + path[loc[2]:loc[3]] + ">[^/]+)")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(path[last:]))
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// NormalizePath trims a trailing slash and guarantees a leading one.
func NormalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
