package resource

import (
	"fmt"
	"net/http"
	"strings"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
	"apiresource/internal/filter"
)

var knownMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// Registry keeps resources in registration order.
// Register is not safe for concurrent use; everything else is read-only
// once startup is complete.
type Registry struct {
	catalog   *entity.Catalog
	resources []*Resource
	byName    map[string]*Resource
	byEntity  map[string]*Resource
}

// NewRegistry creates an empty registry bound to an entity catalog.
func NewRegistry(catalog *entity.Catalog) *Registry {
	return &Registry{
		catalog:  catalog,
		byName:   make(map[string]*Resource),
		byEntity: make(map[string]*Resource),
	}
}

// Catalog returns the entity catalog.
func (r *Registry) Catalog() *entity.Catalog {
	return r.catalog
}

// Register validates a resource and appends it. Registration order is the
// route matching priority.
func (r *Registry) Register(res *Resource) error {
	typ, ok := r.catalog.Lookup(res.Entity)
	if !ok {
		return fmt.Errorf("resource %q: unknown entity %q", res.Name, res.Entity)
	}
	res.typ = typ
	if res.Name == "" {
		res.Name = res.Entity
	}
	if _, dup := r.byName[res.Name]; dup {
		return fmt.Errorf("resource %q registered twice", res.Name)
	}
	if len(res.Operations) == 0 {
		return fmt.Errorf("resource %q: no operations", res.Name)
	}

	names := make(map[string]struct{}, len(res.Operations))
	var main, firstItemGet *Operation
	for _, op := range res.Operations {
		if err := r.prepareOperation(res, op); err != nil {
			return err
		}
		if _, dup := names[op.Name]; dup {
			return fmt.Errorf("resource %q: duplicate operation %q", res.Name, op.Name)
		}
		names[op.Name] = struct{}{}

		if op.Main {
			if main != nil {
				return fmt.Errorf("resource %q: operations %q and %q are both main", res.Name, main.Name, op.Name)
			}
			if op.Kind != ItemOperation {
				return fmt.Errorf("resource %q: main operation %q must be an item operation", res.Name, op.Name)
			}
			main = op
		}
		if firstItemGet == nil && op.Kind == ItemOperation && op.Method == http.MethodGet {
			firstItemGet = op
		}
	}
	if main == nil {
		main = firstItemGet
	}
	res.main = main

	for i, spec := range res.Filters {
		if err := filter.Validate(spec); err != nil {
			return fmt.Errorf("resource %q: %w", res.Name, err)
		}
		if _, err := r.catalog.ResolvePath(typ, spec.Property); err != nil {
			return fmt.Errorf("resource %q: filter #%d: %w", res.Name, i, err)
		}
	}

	r.resources = append(r.resources, res)
	r.byName[res.Name] = res
	if cur, ok := r.byEntity[res.Entity]; !ok || (cur.main == nil && res.main != nil) {
		r.byEntity[res.Entity] = res
	}
	return nil
}

func (r *Registry) prepareOperation(res *Resource, op *Operation) error {
	op.Method = strings.ToUpper(op.Method)
	if _, ok := knownMethods[op.Method]; !ok {
		return fmt.Errorf("resource %q: unsupported method %q", res.Name, op.Method)
	}
	op.Path = NormalizePath(op.Path)

	hasID := strings.Contains(op.Path, IDPlaceholder)
	switch op.Kind {
	case ItemOperation:
		if !hasID {
			return fmt.Errorf("resource %q: item operation %s %s requires %s", res.Name, op.Method, op.Path, IDPlaceholder)
		}
	case CollectionOperation:
		if hasID {
			return fmt.Errorf("resource %q: collection operation %s %s must not contain %s", res.Name, op.Method, op.Path, IDPlaceholder)
		}
	default:
		return fmt.Errorf("resource %q: operation %s %s has unknown kind %d", res.Name, op.Method, op.Path, int(op.Kind))
	}

	if op.Name == "" {
		op.Name = strings.ToLower(op.Method) + "_" + op.Kind.String()
	}
	pattern, err := compileTemplate(op.Path)
	if err != nil {
		return fmt.Errorf("resource %q: route %s: %w", res.Name, op.Path, err)
	}
	op.pattern = pattern
	op.resource = res
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(resources ...*Resource) {
	for _, res := range resources {
		if err := r.Register(res); err != nil {
			panic(err)
		}
	}
}

// Resources returns resources in registration order.
func (r *Registry) Resources() []*Resource {
	return r.resources
}

// Lookup returns a resource by name.
func (r *Registry) Lookup(name string) (*Resource, bool) {
	res, ok := r.byName[name]
	return res, ok
}

// ForEntity returns the resource that owns identifiers of an entity type:
// the first one registered with a main item operation, or the first one.
func (r *Registry) ForEntity(entityName string) (*Resource, bool) {
	res, ok := r.byEntity[entityName]
	return res, ok
}

// Match is a resolved route.
type Match struct {
	Resource  *Resource
	Operation *Operation
	Params    map[string]string
}

// ID returns the raw identifier path parameter.
func (m *Match) ID() string {
	return m.Params["id"]
}

// Match finds the operation for method and path. Resources are tried in
// registration order and the first one with a matching route wins. A
// resource whose path matches under another method does not stop the search.
func (r *Registry) Match(method, path string) (*Match, error) {
	method = strings.ToUpper(method)
	path = NormalizePath(path)
	for _, res := range r.resources {
		for _, op := range res.Operations {
			if op.Method != method {
				continue
			}
			if params, ok := op.match(path); ok {
				return &Match{Resource: res, Operation: op, Params: params}, nil
			}
		}
	}
	return nil, apperror.NewRouteNotFound(method, path)
}

// Route is one row of the route table.
type Route struct {
	Resource  string
	Operation string
	Kind      OperationKind
	Method    string
	Path      string
	Main      bool
}

// Routes lists every operation in matching order.
func (r *Registry) Routes() []Route {
	var out []Route
	for _, res := range r.resources {
		for _, op := range res.Operations {
			out = append(out, Route{
				Resource:  res.Name,
				Operation: op.Name,
				Kind:      op.Kind,
				Method:    op.Method,
				Path:      op.Path,
				Main:      op == res.main,
			})
		}
	}
	return out
}
