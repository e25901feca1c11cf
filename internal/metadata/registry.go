package metadata

import (
	"apiresource/internal/filter"
	"apiresource/internal/resource"
)

// ResourceDef describes a resource for documentation.
type ResourceDef struct {
	Name       string             `json:"name"`
	Entity     string             `json:"entity"`
	Fields     []PropertyMetadata `json:"fields"`
	Operations []OperationDef     `json:"operations"`
	Filters    []filter.Parameter `json:"filters,omitempty"`
}

// OperationDef describes an operation.
type OperationDef struct {
	Name                  string   `json:"name"`
	Kind                  string   `json:"kind"`
	Method                string   `json:"method"`
	Path                  string   `json:"path"`
	Main                  bool     `json:"main,omitempty"`
	NormalizationGroups   []string `json:"normalizationGroups,omitempty"`
	DenormalizationGroups []string `json:"denormalizationGroups,omitempty"`
}

// Registry exposes documentation of registered resources.
type Registry struct {
	resolver  *Resolver
	resources *resource.Registry
}

func NewRegistry(resolver *Resolver, resources *resource.Registry) *Registry {
	return &Registry{
		resolver:  resolver,
		resources: resources,
	}
}

func (r *Registry) Get(name string) (ResourceDef, bool) {
	res, ok := r.resources.Lookup(name)
	if !ok {
		return ResourceDef{}, false
	}
	return r.describe(res), true
}

// List returns definitions in registration order.
func (r *Registry) List() []ResourceDef {
	list := make([]ResourceDef, 0, len(r.resources.Resources()))
	for _, res := range r.resources.Resources() {
		list = append(list, r.describe(res))
	}
	return list
}

func (r *Registry) describe(res *resource.Resource) ResourceDef {
	def := ResourceDef{
		Name:   res.Name,
		Entity: res.Entity,
	}
	for _, pm := range r.resolver.Properties(res.Type()) {
		if pm.Documented {
			def.Fields = append(def.Fields, pm)
		}
	}
	main := res.MainItemOperation()
	for _, op := range res.Operations {
		def.Operations = append(def.Operations, OperationDef{
			Name:                  op.Name,
			Kind:                  op.Kind.String(),
			Method:                op.Method,
			Path:                  op.Path,
			Main:                  op == main,
			NormalizationGroups:   op.NormalizationGroups,
			DenormalizationGroups: op.DenormalizationGroups,
		})
	}
	for _, spec := range res.Filters {
		def.Filters = append(def.Filters, filter.Describe(spec)...)
	}
	return def
}
