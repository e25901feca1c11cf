// Package metadata resolves per-property serialization metadata of entity
// types and describes registered resources for documentation endpoints.
package metadata

import (
	"slices"
	"sync"

	"apiresource/internal/core/annotation"
	"apiresource/internal/core/entity"
)

// FieldType is the documentation schema type of a property.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeNumber    FieldType = "number"
	TypeDecimal   FieldType = "decimal" // serialized as string
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeArray     FieldType = "array"
	TypeReference FieldType = "reference"
)

// PropertyMetadata describes one serializable property.
type PropertyMetadata struct {
	Name string `json:"name"`

	// Type is the resolved type descriptor, e.g. "array<string>" or `Image<"800","600">`.
	Type string `json:"type"`

	Schema        FieldType `json:"schema"`
	ReferenceType string    `json:"referenceType,omitempty"`

	// Groups is deduplicated; empty means the property is in no explicit group.
	Groups []string `json:"groups,omitempty"`

	Documented  bool   `json:"documented"`
	Description string `json:"description,omitempty"`
	ReadOnly    bool   `json:"readOnly,omitempty"`

	Field *entity.Field `json:"-"`
}

// InGroups reports whether the property is exposed for the requested groups.
// Properties without explicit groups belong to DefaultGroup. No requested
// groups means everything is exposed.
func (p PropertyMetadata) InGroups(groups []string) bool {
	if len(groups) == 0 {
		return true
	}
	if len(p.Groups) == 0 {
		return slices.Contains(groups, DefaultGroup)
	}
	for _, g := range p.Groups {
		if slices.Contains(groups, g) {
			return true
		}
	}
	return false
}

// DefaultGroup holds every property that declares no group.
const DefaultGroup = "Default"

// AnnotationMetadata is what annotations alone contribute to a property.
type AnnotationMetadata struct {
	Type        string
	Groups      []string
	Description string
	Hidden      bool
	ReadOnly    bool
}

// FromAnnotations merges annotations into one record. Groups accumulate
// without duplicates; the last type annotation wins.
func FromAnnotations(annotations []annotation.Annotation) AnnotationMetadata {
	var out AnnotationMetadata
	for _, a := range annotations {
		switch v := a.(type) {
		case annotation.Groups:
			for _, g := range v {
				if !slices.Contains(out.Groups, g) {
					out.Groups = append(out.Groups, g)
				}
			}
		case annotation.TypeAnnotation:
			out.Type = FormatDescriptor(v.TypeName(), v.TypeParams()...)
		case annotation.Doc:
			if v.Description != "" {
				out.Description = v.Description
			}
			out.Hidden = out.Hidden || v.Hidden
		case annotation.ReadOnly:
			out.ReadOnly = true
		}
	}
	return out
}

type resolved struct {
	list   []PropertyMetadata
	byName map[string]PropertyMetadata
}

// Resolver computes property metadata and caches it per entity type for
// the lifetime of the process. Safe for concurrent use.
type Resolver struct {
	cache sync.Map // type name -> *resolved
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the metadata of every property keyed by name.
func (r *Resolver) Resolve(t *entity.Type) map[string]PropertyMetadata {
	return r.load(t).byName
}

// Properties returns the metadata in field declaration order.
func (r *Resolver) Properties(t *entity.Type) []PropertyMetadata {
	return r.load(t).list
}

func (r *Resolver) load(t *entity.Type) *resolved {
	if v, ok := r.cache.Load(t.Name); ok {
		return v.(*resolved)
	}
	res := &resolved{byName: make(map[string]PropertyMetadata, len(t.Fields))}
	for _, f := range t.Fields {
		pm := Property(f)
		res.list = append(res.list, pm)
		res.byName[pm.Name] = pm
	}
	// concurrent first calls compute identical values; keep whichever landed first
	v, _ := r.cache.LoadOrStore(t.Name, res)
	return v.(*resolved)
}

// Property computes the metadata of a single field.
func Property(f *entity.Field) PropertyMetadata {
	am := FromAnnotations(f.Annotations)

	pm := PropertyMetadata{
		Name:        f.Name,
		Type:        am.Type,
		Schema:      schemaOf(f.Kind),
		Groups:      am.Groups,
		Documented:  !am.Hidden,
		Description: am.Description,
		ReadOnly:    am.ReadOnly || f.Identifier,
		Field:       f,
	}
	if pm.Type == "" {
		pm.Type = ParseTypeHint(f.TypeHint)
	}
	if f.Kind == entity.KindRelation {
		pm.ReferenceType = f.Target
	}
	return pm
}

func schemaOf(k entity.Kind) FieldType {
	switch k {
	case entity.KindInt:
		return TypeInteger
	case entity.KindFloat:
		return TypeNumber
	case entity.KindDecimal:
		return TypeDecimal
	case entity.KindBool:
		return TypeBoolean
	case entity.KindTime:
		return TypeDate
	case entity.KindStrings:
		return TypeArray
	case entity.KindRelation:
		return TypeReference
	}
	return TypeString
}
