package entity

import (
	"fmt"
	"reflect"
	"strings"
)

// Type is the field descriptor table of one entity type.
type Type struct {
	Name  string
	Table string
	New   func() Entity

	Fields []*Field

	index map[string]*Field
	goTyp reflect.Type
}

// NewType builds a type descriptor. Field names must be unique and
// exactly one identifier field must be declared.
func NewType(name, table string, newFn func() Entity, fields ...*Field) (*Type, error) {
	t := &Type{
		Name:   name,
		Table:  table,
		New:    newFn,
		Fields: fields,
		index:  make(map[string]*Field, len(fields)),
		goTyp:  reflect.TypeOf(newFn()),
	}

	identifiers := 0
	for _, f := range fields {
		if _, dup := t.index[f.Name]; dup {
			return nil, fmt.Errorf("entity %s: duplicate field %q", name, f.Name)
		}
		t.index[f.Name] = f
		if f.Identifier {
			identifiers++
		}
	}
	if identifiers != 1 {
		return nil, fmt.Errorf("entity %s: expected exactly one identifier field, got %d", name, identifiers)
	}
	return t, nil
}

// MustType is NewType that panics on error. Intended for package-level declarations.
func MustType(name, table string, newFn func() Entity, fields ...*Field) *Type {
	t, err := NewType(name, table, newFn, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Field returns the field with the given name.
func (t *Type) Field(name string) (*Field, bool) {
	f, ok := t.index[name]
	return f, ok
}

// IdentifierField returns the identifier field.
func (t *Type) IdentifierField() *Field {
	for _, f := range t.Fields {
		if f.Identifier {
			return f
		}
	}
	return nil
}

// Clone returns a copy of e. Related entities are shared, not copied.
func (t *Type) Clone(e Entity) Entity {
	out := t.New()
	for _, f := range t.Fields {
		f.Copy(out, e)
	}
	return out
}

// ResetToDefaults overwrites every field of e except the identifier with
// the value a freshly constructed entity carries.
func (t *Type) ResetToDefaults(e Entity) {
	fresh := t.New()
	for _, f := range t.Fields {
		if f.Identifier {
			continue
		}
		f.Copy(e, fresh)
	}
}

// Catalog indexes the entity types known to the process.
// It is read-only after construction.
type Catalog struct {
	types  []*Type
	byName map[string]*Type
	byGo   map[reflect.Type]*Type
}

// NewCatalog validates and indexes types. Relation targets must be registered.
func NewCatalog(types ...*Type) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]*Type, len(types)),
		byGo:   make(map[reflect.Type]*Type, len(types)),
	}
	for _, t := range types {
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("entity %s registered twice", t.Name)
		}
		c.types = append(c.types, t)
		c.byName[t.Name] = t
		c.byGo[t.goTyp] = t
	}
	for _, t := range types {
		for _, f := range t.Fields {
			if f.Kind != KindRelation {
				continue
			}
			if _, ok := c.byName[f.Target]; !ok {
				return nil, fmt.Errorf("entity %s: field %s targets unknown entity %s", t.Name, f.Name, f.Target)
			}
		}
	}
	return c, nil
}

// Types returns all types in registration order.
func (c *Catalog) Types() []*Type {
	return c.types
}

// Lookup returns a type by name.
func (c *Catalog) Lookup(name string) (*Type, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// TypeOf returns the type descriptor of a concrete entity value.
func (c *Catalog) TypeOf(e Entity) (*Type, bool) {
	if e == nil {
		return nil, false
	}
	t, ok := c.byGo[reflect.TypeOf(e)]
	return t, ok
}

// PathStep is one hop of a resolved property path.
type PathStep struct {
	Owner *Type
	Field *Field
}

// ResolvePath resolves a dotted property path such as "author.publisher.name"
// starting at root. Every step except the last must be a relation.
func (c *Catalog) ResolvePath(root *Type, path string) ([]PathStep, error) {
	parts := strings.Split(path, ".")
	steps := make([]PathStep, 0, len(parts))
	current := root
	for i, part := range parts {
		f, ok := current.Field(part)
		if !ok {
			return nil, fmt.Errorf("entity %s has no property %q", current.Name, part)
		}
		steps = append(steps, PathStep{Owner: current, Field: f})
		if i == len(parts)-1 {
			break
		}
		if f.Kind != KindRelation {
			return nil, fmt.Errorf("property %q of %s is not a relation", part, current.Name)
		}
		current, ok = c.byName[f.Target]
		if !ok {
			return nil, fmt.Errorf("entity %s is not registered", f.Target)
		}
	}
	return steps, nil
}

// ValueAt reads a dotted property path from e. Missing relations yield nil.
func (c *Catalog) ValueAt(e Entity, path string) (any, bool) {
	t, ok := c.TypeOf(e)
	if !ok {
		return nil, false
	}
	steps, err := c.ResolvePath(t, path)
	if err != nil {
		return nil, false
	}
	var current any = e
	for _, step := range steps {
		ent, ok := current.(Entity)
		if !ok || ent == nil {
			return nil, true
		}
		current = step.Field.Get(ent)
	}
	return current, true
}
