package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"apiresource/internal/core/annotation"
)

// Kind is the storage/wire category of a field.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindTime
	KindDecimal
	KindStrings
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindDecimal:
		return "decimal"
	case KindStrings:
		return "strings"
	case KindRelation:
		return "relation"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field describes one property of an entity type together with typed
// accessors. Fields are created with the constructors below and are
// immutable once the owning Type is built.
type Field struct {
	Name   string
	Column string
	Kind   Kind

	// TypeHint is the declared type, e.g. "string", "\\DateTime|null",
	// "string[] list of tags". The metadata resolver parses it.
	TypeHint string

	// Target is the related type name for relations.
	Target string

	Nullable    bool
	Identifier  bool
	Annotations []annotation.Annotation

	get func(Entity) any
	set func(Entity, any) error
}

// FieldOption customizes a field at declaration time.
type FieldOption func(*Field)

// Annotate attaches annotations to the field.
func Annotate(a ...annotation.Annotation) FieldOption {
	return func(f *Field) {
		f.Annotations = append(f.Annotations, a...)
	}
}

// Hint overrides the declared type hint.
func Hint(typeHint string) FieldOption {
	return func(f *Field) {
		f.TypeHint = typeHint
	}
}

// Get returns the current value of the field on e.
// Relations return an Entity or untyped nil.
func (f *Field) Get(e Entity) any {
	return f.get(e)
}

// Set assigns v to the field on e, converting wire values where needed.
func (f *Field) Set(e Entity, v any) error {
	if err := f.set(e, v); err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	return nil
}

// Copy assigns the value of the field on src to dst.
func (f *Field) Copy(dst, src Entity) {
	v := f.get(src)
	if s, ok := v.([]string); ok {
		v = slices.Clone(s)
	}
	// values produced by get are always accepted by set
	_ = f.set(dst, v)
}

func newField(name, column string, kind Kind, hint string, opts []FieldOption) *Field {
	f := &Field{Name: name, Column: column, Kind: kind, TypeHint: hint}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Identifier declares the identifier field. It is always read-only.
func Identifier(name, column string, opts ...FieldOption) *Field {
	f := newField(name, column, KindInt, "int", opts)
	f.Identifier = true
	f.get = func(e Entity) any { return e.Identifier() }
	f.set = func(e Entity, v any) error {
		id, err := ToInt(v)
		if err != nil {
			return err
		}
		e.SetIdentifier(id)
		return nil
	}
	return f
}

// String declares a string field.
func String[T Entity](name, column string, ptr func(T) *string, opts ...FieldOption) *Field {
	f := newField(name, column, KindString, "string", opts)
	f.get = func(e Entity) any { return *ptr(e.(T)) }
	f.set = func(e Entity, v any) error {
		s, err := ToString(v)
		if err != nil {
			return err
		}
		*ptr(e.(T)) = s
		return nil
	}
	return f
}

// Int declares an integer field.
func Int[T Entity](name, column string, ptr func(T) *int64, opts ...FieldOption) *Field {
	f := newField(name, column, KindInt, "int", opts)
	f.get = func(e Entity) any { return *ptr(e.(T)) }
	f.set = func(e Entity, v any) error {
		i, err := ToInt(v)
		if err != nil {
			return err
		}
		*ptr(e.(T)) = i
		return nil
	}
	return f
}

// Float declares a floating point field.
func Float[T Entity](name, column string, ptr func(T) *float64, opts ...FieldOption) *Field {
	f := newField(name, column, KindFloat, "float", opts)
	f.get = func(e Entity) any { return *ptr(e.(T)) }
	f.set = func(e Entity, v any) error {
		x, err := ToFloat(v)
		if err != nil {
			return err
		}
		*ptr(e.(T)) = x
		return nil
	}
	return f
}

// Bool declares a boolean field.
func Bool[T Entity](name, column string, ptr func(T) *bool, opts ...FieldOption) *Field {
	f := newField(name, column, KindBool, "bool", opts)
	f.get = func(e Entity) any { return *ptr(e.(T)) }
	f.set = func(e Entity, v any) error {
		b, err := ToBool(v)
		if err != nil {
			return err
		}
		*ptr(e.(T)) = b
		return nil
	}
	return f
}

// Time declares a non-nullable date/time field.
func Time[T Entity](name, column string, ptr func(T) *time.Time, opts ...FieldOption) *Field {
	f := newField(name, column, KindTime, "\\DateTime", opts)
	f.get = func(e Entity) any { return *ptr(e.(T)) }
	f.set = func(e Entity, v any) error {
		t, err := ToTime(v)
		if err != nil {
			return err
		}
		*ptr(e.(T)) = t
		return nil
	}
	return f
}

// NullableTime declares a date/time field stored as a pointer.
func NullableTime[T Entity](name, column string, ptr func(T) **time.Time, opts ...FieldOption) *Field {
	f := newField(name, column, KindTime, "\\DateTime|null", opts)
	f.Nullable = true
	f.get = func(e Entity) any {
		p := *ptr(e.(T))
		if p == nil {
			return nil
		}
		return *p
	}
	f.set = func(e Entity, v any) error {
		if v == nil {
			*ptr(e.(T)) = nil
			return nil
		}
		t, err := ToTime(v)
		if err != nil {
			return err
		}
		if t.IsZero() {
			*ptr(e.(T)) = nil
			return nil
		}
		*ptr(e.(T)) = &t
		return nil
	}
	return f
}

// Decimal declares an exact decimal field.
func Decimal[T Entity](name, column string, ptr func(T) *decimal.Decimal, opts ...FieldOption) *Field {
	f := newField(name, column, KindDecimal, "decimal", opts)
	f.get = func(e Entity) any { return *ptr(e.(T)) }
	f.set = func(e Entity, v any) error {
		d, err := ToDecimal(v)
		if err != nil {
			return err
		}
		*ptr(e.(T)) = d
		return nil
	}
	return f
}

// Strings declares a list-of-strings field.
func Strings[T Entity](name, column string, ptr func(T) *[]string, opts ...FieldOption) *Field {
	f := newField(name, column, KindStrings, "string[]", opts)
	f.get = func(e Entity) any { return *ptr(e.(T)) }
	f.set = func(e Entity, v any) error {
		s, err := ToStrings(v)
		if err != nil {
			return err
		}
		*ptr(e.(T)) = s
		return nil
	}
	return f
}

// Relation declares a to-one reference to another entity type.
// The column holds the identifier of the related entity.
func Relation[T Entity, R interface {
	Entity
	comparable
}](name, column, target string, ptr func(T) *R, opts ...FieldOption) *Field {
	f := newField(name, column, KindRelation, "\\"+target+"|null", opts)
	f.Target = target
	f.Nullable = true
	f.get = func(e Entity) any {
		var zero R
		r := *ptr(e.(T))
		if r == zero {
			return nil
		}
		return r
	}
	f.set = func(e Entity, v any) error {
		var zero R
		if v == nil {
			*ptr(e.(T)) = zero
			return nil
		}
		r, ok := v.(R)
		if !ok {
			return fmt.Errorf("expected %s reference, got %T", target, v)
		}
		*ptr(e.(T)) = r
		return nil
	}
	return f
}
