// Package annotation holds the declarative hints attached to entity fields.
// They are plain values registered together with the field descriptors at
// startup; nothing here is discovered at runtime.
package annotation

// Annotation marks a value that can be attached to an entity field.
type Annotation interface {
	annotation()
}

// TypeAnnotation overrides the inferred type descriptor of a field.
// The descriptor is rendered as Name<"p1","p2",...>.
type TypeAnnotation interface {
	Annotation
	TypeName() string
	TypeParams() []any
}

// Groups adds the field to serialization groups.
type Groups []string

func (Groups) annotation() {}

// Image describes a processed image with optional dimensions.
// Width and Height accept anything printable, e.g. 800 or "800c".
type Image struct {
	Width  any
	Height any
}

func (Image) annotation() {}

func (Image) TypeName() string { return "Image" }

func (i Image) TypeParams() []any { return []any{i.Width, i.Height} }

// RecordURI renders a link to the record under the given identifier.
type RecordURI struct {
	Identifier string
}

func (RecordURI) annotation() {}

func (RecordURI) TypeName() string { return "RecordUri" }

func (r RecordURI) TypeParams() []any { return []any{r.Identifier} }

// CustomType is a free-form type override.
type CustomType struct {
	Name   string
	Params []any
}

func (CustomType) annotation() {}

func (c CustomType) TypeName() string { return c.Name }

func (c CustomType) TypeParams() []any { return c.Params }

// Doc overrides documentation of a field.
type Doc struct {
	Description string
	Hidden      bool
}

func (Doc) annotation() {}

// ReadOnly excludes a field from deserialization.
type ReadOnly struct{}

func (ReadOnly) annotation() {}
