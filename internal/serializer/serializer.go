// Package serializer renders entities and collections as JSON-LD/Hydra
// documents and maps request bodies back onto entities.
package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
	"apiresource/internal/metadata"
	"apiresource/internal/resource"
)

// Collection formats.
const (
	FormatHydra  = "hydra"
	FormatSimple = "simple"
)

// Config is fixed for the lifetime of the process.
type Config struct {
	// BasePath prefixes every IRI, e.g. "/api".
	BasePath string

	// ForceEntityProperties are emitted regardless of serialization groups.
	ForceEntityProperties []string

	// MaxDepth is the deepest nesting level that is inlined. Deeper
	// entities are rendered as a reference.
	MaxDepth int

	// CollectionFormat is FormatHydra or FormatSimple.
	CollectionFormat string

	// PageParameter is the query parameter used in page links.
	PageParameter string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ForceEntityProperties: []string{"uid"},
		MaxDepth:              1,
		CollectionFormat:      FormatHydra,
		PageParameter:         "page",
	}
}

// ReferenceResolver materializes a related entity from its identifier.
// It returns nil when the entity does not exist.
type ReferenceResolver interface {
	Reference(ctx context.Context, t *entity.Type, id int64) (entity.Entity, error)
}

// Service serializes and deserializes entities of registered resources.
type Service struct {
	cfg      Config
	resolver *metadata.Resolver
	registry *resource.Registry
	catalog  *entity.Catalog
	refs     ReferenceResolver
	handlers map[string]TypeHandler
}

// New creates a serializer with the DateTime handler registered.
func New(cfg Config, resolver *metadata.Resolver, registry *resource.Registry, refs ReferenceResolver) *Service {
	if cfg.CollectionFormat == "" {
		cfg.CollectionFormat = FormatHydra
	}
	if cfg.PageParameter == "" {
		cfg.PageParameter = "page"
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")
	return &Service{
		cfg:      cfg,
		resolver: resolver,
		registry: registry,
		catalog:  registry.Catalog(),
		refs:     refs,
		handlers: map[string]TypeHandler{
			"DateTime": DateTimeHandler{},
		},
	}
}

// RegisterHandler adds a handler for a custom type descriptor name.
// Not safe for use once requests are being served.
func (s *Service) RegisterHandler(name string, h TypeHandler) {
	s.handlers[name] = h
}

// Serialize renders an entity or a *domain.CollectionResult.
// A nil result renders as an empty body.
func (s *Service) Serialize(op *resource.Operation, result any) ([]byte, error) {
	doc, err := s.Normalize(op, result)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return encode(doc)
}

// Normalize builds the document tree of Serialize without encoding it.
func (s *Service) Normalize(op *resource.Operation, result any) (any, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case *domain.CollectionResult:
		if v == nil {
			return nil, nil
		}
		return s.normalizeCollection(op, v)
	case entity.Entity:
		if isNilEntity(v) {
			return nil, nil
		}
		return s.normalizeEntity(v, op.NormalizationGroups, 0)
	}
	return nil, fmt.Errorf("cannot serialize %T", result)
}

// IRI returns the @id of e, if its type has a main item operation.
func (s *Service) IRI(e entity.Entity) (string, bool) {
	t, ok := s.catalog.TypeOf(e)
	if !ok {
		return "", false
	}
	res, ok := s.registry.ForEntity(t.Name)
	if !ok {
		return "", false
	}
	p, ok := res.ItemPath(e.Identifier())
	if !ok {
		return "", false
	}
	return s.cfg.BasePath + p, true
}

func (s *Service) normalizeEntity(e entity.Entity, groups []string, depth int) (*Object, error) {
	t, ok := s.catalog.TypeOf(e)
	if !ok {
		return nil, fmt.Errorf("entity %T is not registered", e)
	}

	obj := NewObject()
	if iri, ok := s.IRI(e); ok {
		obj.Set("@id", iri)
	}
	obj.Set("@type", t.Name)

	for _, pm := range s.resolver.Properties(t) {
		if !pm.InGroups(groups) && !s.forced(pm.Name) {
			continue
		}
		v, err := s.normalizeValue(pm, pm.Field.Get(e), groups, depth)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, pm.Name, err)
		}
		obj.Set(pm.Name, v)
	}
	return obj, nil
}

func (s *Service) normalizeValue(pm metadata.PropertyMetadata, v any, groups []string, depth int) (any, error) {
	name, params := metadata.ParseDescriptor(pm.Type)
	if h, ok := s.handlers[name]; ok {
		return h.Serialize(v, params)
	}

	switch x := v.(type) {
	case nil:
		return nil, nil
	case entity.Entity:
		if depth+1 <= s.cfg.MaxDepth {
			return s.normalizeEntity(x, groups, depth+1)
		}
		return s.reference(x), nil
	case decimal.Decimal:
		return x.String(), nil
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
		return x.Format(time.RFC3339Nano), nil
	case []string:
		if x == nil {
			return []string{}, nil
		}
		return x, nil
	}
	return v, nil
}

// reference renders a related entity beyond the inlining depth: its IRI, or
// its identifier when the type is not exposed as a resource.
func (s *Service) reference(e entity.Entity) any {
	if iri, ok := s.IRI(e); ok {
		return iri
	}
	return e.Identifier()
}

func (s *Service) forced(name string) bool {
	for _, f := range s.cfg.ForceEntityProperties {
		if f == name {
			return true
		}
	}
	return false
}

func (s *Service) normalizeCollection(op *resource.Operation, c *domain.CollectionResult) (any, error) {
	members := make([]any, 0, len(c.Members))
	for _, m := range c.Members {
		obj, err := s.normalizeEntity(m, op.NormalizationGroups, 0)
		if err != nil {
			return nil, err
		}
		members = append(members, obj)
	}

	if s.cfg.CollectionFormat == FormatSimple {
		doc := NewObject()
		doc.Set("members", members)
		doc.Set("totalItems", c.TotalItems)
		doc.Set("page", c.Page.Number)
		doc.Set("itemsPerPage", c.Page.Size)
		return doc, nil
	}

	doc := NewObject()
	doc.Set("@id", s.cfg.BasePath+c.Path)
	doc.Set("@type", "hydra:Collection")
	doc.Set("hydra:member", members)
	doc.Set("hydra:totalItems", c.TotalItems)

	view := NewObject()
	view.Set("@id", s.pageLink(c, c.Page.Number))
	view.Set("@type", "hydra:PartialCollectionView")
	last := c.Page.LastPage(c.TotalItems)
	view.Set("hydra:first", s.pageLink(c, 1))
	view.Set("hydra:last", s.pageLink(c, last))
	if c.Page.Number > 1 {
		// past the end, step back to the last real page
		view.Set("hydra:previous", s.pageLink(c, min(c.Page.Number-1, last)))
	}
	if c.Page.Number < last {
		view.Set("hydra:next", s.pageLink(c, c.Page.Number+1))
	}
	view.Set("hydra:itemsPerPage", c.Page.Size)
	view.Set("hydra:currentPage", c.Page.Number)
	doc.Set("hydra:view", view)
	return doc, nil
}

func (s *Service) pageLink(c *domain.CollectionResult, page int) string {
	q := url.Values{}
	for k, v := range c.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(s.cfg.PageParameter, strconv.Itoa(page))
	return s.cfg.BasePath + c.Path + "?" + q.Encode()
}

// Deserialize applies a JSON object body onto target, or onto a new entity
// of the operation's resource when target is nil. Keys that are absent,
// read-only or outside the denormalization groups leave the target untouched.
func (s *Service) Deserialize(ctx context.Context, op *resource.Operation, body []byte, target entity.Entity) (entity.Entity, error) {
	t := op.Resource().Type()
	if target == nil {
		target = t.New()
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, apperror.NewInvalidInput("request body must be a JSON object").WithCause(err)
	}
	if data == nil {
		return nil, apperror.NewInvalidInput("request body must be a JSON object")
	}

	for _, pm := range s.resolver.Properties(t) {
		raw, present := data[pm.Name]
		if !present || pm.ReadOnly || !pm.InGroups(op.DenormalizationGroups) {
			continue
		}
		value, err := s.denormalizeValue(ctx, pm, raw)
		if err != nil {
			return nil, invalidProperty(pm.Name, err)
		}
		if err := pm.Field.Set(target, value); err != nil {
			return nil, invalidProperty(pm.Name, err)
		}
	}
	return target, nil
}

func invalidProperty(name string, err error) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}
	return apperror.NewInvalidInput(fmt.Sprintf("invalid value for %q: %v", name, err)).
		WithDetail("property", name)
}

func (s *Service) denormalizeValue(ctx context.Context, pm metadata.PropertyMetadata, raw any) (any, error) {
	if pm.Field.Kind == entity.KindRelation {
		return s.materializeReference(ctx, pm.Field.Target, raw)
	}
	name, params := metadata.ParseDescriptor(pm.Type)
	if h, ok := s.handlers[name]; ok {
		return h.Deserialize(raw, params)
	}
	return raw, nil
}

var errBadReference = errors.New("expected identifier, IRI or object with @id")

// materializeReference resolves a related entity through the reference
// resolver. Nested payloads are never populated field by field.
func (s *Service) materializeReference(ctx context.Context, target string, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	t, ok := s.catalog.Lookup(target)
	if !ok {
		return nil, fmt.Errorf("unknown entity %s", target)
	}
	id, err := s.referenceID(target, raw)
	if err != nil {
		return nil, err
	}
	if s.refs == nil {
		return nil, fmt.Errorf("no reference resolver configured")
	}
	ref, err := s.refs.Reference(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("%s %d does not exist", target, id)).
			WithDetail("entity", target).
			WithDetail("id", id)
	}
	return ref, nil
}

func (s *Service) referenceID(target string, raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number, float64:
		id, err := entity.ToInt(v)
		if err != nil || id <= 0 {
			return 0, errBadReference
		}
		return id, nil
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id, nil
		}
		return s.idFromIRI(target, v)
	case map[string]any:
		if iri, ok := v["@id"].(string); ok {
			return s.idFromIRI(target, iri)
		}
		if uid, ok := v["uid"]; ok {
			return s.referenceID(target, uid)
		}
	}
	return 0, errBadReference
}

func (s *Service) idFromIRI(target, iri string) (int64, error) {
	res, ok := s.registry.ForEntity(target)
	if !ok {
		return 0, errBadReference
	}
	if u, err := url.Parse(iri); err == nil {
		iri = u.Path
	}
	path := strings.TrimPrefix(iri, s.cfg.BasePath)
	if id, ok := res.IdentifierFromPath(path); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%q is not an IRI of %s", iri, target)
}

// isNilEntity catches typed nil pointers stored in the interface.
func isNilEntity(e entity.Entity) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
