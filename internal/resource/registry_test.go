package resource_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiresource/internal/core/apperror"
	"apiresource/internal/domain/blog"
	"apiresource/internal/filter"
	"apiresource/internal/resource"
)

func newRegistry(t *testing.T) *resource.Registry {
	t.Helper()
	catalog, err := blog.Catalog()
	require.NoError(t, err)
	return resource.NewRegistry(catalog)
}

func TestRegistry_RegisterDefaults(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, blog.Register(reg))

	res, ok := reg.Lookup("Article")
	require.True(t, ok)
	assert.Equal(t, "Article", res.Type().Name)

	main := res.MainItemOperation()
	require.NotNil(t, main)
	assert.Equal(t, "/articles/{id}", main.Path)
	assert.Equal(t, "get_item", main.Name)
	assert.Same(t, res, main.Resource())

	// Author flags no main operation: the first item GET is used
	author, _ := reg.Lookup("Author")
	require.NotNil(t, author.MainItemOperation())
	assert.Equal(t, http.MethodGet, author.MainItemOperation().Method)

	p, ok := res.ItemPath(42)
	assert.True(t, ok)
	assert.Equal(t, "/articles/42", p)

	id, ok := res.IdentifierFromPath("/articles/42/")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = res.IdentifierFromPath("/authors/42")
	assert.False(t, ok)
}

func TestRegistry_RegisterRejects(t *testing.T) {
	tests := []struct {
		name string
		res  *resource.Resource
	}{
		{"unknown entity", &resource.Resource{Entity: "Nope", Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/x"},
		}}},
		{"no operations", &resource.Resource{Entity: "Article"}},
		{"item without id", &resource.Resource{Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.ItemOperation, Method: http.MethodGet, Path: "/articles"},
		}}},
		{"collection with id", &resource.Resource{Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/articles/{id}"},
		}}},
		{"unknown kind", &resource.Resource{Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.OperationKind(9), Method: http.MethodGet, Path: "/articles"},
		}}},
		{"unknown method", &resource.Resource{Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: "BREW", Path: "/articles"},
		}}},
		{"two main operations", &resource.Resource{Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.ItemOperation, Method: http.MethodGet, Path: "/a/{id}", Main: true},
			{Kind: resource.ItemOperation, Method: http.MethodPut, Path: "/a/{id}", Main: true},
		}}},
		{"main collection operation", &resource.Resource{Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/a", Main: true},
		}}},
		{"duplicate operation name", &resource.Resource{Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/a"},
			{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/b"},
		}}},
		{"filter on unknown property", &resource.Resource{Entity: "Article",
			Operations: []*resource.Operation{{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/a"}},
			Filters:    []filter.Spec{{Kind: filter.Numeric, Property: "author.nope"}},
		}},
		{"filter with bad strategy", &resource.Resource{Entity: "Article",
			Operations: []*resource.Operation{{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/a"}},
			Filters:    []filter.Spec{{Kind: filter.String, Property: "title", Arguments: map[string]string{"strategy": "fuzzy"}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newRegistry(t)
			assert.Error(t, reg.Register(tt.res))
			assert.Empty(t, reg.Resources())
		})
	}
}

func TestRegistry_DuplicateResourceName(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, blog.Register(reg))
	err := reg.Register(&resource.Resource{Entity: "Article", Operations: []*resource.Operation{
		{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/other"},
	}})
	assert.Error(t, err)
}

func TestRegistry_Match(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, blog.Register(reg))

	m, err := reg.Match("get", "/articles/7")
	require.NoError(t, err)
	assert.Equal(t, "Article", m.Resource.Name)
	assert.Equal(t, resource.ItemOperation, m.Operation.Kind)
	assert.Equal(t, "7", m.ID())

	m, err = reg.Match(http.MethodGet, "articles/")
	require.NoError(t, err)
	assert.Equal(t, resource.CollectionOperation, m.Operation.Kind)

	_, err = reg.Match(http.MethodGet, "/articles/7/comments")
	assert.True(t, apperror.HasCode(err, apperror.CodeRouteNotFound))

	_, err = reg.Match(http.MethodPatch, "/publishers/1")
	assert.True(t, apperror.HasCode(err, apperror.CodeRouteNotFound))
}

func TestRegistry_MatchRegistrationOrder(t *testing.T) {
	reg := newRegistry(t)
	reg.MustRegister(
		&resource.Resource{Name: "Drafts", Entity: "Article", Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/articles/drafts"},
		}},
	)
	require.NoError(t, blog.Register(reg))

	m, err := reg.Match(http.MethodGet, "/articles/drafts")
	require.NoError(t, err)
	assert.Equal(t, "Drafts", m.Resource.Name)

	// the resource with a main item operation owns identifiers
	owner, ok := reg.ForEntity("Article")
	require.True(t, ok)
	assert.Equal(t, "Article", owner.Name)
}

func TestRegistry_Routes(t *testing.T) {
	reg := newRegistry(t)
	require.NoError(t, blog.Register(reg))

	routes := reg.Routes()
	require.NotEmpty(t, routes)
	assert.Equal(t, resource.Route{
		Resource:  "Article",
		Operation: "get_collection",
		Kind:      resource.CollectionOperation,
		Method:    http.MethodGet,
		Path:      "/articles",
	}, routes[0])

	mains := 0
	for _, r := range routes {
		if r.Main {
			mains++
		}
	}
	assert.Equal(t, len(reg.Resources()), mains)
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":            "/",
		"/":           "/",
		"articles":    "/articles",
		"/articles/":  "/articles",
		"/articles//": "/articles",
	}
	for in, want := range tests {
		if got := resource.NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
