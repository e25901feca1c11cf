package dispatcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiresource/internal/core/apperror"
	appctx "apiresource/internal/core/context"
	"apiresource/internal/dispatcher"
	"apiresource/internal/domain"
	"apiresource/internal/domain/blog"
	"apiresource/internal/infrastructure/storage/memory"
	"apiresource/internal/metadata"
	"apiresource/internal/resource"
	"apiresource/internal/security"
	"apiresource/internal/serializer"
	"apiresource/pkg/logger"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type fixture struct {
	d        *dispatcher.Dispatcher
	store    *memory.Store
	registry *resource.Registry

	publisher *blog.Publisher
	author    *blog.Author
	published *blog.Article
	draft     *blog.Article
}

func newFixture(t *testing.T, extra ...*resource.Resource) *fixture {
	t.Helper()
	catalog, err := blog.Catalog()
	require.NoError(t, err)

	reg := resource.NewRegistry(catalog)
	for _, res := range extra {
		require.NoError(t, reg.Register(res))
	}
	require.NoError(t, blog.Register(reg))

	store := memory.New(catalog)
	f := &fixture{store: store, registry: reg}
	f.publisher = &blog.Publisher{Name: "Acme Books", Verified: true}
	f.author = &blog.Author{Name: "Ann", Email: "ann@example.com", Rating: 4, Publisher: f.publisher, CreatedAt: fixedNow}
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	f.published = &blog.Article{
		Title: "Hello", Slug: "hello", Body: "body", Tags: []string{"go"},
		Status: blog.StatusPublished, PublishedAt: &at, Price: decimal.RequireFromString("12.50"),
		Author: f.author,
	}
	f.draft = &blog.Article{Title: "Secret", Slug: "secret", Status: blog.StatusDraft, Author: f.author}
	require.NoError(t, store.Seed(f.publisher, f.author, f.published, f.draft))

	access, err := security.NewAccessChecker(catalog)
	require.NoError(t, err)
	require.NoError(t, access.Compile(reg))

	cfg := serializer.DefaultConfig()
	cfg.BasePath = "/api"
	ser := serializer.New(cfg, metadata.NewResolver(), reg, serializer.StoreReferences{Store: store})

	hooks := domain.NewHookRegistry()
	blog.RegisterHooks(hooks, func() time.Time { return fixedNow })

	f.d = dispatcher.New(dispatcher.Config{
		Registry:   reg,
		Store:      store,
		Access:     access,
		Serializer: ser,
		Hooks:      hooks,
		Pagination: domain.DefaultPaginationConfig(),
		Logger:     logger.Nop(),
	})
	return f
}

func user(ctx context.Context, admin bool, roles ...string) context.Context {
	return appctx.WithCaller(ctx, &appctx.Caller{UserID: "u-1", Email: "u@example.com", Roles: roles, IsAdmin: admin})
}

func (f *fixture) do(ctx context.Context, method, path string, body string) (*dispatcher.Response, error) {
	u, err := url.Parse(path)
	if err != nil {
		panic(err)
	}
	return f.d.Dispatch(ctx, &dispatcher.Request{
		Method: method,
		Path:   u.Path,
		Query:  u.Query(),
		Body:   []byte(body),
	})
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func articlePath(a *blog.Article) string {
	return "/articles/" + strconv.FormatInt(a.Identifier(), 10)
}

func TestDispatch_ItemGet(t *testing.T) {
	f := newFixture(t)

	resp, err := f.do(context.Background(), http.MethodGet, articlePath(f.published), "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, dispatcher.ContentType, resp.ContentType)
	assert.Equal(t, "Article", resp.Resource.Name)

	doc := decode(t, resp.Body)
	assert.Equal(t, "/api"+articlePath(f.published), doc["@id"])
	assert.Equal(t, "Article", doc["@type"])
	assert.Equal(t, "Hello", doc["title"])
	assert.Equal(t, "body", doc["body"])
	assert.Equal(t, "12.5", doc["price"])
	assert.Equal(t, "2024-05-06T07:08:09.000Z", doc["publishedAt"])
	assert.Equal(t, "", doc["link"])

	author, ok := doc["author"].(map[string]any)
	require.True(t, ok, "author is inlined at depth 1")
	assert.Equal(t, "Ann", author["name"])
	assert.NotContains(t, author, "email", "email is not in article groups")
	assert.Equal(t, "/api/publishers/"+strconv.FormatInt(f.publisher.Identifier(), 10), author["publisher"],
		"depth 2 renders as a reference")
}

func TestDispatch_ItemGetNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.do(context.Background(), http.MethodGet, "/articles/999", "")
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.do(context.Background(), http.MethodGet, "/articles/abc", "")
	assert.True(t, apperror.IsNotFound(err), "non-integer identifiers are not found")
}

func TestDispatch_ItemGetDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.do(context.Background(), http.MethodGet, articlePath(f.draft), "")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperror.GetHTTPStatus(err))

	resp, err := f.do(user(context.Background(), false), http.MethodGet, articlePath(f.draft), "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestDispatch_RouteNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.do(context.Background(), http.MethodGet, "/nothing/here", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeRouteNotFound))
	assert.Equal(t, http.StatusNotFound, apperror.GetHTTPStatus(err))

	// path exists, method does not: search continues and ends without a match
	_, err = f.do(context.Background(), http.MethodPatch, "/publishers/1", "{}")
	assert.True(t, apperror.HasCode(err, apperror.CodeRouteNotFound))
}

func TestDispatch_FirstRegisteredResourceWins(t *testing.T) {
	featured := &resource.Resource{
		Name:   "FeaturedArticles",
		Entity: "Article",
		Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/articles/featured"},
		},
	}
	f := newFixture(t, featured)

	resp, err := f.do(context.Background(), http.MethodGet, "/articles/featured", "")
	require.NoError(t, err)
	assert.Equal(t, "FeaturedArticles", resp.Resource.Name)

	// identifiers still come from the resource with a main item operation
	doc := decode(t, resp.Body)
	members := doc["hydra:member"].([]any)
	require.NotEmpty(t, members)
	assert.Contains(t, members[0].(map[string]any)["@id"], "/api/articles/")
}

func TestDispatch_MethodNotAllowed(t *testing.T) {
	res := &resource.Resource{
		Name:   "ArticleFeed",
		Entity: "Article",
		Operations: []*resource.Operation{
			{Kind: resource.CollectionOperation, Method: http.MethodDelete, Path: "/feed"},
			{Kind: resource.ItemOperation, Method: http.MethodPost, Path: "/feed/{id}"},
		},
	}
	f := newFixture(t, res)

	_, err := f.do(context.Background(), http.MethodDelete, "/feed", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeMethodNotAllowed))
	assert.Equal(t, http.StatusMethodNotAllowed, apperror.GetHTTPStatus(err))

	_, err = f.do(context.Background(), http.MethodPost, "/feed/1", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, apperror.GetHTTPStatus(err))
}

func TestDispatch_CollectionGet(t *testing.T) {
	f := newFixture(t)

	resp, err := f.do(context.Background(), http.MethodGet, "/articles?itemsPerPage=1&order[uid]=asc", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	doc := decode(t, resp.Body)
	assert.Equal(t, "hydra:Collection", doc["@type"])
	assert.Equal(t, "/api/articles", doc["@id"])
	assert.EqualValues(t, 2, doc["hydra:totalItems"])

	members := doc["hydra:member"].([]any)
	require.Len(t, members, 1)
	first := members[0].(map[string]any)
	assert.Equal(t, "Hello", first["title"])
	assert.NotContains(t, first, "body", "body is only in the detail group")

	view := doc["hydra:view"].(map[string]any)
	assert.Contains(t, view["hydra:next"], "page=2")
	assert.NotContains(t, view, "hydra:previous")
}

func TestDispatch_CollectionGetFilters(t *testing.T) {
	f := newFixture(t)

	resp, err := f.do(context.Background(), http.MethodGet, "/articles?title=secr", "")
	require.NoError(t, err)
	doc := decode(t, resp.Body)
	assert.EqualValues(t, 1, doc["hydra:totalItems"])

	_, err = f.do(context.Background(), http.MethodGet, "/articles?views=", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeFilterCoercion))
	assert.Equal(t, http.StatusBadRequest, apperror.GetHTTPStatus(err))

	_, err = f.do(context.Background(), http.MethodGet, "/articles?page=0", "")
	assert.Equal(t, http.StatusBadRequest, apperror.GetHTTPStatus(err))
}

func TestDispatch_CollectionPageOutOfRange(t *testing.T) {
	f := newFixture(t)

	var err error
	require.NotPanics(t, func() {
		_, err = f.do(context.Background(), http.MethodGet, "/articles?page=9223372036854775807", "")
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, http.StatusBadRequest, apperror.GetHTTPStatus(err))

	// a page past the last one is empty, not an error
	resp, err := f.do(context.Background(), http.MethodGet, "/articles?page=1000", "")
	require.NoError(t, err)
	doc := decode(t, resp.Body)
	assert.Empty(t, doc["hydra:member"])
	assert.EqualValues(t, 2, doc["hydra:totalItems"])
}

func TestDispatch_CollectionPost(t *testing.T) {
	f := newFixture(t)
	ctx := user(context.Background(), false)
	before := f.store.Commits()

	body := `{"title":"New Post","author":"/api/authors/` + strconv.FormatInt(f.author.Identifier(), 10) + `","views":500,"tags":["a","b"],"price":"3.10"}`
	resp, err := f.do(ctx, http.MethodPost, "/articles", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, before+1, f.store.Commits())

	doc := decode(t, resp.Body)
	assert.Equal(t, "New Post", doc["title"])
	assert.Equal(t, "new-post", doc["slug"], "slug is generated by the create hook")
	assert.Equal(t, "draft", doc["status"])
	assert.EqualValues(t, 0, doc["views"], "read-only properties are ignored on input")
	assert.Equal(t, "3.1", doc["price"])
	assert.Equal(t, []any{"a", "b"}, doc["tags"])
	assert.Equal(t, "Ann", doc["author"].(map[string]any)["name"])
	assert.NotEmpty(t, doc["uid"])
}

func TestDispatch_CollectionPostAnonymousDenied(t *testing.T) {
	f := newFixture(t)
	before := f.store.Commits()

	_, err := f.do(context.Background(), http.MethodPost, "/articles", `{"title":"x"}`)
	assert.Equal(t, http.StatusForbidden, apperror.GetHTTPStatus(err))
	assert.Equal(t, before, f.store.Commits())
}

func TestDispatch_PostDenormalizeDenied(t *testing.T) {
	f := newFixture(t)
	before := f.store.Commits()

	_, err := f.do(user(context.Background(), false), http.MethodPost, "/articles", `{"title":"x","featured":true}`)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperror.GetHTTPStatus(err))
	assert.Equal(t, before, f.store.Commits(), "denial happens before commit")

	resp, err := f.do(user(context.Background(), true), http.MethodPost, "/articles", `{"title":"x","featured":true}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
}

func TestDispatch_ValidationFailed(t *testing.T) {
	f := newFixture(t)
	before := f.store.Commits()

	_, err := f.do(user(context.Background(), false), http.MethodPost, "/articles", `{"title":"  "}`)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidationFailed))
	assert.Equal(t, http.StatusUnprocessableEntity, apperror.GetHTTPStatus(err))
	assert.Equal(t, before, f.store.Commits())
}

func TestDispatch_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := user(context.Background(), false)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title":`},
		{"not an object", `["title"]`},
		{"wrong type", `{"title":"x","featured":"maybe"}`},
		{"missing reference", `{"title":"x","author":999}`},
		{"foreign iri", `{"title":"x","author":"/api/publishers/1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.do(ctx, http.MethodPost, "/articles", tt.body)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, apperror.GetHTTPStatus(err))
		})
	}
}

func TestDispatch_PatchMerges(t *testing.T) {
	f := newFixture(t)
	ctx := user(context.Background(), false)

	resp, err := f.do(ctx, http.MethodPatch, articlePath(f.published), `{"title":"Hello again"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	doc := decode(t, resp.Body)
	assert.Equal(t, "Hello again", doc["title"])
	assert.Equal(t, "body", doc["body"], "absent keys are kept")
	assert.Equal(t, "published", doc["status"])
}

func TestDispatch_PatchFailureLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := user(context.Background(), false)
	before := f.store.Commits()

	_, err := f.do(ctx, http.MethodPatch, articlePath(f.published), `{"title":"","body":"changed"}`)
	require.Error(t, err)
	assert.Equal(t, before, f.store.Commits())

	resp, err := f.do(ctx, http.MethodGet, articlePath(f.published), "")
	require.NoError(t, err)
	assert.Equal(t, "body", decode(t, resp.Body)["body"])
}

func TestDispatch_PatchAnonymousDenied(t *testing.T) {
	f := newFixture(t)
	commits, rollbacks := f.store.Commits(), f.store.Rollbacks()

	_, err := f.do(context.Background(), http.MethodPatch, articlePath(f.published), `{"title":"Hijacked","body":"gone"}`)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))
	assert.Equal(t, http.StatusForbidden, apperror.GetHTTPStatus(err))
	assert.Equal(t, commits, f.store.Commits(), "no unit of work is committed")
	assert.Equal(t, rollbacks, f.store.Rollbacks(), "no unit of work is opened")

	resp, err := f.do(context.Background(), http.MethodGet, articlePath(f.published), "")
	require.NoError(t, err)
	doc := decode(t, resp.Body)
	assert.Equal(t, "Hello", doc["title"])
	assert.Equal(t, "body", doc["body"])
	if f.published.Title != "Hello" {
		t.Errorf("stored entity was modified: title = %q", f.published.Title)
	}
}

func TestDispatch_PutReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := user(context.Background(), false)

	resp, err := f.do(ctx, http.MethodPut, articlePath(f.published), `{"title":"Replaced"}`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	doc := decode(t, resp.Body)
	assert.Equal(t, "Replaced", doc["title"])
	assert.Equal(t, "", doc["body"], "absent keys fall back to defaults")
	assert.Equal(t, "draft", doc["status"])
	assert.Nil(t, doc["author"])
	assert.Equal(t, "replaced", doc["slug"])
	assert.EqualValues(t, f.published.Identifier(), doc["uid"], "the identifier is kept")
}

func TestDispatch_Delete(t *testing.T) {
	f := newFixture(t)

	_, err := f.do(user(context.Background(), false), http.MethodDelete, articlePath(f.draft), "")
	assert.Equal(t, http.StatusForbidden, apperror.GetHTTPStatus(err))

	resp, err := f.do(user(context.Background(), false, "editor"), http.MethodDelete, articlePath(f.draft), "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Empty(t, resp.Body)
	assert.Empty(t, resp.ContentType)

	_, err = f.do(user(context.Background(), true), http.MethodGet, articlePath(f.draft), "")
	assert.True(t, apperror.IsNotFound(err))
}

func TestDispatch_DeleteReferencedConflict(t *testing.T) {
	f := newFixture(t)

	path := "/publishers/" + strconv.FormatInt(f.publisher.Identifier(), 10)
	_, err := f.do(user(context.Background(), true), http.MethodDelete, path, "")
	assert.Equal(t, http.StatusConflict, apperror.GetHTTPStatus(err))
}

func TestDispatch_CreateHookSetsTimestamp(t *testing.T) {
	f := newFixture(t)

	resp, err := f.do(user(context.Background(), false), http.MethodPost, "/authors", `{"name":"Bob","createdAt":"1999-01-01T00:00:00Z"}`)
	require.NoError(t, err)
	doc := decode(t, resp.Body)
	assert.Equal(t, "2025-01-02T03:04:05.000Z", doc["createdAt"])
	assert.Nil(t, doc["publisher"])
}
