package v1_test

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "apiresource/internal/core/context"
	"apiresource/internal/dispatcher"
	"apiresource/internal/domain"
	"apiresource/internal/domain/blog"
	v1 "apiresource/internal/infrastructure/http/v1"
	"apiresource/internal/infrastructure/http/v1/middleware"
	"apiresource/internal/infrastructure/metrics"
	"apiresource/internal/infrastructure/storage/memory"
	"apiresource/internal/metadata"
	"apiresource/internal/resource"
	"apiresource/internal/security"
	"apiresource/internal/serializer"
	"apiresource/pkg/logger"
)

type testServer struct {
	handler http.Handler
	jwt     *security.JWTService
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, basePath string, mutate func(*v1.RouterConfig)) *testServer {
	t.Helper()
	catalog, err := blog.Catalog()
	require.NoError(t, err)
	reg := resource.NewRegistry(catalog)
	require.NoError(t, blog.Register(reg))

	store := memory.New(catalog)
	_, err = blog.Seed(context.Background(), store, catalog, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	access, err := security.NewAccessChecker(catalog)
	require.NoError(t, err)
	require.NoError(t, access.Compile(reg))

	resolver := metadata.NewResolver()
	serCfg := serializer.DefaultConfig()
	serCfg.BasePath = basePath
	ser := serializer.New(serCfg, resolver, reg, serializer.StoreReferences{Store: store})

	hooks := domain.NewHookRegistry()
	blog.RegisterHooks(hooks, nil)

	d := dispatcher.New(dispatcher.Config{
		Registry:   reg,
		Store:      store,
		Access:     access,
		Serializer: ser,
		Hooks:      hooks,
		Logger:     logger.Nop(),
	})

	jwtSvc := security.NewJWTService(security.DefaultJWTConfig("test-secret"))
	m := metrics.New("apiresource")
	cfg := v1.RouterConfig{
		Dispatcher:       d,
		BasePath:         basePath,
		MetadataRegistry: metadata.NewRegistry(resolver, reg),
		Store:            store,
		StorageDriver:    "memory",
		Version:          "test",
		Logger:           logger.Nop(),
		JWTValidator:     jwtSvc,
		Metrics:          m,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testServer{
		handler: v1.NewHandler(v1.NewRouter(cfg), true),
		jwt:     jwtSvc,
		metrics: m,
	}
}

func (s *testServer) token(t *testing.T, caller appctx.Caller) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(caller)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRouter_GetItem(t *testing.T) {
	s := newTestServer(t, "/api", nil)

	rec := s.do(http.MethodGet, "/api/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, dispatcher.ContentType, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))

	doc := decodeJSON(t, rec)
	assert.Equal(t, "/api/articles/1", doc["@id"])
	assert.Equal(t, "Getting started", doc["title"])
}

func TestRouter_Errors(t *testing.T) {
	s := newTestServer(t, "/api", nil)

	tests := []struct {
		name   string
		method string
		target string
		header http.Header
		status int
		code   string
	}{
		{"unknown route", http.MethodGet, "/api/comments", nil, http.StatusNotFound, "ROUTE_NOT_FOUND"},
		{"missing item", http.MethodGet, "/api/articles/99", nil, http.StatusNotFound, "NOT_FOUND"},
		{"draft for anonymous", http.MethodGet, "/api/articles/3", nil, http.StatusForbidden, "FORBIDDEN"},
		{"anonymous write", http.MethodPost, "/api/articles", nil, http.StatusForbidden, "FORBIDDEN"},
		{"malformed header", http.MethodGet, "/api/articles/1", http.Header{"Authorization": {"Basic abc"}}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid token", http.MethodGet, "/api/articles/1", bearer("garbage"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad filter", http.MethodGet, "/api/articles?views=", nil, http.StatusBadRequest, "FILTER_COERCION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.target, "", tt.header)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeJSON(t, rec)["code"])
		})
	}
}

func TestRouter_AuthenticatedWrites(t *testing.T) {
	s := newTestServer(t, "/api", nil)
	writer := bearer(s.token(t, appctx.Caller{UserID: "7", Email: "w@example.com"}))

	rec := s.do(http.MethodPost, "/api/articles", `{"title":"Fresh Ideas","author":"/api/authors/1"}`, writer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decodeJSON(t, rec)
	assert.Equal(t, "fresh-ideas", doc["slug"])
	assert.Equal(t, "/api/articles/4", doc["@id"])

	// the draft is now visible to an authenticated reader
	rec = s.do(http.MethodGet, "/api/articles/3", "", writer)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/articles/4", "", writer)
	assert.Equal(t, http.StatusForbidden, rec.Code, "deleting needs the editor role")

	editor := bearer(s.token(t, appctx.Caller{UserID: "8", Roles: []string{"editor"}}))
	rec = s.do(http.MethodDelete, "/api/articles/4", "", editor)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/articles/4", "", editor)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, "/api", nil)

	rec := s.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeJSON(t, rec)["checks"].(map[string]any)["storage"])

	rec = s.do(http.MethodGet, "/health/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeJSON(t, rec)
	assert.Equal(t, "memory", info["storage"])
	assert.Equal(t, "test", info["version"])
	assert.NotContains(t, info, "pool")
}

func TestRouter_Metadata(t *testing.T) {
	s := newTestServer(t, "/api", nil)

	rec := s.do(http.MethodGet, "/meta/resources", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, "Article", list[0]["name"])

	rec = s.do(http.MethodGet, "/meta/resources/Author", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeJSON(t, rec)["filters"])

	rec = s.do(http.MethodGet, "/meta/resources/Nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeJSON(t, rec)["code"])
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t, "/api", nil)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/articles/1", "", nil).Code)
	require.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/nothing", "", nil).Code)

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `apiresource_requests_total{method="GET",operation="get_item",resource="Article",status="200"} 1`)
	assert.Contains(t, body, `apiresource_requests_total{method="GET",operation="none",resource="none",status="404"} 1`)
}

func TestRouter_Gzip(t *testing.T) {
	s := newTestServer(t, "/api", nil)

	rec := s.do(http.MethodGet, "/meta/resources", "", http.Header{"Accept-Encoding": {"gzip"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
}

func TestRouter_BodyLimit(t *testing.T) {
	s := newTestServer(t, "/api", func(c *v1.RouterConfig) { c.MaxBodyBytes = 16 })

	rec := s.do(http.MethodPost, "/api/articles", `{"title":"`+strings.Repeat("x", 64)+`"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "INVALID_INPUT", decodeJSON(t, rec)["code"])
}

func TestRouter_RootBasePath(t *testing.T) {
	s := newTestServer(t, "/", nil)

	rec := s.do(http.MethodGet, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "/articles/1", decodeJSON(t, rec)["@id"])

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/nothing", "", nil).Code)
}

func TestRouter_AuthDisabled(t *testing.T) {
	s := newTestServer(t, "/api", func(c *v1.RouterConfig) { c.JWTValidator = nil })

	// tokens are ignored, so the caller stays anonymous
	rec := s.do(http.MethodGet, "/api/articles/3", "", bearer("garbage"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
