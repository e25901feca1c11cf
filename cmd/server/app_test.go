package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apiresource/internal/config"
	"apiresource/internal/security"
	"apiresource/pkg/logger"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Server.Gzip = false
	return cfg
}

func TestApplication_ServesSeededData(t *testing.T) {
	app, err := newApplication(context.Background(), testConfig(), logger.Nop())
	require.NoError(t, err)
	defer app.Close()

	h := app.handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/articles?order[uid]=desc&status=published", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc struct {
		Total   int              `json:"hydra:totalItems"`
		Members []map[string]any `json:"hydra:member"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 2, doc.Total)
	require.Len(t, doc.Members, 2)
	assert.Equal(t, "/api/articles/2", doc.Members[0]["@id"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_WithoutSeedAndMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Seed = false
	cfg.Metrics.Enabled = false
	cfg.Auth.Disabled = true

	app, err := newApplication(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	h := app.handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/articles/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("APIRESOURCE_AUTH_JWT_SECRET", "secret")
	t.Setenv("APIRESOURCE_LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, err := runCommand(t, "routes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 3)
	assert.Contains(t, lines[0], "RESOURCE")
	assert.Regexp(t, `^Article\s+get_collection\s+collection\s+GET\s+/api/articles\s*$`, lines[1])
	assert.Contains(t, out, "/api/publishers/{id}")
}

func TestTokenCommand(t *testing.T) {
	out, err := runCommand(t, "token", "--sub", "42", "--role", "editor", "--admin")
	require.NoError(t, err)

	caller, err := security.NewJWTService(security.DefaultJWTConfig("secret")).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "42", caller.UserID)
	assert.Equal(t, []string{"editor"}, caller.Roles)
	assert.True(t, caller.IsAdmin)

	_, err = runCommand(t, "token")
	assert.Error(t, err, "--sub is required")
}

func TestMigrateCommand_NeedsPostgres(t *testing.T) {
	_, err := runCommand(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
