package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apiresource.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  gzip: false
api:
  base_path: v2/
  collection_format: simple
  force_entity_properties: [uid, slug]
pagination:
  items_per_page: 10
storage:
  driver: postgres
  dsn: postgres://localhost/blog
auth:
  jwt_secret: s3cret
`)
	t.Setenv("APIRESOURCE_SERVER_PORT", "7070")
	t.Setenv("APIRESOURCE_LOG_LEVEL", "debug")
	t.Setenv("APIRESOURCE_STORAGE_STATEMENT_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "env wins over file")
	assert.False(t, cfg.Server.Gzip)
	assert.Equal(t, ":7070", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/v2", cfg.API.BasePath)
	assert.Equal(t, "simple", cfg.API.CollectionFormat)
	assert.Equal(t, []string{"uid", "slug"}, cfg.API.ForceEntityProperties)
	assert.Equal(t, 1, cfg.API.MaxDepth)
	assert.Equal(t, 10, cfg.Pagination.ItemsPerPage)
	assert.Equal(t, 100, cfg.Pagination.MaxItemsPerPage)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Storage.StatementTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
}

func TestLoad_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APIRESOURCE_AUTH_JWT_SECRET", "dev")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "/api", cfg.API.BasePath)
	assert.Equal(t, "dev", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: mongo\nauth:\n  jwt_secret: x\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{"collection format", func(c *Config) { c.API.CollectionFormat = "xml" }},
		{"negative depth", func(c *Config) { c.API.MaxDepth = -1 }},
		{"body limit", func(c *Config) { c.API.MaxBodyBytes = 0 }},
		{"page size", func(c *Config) { c.Pagination.ItemsPerPage = 0 }},
		{"max below default", func(c *Config) { c.Pagination.MaxItemsPerPage = 5 }},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	cfg.Auth.JWTSecret = ""
	cfg.Auth.Disabled = true
	assert.NoError(t, cfg.Validate())
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{
		"":       "/",
		"/":      "/",
		"api":    "/api",
		"/api/":  "/api",
		" /v1 ":  "/v1",
		"a/b/":   "/a/b",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
