package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"apiresource/internal/infrastructure/http/v1/middleware"
	"apiresource/pkg/logger"
)

func TestRecovery_RendersInternalErrorAndLogsOperation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.Recovery(logger.FromZap(zap.New(core))))
	r.GET("/articles/:id", func(c *gin.Context) {
		c.Set(middleware.KeyResource, "Article")
		c.Set(middleware.KeyOperation, "get_item")
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/1", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, rec.Body.String(), "boom")

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "http", fields["component"])
	assert.Equal(t, "Article", fields["resource"])
	assert.Equal(t, "get_item", fields["operation"])
	assert.Equal(t, "/articles/1", fields["path"])
	assert.Equal(t, "boom", fields["error"])
	assert.NotEmpty(t, fields["stack"])
}

func TestRecovery_BeforeOperationMatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.ErrorLevel)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.Recovery(logger.FromZap(zap.New(core))))
	r.GET("/health/live", func(*gin.Context) { panic("early") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.FilterMessage("panic recovered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	if _, ok := fields["resource"]; ok {
		t.Errorf("unexpected resource field: %v", fields["resource"])
	}
	assert.Equal(t, "http", fields["component"])
}
