package middleware

import (
	"github.com/gin-gonic/gin"

	"apiresource/internal/infrastructure/metrics"
)

// Gin context keys set by the API handler once a route matched.
const (
	KeyResource  = "api_resource"
	KeyOperation = "api_operation"
)

// Metrics records every request in m, labelled by the matched resource
// operation.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		done := m.Begin()
		c.Next()
		done(c.GetString(KeyResource), c.GetString(KeyOperation), c.Request.Method, c.Writer.Status())
	}
}
