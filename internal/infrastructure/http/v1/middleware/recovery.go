// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"apiresource/internal/core/apperror"
	"apiresource/pkg/logger"
)

// Recovery turns a panic in a later handler into an internal error for
// ErrorHandler to render. The stack goes to the log only.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()
			l := logger.FromContext(ctx)
			if log != nil {
				l = log.WithContext(ctx)
			}
			l.WithComponent("http").
				WithOperation(c.GetString(KeyResource), c.GetString(KeyOperation)).
				Errorw("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"error", rec,
					"stack", string(debug.Stack()),
				)

			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString("request_id")),
			)
			c.Abort()
		}()
		c.Next()
	}
}
