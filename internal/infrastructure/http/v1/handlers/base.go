package handlers

import (
	"github.com/gin-gonic/gin"

	appctx "apiresource/internal/core/context"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// HandleError registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// GetUserID extracts the caller id from request context.
func (h *BaseHandler) GetUserID(c *gin.Context) string {
	return appctx.GetCallerID(c.Request.Context())
}
