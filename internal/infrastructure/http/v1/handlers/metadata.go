package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"apiresource/internal/core/apperror"
	"apiresource/internal/metadata"
)

type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: base,
		registry:    registry,
	}
}

// ListResources returns the documentation of every registered resource.
// GET /meta/resources
func (h *MetadataHandler) ListResources(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.List())
}

// GetResource returns properties, operations and filter parameters of one resource.
// GET /meta/resources/:name
func (h *MetadataHandler) GetResource(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.HandleError(c, apperror.NewNotFound("Resource", name))
		return
	}
	c.JSON(http.StatusOK, def)
}
