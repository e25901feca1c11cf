// Package v1 provides HTTP API version 1.
package v1

import (
	"strings"

	"github.com/gin-gonic/gin"

	"apiresource/internal/infrastructure/http/v1/handlers"
)

// RegisterAPIRoutes mounts the dispatcher under basePath for every method.
// Routing inside the API is done by the resource registry, not by gin.
//
// An empty base path cannot share the root with /health and /meta in the
// gin tree, so the dispatcher becomes the NoRoute handler instead.
func RegisterAPIRoutes(router *gin.Engine, basePath string, handler *handlers.APIHandler, mw ...gin.HandlerFunc) {
	basePath = "/" + strings.Trim(basePath, "/")
	chain := append(append([]gin.HandlerFunc(nil), mw...), handler.Handle)

	if basePath == "/" {
		router.NoRoute(chain...)
		return
	}
	api := router.Group(basePath)
	api.Any("/*path", chain...)
}

// RegisterMetaRoutes registers resource documentation endpoints.
func RegisterMetaRoutes(rg *gin.RouterGroup, handler *handlers.MetadataHandler) {
	meta := rg.Group("/meta")
	{
		meta.GET("/resources", handler.ListResources)
		meta.GET("/resources/:name", handler.GetResource)
	}
}
