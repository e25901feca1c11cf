package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"apiresource/internal/core/apperror"
	"apiresource/internal/dispatcher"
	"apiresource/internal/infrastructure/http/v1/middleware"
)

// DefaultMaxBodyBytes limits request bodies passed to the dispatcher.
const DefaultMaxBodyBytes int64 = 1 << 20

// APIHandler adapts gin requests to the operation dispatcher.
type APIHandler struct {
	*BaseHandler
	dispatcher   *dispatcher.Dispatcher
	maxBodyBytes int64
}

// NewAPIHandler creates a handler. maxBodyBytes <= 0 selects DefaultMaxBodyBytes.
func NewAPIHandler(base *BaseHandler, d *dispatcher.Dispatcher, maxBodyBytes int64) *APIHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &APIHandler{BaseHandler: base, dispatcher: d, maxBodyBytes: maxBodyBytes}
}

// Handle serves ANY {base}/*path.
func (h *APIHandler) Handle(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// mounted as NoRoute when the API has no base path
	path := c.Param("path")
	if path == "" {
		path = c.Request.URL.Path
	}

	resp, err := h.dispatcher.Dispatch(c.Request.Context(), &dispatcher.Request{
		Method: c.Request.Method,
		Path:   path,
		Query:  c.Request.URL.Query(),
		Body:   body,
	})
	if resp != nil && resp.Operation != nil {
		c.Set(middleware.KeyResource, resp.Resource.Name)
		c.Set(middleware.KeyOperation, resp.Operation.Name)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if len(resp.Body) == 0 {
		c.Status(resp.Status)
		return
	}
	c.Data(resp.Status, resp.ContentType, resp.Body)
}

func (h *APIHandler) readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.NewInvalidInput("request body too large").
				WithDetail("limit", tooLarge.Limit)
		}
		return nil, apperror.NewInvalidInput("cannot read request body").WithCause(err)
	}
	return body, nil
}
