package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"apiresource/internal/core/apperror"
	appctx "apiresource/internal/core/context"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.Caller, error)
}

// OptionalAuth validates the bearer token if present. Requests without
// an Authorization header stay anonymous; a malformed or invalid token
// is rejected with 401.
func OptionalAuth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || validator == nil {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		caller, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		ctx := appctx.WithCaller(c.Request.Context(), caller)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", caller.UserID)

		c.Next()
	}
}

// RequireRole middleware checks if caller has one of the roles.
// Administrators pass every check.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := appctx.GetCaller(c.Request.Context())
		if caller == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if caller.IsAdmin {
			c.Next()
			return
		}
		for _, required := range roles {
			if appctx.HasRole(c.Request.Context(), required) {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
