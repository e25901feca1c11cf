// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// Caller describes who is performing the current request.
// Anonymous requests carry no Caller at all.
type Caller struct {
	UserID  string
	Email   string
	Roles   []string
	IsAdmin bool
}

type callerContextKey struct{}

// WithCaller adds Caller to context.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// GetCaller returns Caller from context, nil for anonymous requests.
func GetCaller(ctx context.Context) *Caller {
	if v, ok := ctx.Value(callerContextKey{}).(*Caller); ok {
		return v
	}
	return nil
}

// GetCallerID returns caller ID from context or empty string.
func GetCallerID(ctx context.Context) string {
	if c := GetCaller(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// HasRole checks if caller has specific role.
func HasRole(ctx context.Context, role string) bool {
	c := GetCaller(ctx)
	if c == nil {
		return false
	}
	return slices.Contains(c.Roles, role)
}
