// Package requestctx carries per-request caller identity through context.
package requestctx

import (
	"context"
	"strings"
)

type scopeContextKey struct{}

// WithScope stores the caller's cache scope in context. Surrounding
// whitespace is dropped; a blank scope selects the global namespace.
func WithScope(ctx context.Context, scope string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeContextKey{}, strings.TrimSpace(scope))
}

// ScopeFromContext returns the caller's cache scope, or "" when none is set.
func ScopeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(scopeContextKey{}).(string)
	return value
}
