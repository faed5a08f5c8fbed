package requestctx

import (
	"context"
	"testing"
)

func TestScopeFromContextRoundTrip(t *testing.T) {
	ctx := WithScope(context.Background(), "user-42")
	if got := ScopeFromContext(ctx); got != "user-42" {
		t.Fatalf("ScopeFromContext = %q, want %q", got, "user-42")
	}
}

func TestScopeFromContextTrimsWhitespace(t *testing.T) {
	ctx := WithScope(context.Background(), "  user-7 \n")
	if got := ScopeFromContext(ctx); got != "user-7" {
		t.Fatalf("ScopeFromContext = %q, want %q", got, "user-7")
	}
}

func TestScopeFromContextUnset(t *testing.T) {
	if got := ScopeFromContext(context.Background()); got != "" {
		t.Fatalf("expected global scope, got %q", got)
	}
	//nolint:staticcheck // nil context is handled explicitly.
	if got := ScopeFromContext(nil); got != "" {
		t.Fatalf("expected global scope for nil context, got %q", got)
	}
}

func TestWithScopeNilContext(t *testing.T) {
	//nolint:staticcheck // nil context is handled explicitly.
	ctx := WithScope(nil, "user-99")
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	if got := ScopeFromContext(ctx); got != "user-99" {
		t.Fatalf("ScopeFromContext = %q, want %q", got, "user-99")
	}
}
