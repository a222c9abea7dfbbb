package logging

import (
	"context"
	"testing"
)

func TestEnsureBatchID(t *testing.T) {
	ctx, id := EnsureBatchID(context.Background())
	if id == "" {
		t.Fatalf("expected a generated batch ID")
	}
	if got := BatchIDFromContext(ctx); got != id {
		t.Fatalf("context carries %q, want %q", got, id)
	}

	// A second call must reuse the existing ID, not mint a new one.
	ctx2, id2 := EnsureBatchID(ctx)
	if id2 != id {
		t.Fatalf("existing ID %q replaced by %q", id, id2)
	}
	if got := BatchIDFromContext(ctx2); got != id {
		t.Fatalf("context carries %q after reuse, want %q", got, id)
	}
}

func TestEnsureBatchIDNilContext(t *testing.T) {
	ctx, id := EnsureBatchID(nil)
	if ctx == nil || id == "" {
		t.Fatalf("nil context not upgraded: ctx=%v id=%q", ctx, id)
	}
}

func TestBatchIDFromContextMissing(t *testing.T) {
	if got := BatchIDFromContext(context.Background()); got != "" {
		t.Fatalf("empty context returned ID %q", got)
	}
	if got := BatchIDFromContext(nil); got != "" {
		t.Fatalf("nil context returned ID %q", got)
	}
}

func TestWithBatchLoggerNilBase(t *testing.T) {
	ctx, log := WithBatchLogger(context.Background(), nil)
	if log == nil {
		t.Fatalf("expected a usable logger")
	}
	if BatchIDFromContext(ctx) == "" {
		t.Fatalf("batch ID not attached to context")
	}
	// Must not panic even though the base logger was nil.
	log.Info(ctx, "ping")
}

func TestBatchIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		_, id := EnsureBatchID(context.Background())
		if seen[id] {
			t.Fatalf("duplicate batch ID %q", id)
		}
		seen[id] = true
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := parseLevel(in).Level().String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNoopLoggerIsSafe(t *testing.T) {
	log := Noop().With(String("k", "v"))
	ctx := context.Background()
	log.Debug(ctx, "a")
	log.Info(ctx, "b", Int("n", 1))
	log.Warn(ctx, "c", Float64("f", 2.5))
	log.Error(ctx, "d", Any("x", struct{}{}))
}
