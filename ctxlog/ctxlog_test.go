package ctxlog

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefault(t *testing.T) {
	ctx := context.Background()
	if Logger(ctx) == nil {
		t.Fatal("got nil logger")
	}
	if Session(ctx) != "" {
		t.Errorf("got session %q in bare context", Session(ctx))
	}
}

func TestSession(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	ctx1 := WithSession(ctx)
	ctx2 := WithSession(ctx)
	if Session(ctx1) == "" || Session(ctx1) == Session(ctx2) {
		t.Fatalf("got sessions %q and %q", Session(ctx1), Session(ctx2))
	}

	Logger(ctx1).Info("hello")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["session"]; got != Session(ctx1) {
		t.Errorf("got session field %v, want %s", got, Session(ctx1))
	}
}
