package logging

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bobg/scm/ctxlog"
	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/testutil"
)

func TestStore(t *testing.T) {
	testutil.Blobstore(context.Background(), t, New(mem.New(), nil))
}

func TestLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ctxlog.WithLogger(context.Background(), zap.New(core))

	s := New(mem.New(), nil)
	if err := s.Put(ctx, "k", []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get(ctx, "k"); err != nil {
		t.Fatal(err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	if entries[0].Message != "put" || entries[1].Message != "get" {
		t.Errorf("got messages %q, %q", entries[0].Message, entries[1].Message)
	}
	if got := entries[0].ContextMap()["key"]; got != "k" {
		t.Errorf("got key %v, want k", got)
	}
}
