package failing

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/testutil"
)

func TestAlwaysSucceeds(t *testing.T) {
	testutil.Blobstore(context.Background(), t, New(mem.New(), 1, 1))
}

func TestAlwaysFails(t *testing.T) {
	var (
		ctx   = context.Background()
		inner = mem.New()
		s     = New(inner, 0, 0)
	)

	if err := s.Put(ctx, "k", []byte("v")); !errors.Is(err, ErrPut) || !errors.Is(err, ErrInjected) {
		t.Errorf("got %v from Put, want ErrPut", err)
	}
	if inner.Len() != 0 {
		t.Error("failed Put reached the wrapped store")
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, ErrGet) {
		t.Errorf("got %v from Get, want ErrGet", err)
	}
	if _, err := s.IsPresent(ctx, "k"); !errors.Is(err, ErrIsPresent) {
		t.Errorf("got %v from IsPresent, want ErrIsPresent", err)
	}
	if err := s.AssertPresent(ctx, "k"); !errors.Is(err, ErrAssertPresent) {
		t.Errorf("got %v from AssertPresent, want ErrAssertPresent", err)
	}
	if errors.Is(ErrGet, ErrPut) {
		t.Error("ErrGet matches ErrPut")
	}
}

func TestReadsOnlyFail(t *testing.T) {
	ctx := context.Background()
	s := New(mem.New(), 0, 1)
	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get(ctx, "k"); !errors.Is(err, ErrInjected) {
		t.Errorf("got %v, want injected failure", err)
	}
}

func TestRate(t *testing.T) {
	var (
		ctx      = context.Background()
		s        = New(mem.New(), 0.5, 1, WithSeed(1))
		failures int
	)
	const n = 1000
	for i := 0; i < n; i++ {
		if _, _, err := s.Get(ctx, "k"); err != nil {
			failures++
		}
	}
	if failures < n/4 || failures > 3*n/4 {
		t.Errorf("got %d failures out of %d at p=0.5", failures, n)
	}
}
