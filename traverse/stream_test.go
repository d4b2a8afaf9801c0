package traverse

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

// binary unfolds n into children 2n and 2n+1, up to limit.
func binary(limit int, delay time.Duration, active, maxActive *int64) Unfold[int, int] {
	return func(ctx context.Context, n int) (int, []int, error) {
		if active != nil {
			a := atomic.AddInt64(active, 1)
			for {
				m := atomic.LoadInt64(maxActive)
				if a <= m || atomic.CompareAndSwapInt64(maxActive, m, a) {
					break
				}
			}
			defer atomic.AddInt64(active, -1)
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		var children []int
		for _, c := range []int{2 * n, 2*n + 1} {
			if c <= limit {
				children = append(children, c)
			}
		}
		return n, children, nil
	}
}

func seq(n int) []int {
	var result []int
	for i := 1; i <= n; i++ {
		result = append(result, i)
	}
	return result
}

func TestCollect(t *testing.T) {
	for _, k := range []int{1, 2, 5, 100} {
		got, err := Collect(context.Background(), k, 1, binary(100, 0, nil, nil))
		if err != nil {
			t.Fatal(err)
		}
		sort.Ints(got)
		if diff := cmp.Diff(seq(100), got); diff != "" {
			t.Errorf("k=%d: mismatch (-want +got):\n%s", k, diff)
		}
	}
}

func TestBound(t *testing.T) {
	for _, k := range []int{0, 1, 3} {
		var active, maxActive int64
		_, err := Collect(context.Background(), k, 1, binary(63, time.Millisecond, &active, &maxActive))
		if err != nil {
			t.Fatal(err)
		}
		want := int64(k)
		if want < 1 {
			want = 1
		}
		if maxActive > want {
			t.Errorf("k=%d: saw %d unfolds in flight", k, maxActive)
		}
	}
}

func TestLeaf(t *testing.T) {
	got, err := Collect(context.Background(), 4, 7, func(_ context.Context, n int) (string, []int, error) {
		return "leaf", nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"leaf"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDepthFirst(t *testing.T) {
	// With one unfold at a time, the most recently discovered child goes next.
	got, err := Collect(context.Background(), 1, 1, binary(7, 0, nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 7, 6, 2, 5, 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

var errBoom = errors.New("boom")

func TestError(t *testing.T) {
	unfold := func(ctx context.Context, n int) (int, []int, error) {
		if n == 5 {
			return 0, nil, errBoom
		}
		return binary(100, 0, nil, nil)(ctx, n)
	}
	s := NewStream(context.Background(), 3, 1, unfold)
	for s.Next() {
		if s.Value() == 5 {
			t.Error("got output from failed unfold")
		}
	}
	if !errors.Is(s.Err(), errBoom) {
		t.Errorf("got error %v, want %v", s.Err(), errBoom)
	}
	if s.Next() {
		t.Error("Next succeeded after failure")
	}
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(ctx, 2, 1, binary(1<<20, 0, nil, nil))
	if !s.Next() {
		t.Fatal(s.Err())
	}
	cancel()
	for s.Next() {
	}
	if !errors.Is(s.Err(), context.Canceled) {
		t.Errorf("got error %v, want context.Canceled", s.Err())
	}
}

func TestAllBreak(t *testing.T) {
	var n int
	for _, err := range NewStream(context.Background(), 4, 1, binary(1<<20, 0, nil, nil)).All() {
		if err != nil {
			t.Fatal(err)
		}
		n++
		if n == 10 {
			break
		}
	}
	if n != 10 {
		t.Errorf("got %d outputs, want 10", n)
	}
}

func TestWithSubmit(t *testing.T) {
	pool, err := ants.NewPool(4)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release()

	got, err := Collect(context.Background(), 4, 1, binary(50, 0, nil, nil), WithSubmit(pool.Submit))
	if err != nil {
		t.Fatal(err)
	}
	sort.Ints(got)
	if diff := cmp.Diff(seq(50), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
