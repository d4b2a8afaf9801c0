package mpath

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestNew(t *testing.T) {
	cases := []struct {
		in      string
		want    Path
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "a", want: Path{"a"}},
		{in: "dir1/dir2/file", want: Path{"dir1", "dir2", "file"}},
		{in: "a//b", wantErr: true},
		{in: "/a", wantErr: true},
		{in: "a/", wantErr: true},
		{in: "a/../b", wantErr: true},
		{in: "./a", wantErr: true},
		{in: "a\x00b", wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := New(c.in)
			if c.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("got error %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if got.String() != c.in {
				t.Errorf("got string %q, want %q", got.String(), c.in)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = "a"
	p1 := base.Join("b")
	p2 := base.Join("c")
	if p1.String() != "a/b" || p2.String() != "a/c" {
		t.Errorf("got %s and %s", p1, p2)
	}
	if p1.Parent().String() != "a" || p1.Basename() != "b" {
		t.Errorf("got parent %s, basename %s", p1.Parent(), p1.Basename())
	}
	if !Path(nil).Parent().IsRoot() {
		t.Error("parent of root is not root")
	}
}

func TestLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"", "a", true},
		{"a", "", false},
		{"a", "a/b", true},
		{"a/b", "a/c", true},
		{"a/c", "b", true},
		{"a", "a", false},
	}
	for _, c := range cases {
		if got := MustNew(c.a).Less(MustNew(c.b)); got != c.want {
			t.Errorf("%q < %q: got %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
