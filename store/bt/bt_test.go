package bt

import (
	"context"
	"fmt"
	"testing"

	"cloud.google.com/go/bigtable"
	"cloud.google.com/go/bigtable/bttest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bobg/scm"
	"github.com/bobg/scm/testutil"
)

const (
	project  = "scmtest"
	instance = "scmtest"
)

// emulator starts an in-process Bigtable emulator
// and returns a function that makes a new, empty table on it.
func emulator(ctx context.Context, t *testing.T) func() *Store {
	t.Helper()

	srv, err := bttest.NewServer("localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Close)

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	admin, err := bigtable.NewAdminClient(ctx, project, instance, option.WithGRPCConn(conn))
	if err != nil {
		t.Fatal(err)
	}
	client, err := bigtable.NewClient(ctx, project, instance, option.WithGRPCConn(conn))
	if err != nil {
		t.Fatal(err)
	}

	var n int
	return func() *Store {
		n++
		name := fmt.Sprintf("blobs%d", n)
		if err := admin.CreateTable(ctx, name); err != nil {
			t.Fatal(err)
		}
		if err := admin.CreateColumnFamily(ctx, name, Family); err != nil {
			t.Fatal(err)
		}
		return New(client.Open(name))
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	newStore := emulator(ctx, t)
	testutil.Blobstore(ctx, t, newStore())
}

func TestListKeys(t *testing.T) {
	ctx := context.Background()
	newStore := emulator(ctx, t)
	testutil.ListKeys(ctx, t, func() interface {
		scm.Blobstore
		scm.Lister
	} {
		return newStore()
	})
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := emulator(ctx, t)()

	for _, want := range []string{"first", "second"} {
		if err := s.Put(ctx, "k", []byte(want)); err != nil {
			t.Fatal(err)
		}
		got, ok, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(got) != want {
			t.Errorf("got %q, %v; want %q, true", got, ok, want)
		}
	}

	// A replaced row keeps a single cell.
	row, err := s.t.ReadRow(ctx, rowKey("k"))
	if err != nil {
		t.Fatal(err)
	}
	if n := len(row[Family]); n != 1 {
		t.Errorf("got %d cells after replacing, want 1", n)
	}
	if ok, err := s.IsPresent(ctx, "absent"); err != nil {
		t.Fatal(err)
	} else if ok {
		t.Error("absent key reported present")
	}
}
