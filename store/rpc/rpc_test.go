package rpc

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store/mem"
	"github.com/bobg/scm/testutil"
)

func withClient(t *testing.T, s scm.Blobstore, f func(context.Context, *Client)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	grpcSrv := grpc.NewServer()
	Register(grpcSrv, NewServer(s))
	defer grpcSrv.Stop()

	l := bufconn.Listen(1 << 20)
	go grpcSrv.Serve(l)

	cc, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return l.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer cc.Close()

	f(ctx, NewClient(cc))
}

func TestRPC(t *testing.T) {
	withClient(t, mem.New(), func(ctx context.Context, c *Client) {
		testutil.Blobstore(ctx, t, c)
	})
}

func TestListKeys(t *testing.T) {
	m := mem.New()
	withClient(t, m, func(ctx context.Context, c *Client) {
		for _, k := range []string{"b", "a", "c"} {
			if err := c.Put(ctx, k, []byte(k)); err != nil {
				t.Fatal(err)
			}
		}
		var got []string
		err := c.ListKeys(ctx, "a", func(k string) error {
			got = append(got, k)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0] != "b" || got[1] != "c" {
			t.Errorf("got %v, want [b c]", got)
		}
	})
}
