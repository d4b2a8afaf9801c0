package rpc

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
)

var (
	_ scm.Blobstore = &Client{}
	_ scm.Lister    = &Client{}
)

// Client is a Blobstore that forwards every operation to a Server.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient produces a new Client using the given connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, req, resp, grpc.CallContentSubtype(codecName))
}

// Get implements scm.Blobstore.Get.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var resp getResponse
	if err := c.invoke(ctx, "Get", &keyRequest{Key: key}, &resp); err != nil {
		return nil, false, errors.Wrapf(err, "getting %s", key)
	}
	if resp.Found && resp.Blob == nil {
		resp.Blob = []byte{}
	}
	return resp.Blob, resp.Found, nil
}

// Put implements scm.Blobstore.Put.
func (c *Client) Put(ctx context.Context, key string, b []byte) error {
	var resp putResponse
	return errors.Wrapf(c.invoke(ctx, "Put", &putRequest{Key: key, Blob: b}, &resp), "storing %s", key)
}

// IsPresent implements scm.Blobstore.IsPresent.
func (c *Client) IsPresent(ctx context.Context, key string) (bool, error) {
	var resp presentResponse
	if err := c.invoke(ctx, "IsPresent", &keyRequest{Key: key}, &resp); err != nil {
		return false, errors.Wrapf(err, "checking %s", key)
	}
	return resp.Present, nil
}

// AssertPresent implements scm.Blobstore.AssertPresent.
func (c *Client) AssertPresent(ctx context.Context, key string) error {
	return scm.AssertPresent(ctx, c, key)
}

// ListKeys implements scm.Lister.
func (c *Client) ListKeys(ctx context.Context, start string, f func(string) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+serviceName+"/ListKeys", grpc.CallContentSubtype(codecName))
	if err != nil {
		return errors.Wrap(err, "opening stream")
	}
	if err := stream.SendMsg(&listKeysRequest{Start: start}); err != nil {
		return errors.Wrap(err, "sending request")
	}
	if err := stream.CloseSend(); err != nil {
		return errors.Wrap(err, "closing send side")
	}
	for {
		var resp listKeysResponse
		err := stream.RecvMsg(&resp)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "receiving response")
		}
		if err := f(resp.Key); err != nil {
			return err
		}
	}
}

func init() {
	store.Register("rpc", func(_ context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
		addr, ok := store.String(conf, "addr")
		if !ok {
			return nil, errors.New(`missing "addr" parameter`)
		}
		var opts []grpc.DialOption
		if insec, _ := conf["insecure"].(bool); insec {
			opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		}
		cc, err := grpc.NewClient(addr, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "connecting to %s", addr)
		}
		return NewClient(cc), nil
	})
}
