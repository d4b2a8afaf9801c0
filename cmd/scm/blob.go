package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/bobg/scm"
	"github.com/bobg/scm/store"
	"github.com/bobg/scm/store/rpc"
)

func (c maincmd) get(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: get KEY")
	}
	key := fs.Arg(0)

	blob, ok, err := c.s.Get(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "getting %s", key)
	}
	if !ok {
		return errors.Wrapf(scm.ErrNotFound, "getting %s", key)
	}
	_, err = os.Stdout.Write(blob)
	return errors.Wrap(err, "writing blob to stdout")
}

func (c maincmd) put(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: put KEY < BLOB")
	}
	key := fs.Arg(0)

	blob, err := io.ReadAll(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "reading stdin")
	}
	if err := c.s.Put(ctx, key, blob); err != nil {
		return errors.Wrapf(err, "storing %s", key)
	}
	c.log.Info("stored blob", zap.String("key", key), zap.Int("size", len(blob)))
	return nil
}

func (c maincmd) lister() (scm.Lister, error) {
	l, ok := c.s.(scm.Lister)
	if !ok {
		return nil, errors.Errorf("store of type %T cannot list keys", c.s)
	}
	return l, nil
}

func (c maincmd) listKeys(ctx context.Context, fs *flag.FlagSet, args []string) error {
	start := fs.String("start", "", "start after this key")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	l, err := c.lister()
	if err != nil {
		return err
	}
	return l.ListKeys(ctx, *start, func(key string) error {
		fmt.Println(key)
		return nil
	})
}

func (c maincmd) copy(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		to          = fs.String("to", "", "config file of the destination store")
		concurrency = fs.Int("concurrency", 8, "copies in flight at once")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *to == "" {
		return errors.New("missing -to")
	}

	conf, err := store.LoadConfig(*to)
	if err != nil {
		return errors.Wrapf(err, "loading %s", *to)
	}
	dst, err := store.FromConfig(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "creating destination store")
	}

	src, ok := c.s.(interface {
		scm.Blobstore
		scm.Lister
	})
	if !ok {
		return errors.Errorf("store of type %T cannot list keys", c.s)
	}

	n, err := store.Copy(ctx, dst, src, *concurrency)
	if err != nil {
		return errors.Wrap(err, "copying")
	}
	c.log.Info("copied blobs", zap.Int("count", n))
	return nil
}

func (c maincmd) serve(ctx context.Context, fs *flag.FlagSet, args []string) error {
	addr := fs.String("addr", ":7483", "address to listen on")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	gs := grpc.NewServer()
	rpc.Register(gs, rpc.NewServer(c.s))
	defer gs.GracefulStop()

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", *addr)
	}
	defer lis.Close()

	c.log.Info("listening", zap.Stringer("addr", lis.Addr()))

	go func() {
		<-ctx.Done()
		gs.Stop()
	}()

	return gs.Serve(lis)
}
