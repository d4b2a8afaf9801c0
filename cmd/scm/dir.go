package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/scm/fs"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
)

func (c maincmd) ingest(ctx context.Context, flags *flag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if flags.NArg() != 1 {
		return errors.New("usage: ingest DIR")
	}
	id, err := fs.Ingest(ctx, c.s, flags.Arg(0), fs.WithFilestoreOptions(c.fsopts...))
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func (c maincmd) add(ctx context.Context, flags *flag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if flags.NArg() != 3 {
		return errors.New("usage: add TREE PATH LOCAL")
	}
	base, err := manifest.ParseTreeID(flags.Arg(0))
	if err != nil {
		return errors.Wrap(err, "parsing tree id")
	}
	at, err := mpath.New(flags.Arg(1))
	if err != nil {
		return errors.Wrap(err, "parsing path")
	}
	id, err := fs.AddTo(ctx, c.s, base, at, flags.Arg(2), fs.WithFilestoreOptions(c.fsopts...))
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func (c maincmd) extract(ctx context.Context, flags *flag.FlagSet, args []string) error {
	concurrency := flags.Int("concurrency", 8, "trees loaded at once")
	if err := flags.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if flags.NArg() != 2 {
		return errors.New("usage: extract [-concurrency N] TREE DIR")
	}
	id, err := manifest.ParseTreeID(flags.Arg(0))
	if err != nil {
		return errors.Wrap(err, "parsing tree id")
	}
	return fs.Extract(ctx, c.s, id, flags.Arg(1), *concurrency)
}
