package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/bobg/scm/checker"
	"github.com/bobg/scm/filestore"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/memmanifest"
	"github.com/bobg/scm/mpath"
)

func parseTreeID(s string) (*manifest.TreeID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := manifest.ParseTreeID(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing tree id %s", s)
	}
	return &id, nil
}

func (c maincmd) ls(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		recursive   = fs.Bool("r", false, "list recursively")
		concurrency = fs.Int("concurrency", 8, "trees loaded at once with -r")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("usage: ls [-r] TREE [PATH]")
	}
	id, err := manifest.ParseTreeID(fs.Arg(0))
	if err != nil {
		return errors.Wrap(err, "parsing tree id")
	}

	if fs.NArg() == 2 {
		r, err := memmanifest.New(ctx, c.s, &id, nil)
		if err != nil {
			return err
		}
		path, err := mpath.New(fs.Arg(1))
		if err != nil {
			return errors.Wrap(err, "parsing path")
		}
		e, ok, err := r.Lookup(ctx, path)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("%s not found", path.String())
		}
		if leaf, ok := e.Leaf(); ok {
			fmt.Printf("%s %s %s\n", leaf.Type, leaf.ID, path.String())
			return nil
		}
		base, ok := e.Base()
		if !ok {
			return errors.Errorf("%s is not a stored tree", path.String())
		}
		id = base
	}

	if *recursive {
		for pe, err := range manifest.Walk(ctx, c.s, id, *concurrency) {
			if err != nil {
				return err
			}
			printEntry(pe.Path.String(), pe.Entry)
		}
		return nil
	}

	tree, err := id.Load(ctx, c.s)
	if err != nil {
		return err
	}
	for name, e := range tree.List() {
		printEntry(string(name), e)
	}
	return nil
}

func printEntry(name string, e manifest.TreeEntry) {
	if id, ok := e.Tree(); ok {
		fmt.Printf("tree %s %s/\n", id, name)
		return
	}
	leaf, _ := e.Leaf()
	fmt.Printf("%s %s %s\n", leaf.Type, leaf.ID, name)
}

func (c maincmd) set(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		treeStr = fs.String("tree", "", "tree to change (default: empty)")
		typStr  = fs.String("type", "regular", "file type: regular, executable, or symlink")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 2 {
		return errors.New("usage: set [-tree ID] [-type TYPE] PATH FILE")
	}
	base, err := parseTreeID(*treeStr)
	if err != nil {
		return err
	}
	typ, err := manifest.ParseFileType(*typStr)
	if err != nil {
		return err
	}
	path, err := mpath.New(fs.Arg(0))
	if err != nil {
		return errors.Wrap(err, "parsing path")
	}

	f, err := os.Open(fs.Arg(1))
	if err != nil {
		return errors.Wrapf(err, "opening %s", fs.Arg(1))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "statting %s", fs.Arg(1))
	}
	md, err := c.fs.Store(ctx, filestore.NewStoreRequest(uint64(info.Size())), f)
	if err != nil {
		return errors.Wrapf(err, "storing %s", fs.Arg(1))
	}

	r, err := memmanifest.New(ctx, c.s, base, nil)
	if err != nil {
		return err
	}
	if err := r.ChangeEntry(ctx, path, &manifest.Leaf{ID: md.ContentID, Type: typ}); err != nil {
		return err
	}
	return saveAndPrint(ctx, r)
}

func (c maincmd) rm(ctx context.Context, fs *flag.FlagSet, args []string) error {
	treeStr := fs.String("tree", "", "tree to change")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	base, err := parseTreeID(*treeStr)
	if err != nil {
		return err
	}
	if base == nil || fs.NArg() == 0 {
		return errors.New("usage: rm -tree ID PATH...")
	}

	r, err := memmanifest.New(ctx, c.s, base, nil)
	if err != nil {
		return err
	}
	for _, arg := range fs.Args() {
		path, err := mpath.New(arg)
		if err != nil {
			return errors.Wrapf(err, "parsing path %s", arg)
		}
		if err := r.ChangeEntry(ctx, path, nil); err != nil {
			return err
		}
	}
	return saveAndPrint(ctx, r)
}

func (c maincmd) merge(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 2 {
		return errors.New("usage: merge TREE1 TREE2")
	}
	p1, err := parseTreeID(fs.Arg(0))
	if err != nil {
		return err
	}
	p2, err := parseTreeID(fs.Arg(1))
	if err != nil {
		return err
	}

	r, err := memmanifest.New(ctx, c.s, p1, p2)
	if err != nil {
		return err
	}
	return saveAndPrint(ctx, r)
}

func saveAndPrint(ctx context.Context, r *memmanifest.Root) error {
	id, err := r.Save(ctx)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func (c maincmd) check(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		walkers   = fs.Int("walkers", 8, "trees loaded at once")
		verifiers = fs.Int("verifiers", 8, "files verified at once")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return errors.New("usage: check TREE")
	}
	id, err := manifest.ParseTreeID(fs.Arg(0))
	if err != nil {
		return errors.Wrap(err, "parsing tree id")
	}

	report, err := checker.New(c.s, checker.WithWalkers(*walkers), checker.WithVerifiers(*verifiers)).Check(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range report.Problems {
		fmt.Println(p)
	}
	fmt.Printf("%d trees, %d files, %d distinct contents, %d problems\n", report.Trees, report.Files, report.Contents, len(report.Problems))
	if !report.OK() {
		return errors.New("check failed")
	}
	return nil
}
