package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
	"github.com/bobg/scm/digest"
	"github.com/bobg/scm/filestore"
)

// parseFetchKey parses SCHEME:HEX, where SCHEME is content, sha1, sha256, or gitsha1.
// A bare HEX is a content id.
func parseFetchKey(s string) (filestore.FetchKey, error) {
	scheme, hex, ok := strings.Cut(s, ":")
	if !ok {
		scheme, hex = "content", s
	}
	switch scheme {
	case "content":
		id, err := scm.ParseContentID(hex)
		return filestore.Canonical(id), errors.Wrap(err, "parsing content id")
	case "sha1":
		d, err := digest.ParseSha1(hex)
		return filestore.Sha1Key(d), errors.Wrap(err, "parsing sha1")
	case "sha256":
		d, err := digest.ParseSha256(hex)
		return filestore.Sha256Key(d), errors.Wrap(err, "parsing sha256")
	case "gitsha1":
		d, err := digest.ParseGitSha1(hex)
		return filestore.GitSha1Key(d), errors.Wrap(err, "parsing gitsha1")
	}
	return filestore.FetchKey{}, errors.Errorf("unknown key scheme %q", scheme)
}

func (c maincmd) fetchKeyArg(fs *flag.FlagSet, args []string, usage string) (filestore.FetchKey, error) {
	if err := fs.Parse(args); err != nil {
		return filestore.FetchKey{}, errors.Wrap(err, "parsing args")
	}
	if fs.NArg() != 1 {
		return filestore.FetchKey{}, errors.New("usage: " + usage)
	}
	return parseFetchKey(fs.Arg(0))
}

func printMetadata(md filestore.ContentMetadata) {
	fmt.Printf("content %s\n", md.ContentID)
	fmt.Printf("size    %d\n", md.Size)
	fmt.Printf("sha1    %s\n", md.Sha1)
	fmt.Printf("sha256  %s\n", md.Sha256)
	fmt.Printf("gitsha1 %s\n", md.GitSha1)
}

func (c maincmd) store(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		sha1    = fs.String("sha1", "", "expected SHA-1")
		sha256  = fs.String("sha256", "", "expected SHA-256")
		gitsha1 = fs.String("gitsha1", "", "expected git blob id")
		content = fs.String("content", "", "expected content id")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var (
		r    io.Reader
		size uint64
	)
	switch fs.NArg() {
	case 0:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return errors.Wrap(err, "reading stdin")
		}
		r, size = bytes.NewReader(data), uint64(len(data))

	case 1:
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return errors.Wrapf(err, "opening %s", fs.Arg(0))
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return errors.Wrapf(err, "statting %s", fs.Arg(0))
		}
		r, size = f, uint64(info.Size())

	default:
		return errors.New("usage: store [-sha1 HEX] [-sha256 HEX] [-gitsha1 HEX] [-content HEX] [FILE]")
	}

	req := filestore.NewStoreRequest(size)
	if *sha1 != "" {
		d, err := digest.ParseSha1(*sha1)
		if err != nil {
			return errors.Wrap(err, "parsing -sha1")
		}
		req = req.WithSha1(d)
	}
	if *sha256 != "" {
		d, err := digest.ParseSha256(*sha256)
		if err != nil {
			return errors.Wrap(err, "parsing -sha256")
		}
		req = req.WithSha256(d)
	}
	if *gitsha1 != "" {
		d, err := digest.ParseGitSha1(*gitsha1)
		if err != nil {
			return errors.Wrap(err, "parsing -gitsha1")
		}
		req = req.WithGitSha1(d)
	}
	if *content != "" {
		id, err := scm.ParseContentID(*content)
		if err != nil {
			return errors.Wrap(err, "parsing -content")
		}
		req = req.WithCanonical(id)
	}

	md, err := c.fs.Store(ctx, req, r)
	if err != nil {
		return errors.Wrap(err, "storing content")
	}
	printMetadata(md)
	return nil
}

func (c maincmd) fetch(ctx context.Context, fs *flag.FlagSet, args []string) error {
	key, err := c.fetchKeyArg(fs, args, "fetch [SCHEME:]HEX")
	if err != nil {
		return err
	}
	s, ok, err := c.fs.Fetch(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "fetching %s", key)
	}
	if !ok {
		return errors.Wrapf(scm.ErrNotFound, "fetching %s", key)
	}
	_, err = io.Copy(os.Stdout, s.Reader(ctx))
	return errors.Wrap(err, "writing content to stdout")
}

func (c maincmd) aliases(ctx context.Context, fs *flag.FlagSet, args []string) error {
	key, err := c.fetchKeyArg(fs, args, "aliases [SCHEME:]HEX")
	if err != nil {
		return err
	}
	md, ok, err := c.fs.GetAliases(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "getting aliases of %s", key)
	}
	if !ok {
		return errors.Wrapf(scm.ErrNotFound, "getting aliases of %s", key)
	}
	printMetadata(md)
	return nil
}

func (c maincmd) exists(ctx context.Context, fs *flag.FlagSet, args []string) error {
	key, err := c.fetchKeyArg(fs, args, "exists [SCHEME:]HEX")
	if err != nil {
		return err
	}
	ok, err := c.fs.Exists(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "checking %s", key)
	}
	fmt.Println(ok)
	return nil
}

func (c maincmd) rechunk(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	for _, arg := range fs.Args() {
		id, err := scm.ParseContentID(arg)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", arg)
		}
		if _, err := c.fs.Rechunk(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
