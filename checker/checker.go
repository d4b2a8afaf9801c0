// Package checker verifies that the files beneath a persisted tree are intact.
//
// Checking runs as a two-stage pipeline.
// The first stage walks the tree with bounded concurrency
// and queues each file on a bounded channel,
// so a slow second stage throttles the walk.
// The second stage verifies each distinct content id once, on a worker pool.
package checker

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bobg/scm"
	"github.com/bobg/scm/ctxlog"
	"github.com/bobg/scm/digest"
	"github.com/bobg/scm/filestore"
	"github.com/bobg/scm/manifest"
	"github.com/bobg/scm/mpath"
	"github.com/bobg/scm/traverse"
)

// ProblemKind classifies a Problem.
type ProblemKind int

const (
	// Missing means the content is not stored.
	Missing ProblemKind = iota + 1

	// MissingMetadata means the content has no metadata record.
	MissingMetadata

	// Corrupt means a chunk is missing or damaged.
	Corrupt

	// HashMismatch means the content does not hash to its id.
	HashMismatch

	// SizeMismatch means the content's length differs from its metadata.
	SizeMismatch

	// AliasMismatch means the content's SHA-256 alias does not lead back to it.
	AliasMismatch
)

func (k ProblemKind) String() string {
	switch k {
	case Missing:
		return "missing"
	case MissingMetadata:
		return "missing metadata"
	case Corrupt:
		return "corrupt"
	case HashMismatch:
		return "hash mismatch"
	case SizeMismatch:
		return "size mismatch"
	case AliasMismatch:
		return "alias mismatch"
	}
	return "unknown"
}

// Problem is something wrong with one file.
// When several paths share content, Path is the first one found.
type Problem struct {
	Path      mpath.Path
	ContentID scm.ContentID
	Kind      ProblemKind
	Detail    string
}

func (p Problem) String() string {
	s := fmt.Sprintf("%s (%s): %s", p.Path.String(), p.ContentID, p.Kind)
	if p.Detail != "" {
		s += ": " + p.Detail
	}
	return s
}

// Report is the result of a check.
type Report struct {
	Trees    int // including the root
	Files    int
	Contents int // distinct content ids checked
	Problems []Problem
}

// OK tells whether no problems were found.
func (r Report) OK() bool {
	return len(r.Problems) == 0
}

// FileInfo is a file found by the walk.
type FileInfo struct {
	Path mpath.Path
	Leaf manifest.Leaf
}

// Checker checks trees in one Blobstore.
type Checker struct {
	bs          scm.Blobstore
	fs          *filestore.Filestore
	walkers     int
	verifiers   int
	queue       int
	log         *zap.Logger
	fileOptions []filestore.Option
}

// Option configures a Checker.
type Option func(*Checker)

// WithWalkers bounds the trees loaded at once.
func WithWalkers(n int) Option {
	return func(c *Checker) { c.walkers = n }
}

// WithVerifiers sets the size of the verification worker pool.
func WithVerifiers(n int) Option {
	return func(c *Checker) { c.verifiers = n }
}

// WithQueueSize bounds the files waiting between the two stages.
func WithQueueSize(n int) Option {
	return func(c *Checker) { c.queue = n }
}

// WithLogger sets a logger.
// The default is the logger in the context passed to Check.
func WithLogger(log *zap.Logger) Option {
	return func(c *Checker) { c.log = log }
}

// WithFilestoreOptions configures the filestore used to read content.
func WithFilestoreOptions(opts ...filestore.Option) Option {
	return func(c *Checker) { c.fileOptions = opts }
}

// New produces a new Checker.
func New(bs scm.Blobstore, opts ...Option) *Checker {
	c := &Checker{
		bs:        bs,
		walkers:   8,
		verifiers: 8,
		queue:     64,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.walkers = max(c.walkers, 1)
	c.verifiers = max(c.verifiers, 1)
	c.queue = max(c.queue, 1)
	c.fs = filestore.New(bs, c.fileOptions...)
	return c
}

// Check verifies every file beneath root.
// Problems with content are collected in the report.
// An I/O error, or a tree that cannot be loaded, ends the check with an error.
func (c *Checker) Check(ctx context.Context, root manifest.TreeID) (Report, error) {
	log := c.log
	if log == nil {
		log = ctxlog.Logger(ctx)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		report = Report{Trees: 1}
		queue  = make(chan FileInfo, c.queue)
	)

	walkPool, err := ants.NewPool(c.walkers)
	if err != nil {
		return Report{}, errors.Wrap(err, "creating walk pool")
	}
	defer walkPool.Release()

	verifyPool, err := ants.NewPool(c.verifiers)
	if err != nil {
		return Report{}, errors.Wrap(err, "creating verify pool")
	}
	defer verifyPool.Release()

	// Stage 1.
	walkErr := make(chan error, 1)
	go func() {
		defer close(queue)
		for pe, err := range manifest.Walk(ctx, c.bs, root, c.walkers, traverse.WithSubmit(walkPool.Submit)) {
			if err != nil {
				walkErr <- err
				return
			}
			if leaf, ok := pe.Entry.Leaf(); ok {
				select {
				case queue <- FileInfo{Path: pe.Path, Leaf: leaf}:
				case <-ctx.Done():
					walkErr <- context.Cause(ctx)
					return
				}
			} else {
				report.Trees++
			}
		}
		walkErr <- nil
	}()

	// Stage 2.
	var (
		mu   sync.Mutex
		seen = make(map[scm.ContentID]bool)
		wg   sync.WaitGroup
	)
	for fi := range queue {
		mu.Lock()
		report.Files++
		dup := seen[fi.Leaf.ID]
		seen[fi.Leaf.ID] = true
		mu.Unlock()
		if dup {
			continue
		}

		wg.Add(1)
		err := verifyPool.Submit(func() {
			defer wg.Done()
			problem, err := c.verify(ctx, fi)
			if err != nil {
				cancel(errors.Wrapf(err, "checking %s", fi.Path.String()))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			report.Contents++
			if problem != nil {
				log.Warn("content problem", zap.Stringer("problem", problem))
				report.Problems = append(report.Problems, *problem)
			}
		})
		if err != nil {
			wg.Done()
			cancel(errors.Wrap(err, "submitting check"))
		}
	}
	wg.Wait()

	werr := <-walkErr
	if err := context.Cause(ctx); err != nil {
		return report, err
	}
	if werr != nil {
		return report, werr
	}

	log.Info("check complete",
		zap.Int("trees", report.Trees),
		zap.Int("files", report.Files),
		zap.Int("contents", report.Contents),
		zap.Int("problems", len(report.Problems)),
	)
	return report, nil
}

// verify checks one file's content.
// It returns an error only for failures unrelated to the content's integrity.
func (c *Checker) verify(ctx context.Context, fi FileInfo) (*Problem, error) {
	id := fi.Leaf.ID
	problem := func(kind ProblemKind, format string, args ...interface{}) (*Problem, error) {
		return &Problem{Path: fi.Path, ContentID: id, Kind: kind, Detail: fmt.Sprintf(format, args...)}, nil
	}

	s, ok, err := c.fs.Fetch(ctx, filestore.Canonical(id))
	if errors.Is(err, filestore.ErrCorrupt) {
		return problem(Corrupt, "%s", err)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return problem(Missing, "")
	}

	md, ok, err := c.fs.GetAliases(ctx, filestore.Canonical(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return problem(MissingMetadata, "")
	}

	multi := digest.NewMulti(scm.ContentHashKey, md.Size)
	if _, err := io.Copy(multi, s.Reader(ctx)); err != nil {
		if errors.Is(err, filestore.ErrCorrupt) || errors.Is(err, filestore.ErrChunkNotFound) {
			return problem(Corrupt, "%s", err)
		}
		return nil, err
	}
	sums := multi.Sums()

	if sums.Size != md.Size {
		return problem(SizeMismatch, "metadata says %d, content has %d", md.Size, sums.Size)
	}
	if scm.ContentID(sums.Blake2) != id {
		return problem(HashMismatch, "content hashes to %s", sums.Blake2)
	}

	aliased, ok, err := c.fs.GetCanonicalID(ctx, filestore.Sha256Key(sums.Sha256))
	if err != nil {
		return nil, err
	}
	if !ok {
		return problem(AliasMismatch, "no alias for sha256 %s", sums.Sha256)
	}
	if aliased != id {
		return problem(AliasMismatch, "sha256 %s leads to %s", sums.Sha256, aliased)
	}
	return nil, nil
}
