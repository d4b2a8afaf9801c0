// Command scm is a command-line interface to blob stores, file content, and trees.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/bobg/subcmd"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bobg/scm"
	"github.com/bobg/scm/ctxlog"
	"github.com/bobg/scm/filestore"
	"github.com/bobg/scm/store"
	_ "github.com/bobg/scm/store/bolt"
	_ "github.com/bobg/scm/store/bt"
	_ "github.com/bobg/scm/store/compress"
	_ "github.com/bobg/scm/store/failing"
	_ "github.com/bobg/scm/store/file"
	_ "github.com/bobg/scm/store/gcs"
	_ "github.com/bobg/scm/store/logging"
	_ "github.com/bobg/scm/store/lru"
	_ "github.com/bobg/scm/store/mem"
	_ "github.com/bobg/scm/store/metrics"
	_ "github.com/bobg/scm/store/multiplex"
	_ "github.com/bobg/scm/store/pg"
	_ "github.com/bobg/scm/store/rpc"
	_ "github.com/bobg/scm/store/s3"
	_ "github.com/bobg/scm/store/shard"
	_ "github.com/bobg/scm/store/sqlite3"
)

type maincmd struct {
	s      scm.Blobstore
	fs     *filestore.Filestore
	fsopts []filestore.Option
	log    *zap.Logger
}

func main() {
	var (
		config    = flag.String("config", "scmconf.json", "path to config file (JSON, or YAML with a .yaml or .yml suffix)")
		level     = flag.String("log", "info", "log level: debug, info, or none")
		chunkSize = flag.String("chunk", "256KiB", "filestore chunk size")
		cdc       = flag.Uint("cdc", 0, "if nonzero, use content-defined chunk boundaries averaging 2^cdc bytes")
	)
	flag.Parse()

	if *config == "" {
		log.Fatal("Config value not set")
	}

	logger, err := newLogger(*level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx := ctxlog.WithLogger(context.Background(), logger)
	ctx = ctxlog.WithSession(ctx)

	conf, err := store.LoadConfig(*config)
	if err != nil {
		log.Fatalf("Loading config file %s: %s", *config, err)
	}
	s, err := store.FromConfig(ctx, conf)
	if err != nil {
		log.Fatalf("Creating store: %s", err)
	}

	size, err := units.RAMInBytes(*chunkSize)
	if err != nil {
		log.Fatalf("Parsing -chunk %s: %s", *chunkSize, err)
	}
	fsopts := []filestore.Option{
		filestore.WithChunkSize(uint64(size)),
		filestore.WithLogger(ctxlog.Logger(ctx)),
	}
	if *cdc > 0 {
		fsopts = append(fsopts, filestore.WithContentDefinedChunking(*cdc))
	}

	c := maincmd{
		s:      s,
		fs:     filestore.New(s, fsopts...),
		fsopts: fsopts,
		log:    ctxlog.Logger(ctx),
	}
	if err := subcmd.Run(ctx, c, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch level {
	case "none":
		return zap.NewNop(), nil
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	default:
		return nil, errors.Errorf("unknown log level %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	return cfg.Build()
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"get":       c.get,
		"put":       c.put,
		"list-keys": c.listKeys,
		"copy":      c.copy,
		"serve":     c.serve,

		"store":   c.store,
		"fetch":   c.fetch,
		"aliases": c.aliases,
		"exists":  c.exists,
		"rechunk": c.rechunk,

		"ls":    c.ls,
		"set":   c.set,
		"rm":    c.rm,
		"merge": c.merge,
		"check": c.check,

		"ingest":  c.ingest,
		"add":     c.add,
		"extract": c.extract,
	}
}
