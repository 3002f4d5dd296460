// Package cmd provides the rlmfs CLI commands.
package cmd

import (
	"fmt"
	"log/slog"

	rlmcfg "github.com/rlmfs/rlm/internal/config"
	"github.com/rlmfs/rlm/internal/embed"
	"github.com/rlmfs/rlm/internal/logging"
	"github.com/rlmfs/rlm/internal/search"
	"github.com/rlmfs/rlm/internal/store"
	"github.com/rlmfs/rlm/internal/vfs"
)

// app bundles every wired component a subcommand needs: configuration,
// the persistent store, the optional HNSW accelerator, the embedder,
// the retrieval engine, and the filesystem projection. Thin glue only
// — no prompt templates or output formatting live here.
type app struct {
	Config  *rlmcfg.Config
	Store   *store.Store
	HNSW    *store.HNSWIndex
	Embed   embed.Embedder
	Engine  *search.Engine
	VFS     *vfs.FileSystem
	Logger  *slog.Logger
	cleanup func()
}

// newApp loads configuration from dir and wires every component.
func newApp(dir string, now search.Clock) (*app, error) {
	cfg, err := rlmcfg.Load(dir)
	if err != nil {
		return nil, err
	}

	logger, cleanup, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)

	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		cleanup()
		return nil, err
	}

	var hnsw *store.HNSWIndex
	if cfg.HNSW.Enabled {
		hnsw = store.NewHNSWIndex(cfg.HNSW.Dimensions)
	}

	embedder, err := embed.New(cfg.Embeddings)
	if err != nil {
		_ = s.Close()
		cleanup()
		return nil, err
	}

	engineCfg := search.Config{
		TopK:                cfg.Search.TopK,
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		RRFK:                cfg.Search.RRFK,
		UseSemantic:         cfg.Search.UseSemantic,
		UseBM25:             cfg.Search.UseBM25,
	}
	engine := search.New(s, hnsw, embedder, engineCfg, now)
	fs := vfs.NewFileSystem(s, hnsw, embedder, now)

	logger.Info("rlmfs_started", slog.String("store", cfg.Store.Path))

	return &app{
		Config:  cfg,
		Store:   s,
		HNSW:    hnsw,
		Embed:   embedder,
		Engine:  engine,
		VFS:     fs,
		Logger:  logger,
		cleanup: cleanup,
	}, nil
}

// Close releases every resource newApp acquired.
func (a *app) Close() error {
	var err error
	if e := a.Embed.Close(); e != nil {
		err = e
	}
	if e := a.Store.Close(); e != nil && err == nil {
		err = e
	}
	if a.cleanup != nil {
		a.cleanup()
	}
	return err
}
