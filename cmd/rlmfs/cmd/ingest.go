package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rlmfs/rlm/internal/chunk"
	"github.com/rlmfs/rlm/internal/corpus"
)

type ingestOptions struct {
	name     string
	strategy string
	size     int
	overlap  int
	embedNow bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <path>",
		Short: "Ingest a file as a buffer, chunk it, and optionally embed it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "buffer name (defaults to the file's base name)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "chunking strategy: fixed, semantic, code (defaults to config)")
	cmd.Flags().IntVar(&opts.size, "size", 0, "chunk size override")
	cmd.Flags().IntVar(&opts.overlap, "overlap", 0, "chunk overlap override")
	cmd.Flags().BoolVar(&opts.embedNow, "embed", false, "embed every chunk immediately after ingest")

	return cmd
}

func runIngest(cmd *cobra.Command, path string, opts ingestOptions) error {
	ctx := cmd.Context()

	a, err := newApp(configDir, wallClock)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := opts.name
	if name == "" {
		name = filepath.Base(path)
	}

	now := wallClock()
	content := string(data)
	buffer := &corpus.Buffer{
		Name:        name,
		SourcePath:  path,
		Content:     content,
		ContentHash: corpus.ComputeHash(content),
		Size:        int64(len(content)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := a.Store.InsertBuffer(ctx, buffer)
	if err != nil {
		return err
	}
	a.Logger.Info("buffer_ingested", slog.Int64("buffer_id", id), slog.String("name", name))

	strategy := opts.strategy
	if strategy == "" {
		strategy = a.Config.Chunking.Strategy
	}
	size := opts.size
	if size == 0 {
		size = a.Config.Chunking.ChunkSize
	}
	overlap := opts.overlap
	if overlap == 0 {
		overlap = a.Config.Chunking.Overlap
	}

	chunker, err := chunk.NewChunker(strategy, size, overlap)
	if err != nil {
		return err
	}

	chunks, err := chunker.Chunk(id, content, &chunk.Metadata{ChunkSize: size, Overlap: overlap})
	if err != nil {
		return err
	}
	for _, c := range chunks {
		c.CreatedAt = now
	}
	if err := a.Store.InsertChunks(ctx, id, chunks); err != nil {
		return err
	}
	a.Logger.Info("buffer_chunked", slog.Int64("buffer_id", id), slog.Int("chunk_count", len(chunks)))

	if opts.embedNow {
		n, err := a.Engine.EmbedBufferChunks(ctx, id)
		if err != nil {
			return err
		}
		a.Logger.Info("buffer_embedded", slog.Int64("buffer_id", id), slog.Int("embedded_count", n))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "buffer %d: %d chunks\n", id, len(chunks))
	return nil
}
