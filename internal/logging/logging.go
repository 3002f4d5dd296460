// Package logging configures the structured, leveled diagnostic log
// shared by the store, engine, and filesystem projection.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	rlmcfg "github.com/rlmfs/rlm/internal/config"
)

// Setup builds a slog.Logger from a config.LogConfig and returns a
// cleanup function that flushes and closes any open log file. When
// cfg.Path is empty, output goes to stderr only and cleanup is a
// no-op.
func Setup(cfg rlmcfg.LogConfig) (*slog.Logger, func(), error) {
	var output io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.Path != "" {
		writer, err := newRotatingWriter(cfg.Path, 10, 5)
		if err != nil {
			return nil, nil, err
		}
		output = io.MultiWriter(writer, os.Stderr)
		cleanup = func() { _ = writer.Close() }
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler), cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ChunkPreview bounds chunk content for a debug-level log line: content
// longer than maxBytes is cut at a UTF-8 boundary at or before maxBytes
// and "..." is appended; shorter content is returned whole.
func ChunkPreview(content string, maxBytes int) string {
	if len(content) <= maxBytes {
		return content
	}
	end := maxBytes
	for end > 0 && content[end]&0xC0 == 0x80 {
		end--
	}
	return content[:end] + "..."
}
