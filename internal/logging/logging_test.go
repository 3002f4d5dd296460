package logging

import (
	"log/slog"
	"testing"
	"unicode/utf8"

	rlmcfg "github.com/rlmfs/rlm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_StderrOnlyWhenPathEmpty(t *testing.T) {
	logger, cleanup, err := Setup(rlmcfg.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, logger)
}

func TestSetup_FileOutputCreatesRotatingWriter(t *testing.T) {
	dir := t.TempDir()
	logger, cleanup, err := Setup(rlmcfg.LogConfig{Level: "debug", Format: "text", Path: dir + "/app.log"})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hello")
}

func TestParseLevel_RecognizesAllLevels(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestChunkPreview_ShortContentIsUnchanged(t *testing.T) {
	assert.Equal(t, "hello", ChunkPreview("hello", 10))
}

func TestChunkPreview_TruncatesAtByteBoundary(t *testing.T) {
	content := "0123456789abcdef"
	preview := ChunkPreview(content, 5)
	assert.Equal(t, "01234...", preview)
}

func TestChunkPreview_NeverSplitsMultibyteRune(t *testing.T) {
	content := "日本語テスト"
	for n := 0; n <= len(content); n++ {
		preview := ChunkPreview(content, n)
		assert.True(t, len(preview) > 0 || n == 0)
		assert.True(t, utf8.ValidString(preview), "preview %q splits a rune at n=%d", preview, n)
	}
}
