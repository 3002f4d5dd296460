package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGoSource = `package sample

func First() int {
	return 1
}

func Second() int {
	return 2
}

func Third() int {
	return 3
}

func Fourth() int {
	return 4
}
`

func TestCodeChunker_SplitsAtFunctionBoundaries(t *testing.T) {
	c := NewCodeChunkerSize(60)
	chunks, err := c.Chunk(1, sampleGoSource, &Metadata{ChunkSize: 60, ContentType: "text/x-go"})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, sampleGoSource[ch.ByteStart:ch.ByteEnd], ch.Content)
		if i > 0 {
			assert.True(t, strings.HasPrefix(ch.Content, "func "), "chunk %d does not start at a function: %q", i, ch.Content)
		}
	}
}

func TestCodeChunker_DefaultsChunkSizeWhenZero(t *testing.T) {
	c := NewCodeChunker()
	chunks, err := c.Chunk(1, "package p\nfunc f() {}\n", &Metadata{ChunkSize: 0})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestCodeChunker_UnknownLanguageFallsBackToLineBoundaries(t *testing.T) {
	text := strings.Repeat("some plain text line\n", 100)
	c := NewCodeChunkerSize(100)
	chunks, err := c.Chunk(1, text, &Metadata{ChunkSize: 100, ContentType: "application/octet-stream"})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.Equal(t, text[ch.ByteStart:ch.ByteEnd], ch.Content)
	}
}

func TestCodeChunker_RespectsMaxChunks(t *testing.T) {
	c := NewCodeChunkerSize(40)
	chunks, err := c.Chunk(1, sampleGoSource, &Metadata{ChunkSize: 40, ContentType: "text/x-go", MaxChunks: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(chunks), 2)
}

func TestCodeChunker_SkipsBlankTrimmedChunks(t *testing.T) {
	text := "\n\n\n   \n\n" + sampleGoSource
	c := NewCodeChunkerSize(500)
	chunks, err := c.Chunk(1, text, &Metadata{ChunkSize: 500, ContentType: "text/x-go"})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(ch.Content))
	}
}
