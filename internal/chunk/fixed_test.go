package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedChunker_LineAtBoundary(t *testing.T) {
	// "abc\ndef\nghi\njkl" is 15 bytes; chunk_size=8, line-aware on.
	text := "abc\ndef\nghi\njkl"
	c := NewFixedChunkerSize(8)

	chunks, err := c.Chunk(1, text, &Metadata{ChunkSize: 8})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].ByteStart)
	assert.Equal(t, 8, chunks[0].ByteEnd)
	assert.Equal(t, "abc\ndef\n", chunks[0].Content)

	assert.Equal(t, 8, chunks[1].ByteStart)
	assert.Equal(t, 15, chunks[1].ByteEnd)
	assert.Equal(t, "ghi\njkl", chunks[1].Content)
}

func TestFixedChunker_DenseIndices(t *testing.T) {
	text := strings.Repeat("0123456789", 50)
	c := NewFixedChunkerSize(30)

	chunks, err := c.Chunk(1, text, &Metadata{ChunkSize: 30})
	require.NoError(t, err)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, text[ch.ByteStart:ch.ByteEnd], ch.Content)
	}
}

func TestFixedChunker_RejectsZeroSize(t *testing.T) {
	c := NewFixedChunkerSize(100)
	_, err := c.Chunk(1, "hello", &Metadata{ChunkSize: 0})
	assert.Error(t, err)
}

func TestFixedChunker_RejectsOverlapTooLarge(t *testing.T) {
	c := NewFixedChunkerSizeOverlap(10, 10)
	_, err := c.Chunk(1, strings.Repeat("a", 100), &Metadata{ChunkSize: 10, Overlap: 10})
	assert.Error(t, err)
}

func TestFixedChunker_EmptyTextYieldsNoChunks(t *testing.T) {
	c := NewFixedChunkerSize(10)
	chunks, err := c.Chunk(1, "", &Metadata{ChunkSize: 10})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFixedChunker_SurvivesMultibyteRunes(t *testing.T) {
	text := strings.Repeat("héllo wörld 日本語 ", 20)
	c := NewFixedChunkerSize(17)

	chunks, err := c.Chunk(1, text, &Metadata{ChunkSize: 17})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.True(t, len(ch.Content) > 0)
		assert.Equal(t, text[ch.ByteStart:ch.ByteEnd], ch.Content)
	}
}
