package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelChunker_BelowThresholdDelegatesDirectly(t *testing.T) {
	inner := NewFixedChunkerSize(50)
	p := NewParallelChunkerThreshold(inner, 1000)

	text := strings.Repeat("a", 500)
	chunks, err := p.Chunk(1, text, &Metadata{ChunkSize: 50})
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "fixed", c.Strategy)
	}
}

func TestParallelChunker_AboveThresholdSplitsAndMerges(t *testing.T) {
	inner := NewFixedChunkerSize(200)
	p := NewParallelChunkerThreshold(inner, 1000)

	text := strings.Repeat("0123456789 ", 500) // 5500 bytes, well above threshold
	chunks, err := p.Chunk(7, text, &Metadata{ChunkSize: 200})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, int64(7), c.BufferID)
		assert.Equal(t, text[c.ByteStart:c.ByteEnd], c.Content)
	}
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i-1].ByteEnd, chunks[i].ByteStart)
	}
}

func TestFindSegmentBoundary_PrefersParagraphBreak(t *testing.T) {
	text := "first paragraph text here\n\nsecond paragraph starts right about here and continues on"
	target := len("first paragraph text here\n\nsecond paragraph starts")
	boundary := findSegmentBoundary(text, target)
	assert.Equal(t, len("first paragraph text here\n\n"), boundary)
}

func TestFindSegmentBoundary_FallsBackToSpace(t *testing.T) {
	text := strings.Repeat("x", 2000) + " " + strings.Repeat("y", 2000)
	boundary := findSegmentBoundary(text, 2005)
	assert.LessOrEqual(t, boundary, 2005)
}

func TestSplitIntoSegments_CoversWholeText(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	segments := splitIntoSegments(text, 300)
	require.NotEmpty(t, segments)

	assert.Equal(t, 0, segments[0].start)
	assert.Equal(t, len(text), segments[len(segments)-1].end)
	for i := 1; i < len(segments); i++ {
		assert.Equal(t, segments[i-1].end, segments[i].start)
	}
}

func TestParallelChunker_NameDescribesInner(t *testing.T) {
	p := NewParallelChunker(NewSemanticChunkerSize(100))
	assert.Contains(t, p.Name(), "semantic")
}

func TestParallelChunker_SegmentCountOneDelegatesDirectly(t *testing.T) {
	inner := NewFixedChunkerSize(200)
	p := NewParallelChunkerSegments(inner, 100, 1)

	text := strings.Repeat("0123456789 ", 500) // well above threshold, but numSegments=1
	chunks, err := p.Chunk(1, text, &Metadata{ChunkSize: 200})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "fixed", c.Strategy)
	}
}

func TestParallelChunker_RequestedSegmentCountBoundsSegmentSize(t *testing.T) {
	inner := NewFixedChunkerSize(50)
	text := strings.Repeat("0123456789 ", 1000) // 11000 bytes

	p := NewParallelChunkerSegments(inner, 10, 4)
	chunks, err := p.Chunk(1, text, &Metadata{ChunkSize: 50})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	segments := splitIntoSegments(text, (len(text)+3)/4)
	assert.Len(t, segments, 4)
}

func TestDefaultNumSegments_AtLeastTwo(t *testing.T) {
	assert.GreaterOrEqual(t, defaultNumSegments(), 2)
}
