package chunk

import (
	"strings"

	"github.com/rlmfs/rlm/internal/corpus"
)

// FixedChunker splits text into fixed-size byte windows, optionally
// snapping the cut point to a preceding newline.
type FixedChunker struct {
	chunkSize int
	overlap   int
	lineAware bool
}

// NewFixedChunker returns a fixed chunker using the package defaults.
func NewFixedChunker() *FixedChunker {
	return &FixedChunker{chunkSize: DefaultChunkSize, overlap: 0, lineAware: true}
}

// NewFixedChunkerSize returns a fixed chunker with no overlap.
func NewFixedChunkerSize(chunkSize int) *FixedChunker {
	return &FixedChunker{chunkSize: chunkSize, overlap: 0, lineAware: true}
}

// NewFixedChunkerSizeOverlap returns a fixed chunker with overlap.
func NewFixedChunkerSizeOverlap(chunkSize, overlap int) *FixedChunker {
	return &FixedChunker{chunkSize: chunkSize, overlap: overlap, lineAware: true}
}

// LineAware toggles newline-snapping and returns the chunker for chaining.
func (f *FixedChunker) LineAware(enabled bool) *FixedChunker {
	f.lineAware = enabled
	return f
}

func (f *FixedChunker) Name() string             { return "fixed" }
func (f *FixedChunker) Description() string       { return "Fixed-size chunking with optional line boundary alignment" }
func (f *FixedChunker) SupportsParallel() bool     { return true }

// findBoundary returns a valid cut point at or before targetPos, snapped
// to a UTF-8 boundary and, if line-aware, pulled back to the nearest
// newline within the last chunkSize/10 bytes when one exists.
func (f *FixedChunker) findBoundary(text string, targetPos int) int {
	pos := targetPos
	if pos > len(text) {
		pos = len(text)
	}
	pos = findCharBoundary(text, pos)

	if f.lineAware && pos > 0 {
		searchStart := pos - f.chunkSize/10
		if searchStart < 0 {
			searchStart = 0
		}
		if idx := strings.LastIndexByte(text[searchStart:pos], '\n'); idx >= 0 {
			newlinePos := searchStart + idx + 1
			if newlinePos > searchStart {
				return newlinePos
			}
		}
	}
	return pos
}

// Chunk implements Chunker.
func (f *FixedChunker) Chunk(bufferID int64, text string, metadata *Metadata) ([]*corpus.Chunk, error) {
	chunkSize, overlap := f.chunkSize, f.overlap
	if metadata != nil {
		chunkSize, overlap = metadata.ChunkSize, metadata.Overlap
	}
	if err := validateConfig(chunkSize, overlap); err != nil {
		return nil, err
	}

	if len(text) == 0 {
		return nil, nil
	}

	if len(text) <= chunkSize {
		return []*corpus.Chunk{
			corpus.NewChunkBuilder(bufferID, 0, 0, len(text), text).Strategy(f.Name()).Build(),
		}, nil
	}

	var chunks []*corpus.Chunk
	start, index := 0, 0

	for start < len(text) {
		targetEnd := start + chunkSize
		if targetEnd > len(text) {
			targetEnd = len(text)
		}

		var end int
		if targetEnd >= len(text) {
			end = len(text)
		} else {
			end = f.findBoundary(text, targetEnd)
		}
		if end <= start {
			end = start + chunkSize
			if end > len(text) {
				end = len(text)
			}
		}

		content := text[start:end]
		b := corpus.NewChunkBuilder(bufferID, index, start, end, content).Strategy(f.Name())
		if index > 0 && overlap > 0 {
			b.HasOverlap(true)
		}
		chunks = append(chunks, b.Build())

		if metadata != nil && metadata.MaxChunks > 0 && len(chunks) >= metadata.MaxChunks {
			break
		}

		if end >= len(text) {
			break
		}

		var next int
		if overlap > 0 {
			next = end - overlap
			if next < 0 {
				next = 0
			}
		} else {
			next = end
		}
		if next <= start {
			next = end
		}
		start = next
		index++
	}

	return chunks, nil
}
