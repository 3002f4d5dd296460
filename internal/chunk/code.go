package chunk

import (
	"sort"
	"strings"

	"github.com/rlmfs/rlm/internal/corpus"
)

// CodeChunker splits source code at language-aware structural
// boundaries (function/class/type declarations) instead of arbitrary
// byte windows, falling back to the nearest newline when no boundary
// pattern matches nearby.
type CodeChunker struct {
	chunkSize int
	overlap   int
}

// NewCodeChunker returns a code chunker using the package defaults.
func NewCodeChunker() *CodeChunker {
	return &CodeChunker{chunkSize: DefaultChunkSize, overlap: 0}
}

// NewCodeChunkerSize returns a code chunker with no overlap.
func NewCodeChunkerSize(chunkSize int) *CodeChunker {
	return &CodeChunker{chunkSize: chunkSize, overlap: 0}
}

// NewCodeChunkerSizeOverlap returns a code chunker with overlap.
func NewCodeChunkerSizeOverlap(chunkSize, overlap int) *CodeChunker {
	return &CodeChunker{chunkSize: chunkSize, overlap: overlap}
}

func (c *CodeChunker) Name() string         { return "code" }
func (c *CodeChunker) Description() string  { return "Code-aware chunking at language structural boundaries" }
func (c *CodeChunker) SupportsParallel() bool { return true }

// findBoundaries locates the line-start offset of every structural
// boundary pattern match for lang, deduped and sorted ascending.
func findBoundaries(text string, lang Language) []int {
	seen := make(map[int]struct{})
	for _, pattern := range boundaryPatterns(lang) {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			matchStart := loc[0]
			lineStart := 0
			if idx := strings.LastIndexByte(text[:matchStart], '\n'); idx >= 0 {
				lineStart = idx + 1
			}
			seen[lineStart] = struct{}{}
		}
	}
	boundaries := make([]int, 0, len(seen))
	for b := range seen {
		boundaries = append(boundaries, b)
	}
	sort.Ints(boundaries)
	return boundaries
}

// findBestBoundary picks the boundary closest to idealEnd within the
// search window [start+(idealEnd-start)/2, min(idealEnd+chunkSize/4, len)],
// falling back to the nearest preceding newline, then idealEnd itself.
func (c *CodeChunker) findBestBoundary(text string, start, idealEnd int, boundaries []int) int {
	if idealEnd >= len(text) {
		return len(text)
	}

	searchStart := start + (idealEnd-start)/2
	searchEnd := idealEnd + c.chunkSize/4
	if searchEnd > len(text) {
		searchEnd = len(text)
	}

	best := -1
	bestDist := -1
	for _, b := range boundaries {
		if b <= searchStart || b > searchEnd {
			continue
		}
		dist := b - idealEnd
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist {
			best = b
			bestDist = dist
		}
	}
	if best != -1 {
		return best
	}

	if idx := strings.LastIndexByte(text[searchStart:idealEnd], '\n'); idx >= 0 {
		return searchStart + idx + 1
	}

	return idealEnd
}

// findOverlapStart picks the start of the next chunk so that it
// reaches back roughly `overlap` bytes from currentEnd, snapping to a
// structural boundary when one is available in range.
func findOverlapStart(text string, currentEnd, overlap int, boundaries []int) int {
	target := currentEnd - overlap
	if target < 0 {
		target = 0
	}

	for i := len(boundaries) - 1; i >= 0; i-- {
		b := boundaries[i]
		if b <= target && b < currentEnd {
			return b
		}
	}

	if idx := strings.LastIndexByte(text[:target], '\n'); idx >= 0 {
		return idx + 1
	}

	if target < currentEnd {
		return target
	}
	return currentEnd
}

// chunkAtBoundaries is the main windowing loop shared by the Chunk
// method: walk forward picking boundary-aligned cuts, advancing by the
// overlap-adjusted start each time.
func (c *CodeChunker) chunkAtBoundaries(bufferID int64, text string, chunkSize, overlap int, boundaries []int) []*corpus.Chunk {
	var chunks []*corpus.Chunk
	start, index := 0, 0

	for start < len(text) {
		idealEnd := start + chunkSize
		if idealEnd > len(text) {
			idealEnd = len(text)
		}

		end := c.findBestBoundary(text, start, idealEnd, boundaries)
		if end <= start {
			end = idealEnd
		}

		content := text[start:end]
		if trimmed := strings.TrimSpace(content); trimmed != "" {
			b := corpus.NewChunkBuilder(bufferID, index, start, end, content).Strategy(c.Name())
			if index > 0 && overlap > 0 {
				b.HasOverlap(true)
			}
			chunks = append(chunks, b.Build())
			index++
		}

		if end >= len(text) {
			break
		}

		if overlap > 0 {
			next := findOverlapStart(text, end, overlap, boundaries)
			if next <= start || next >= end {
				next = end
			}
			start = next
		} else {
			start = end
		}
	}

	return chunks
}

// Chunk implements Chunker.
func (c *CodeChunker) Chunk(bufferID int64, text string, metadata *Metadata) ([]*corpus.Chunk, error) {
	chunkSize, overlap := c.chunkSize, c.overlap
	if metadata != nil && metadata.ChunkSize > 0 {
		chunkSize = metadata.ChunkSize
	}
	if metadata != nil && metadata.Overlap > 0 {
		overlap = metadata.Overlap
	}
	if err := validateConfig(chunkSize, overlap); err != nil {
		return nil, err
	}

	if len(text) == 0 {
		return nil, nil
	}

	if len(text) <= chunkSize {
		return []*corpus.Chunk{
			corpus.NewChunkBuilder(bufferID, 0, 0, len(text), text).Strategy(c.Name()).Build(),
		}, nil
	}

	lang := languageFromMetadata(metadata)
	boundaries := findBoundaries(text, lang)

	chunks := c.chunkAtBoundaries(bufferID, text, chunkSize, overlap, boundaries)

	if metadata != nil && metadata.MaxChunks > 0 && len(chunks) > metadata.MaxChunks {
		chunks = chunks[:metadata.MaxChunks]
	}

	return chunks, nil
}
