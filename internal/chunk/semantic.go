package chunk

import (
	"strings"

	"github.com/rlmfs/rlm/internal/corpus"
)

// SemanticChunker splits text at paragraph, sentence, and word
// boundaries in preference order, so chunks read as coherent prose
// rather than arbitrary byte windows.
type SemanticChunker struct {
	chunkSize    int
	overlap      int
	minChunkSize int
}

// NewSemanticChunker returns a semantic chunker using package defaults.
func NewSemanticChunker() *SemanticChunker {
	return &SemanticChunker{chunkSize: DefaultChunkSize, overlap: 0, minChunkSize: 100}
}

// NewSemanticChunkerSize returns a semantic chunker with no overlap.
func NewSemanticChunkerSize(chunkSize int) *SemanticChunker {
	return &SemanticChunker{chunkSize: chunkSize, overlap: 0, minChunkSize: 100}
}

// NewSemanticChunkerSizeOverlap returns a semantic chunker with overlap.
func NewSemanticChunkerSizeOverlap(chunkSize, overlap int) *SemanticChunker {
	return &SemanticChunker{chunkSize: chunkSize, overlap: overlap, minChunkSize: 100}
}

// MinChunkSize sets the threshold below which a final chunk gets merged
// into its predecessor, and returns the chunker for chaining.
func (s *SemanticChunker) MinChunkSize(size int) *SemanticChunker {
	s.minChunkSize = size
	return s
}

func (s *SemanticChunker) Name() string         { return "semantic" }
func (s *SemanticChunker) Description() string   { return "Semantic chunking respecting sentence and paragraph boundaries" }
func (s *SemanticChunker) SupportsParallel() bool { return true }

// findBestBoundary searches the last chunkSize/5 bytes before targetPos
// for a paragraph break, newline, sentence terminator, or word break,
// in that priority order, falling back to a UTF-8 boundary.
func (s *SemanticChunker) findBestBoundary(text string, targetPos int) int {
	if targetPos >= len(text) {
		return len(text)
	}

	searchStart := targetPos - s.chunkSize/5
	if searchStart < 0 {
		searchStart = 0
	}
	searchEnd := targetPos
	if searchEnd > len(text) {
		searchEnd = len(text)
	}
	if searchStart >= searchEnd {
		return findCharBoundary(text, targetPos)
	}

	region := text[searchStart:searchEnd]

	if idx := strings.LastIndex(region, "\n\n"); idx >= 0 {
		if boundary := searchStart + idx + 2; boundary > searchStart {
			return boundary
		}
	}

	if idx := strings.LastIndexByte(region, '\n'); idx >= 0 {
		if boundary := searchStart + idx + 1; boundary > searchStart {
			return boundary
		}
	}

	// Sentence terminator followed by whitespace or end of text, scanned
	// back to front so the closest terminator to targetPos wins.
	for i := len(region); i > 0; {
		r, size := decodeLastRune(region[:i])
		i -= size
		if r == '.' || r == '!' || r == '?' {
			nextPos := searchStart + i + size
			if nextPos >= len(text) || strings.HasPrefix(text[nextPos:], " ") || strings.HasPrefix(text[nextPos:], "\n") {
				return nextPos
			}
		}
	}

	if idx := strings.LastIndexByte(region, ' '); idx >= 0 {
		if boundary := searchStart + idx + 1; boundary > searchStart {
			return boundary
		}
	}

	return findCharBoundary(text, targetPos)
}

// decodeLastRune returns the last rune of s and its byte width, without
// pulling in unicode/utf8 call sites scattered across the file.
func decodeLastRune(s string) (rune, int) {
	if len(s) == 0 {
		return 0, 0
	}
	i := len(s) - 1
	for i > 0 && s[i]&0xC0 == 0x80 {
		i--
	}
	for _, r := range s[i:] {
		return r, len(s) - i
	}
	return 0, 0
}

// Chunk implements Chunker.
func (s *SemanticChunker) Chunk(bufferID int64, text string, metadata *Metadata) ([]*corpus.Chunk, error) {
	chunkSize, overlap := s.chunkSize, s.overlap
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
			corpus.NewChunkBuilder(bufferID, 0, 0, len(text), text).Strategy(s.Name()).Build(),
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
			end = s.findBestBoundary(text, targetEnd)
		}
		if end <= start {
			end = findCharBoundary(text, start+chunkSize)
			if end > len(text) {
				end = len(text)
			}
		}

		content := text[start:end]
		b := corpus.NewChunkBuilder(bufferID, index, start, end, content).Strategy(s.Name())
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

		var nextStart int
		if overlap > 0 {
			overlapStart := end - overlap
			if overlapStart < 0 {
				overlapStart = 0
			}
			nextStart = s.findBestBoundary(text, overlapStart)
		} else {
			nextStart = end
		}
		if nextStart <= start {
			start = end
		} else {
			start = nextStart
		}
		index++
	}

	if len(chunks) > 1 {
		last := chunks[len(chunks)-1]
		if last.Size() < s.minChunkSize {
			secondLast := chunks[len(chunks)-2]
			mergedContent := secondLast.Content + text[secondLast.ByteEnd:last.ByteEnd]
			chunks = chunks[:len(chunks)-2]
			merged := corpus.NewChunkBuilder(bufferID, len(chunks), secondLast.ByteStart, last.ByteEnd, mergedContent).
				Strategy(s.Name()).Build()
			chunks = append(chunks, merged)
		}
	}

	return chunks, nil
}
