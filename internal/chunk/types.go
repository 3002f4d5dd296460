// Package chunk implements the pluggable chunking strategies: fixed,
// semantic, and code-aware, plus a parallel orchestrator that wraps any
// of them for large inputs.
package chunk

import (
	"github.com/rlmfs/rlm/internal/corpus"
	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// MaxChunkSize is the hard ceiling on chunk_size accepted by any
// strategy (SPEC_FULL.md §4.1).
const MaxChunkSize = 250_000

// DefaultChunkSize is the chunk size the no-argument constructors
// (NewFixedChunker, NewSemanticChunker, NewCodeChunker) start with.
const DefaultChunkSize = 1000

// Metadata carries the options a chunker recognizes for a single call.
// The fixed and semantic chunkers take ChunkSize and Overlap from a
// non-nil Metadata as given, so a zero ChunkSize is rejected; the code
// chunker keeps its constructor values when ChunkSize or Overlap is not
// positive.
type Metadata struct {
	Source            string
	ContentType       string
	ChunkSize         int
	Overlap           int
	PreserveLines     bool
	PreserveSentences bool
	MaxChunks         int // 0 means unlimited
}

// Chunker splits buffer text into an ordered, densely-indexed sequence
// of chunks. Implementations must be safe for concurrent use.
type Chunker interface {
	Chunk(bufferID int64, text string, metadata *Metadata) ([]*corpus.Chunk, error)
	Name() string
	Description() string
	SupportsParallel() bool
}

// validateConfig applies the common chunk_size/overlap validation every
// strategy performs before doing any work.
func validateConfig(chunkSize, overlap int) error {
	if chunkSize == 0 {
		return rlmerr.InvalidConfig("chunk_size must be greater than zero")
	}
	if chunkSize > MaxChunkSize {
		return rlmerr.ChunkTooLarge(chunkSize, MaxChunkSize)
	}
	if overlap >= chunkSize {
		return rlmerr.OverlapTooLarge(overlap, chunkSize)
	}
	return nil
}

// isCharBoundary reports whether byte index i of s falls on a UTF-8
// code-point boundary (continuation bytes have the high bits 10xxxxxx).
func isCharBoundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

// findCharBoundary walks backward from i until it lands on a UTF-8
// code-point boundary, never going below 0.
func findCharBoundary(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !isCharBoundary(s, i) {
		i--
	}
	return i
}
