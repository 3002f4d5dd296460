package chunk

import rlmerr "github.com/rlmfs/rlm/internal/errors"

// NewChunker builds the named strategy (fixed, semantic, code) sized
// chunkSize/overlap, wrapped in a ParallelChunker so callers always get
// the large-input fan-out for free — below ParallelThreshold it simply
// delegates to the inner strategy.
func NewChunker(strategy string, chunkSize, overlap int) (Chunker, error) {
	var inner Chunker
	switch strategy {
	case "fixed", "":
		inner = NewFixedChunkerSizeOverlap(chunkSize, overlap)
	case "semantic":
		inner = NewSemanticChunkerSizeOverlap(chunkSize, overlap)
	case "code":
		inner = NewCodeChunkerSizeOverlap(chunkSize, overlap)
	default:
		return nil, rlmerr.UnknownStrategy(strategy)
	}
	return NewParallelChunker(inner), nil
}
