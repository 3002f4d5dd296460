package chunk

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rlmfs/rlm/internal/corpus"
	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// ParallelThreshold is the input size above which ParallelChunker
// splits text into segments and chunks them concurrently instead of
// delegating to the wrapped strategy directly.
const ParallelThreshold = 100_000

// defaultSegmentLookback bounds how far findSegmentBoundary searches
// backward for a clean split point.
const defaultSegmentLookback = 1000

// defaultNumSegments returns the package default requested segment
// count: the host's CPU count, floored at 2 so a single-core host
// still gets the concurrent path exercised.
func defaultNumSegments() int {
	if n := runtime.NumCPU(); n > 2 {
		return n
	}
	return 2
}

// ParallelChunker wraps another Chunker and, for inputs larger than
// threshold, splits the text into numSegments roughly equal segments
// chunked concurrently via errgroup, then stitches the results back
// into one densely-indexed sequence.
type ParallelChunker struct {
	inner       Chunker
	threshold   int
	numSegments int
}

// NewParallelChunker wraps inner with the package default threshold
// and a requested segment count of runtime.NumCPU() (floored at 2).
func NewParallelChunker(inner Chunker) *ParallelChunker {
	return &ParallelChunker{inner: inner, threshold: ParallelThreshold, numSegments: defaultNumSegments()}
}

// NewParallelChunkerThreshold wraps inner with an explicit threshold
// and the package default segment count.
func NewParallelChunkerThreshold(inner Chunker, threshold int) *ParallelChunker {
	return &ParallelChunker{inner: inner, threshold: threshold, numSegments: defaultNumSegments()}
}

// NewParallelChunkerSegments wraps inner with an explicit threshold and
// requested segment count. A numSegments ≤ 1 always delegates directly
// to inner, matching a caller asking for no parallelism.
func NewParallelChunkerSegments(inner Chunker, threshold, numSegments int) *ParallelChunker {
	return &ParallelChunker{inner: inner, threshold: threshold, numSegments: numSegments}
}

func (p *ParallelChunker) Name() string        { return "parallel(" + p.inner.Name() + ")" }
func (p *ParallelChunker) Description() string { return "Parallel orchestrator over " + p.inner.Description() }
func (p *ParallelChunker) SupportsParallel() bool { return p.inner.SupportsParallel() }

// findSegmentBoundary searches backward from targetPos, within
// defaultSegmentLookback bytes, for a paragraph break, then a newline,
// then a space, falling back to a UTF-8 boundary.
func findSegmentBoundary(text string, targetPos int) int {
	if targetPos >= len(text) {
		return len(text)
	}

	searchStart := targetPos - defaultSegmentLookback
	if searchStart < 0 {
		searchStart = 0
	}
	region := text[searchStart:targetPos]

	if idx := strings.LastIndex(region, "\n\n"); idx >= 0 {
		return searchStart + idx + 2
	}
	if idx := strings.LastIndexByte(region, '\n'); idx >= 0 {
		return searchStart + idx + 1
	}
	if idx := strings.LastIndexByte(region, ' '); idx >= 0 {
		return searchStart + idx + 1
	}
	return findCharBoundary(text, targetPos)
}

// segment is a contiguous byte range of the original text assigned to
// one worker.
type segment struct {
	start, end int
}

// splitIntoSegments divides text into segments no larger than
// segmentSize, aligning each cut to findSegmentBoundary.
func splitIntoSegments(text string, segmentSize int) []segment {
	if len(text) <= segmentSize {
		return []segment{{0, len(text)}}
	}

	var segments []segment
	start := 0
	for start < len(text) {
		target := start + segmentSize
		var end int
		if target >= len(text) {
			end = len(text)
		} else {
			end = findSegmentBoundary(text, target)
			if end <= start {
				end = findCharBoundary(text, target)
			}
		}
		segments = append(segments, segment{start, end})
		start = end
	}
	return segments
}

// mergeChunks concatenates per-segment chunk slices in order, shifting
// byte offsets to the original text and reassigning a dense index.
func mergeChunks(bufferID int64, perSegment [][]*corpus.Chunk, segments []segment, strategyName string) []*corpus.Chunk {
	var merged []*corpus.Chunk
	index := 0
	for segIdx, chunks := range perSegment {
		base := segments[segIdx].start
		for _, c := range chunks {
			shifted := *c
			shifted.BufferID = bufferID
			shifted.Index = index
			shifted.ByteStart = base + c.ByteStart
			shifted.ByteEnd = base + c.ByteEnd
			shifted.Strategy = strategyName
			merged = append(merged, &shifted)
			index++
		}
	}
	return merged
}

// Chunk implements Chunker. Below the threshold, or when the requested
// segment count is ≤ 1, it delegates straight to the wrapped strategy;
// otherwise it splits the input into numSegments segments and chunks
// them concurrently via an errgroup, where a failure in any segment
// cancels the rest.
func (p *ParallelChunker) Chunk(bufferID int64, text string, metadata *Metadata) ([]*corpus.Chunk, error) {
	numSegments := p.numSegments
	if numSegments <= 0 {
		numSegments = defaultNumSegments()
	}
	if len(text) <= p.threshold || numSegments <= 1 || !p.inner.SupportsParallel() {
		return p.inner.Chunk(bufferID, text, metadata)
	}

	segmentSize := (len(text) + numSegments - 1) / numSegments
	segments := splitIntoSegments(text, segmentSize)
	results := make([][]*corpus.Chunk, len(segments))

	g, ctx := errgroup.WithContext(context.Background())
	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			chunks, err := p.inner.Chunk(0, text[seg.start:seg.end], metadata)
			if err != nil {
				return rlmerr.ParallelFailed("segment chunking failed", err)
			}
			results[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeChunks(bufferID, results, segments, p.inner.Name()), nil
}
