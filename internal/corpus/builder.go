package corpus

// ChunkBuilder assembles a Chunk fluently, mirroring the reference
// implementation's builder so chunkers can construct results without
// repeating the same positional-field literal everywhere.
type ChunkBuilder struct {
	chunk Chunk
}

// NewChunkBuilder starts a builder for a chunk belonging to bufferID at
// the given dense index, covering byte range [start, end).
func NewChunkBuilder(bufferID int64, index, start, end int, content string) *ChunkBuilder {
	return &ChunkBuilder{chunk: Chunk{
		BufferID:  bufferID,
		Index:     index,
		ByteStart: start,
		ByteEnd:   end,
		Content:   content,
	}}
}

func (b *ChunkBuilder) Strategy(name string) *ChunkBuilder {
	b.chunk.Strategy = name
	return b
}

func (b *ChunkBuilder) TokenCount(n int) *ChunkBuilder {
	b.chunk.TokenCount = &n
	return b
}

func (b *ChunkBuilder) LineRange(start, end int) *ChunkBuilder {
	b.chunk.LineStart = &start
	b.chunk.LineEnd = &end
	return b
}

func (b *ChunkBuilder) HasOverlap(v bool) *ChunkBuilder {
	b.chunk.HasOverlap = v
	return b
}

func (b *ChunkBuilder) CreatedAt(ts int64) *ChunkBuilder {
	b.chunk.CreatedAt = ts
	return b
}

// Build finalizes the chunk, computing its content fingerprint and,
// if none was set explicitly, its token estimate.
func (b *ChunkBuilder) Build() *Chunk {
	c := b.chunk
	c.ContentHash = ComputeHash(c.Content)
	if c.TokenCount == nil {
		n := EstimateTokens(len(c.Content))
		c.TokenCount = &n
	}
	return &c
}

// EstimateTokens approximates a token count from a byte size using the
// rough 4-bytes-per-token heuristic used throughout the chunking
// pipeline (ceil(size/4)).
func EstimateTokens(size int) int {
	return (size + 3) / 4
}
