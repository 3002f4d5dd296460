package search

import (
	"context"
	"testing"

	"github.com/rlmfs/rlm/internal/corpus"
	"github.com/rlmfs/rlm/internal/embed"
	rlmerr "github.com/rlmfs/rlm/internal/errors"
	"github.com/rlmfs/rlm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ts int64) Clock {
	return func() int64 { return ts }
}

func newTestEngine(t *testing.T, cfg Config, emb embed.Embedder) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	e := New(s, nil, emb, cfg, fixedClock(100))
	return e, s
}

func seedBuffer(t *testing.T, s *store.Store, name string, texts ...string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.InsertBuffer(ctx, &corpus.Buffer{Name: name, Content: name, CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	chunks := make([]*corpus.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = corpus.NewChunkBuilder(id, i, 0, len(text), text).Strategy("fixed").CreatedAt(1).Build()
	}
	require.NoError(t, s.InsertChunks(ctx, id, chunks))
	return id
}

func TestEngine_Search_HybridFusesSemanticAndLexical(t *testing.T) {
	embedder := embed.NewStaticEmbedder()
	cfg := Config{TopK: 5, SimilarityThreshold: 0, RRFK: 60, UseSemantic: true, UseBM25: true}
	e, s := newTestEngine(t, cfg, embedder)
	ctx := context.Background()

	id := seedBuffer(t, s, "doc", "the quick brown fox jumps over the lazy dog", "functional programming in a pure language")
	n, err := e.EmbedBufferChunks(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := e.Search(ctx, "fox")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content, "fox")
}

func TestEngine_Search_LexicalOnly(t *testing.T) {
	cfg := Config{TopK: 5, RRFK: 60, UseSemantic: false, UseBM25: true}
	e, s := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	seedBuffer(t, s, "doc", "the quick brown fox jumps", "completely unrelated content here")

	results, err := e.Search(ctx, "fox")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestEngine_Search_NoHitsReturnsEmptyNotError(t *testing.T) {
	cfg := DefaultConfig()
	e, s := newTestEngine(t, cfg, embed.NewStaticEmbedder())
	ctx := context.Background()

	seedBuffer(t, s, "doc", "something entirely different")

	results, err := e.Search(ctx, "zzznonexistentzzz")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_EmbedBufferChunks_EmptyBufferIsNoop(t *testing.T) {
	e, s := newTestEngine(t, DefaultConfig(), embed.NewStaticEmbedder())
	ctx := context.Background()

	id, err := s.InsertBuffer(ctx, &corpus.Buffer{Name: "empty", Content: "x", CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	n, err := e.EmbedBufferChunks(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_EmbedBufferChunks_NoEmbedderFails(t *testing.T) {
	e, s := newTestEngine(t, DefaultConfig(), nil)
	id := seedBuffer(t, s, "doc", "text")

	_, err := e.EmbedBufferChunks(context.Background(), id)
	assert.Error(t, err)
}

func TestEngine_GuardDimensions_MismatchFails(t *testing.T) {
	e, s := newTestEngine(t, DefaultConfig(), embed.NewStaticEmbedder())
	ctx := context.Background()

	id := seedBuffer(t, s, "doc", "first chunk text")
	_, err := e.EmbedBufferChunks(ctx, id)
	require.NoError(t, err)

	otherEmbedder := &stubEmbedder{dims: embed.StaticDimensions + 1}
	e2 := New(s, nil, otherEmbedder, DefaultConfig(), fixedClock(200))
	id2 := seedBuffer(t, s, "doc2", "second chunk text")

	_, err = e2.EmbedBufferChunks(ctx, id2)
	require.Error(t, err)

	var rerr *rlmerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, rlmerr.CodeDimensionMismatch, rerr.Code)
}

func TestEngine_BufferFullyEmbedded_DelegatesToStore(t *testing.T) {
	e, s := newTestEngine(t, DefaultConfig(), embed.NewStaticEmbedder())
	ctx := context.Background()

	id := seedBuffer(t, s, "doc", "text one", "text two")
	full, err := e.BufferFullyEmbedded(ctx, id)
	require.NoError(t, err)
	assert.False(t, full)

	_, err = e.EmbedBufferChunks(ctx, id)
	require.NoError(t, err)

	full, err = e.BufferFullyEmbedded(ctx, id)
	require.NoError(t, err)
	assert.True(t, full)
}

func TestCosineSimilarity_IdenticalVectorsIsOne(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_MismatchedLengthIsZero(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

type stubEmbedder struct{ dims int }

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, s.dims), nil
}
func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dims)
	}
	return out, nil
}
func (s *stubEmbedder) Dimensions() int                  { return s.dims }
func (s *stubEmbedder) ModelName() string                { return "stub" }
func (s *stubEmbedder) Available(_ context.Context) bool { return true }
func (s *stubEmbedder) Close() error                     { return nil }
