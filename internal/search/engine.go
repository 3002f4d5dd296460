package search

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rlmfs/rlm/internal/embed"
	rlmerr "github.com/rlmfs/rlm/internal/errors"
	"github.com/rlmfs/rlm/internal/store"
)

const (
	metadataDimensionsKey = "embedding_dimensions"
	metadataModelKey      = "embedding_model"
)

// Clock returns the current time in Unix seconds. The Engine reads it
// when stamping embeddings and metadata; tests pass a fixed one.
type Clock func() int64

// Engine composes the persistent store, an optional HNSW accelerator,
// and an embedder into the hybrid search operations described by the
// retrieval engine design: semantic rank, lexical rank, RRF fusion,
// and the buffer-embed pipeline that populates semantic rank's input.
type Engine struct {
	store    *store.Store
	hnsw     *store.HNSWIndex
	embedder embed.Embedder
	config   Config
	now      Clock
}

// New constructs an Engine. hnsw may be nil, in which case semantic
// rank always falls back to brute-force cosine over every stored
// embedding.
func New(s *store.Store, hnsw *store.HNSWIndex, embedder embed.Embedder, cfg Config, now Clock) *Engine {
	return &Engine{store: s, hnsw: hnsw, embedder: embedder, config: cfg, now: now}
}

// Search runs the configured ranking modes and fuses them with RRF.
// When only one mode is enabled, each result's RRFScore is that mode's
// raw score. An empty semantic result plus an empty lexical result
// yields an empty, non-error output.
func (e *Engine) Search(ctx context.Context, query string) ([]Result, error) {
	var lists [][]RankedItem

	if e.config.UseSemantic {
		semantic, err := e.semanticRank(ctx, query)
		if err != nil {
			return nil, err
		}
		lists = append(lists, semantic)
	}
	if e.config.UseBM25 {
		lexical, err := e.lexicalRank(ctx, query)
		if err != nil {
			return nil, err
		}
		if len(lists) == 0 {
			lists = append(lists, nil)
		}
		lists = append(lists, lexical)
	}

	fused := ReciprocalRankFusion(e.config.RRFK, lists...)
	if !(e.config.UseSemantic && e.config.UseBM25) {
		for i := range fused {
			if fused[i].Semantic != nil {
				fused[i].RRFScore = *fused[i].Semantic
			} else if fused[i].Lexical != nil {
				fused[i].RRFScore = *fused[i].Lexical
			}
		}
	}

	topN := e.config.TopK
	if topN <= 0 {
		topN = DefaultConfig().TopK
	}
	if len(fused) > topN {
		fused = fused[:topN]
	}

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		chunk, err := e.store.GetChunk(ctx, f.ID)
		if err != nil {
			continue // chunk no longer present; drop from output
		}
		results = append(results, Result{
			ChunkID:  f.ID,
			BufferID: chunk.BufferID,
			Index:    chunk.Index,
			Content:  chunk.Content,
			RRFScore: f.RRFScore,
			Semantic: f.Semantic,
			Lexical:  f.Lexical,
		})
	}
	return results, nil
}

// semanticRank embeds the query and scores every stored embedding by
// cosine similarity, preferring the HNSW accelerator when it is
// populated and dimension-compatible, else falling back to
// brute-force cosine over get_all_embeddings.
func (e *Engine) semanticRank(ctx context.Context, query string) ([]RankedItem, error) {
	if e.embedder == nil {
		return nil, nil
	}

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, rlmerr.IndexError("failed to embed query", err)
	}

	limit := 2 * e.config.TopK
	if limit <= 0 {
		limit = 2 * DefaultConfig().TopK
	}

	if e.hnsw != nil && e.hnsw.Len() > 0 {
		hits, err := e.hnsw.Search(ctx, vector, limit)
		if err == nil {
			items := make([]RankedItem, 0, len(hits))
			for _, h := range hits {
				if float64(h.Score) < e.config.SimilarityThreshold {
					continue
				}
				items = append(items, RankedItem{ID: h.ChunkID, Score: float64(h.Score)})
			}
			return items, nil
		}
	}

	embeddings, err := e.store.GetAllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]RankedItem, 0, len(embeddings))
	for _, emb := range embeddings {
		score := cosineSimilarity(vector, emb.Vector)
		if score < e.config.SimilarityThreshold {
			continue
		}
		items = append(items, RankedItem{ID: emb.ChunkID, Score: score})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// lexicalRank calls the store's BM25 search.
func (e *Engine) lexicalRank(ctx context.Context, query string) ([]RankedItem, error) {
	limit := 2 * e.config.TopK
	if limit <= 0 {
		limit = 2 * DefaultConfig().TopK
	}

	hits, err := e.store.SearchBM25(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	items := make([]RankedItem, 0, len(hits))
	for _, h := range hits {
		items = append(items, RankedItem{ID: h.ChunkID, Score: h.Score})
	}
	return items, nil
}

// EmbedBufferChunks embeds every chunk of a buffer in index order and
// stores the results. Before embedding, it compares the embedder's
// declared dimension with the one recorded in the metadata table: a
// mismatch against a non-empty prior record fails fast rather than
// silently mixing incompatible vectors in the same store, and a
// first-ever run records the dimension and the model name. The
// recorded model name is not compared.
func (e *Engine) EmbedBufferChunks(ctx context.Context, bufferID int64) (int, error) {
	if e.embedder == nil {
		return 0, rlmerr.FeatureNotEnabled("embedder")
	}

	if err := e.guardDimensions(ctx); err != nil {
		return 0, err
	}

	chunks, err := e.store.GetChunks(ctx, bufferID)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, rlmerr.IndexError("failed to embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return 0, rlmerr.IndexError("embedder returned mismatched batch size", nil)
	}

	now := e.now()
	for i, c := range chunks {
		if err := e.store.UpsertEmbedding(ctx, *c.ID, vectors[i], e.embedder.ModelName(), now); err != nil {
			return 0, err
		}
		if e.hnsw != nil {
			if err := e.hnsw.Add(ctx, *c.ID, vectors[i]); err != nil && !isFeatureNotEnabled(err) {
				return 0, err
			}
		}
	}

	return len(chunks), nil
}

// guardDimensions enforces the dimension mismatch invariant against
// the metadata table, stamping dimension and model name on first use.
func (e *Engine) guardDimensions(ctx context.Context) error {
	dimStr, exists, err := e.store.GetMetadata(ctx, metadataDimensionsKey)
	if err != nil {
		return err
	}
	if !exists || dimStr == "" {
		now := e.now()
		if err := e.store.SetMetadata(ctx, metadataDimensionsKey, fmt.Sprintf("%d", e.embedder.Dimensions()), now); err != nil {
			return err
		}
		return e.store.SetMetadata(ctx, metadataModelKey, e.embedder.ModelName(), now)
	}

	var recorded int
	_, _ = fmt.Sscanf(dimStr, "%d", &recorded)
	if recorded != e.embedder.Dimensions() {
		return rlmerr.DimensionMismatch(recorded, e.embedder.Dimensions())
	}
	return nil
}

// BufferFullyEmbedded reports whether buffer has an embedding for
// every one of its chunks.
func (e *Engine) BufferFullyEmbedded(ctx context.Context, bufferID int64) (bool, error) {
	return e.store.BufferFullyEmbedded(ctx, bufferID)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func isFeatureNotEnabled(err error) bool {
	e, ok := err.(*rlmerr.Error)
	return ok && e.Code == rlmerr.CodeFeatureNotEnabled
}
