package vfs

import (
	"path/filepath"
	"strings"

	"github.com/rlmfs/rlm/internal/corpus"
	"github.com/rlmfs/rlm/internal/search"
)

// chunkMetaJSON is one element of chunks/{buffer_id}/metadata.json.
type chunkMetaJSON struct {
	ID          int64  `json:"id"`
	BufferID    int64  `json:"buffer_id"`
	Index       int    `json:"index"`
	ByteStart   int    `json:"byte_start"`
	ByteEnd     int    `json:"byte_end"`
	Strategy    string `json:"strategy"`
	TokenCount  *int   `json:"token_count,omitempty"`
	LineStart   *int   `json:"line_start,omitempty"`
	LineEnd     *int   `json:"line_end,omitempty"`
	HasOverlap  bool   `json:"has_overlap"`
	ContentHash string `json:"content_hash"`
}

func toChunkMetaJSON(c *corpus.Chunk) chunkMetaJSON {
	var id int64
	if c.ID != nil {
		id = *c.ID
	}
	return chunkMetaJSON{
		ID:          id,
		BufferID:    c.BufferID,
		Index:       c.Index,
		ByteStart:   c.ByteStart,
		ByteEnd:     c.ByteEnd,
		Strategy:    c.Strategy,
		TokenCount:  c.TokenCount,
		LineStart:   c.LineStart,
		LineEnd:     c.LineEnd,
		HasOverlap:  c.HasOverlap,
		ContentHash: c.ContentHash,
	}
}

// embeddingJSON is the shape of embeddings/{chunk_id}.json.
type embeddingJSON struct {
	ChunkID    int64     `json:"chunk_id"`
	Dimensions int       `json:"dimensions"`
	Vector     []float32 `json:"vector"`
}

func toEmbeddingJSON(e *corpus.Embedding) embeddingJSON {
	return embeddingJSON{ChunkID: e.ChunkID, Dimensions: len(e.Vector), Vector: e.Vector}
}

// statsJSON is the shape of stats.json.
type statsJSON struct {
	BufferCount   int64 `json:"buffer_count"`
	ChunkCount    int64 `json:"chunk_count"`
	TotalBytes    int64 `json:"total_bytes"`
	HasContext    bool  `json:"has_context"`
	SchemaVersion int   `json:"schema_version"`
	OnDiskBytes   int64 `json:"on_disk_bytes"`
}

func toStatsJSON(s *corpus.Stats) statsJSON {
	return statsJSON{
		BufferCount:   s.BufferCount,
		ChunkCount:    s.ChunkCount,
		TotalBytes:    s.TotalBytes,
		HasContext:    s.HasContext,
		SchemaVersion: s.SchemaVersion,
		OnDiskBytes:   s.OnDiskBytes,
	}
}

// resultJSON is one element of search/results.json.
type resultJSON struct {
	ChunkID  int64    `json:"chunk_id"`
	BufferID int64    `json:"buffer_id"`
	Index    int      `json:"index"`
	Content  string   `json:"content"`
	RRFScore float64  `json:"rrf_score"`
	Semantic *float64 `json:"semantic,omitempty"`
	Lexical  *float64 `json:"lexical,omitempty"`
}

func toResultsJSON(results []search.Result) []resultJSON {
	out := make([]resultJSON, len(results))
	for i, r := range results {
		out[i] = resultJSON{
			ChunkID:  r.ChunkID,
			BufferID: r.BufferID,
			Index:    r.Index,
			Content:  r.Content,
			RRFScore: r.RRFScore,
			Semantic: r.Semantic,
			Lexical:  r.Lexical,
		}
	}
	return out
}

// bufferExtension derives the filename extension for buffers/{id}.{ext}
// from the buffer's source path if present, else its content type, else
// a plain "txt" fallback.
func bufferExtension(b *corpus.Buffer) string {
	if b.SourcePath != "" {
		if ext := strings.TrimPrefix(filepath.Ext(b.SourcePath), "."); ext != "" {
			return ext
		}
	}
	switch b.ContentType {
	case "text/x-go":
		return "go"
	case "text/x-python":
		return "py"
	case "text/javascript":
		return "js"
	case "text/x-rust":
		return "rs"
	case "application/json":
		return "json"
	case "text/markdown":
		return "md"
	default:
		return "txt"
	}
}
