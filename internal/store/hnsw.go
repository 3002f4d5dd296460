package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ChunkID  int64
	Distance float32
	Score    float32
}

// HNSWIndex is an optional approximate nearest-neighbor accelerator
// over chunk embeddings, backed by github.com/coder/hnsw. Its zero
// value is not usable; construct with NewHNSWIndex.
type HNSWIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	idMap   map[int64]uint64 // chunk id -> internal graph key
	keyMap  map[uint64]int64 // internal graph key -> chunk id
	nextKey uint64

	closed bool
}

// hnswMetadata is the gob-encoded sidecar persisted alongside the
// native graph export.
type hnswMetadata struct {
	IDMap      map[int64]uint64
	NextKey    uint64
	Dimensions int
}

// NewHNSWIndex constructs an index for vectors of the given
// dimension. A dimension of zero marks the accelerator unavailable:
// every operation then fails with FeatureNotEnabled so callers fall
// back to brute-force cosine search.
func NewHNSWIndex(dimensions int) *HNSWIndex {
	idx := &HNSWIndex{
		dimensions: dimensions,
		idMap:      make(map[int64]uint64),
		keyMap:     make(map[uint64]int64),
	}
	if dimensions <= 0 {
		return idx
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25
	idx.graph = graph
	return idx
}

func (h *HNSWIndex) available() bool {
	return h.graph != nil && !h.closed
}

// Add inserts or replaces the vector for chunkID. Re-adding an
// existing id orphans its old internal key instead of deleting it
// from the graph outright: coder/hnsw does not safely support
// deleting a graph's last live node, so the old entry is just dropped
// from the id/key maps and stays in the graph, where Search skips it
// (so Search can return fewer than k results).
func (h *HNSWIndex) Add(_ context.Context, chunkID int64, vector []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.available() {
		return rlmerr.FeatureNotEnabled("hnsw index")
	}
	if len(vector) != h.dimensions {
		return rlmerr.DimensionMismatch(h.dimensions, len(vector))
	}

	if existingKey, exists := h.idMap[chunkID]; exists {
		delete(h.keyMap, existingKey)
		delete(h.idMap, chunkID)
	}

	key := h.nextKey
	h.nextKey++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeVectorInPlace(vec)

	h.graph.Add(hnsw.MakeNode(key, vec))
	h.idMap[chunkID] = key
	h.keyMap[key] = chunkID
	return nil
}

// Remove drops chunkID from the index, reporting whether it existed.
func (h *HNSWIndex) Remove(_ context.Context, chunkID int64) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.available() {
		return false, rlmerr.FeatureNotEnabled("hnsw index")
	}

	key, exists := h.idMap[chunkID]
	if !exists {
		return false, nil
	}
	delete(h.keyMap, key)
	delete(h.idMap, chunkID)
	return true, nil
}

// Search returns up to k nearest neighbors to query, ascending by
// distance. An empty index returns an empty slice, not an error.
func (h *HNSWIndex) Search(_ context.Context, query []float32, k int) ([]VectorResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.available() {
		return nil, rlmerr.FeatureNotEnabled("hnsw index")
	}
	if len(query) != h.dimensions {
		return nil, rlmerr.DimensionMismatch(h.dimensions, len(query))
	}
	if h.graph.Len() == 0 {
		return []VectorResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeVectorInPlace(q)

	nodes := h.graph.Search(q, k)
	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		chunkID, exists := h.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := h.graph.Distance(q, node.Value)
		results = append(results, VectorResult{
			ChunkID:  chunkID,
			Distance: distance,
			Score:    1 - distance,
		})
	}
	return results, nil
}

// Len returns the number of live (non-orphaned) entries.
func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idMap)
}

// Clear resets the index and its id mappings.
func (h *HNSWIndex) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dimensions > 0 {
		graph := hnsw.NewGraph[uint64]()
		graph.Distance = hnsw.CosineDistance
		graph.M = 16
		graph.EfSearch = 64
		graph.Ml = 0.25
		h.graph = graph
	}
	h.idMap = make(map[int64]uint64)
	h.keyMap = make(map[uint64]int64)
	h.nextKey = 0
}

// Save persists the native graph and its id-mapping sidecar to path
// and path+".meta" respectively.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.available() {
		return rlmerr.FeatureNotEnabled("hnsw index")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return rlmerr.IndexError("failed to create index directory", err)
		}
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return rlmerr.IndexError("failed to create index file", err)
	}
	if err := h.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return rlmerr.IndexError("failed to export graph", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return rlmerr.IndexError("failed to close index file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return rlmerr.IndexError("failed to rename index file", err)
	}

	return h.saveMetadata(path + ".meta")
}

func (h *HNSWIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return rlmerr.IndexError("failed to create metadata file", err)
	}

	meta := hnswMetadata{IDMap: h.idMap, NextKey: h.nextKey, Dimensions: h.dimensions}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return rlmerr.IndexError("failed to encode metadata", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return rlmerr.IndexError("failed to close metadata file", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a previously Saved index.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var meta hnswMetadata
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return rlmerr.IndexError("failed to open metadata file", err)
	}
	defer metaFile.Close()
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return rlmerr.IndexError("failed to decode metadata", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return rlmerr.IndexError("failed to open index file", err)
	}
	defer file.Close()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return rlmerr.IndexError("failed to import graph", err)
	}

	h.graph = graph
	h.dimensions = meta.Dimensions
	h.idMap = meta.IDMap
	h.nextKey = meta.NextKey
	h.keyMap = make(map[uint64]int64, len(meta.IDMap))
	for id, key := range meta.IDMap {
		h.keyMap[key] = id
	}
	return nil
}

// Close marks the index unavailable.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
