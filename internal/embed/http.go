package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// HTTPConfig configures an HTTPEmbedder.
type HTTPConfig struct {
	Endpoint   string
	Model      string
	Dimensions int
	Timeout    time.Duration
	PoolSize   int
}

// HTTPEmbedder calls a collaborator HTTP embedding service (any
// endpoint speaking the {model, input: []string} -> {embeddings:
// [][]float32} contract). Which model sits behind it is out of scope
// for this engine; only the wire shape matters here.
type HTTPEmbedder struct {
	client *http.Client
	cfg    HTTPConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder constructs an embedder against cfg.Endpoint.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultHTTPDimensions
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &HTTPEmbedder{client: &http.Client{Transport: transport}, cfg: cfg}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch implements Embedder.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, rlmerr.FeatureNotEnabled("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, rlmerr.InvalidConfig("cannot embed empty text")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, rlmerr.Serialization("failed to encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, rlmerr.IndexError("failed to build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, rlmerr.IndexError("embed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, rlmerr.IndexError(fmt.Sprintf("embed endpoint returned %d: %s", resp.StatusCode, string(data)), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, rlmerr.Serialization("failed to decode embed response", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, rlmerr.IndexError("embed endpoint returned mismatched batch size", nil)
	}

	for _, v := range parsed.Embeddings {
		if len(v) != e.cfg.Dimensions {
			return nil, rlmerr.DimensionMismatch(e.cfg.Dimensions, len(v))
		}
	}

	return parsed.Embeddings, nil
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (e *HTTPEmbedder) Dimensions() int  { return e.cfg.Dimensions }
func (e *HTTPEmbedder) ModelName() string { return e.cfg.Model }

// Available reports whether the endpoint answers a HEAD request with a
// status below 500.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.cfg.Endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Close releases pooled connections.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
