package embed

import (
	rlmcfg "github.com/rlmfs/rlm/internal/config"
	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// New builds the configured Embedder: static or http, wrapped in a
// query cache and retry backoff. Which concrete model sits behind the
// http provider is a collaborator's concern, not this engine's — only
// the provider and wire endpoint are selected here.
func New(cfg rlmcfg.EmbeddingsConfig) (Embedder, error) {
	var base Embedder

	switch cfg.Provider {
	case "static", "":
		base = NewStaticEmbedder()
	case "http":
		if cfg.Endpoint == "" {
			return nil, rlmerr.InvalidConfig("embeddings.endpoint is required when provider is http")
		}
		base = NewHTTPEmbedder(HTTPConfig{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
		})
	default:
		return nil, rlmerr.InvalidConfig("unknown embeddings.provider: " + cfg.Provider)
	}

	wrapped := NewRetryEmbedder(base, DefaultRetryConfig())
	return NewCachedEmbedder(wrapped, cfg.CacheSize), nil
}
