package model

import (
	"context"
	"fmt"
	"time"

	"nutriplan/config"
	"nutriplan/logger"
	"nutriplan/types"
)

const queryCacheTTL = 24 * time.Hour

// OpenEmbedder builds the configured embedder, wrapped in a Redis query cache
// when REDIS_ADDR is set. The returned close func is never nil.
func OpenEmbedder(ctx context.Context, cfg config.Config, log *logger.Logger) (Embedder, func() error, error) {
	log = logger.OrNop(log)
	noop := func() error { return nil }

	var (
		emb Embedder
		err error
	)
	switch cfg.EmbeddingProvider {
	case "openai":
		emb, err = NewOpenAIEmbedder(OpenAIConfig{APIKey: cfg.OpenAIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.EmbeddingModel})
	case "ollama":
		emb = NewOllamaEmbedder(cfg.OllamaEmbedURL, cfg.OllamaEmbedModel)
	case "hash":
		emb = NewHashEmbedder(cfg.EmbeddingDim)
	default:
		err = fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
	if err != nil {
		return nil, noop, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}

	if cfg.RedisAddr == "" {
		return emb, noop, nil
	}
	cache, err := NewRedisCache(ctx, cfg.RedisAddr, queryCacheTTL)
	if err != nil {
		log.Warn("[EMBEDDER] redis unavailable, query cache disabled", "addr", cfg.RedisAddr, "error", err)
		return emb, noop, nil
	}
	log.Info("[EMBEDDER] query cache enabled", "addr", cfg.RedisAddr)
	namespace := cfg.EmbeddingProvider + ":" + cfg.EmbeddingModel
	return NewCachedEmbedder(emb, cache, namespace, log), cache.Close, nil
}

// OpenCompleter builds the configured chat model.
func OpenCompleter(cfg config.Config) (Completer, error) {
	switch cfg.LLMProvider {
	case "openai":
		c, err := NewOpenAICompleter(OpenAIConfig{APIKey: cfg.OpenAIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.LLMModel})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		return c, nil
	case "ollama":
		return NewOllamaCompleter(cfg.LLMURL, cfg.LLMModel), nil
	}
	return nil, fmt.Errorf("%w: unknown llm provider %q", types.ErrConfiguration, cfg.LLMProvider)
}
