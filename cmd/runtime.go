package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adalundhe/scriptorium/agents/assistant"
	"github.com/adalundhe/scriptorium/agents/generator"
	"github.com/adalundhe/scriptorium/agents/reviewer"
	"github.com/adalundhe/scriptorium/core/agents"
	"github.com/adalundhe/scriptorium/core/config"
	"github.com/adalundhe/scriptorium/core/errors"
	"github.com/adalundhe/scriptorium/core/orchestrator"
	"github.com/adalundhe/scriptorium/core/providers"
	"github.com/adalundhe/scriptorium/core/retrieval"
	"github.com/adalundhe/scriptorium/core/session"
)

// runtime holds the assembled service components.
type runtime struct {
	coordinator *orchestrator.Coordinator
	store       *session.SQLiteStore
	search      *session.SearchIndex
	index       *retrieval.IndexStore
	logger      *slog.Logger
}

// buildRuntime wires the full stack from configuration.
func buildRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := session.NewSQLiteStore(
		filepath.Join(cfg.Storage.DataDir, "sessions.db"), logger)
	if err != nil {
		return nil, err
	}

	search, err := session.NewSearchIndex(
		filepath.Join(cfg.Storage.DataDir, "sessions.bleve"), logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		search.Close()
		store.Close()
		return nil, err
	}

	var (
		index  *retrieval.IndexStore
		ranker *retrieval.Ranker
	)
	if cfg.Retrieval.Enabled {
		embedder := retrieval.NewOpenAIEmbedder(cfg.Retrieval.EmbeddingAPIKey)
		index, err = retrieval.NewIndexStore(
			filepath.Join(cfg.Storage.DataDir, "knowledge.db"), embedder, logger)
		if err != nil {
			search.Close()
			store.Close()
			return nil, err
		}
		cache, err := retrieval.NewRankCache()
		if err != nil {
			index.Close()
			search.Close()
			store.Close()
			return nil, err
		}
		ranker = retrieval.NewRanker(index, embedder, cache)
	}

	registry := agents.NewRegistry(logger)
	registry.Register(assistant.New(assistant.Config{Model: cfg.Provider.Model}))
	registry.Register(reviewer.New(reviewer.Config{Model: cfg.Provider.Model}))
	registry.Register(generator.New(generator.Config{Model: cfg.Provider.Model}))

	budget := errors.RetryBudget{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		TimeoutRetries: cfg.Retry.TimeoutRetries,
		Backoff: errors.BackoffPolicy{
			InitialDelay:  cfg.Retry.InitialDelay,
			MaxDelay:      cfg.Retry.MaxDelay,
			Multiplier:    2.0,
			JitterPercent: 0.1,
		},
	}

	coordinator, err := orchestrator.NewCoordinator(
		store, search, ranker, index, registry, provider, orchestrator.Options{
			Retry:  &budget,
			Logger: logger,
		})
	if err != nil {
		if index != nil {
			index.Close()
		}
		search.Close()
		store.Close()
		return nil, err
	}

	return &runtime{
		coordinator: coordinator,
		store:       store,
		search:      search,
		index:       index,
		logger:      logger,
	}, nil
}

func buildProvider(cfg *config.Config, logger *slog.Logger) (providers.Invoker, error) {
	switch cfg.Provider.Name {
	case "anthropic":
		providerCfg := providers.DefaultAnthropicConfig()
		providerCfg.APIKey = cfg.Provider.APIKey
		if cfg.Provider.Model != "" {
			providerCfg.Model = cfg.Provider.Model
		}
		if cfg.Provider.MaxTokens > 0 {
			providerCfg.MaxTokens = cfg.Provider.MaxTokens
		}
		if cfg.Provider.Timeout > 0 {
			providerCfg.Timeout = cfg.Provider.Timeout
		}
		return providers.NewAnthropicProvider(providerCfg, logger)
	default:
		providerCfg := providers.DefaultOpenAIConfig()
		providerCfg.APIKey = cfg.Provider.APIKey
		if cfg.Provider.Model != "" {
			providerCfg.Model = cfg.Provider.Model
		}
		if cfg.Provider.MaxTokens > 0 {
			providerCfg.MaxTokens = cfg.Provider.MaxTokens
		}
		if cfg.Provider.Timeout > 0 {
			providerCfg.Timeout = cfg.Provider.Timeout
		}
		return providers.NewOpenAIProvider(providerCfg, logger)
	}
}

func (r *runtime) close() {
	if r.index != nil {
		r.index.Close()
	}
	if err := r.search.Close(); err != nil {
		r.logger.Warn("search index close failed", "error", err)
	}
	if err := r.store.Close(); err != nil {
		r.logger.Warn("session store close failed", "error", err)
	}
}
