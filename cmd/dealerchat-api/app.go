// Package main wires the chat pipeline's components together.
package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/floorservicemsk/dealerchat/internal/cache"
	"github.com/floorservicemsk/dealerchat/internal/catalog"
	"github.com/floorservicemsk/dealerchat/internal/chat"
	"github.com/floorservicemsk/dealerchat/internal/config"
	"github.com/floorservicemsk/dealerchat/internal/history"
	"github.com/floorservicemsk/dealerchat/internal/knowledge"
	"github.com/floorservicemsk/dealerchat/internal/llm"
	"github.com/floorservicemsk/dealerchat/internal/middleware"
	"github.com/floorservicemsk/dealerchat/internal/queue"
	"github.com/floorservicemsk/dealerchat/internal/semcache"
)

// App holds the long-lived components behind the HTTP surface.
type App struct {
	Orchestrator *chat.Orchestrator
	Queue        *queue.Queue
	Limiter      *middleware.Limiter

	semCache    *semcache.Cache
	cacheClient cache.Client
	store       *history.Store
}

func newApp(logger zerolog.Logger, cfg *config.Config) (*App, error) {
	var (
		cacheClient cache.Client
		err         error
	)
	switch cfg.Cache.Driver {
	case "redis":
		cacheClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	default:
		cacheClient = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	}

	store, err := history.Open(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	semCache := semcache.New(logger, semcache.Config{
		MaxSize:             cfg.SemanticCache.MaxSize,
		TTL:                 cfg.SemanticCache.TTL,
		SimilarityThreshold: cfg.SemanticCache.SimilarityThreshold,
	})

	q := queue.New(logger, queue.Config{
		MaxConcurrent:  cfg.Queue.MaxConcurrent,
		MaxQueueSize:   cfg.Queue.MaxQueueSize,
		DefaultTimeout: cfg.Queue.RequestTimeout,
		RetryAttempts:  cfg.Queue.RetryAttempts,
		RetryDelay:     cfg.Queue.RetryDelay,
	})

	completer := llm.NewClient(llm.Settings{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		HTTPTimeout: cfg.LLM.HTTPTimeout,
	}, logger)

	var feed catalog.FeedProvider
	if cfg.Catalog.FeedURL != "" {
		feed = catalog.NewHTTPFeedProvider(cfg.Catalog.FeedURL, logger)
	} else {
		logger.Warn().Msg("PRODUCT_FEED_URL not set, catalog is empty")
		feed = catalog.NewStaticFeedProvider(nil)
	}
	catalogSvc := catalog.NewService(feed, cacheClient, logger, cfg.Catalog.IndexTTL, cfg.Cache.ArticleTTL)

	var kb knowledge.Provider
	if cfg.Catalog.KnowledgeURL != "" {
		kb = knowledge.NewHTTPProvider(cfg.Catalog.KnowledgeURL, logger)
	} else {
		logger.Warn().Msg("KNOWLEDGE_BASE_URL not set, knowledge base is empty")
		kb = knowledge.NewStaticProvider(nil)
	}

	var limiter *middleware.Limiter
	var orchestratorLimiter chat.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewLimiter(cfg.RateLimit)
		orchestratorLimiter = limiter
	}

	orchestrator := chat.New(logger, chat.Config{
		Models: chat.Models{
			Fast:     cfg.LLM.FastModel,
			Standard: cfg.LLM.StandardModel,
			Advanced: cfg.LLM.AdvancedModel,
		},
		RequestTimeout: cfg.Queue.RequestTimeout,
		StreamTimeout:  cfg.Queue.StreamTimeout,
		SimilarLimit:   cfg.Catalog.SimilarLimit,
	}, semCache, catalogSvc, kb, q, completer, orchestratorLimiter, store)

	return &App{
		Orchestrator: orchestrator,
		Queue:        q,
		Limiter:      limiter,
		semCache:     semCache,
		cacheClient:  cacheClient,
		store:        store,
	}, nil
}

// Close releases background goroutines and connections.
func (a *App) Close() {
	a.semCache.Close()
	if a.Limiter != nil {
		a.Limiter.Close()
	}
	if err := a.cacheClient.Close(); err != nil {
		// nothing useful to do at shutdown
		_ = err
	}
	_ = a.store.Close()
}
