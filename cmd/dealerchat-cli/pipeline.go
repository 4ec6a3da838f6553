package main

import (
	"github.com/floorservicemsk/dealerchat/internal/cache"
	"github.com/floorservicemsk/dealerchat/internal/catalog"
	"github.com/floorservicemsk/dealerchat/internal/chat"
	"github.com/floorservicemsk/dealerchat/internal/knowledge"
	"github.com/floorservicemsk/dealerchat/internal/llm"
	"github.com/floorservicemsk/dealerchat/internal/queue"
	"github.com/floorservicemsk/dealerchat/internal/semcache"
)

// pipeline bundles a locally constructed chat stack.
type pipeline struct {
	orchestrator *chat.Orchestrator
	queue        *queue.Queue
	semCache     *semcache.Cache
	cacheClient  cache.Client
}

func (p *pipeline) close() {
	p.semCache.Close()
	_ = p.cacheClient.Close()
}

// newPipeline builds an in-process pipeline from the loaded config.
// In demo mode the providers serve built-in sample data.
func newPipeline() *pipeline {
	cacheClient := cache.NewMemoryClient(cfg.Cache.MaxEntries)
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

	var feed catalog.FeedProvider
	var kb knowledge.Provider
	switch {
	case demoMode:
		feed = catalog.NewStaticFeedProvider(demoProducts())
		kb = knowledge.NewStaticProvider(demoItems())
	default:
		if cfg.Catalog.FeedURL != "" {
			feed = catalog.NewHTTPFeedProvider(cfg.Catalog.FeedURL, logger)
		} else {
			feed = catalog.NewStaticFeedProvider(nil)
		}
		if cfg.Catalog.KnowledgeURL != "" {
			kb = knowledge.NewHTTPProvider(cfg.Catalog.KnowledgeURL, logger)
		} else {
			kb = knowledge.NewStaticProvider(nil)
		}
	}

	catalogSvc := catalog.NewService(feed, cacheClient, logger, cfg.Catalog.IndexTTL, cfg.Cache.ArticleTTL)

	completer := llm.NewClient(llm.Settings{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		HTTPTimeout: cfg.LLM.HTTPTimeout,
	}, logger)

	orchestrator := chat.New(logger, chat.Config{
		Models: chat.Models{
			Fast:     cfg.LLM.FastModel,
			Standard: cfg.LLM.StandardModel,
			Advanced: cfg.LLM.AdvancedModel,
		},
		RequestTimeout: cfg.Queue.RequestTimeout,
		StreamTimeout:  cfg.Queue.StreamTimeout,
	}, semCache, catalogSvc, kb, q, completer, nil, nil)

	return &pipeline{
		orchestrator: orchestrator,
		queue:        q,
		semCache:     semCache,
		cacheClient:  cacheClient,
	}
}

func demoProducts() []catalog.Product {
	price990 := 990.0
	price1450 := 1450.0
	return []catalog.Product{
		{
			ID:          "1",
			Name:        "Ламинат Дуб Классик",
			VendorCode:  "AB123",
			Price:       &price990,
			Description: "Ламинат 33 класса, дуб, 8 мм.",
			Params:      map[string]string{"класс": "33", "толщина": "8 мм"},
		},
		{
			ID:          "2",
			Name:        "Ламинат Дуб Классик широкий",
			VendorCode:  "AB123W",
			Price:       &price1450,
			Description: "Широкая доска, дуб, 10 мм.",
		},
		{
			ID:         "3",
			Name:       "Плинтус ПВХ Графит",
			VendorCode: "PL-220",
		},
	}
}

func demoItems() []knowledge.Item {
	return []knowledge.Item{
		{
			Title:       "Укладка ламината",
			Description: "Пошаговая инструкция по укладке ламината на стяжку и подложку.",
			Content:     "Перед укладкой выдержите ламинат в помещении 48 часов...",
			Type:        "статья",
		},
		{
			Title:       "Каталог продукции 2026",
			Description: "Полный каталог напольных покрытий.",
			Type:        "файл",
			FileURL:     "https://disk.yandex.ru/d/catalog-2026",
		},
		{
			Title:       "Логотипы для дилеров",
			Description: "Логотипы в PNG и SVG для оформления точек продаж.",
			Type:        "файл",
			FileURL:     "https://disk.yandex.ru/d/dealer-logos",
		},
	}
}
