package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/floorservicemsk/dealerchat/internal/cache"
)

// Service wraps feed access with snapshot caching and the article
// response cache. The index snapshot is refreshed on its own TTL; the
// feed is never watched for changes.
type Service struct {
	provider FeedProvider
	cache    cache.Client
	logger   zerolog.Logger

	indexTTL   time.Duration
	articleTTL time.Duration
}

// NewService creates a catalog service.
func NewService(provider FeedProvider, cacheClient cache.Client, logger zerolog.Logger, indexTTL, articleTTL time.Duration) *Service {
	if indexTTL <= 0 {
		indexTTL = 10 * time.Minute
	}
	if articleTTL <= 0 {
		articleTTL = time.Hour
	}
	return &Service{
		provider:   provider,
		cache:      cacheClient,
		logger:     logger,
		indexTTL:   indexTTL,
		articleTTL: articleTTL,
	}
}

// Index returns the current product index, rebuilding it from the feed
// when the cached snapshot has expired.
func (s *Service) Index(ctx context.Context) (Index, error) {
	key := cache.Key("catalog", "index")

	if data, err := s.cache.Get(ctx, key); err == nil {
		var products []Product
		if err := json.Unmarshal(data, &products); err == nil {
			return BuildIndex(products), nil
		}
		s.logger.Warn().Str("key", key).Msg("corrupt index snapshot, refetching")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Msg("index snapshot lookup failed")
	}

	products, err := s.provider.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load product feed: %w", err)
	}

	if data, err := json.Marshal(products); err == nil {
		if err := s.cache.Set(ctx, key, data, s.indexTTL); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache index snapshot")
		}
	}

	return BuildIndex(products), nil
}

// CachedArticle returns a previously stored article response for the
// code, or cache.ErrCacheMiss.
func (s *Service) CachedArticle(ctx context.Context, code string) ([]byte, error) {
	return s.cache.Get(ctx, articleKey(code))
}

// StoreArticle caches a fully assembled article response.
func (s *Service) StoreArticle(ctx context.Context, code string, payload []byte) error {
	return s.cache.Set(ctx, articleKey(code), payload, s.articleTTL)
}

func articleKey(code string) string {
	return cache.Key("article", strings.ToLower(code))
}
