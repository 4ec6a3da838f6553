package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// FeedProvider supplies the full product list for index construction.
type FeedProvider interface {
	Products(ctx context.Context) ([]Product, error)
}

// HTTPFeedProvider reads the supplier feed as a JSON array of products.
type HTTPFeedProvider struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPFeedProvider creates a provider reading from the given URL.
func NewHTTPFeedProvider(url string, logger zerolog.Logger) *HTTPFeedProvider {
	return &HTTPFeedProvider{
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Products fetches the current feed.
func (p *HTTPFeedProvider) Products(ctx context.Context) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch product feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product feed returned status %d", resp.StatusCode)
	}

	var products []Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode product feed: %w", err)
	}

	p.logger.Debug().Int("count", len(products)).Msg("product feed loaded")
	return products, nil
}

// StaticFeedProvider serves a fixed product list, used by the CLI demo
// mode and tests.
type StaticFeedProvider struct {
	products []Product
}

// NewStaticFeedProvider creates a provider over a fixed product list.
func NewStaticFeedProvider(products []Product) *StaticFeedProvider {
	return &StaticFeedProvider{products: products}
}

// Products returns the fixed list.
func (p *StaticFeedProvider) Products(ctx context.Context) ([]Product, error) {
	out := make([]Product, len(p.products))
	copy(out, p.products)
	return out, nil
}
