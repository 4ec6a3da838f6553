package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPProvider fetches the knowledge-base snapshot from the portal
// backend as a JSON array of items.
type HTTPProvider struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPProvider creates a provider reading from the given URL.
func NewHTTPProvider(url string, logger zerolog.Logger) *HTTPProvider {
	return &HTTPProvider{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Items fetches the current snapshot.
func (p *HTTPProvider) Items(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch knowledge base: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge base returned status %d", resp.StatusCode)
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}

	p.logger.Debug().Int("count", len(items)).Msg("knowledge base snapshot loaded")
	return items, nil
}
