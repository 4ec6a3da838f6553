// Package knowledge defines the knowledge-base item surface consumed by
// the chat orchestrator. Items are read-only snapshots; providers decide
// how to fetch and refresh them.
package knowledge

import (
	"context"
	"strings"
)

// Item is a single knowledge-base entry: an article, installation
// guide, file resource or product photo set.
type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	FileURL     string `json:"fileUrl"`
	ImageURL    string `json:"imageUrl"`
	ArticleCode string `json:"articleCode"`
}

// Provider supplies the current knowledge-base snapshot.
type Provider interface {
	Items(ctx context.Context) ([]Item, error)
}

// IsDownloadable reports whether the item points at a directly
// downloadable resource. The knowledge base stores files on Yandex
// Disk, so the heuristic is a disk link in either URL field.
func IsDownloadable(item Item) bool {
	return isDiskURL(item.FileURL) || isDiskURL(item.URL)
}

func isDiskURL(url string) bool {
	if url == "" {
		return false
	}
	lower := strings.ToLower(url)
	return strings.Contains(lower, "disk.yandex.") || strings.Contains(lower, "yadi.sk/")
}

// StaticProvider serves a fixed item list, used by the CLI demo mode
// and tests.
type StaticProvider struct {
	items []Item
}

// NewStaticProvider creates a provider over a fixed snapshot.
func NewStaticProvider(items []Item) *StaticProvider {
	return &StaticProvider{items: items}
}

// Items returns the snapshot.
func (p *StaticProvider) Items(ctx context.Context) ([]Item, error) {
	out := make([]Item, len(p.items))
	copy(out, p.items)
	return out, nil
}
