// Package semcache provides a fuzzy-matching cache of question/answer pairs.
// Repeated or near-identical questions are answered without an LLM call.
package semcache

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is a cached answer with usage accounting.
type Entry struct {
	Question  string
	Response  string
	Tokens    int
	Timestamp time.Time
	HitCount  int
}

// Config holds cache tuning parameters.
type Config struct {
	MaxSize             int
	TTL                 time.Duration
	SimilarityThreshold float64
	SweepInterval       time.Duration
}

// DefaultConfig returns default cache parameters.
func DefaultConfig() Config {
	return Config{
		MaxSize:             1000,
		TTL:                 60 * time.Minute,
		SimilarityThreshold: 0.7,
		SweepInterval:       10 * time.Minute,
	}
}

// Cache is a capacity-bounded semantic response cache. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string // normalized keys in insertion order, the documented scan order
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time
	stop    chan struct{}
	stopped sync.Once
}

// New creates a semantic cache and starts its expiry sweeper.
func New(logger zerolog.Logger, cfg Config) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 60 * time.Minute
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.7
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}

	c := &Cache{
		entries: make(map[string]*Entry),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go c.sweepLoop()

	return c
}

// Close stops the background sweeper.
func (c *Cache) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

// SetClock replaces the cache's time source. Tests use this to age entries.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns a cached answer for a question that is identical or
// sufficiently similar to one answered before, or nil on a miss.
// The hit count of the returned entry is incremented.
func (c *Cache) Get(question string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Normalize(question)
	if key == "" {
		return nil
	}

	if entry, ok := c.entries[key]; ok && !c.expired(entry) {
		entry.HitCount++
		c.logger.Debug().Str("key", key).Msg("Semantic cache exact hit")
		return entry
	}

	queryWords := wordSet(key)
	queryTerms := keyTerms(key)

	var best *Entry
	bestScore := 0.0
	for _, k := range c.order {
		entry, ok := c.entries[k]
		if !ok || c.expired(entry) || k == key {
			continue
		}
		score := similarity(queryWords, queryTerms, k)
		if score > bestScore {
			bestScore = score
			best = entry
		}
	}

	if best != nil && bestScore >= c.cfg.SimilarityThreshold {
		best.HitCount++
		c.logger.Debug().
			Float64("score", bestScore).
			Str("matched", best.Question).
			Msg("Semantic cache fuzzy hit")
		return best
	}

	return nil
}

// Set stores an answer under the normalized question key. Only exact
// normalized keys collide; similar questions get their own entries.
func (c *Cache) Set(question, response string, tokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Normalize(question)
	if key == "" {
		return
	}

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.cfg.MaxSize {
			c.evictLocked()
		}
		c.order = append(c.order, key)
	}

	c.entries[key] = &Entry{
		Question:  question,
		Response:  response,
		Tokens:    tokens,
		Timestamp: c.now(),
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, entry := range c.entries {
		if !c.expired(entry) {
			n++
		}
	}
	return n
}

// evictLocked removes ~10% of entries, preferring old and rarely-hit ones.
// Freshness is hitCount*100 - age_seconds; lowest goes first.
func (c *Cache) evictLocked() {
	target := c.cfg.MaxSize / 10
	if target < 1 {
		target = 1
	}

	now := c.now()
	for i := 0; i < target; i++ {
		lowest := ""
		lowestScore := 0.0
		for k, entry := range c.entries {
			score := float64(entry.HitCount)*100 - now.Sub(entry.Timestamp).Seconds()
			if lowest == "" || score < lowestScore {
				lowest = k
				lowestScore = score
			}
		}
		if lowest == "" {
			return
		}
		c.removeLocked(lowest)
	}
}

func (c *Cache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Cache) expired(entry *Entry) bool {
	return c.now().Sub(entry.Timestamp) >= c.cfg.TTL
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if c.expired(entry) {
			c.removeLocked(key)
		}
	}
}

var (
	nonLetterRe = regexp.MustCompile(`[^a-zа-яё ]+`)
	spacesRe    = regexp.MustCompile(`\s+`)
)

// stopWords are excluded from key-term extraction.
var stopWords = map[string]struct{}{
	"как": {}, "что": {}, "где": {}, "это": {}, "для": {}, "или": {},
	"при": {}, "его": {}, "под": {}, "над": {}, "она": {}, "они": {},
	"the": {}, "and": {}, "for": {}, "you": {}, "can": {}, "how": {},
}

// Normalize lowercases, strips everything but Latin/Cyrillic letters and
// spaces, and collapses whitespace.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	letters := nonLetterRe.ReplaceAllString(lower, " ")
	return strings.TrimSpace(spacesRe.ReplaceAllString(letters, " "))
}

// similarity combines Jaccard word-set similarity (0.6) with key-term
// overlap ratio (0.4) against a normalized candidate key.
func similarity(queryWords map[string]struct{}, queryTerms map[string]struct{}, candidate string) float64 {
	candWords := wordSet(candidate)
	jaccard := jaccardIndex(queryWords, candWords)

	overlap := 0.0
	if len(queryTerms) > 0 {
		candTerms := keyTerms(candidate)
		common := 0
		for term := range queryTerms {
			if _, ok := candTerms[term]; ok {
				common++
			}
		}
		overlap = float64(common) / float64(len(queryTerms))
	}

	return 0.6*jaccard + 0.4*overlap
}

func jaccardIndex(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	common := 0
	for w := range a {
		if _, ok := b[w]; ok {
			common++
		}
	}
	union := len(a) + len(b) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

func wordSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}

// keyTerms are normalized words longer than 2 characters, stop words excluded.
func keyTerms(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
