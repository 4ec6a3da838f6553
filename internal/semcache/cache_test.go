package semcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorservicemsk/dealerchat/internal/observability"
)

func newTestCache(t *testing.T, cfg Config) *Cache {
	t.Helper()
	c := New(observability.Nop(), cfg)
	t.Cleanup(c.Close)
	return c
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Как уложить ламинат?", "как уложить ламинат"},
		{"  Цена   на  AB-123!! ", "цена на ab"},
		{"Hello, WORLD", "hello world"},
		{"???", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestCache_ExactRoundTrip(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("Как уложить ламинат?", "Инструкция по укладке", 120)

	entry := c.Get("как уложить ламинат")
	require.NotNil(t, entry)
	assert.Equal(t, "Инструкция по укладке", entry.Response)
	assert.GreaterOrEqual(t, entry.HitCount, 1)
}

func TestCache_FuzzyHit(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("как уложить ламинат на бетонный пол", "ответ про укладку", 80)

	entry := c.Get("как уложить ламинат на бетонный пол быстро")
	require.NotNil(t, entry)
	assert.Equal(t, "ответ про укладку", entry.Response)
}

func TestCache_UnrelatedMiss(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Set("как уложить ламинат", "ответ про укладку", 80)

	assert.Nil(t, c.Get("доставка в регионы"))
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t, Config{TTL: time.Hour})

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Set("сколько сохнет клей", "около суток", 50)
	require.NotNil(t, c.Get("сколько сохнет клей"))

	// Age the entry past the TTL.
	c.SetClock(func() time.Time { return now.Add(2 * time.Hour) })
	assert.Nil(t, c.Get("сколько сохнет клей"))

	// An expired entry does not block a fresh one under the same key.
	c.Set("сколько сохнет клей", "новый ответ", 50)
	entry := c.Get("сколько сохнет клей")
	require.NotNil(t, entry)
	assert.Equal(t, "новый ответ", entry.Response)
}

func TestCache_EvictsOldRarelyHit(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 10, TTL: 24 * time.Hour})

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	topics := []string{
		"паркет", "линолеум", "плинтус", "подложка", "клей",
		"лак", "затирка", "кварцвинил", "пробка", "ковролин",
	}
	for _, topic := range topics {
		c.Set(fmt.Sprintf("есть ли скидка на %s", topic), "ответ", 10)
	}

	// Keep the first entry hot.
	require.NotNil(t, c.Get("есть ли скидка на паркет"))

	c.SetClock(func() time.Time { return now.Add(time.Minute) })
	c.Set("какой режим работы склада зимой", "свежий ответ", 10)

	assert.NotNil(t, c.Get("есть ли скидка на паркет"), "hot entry should survive eviction")
	assert.NotNil(t, c.Get("какой режим работы склада зимой"))
	assert.LessOrEqual(t, c.Len(), 10)
}
