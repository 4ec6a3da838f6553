package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_RoundTrip(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("value"), time.Minute))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("value"), -time.Second))

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_EvictsOldestBatch(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, c.Set(ctx, "fresh", []byte("v"), time.Minute))

	// 20% of 10 entries dropped, one added.
	assert.Equal(t, 9, c.Len())

	_, err := c.Get(ctx, "k0")
	assert.ErrorIs(t, err, ErrCacheMiss, "oldest entry should be evicted")

	_, err = c.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "article:ab12", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "article:cd34", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "index:feed", []byte("v"), time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, "article:"))

	_, err := c.Get(ctx, "article:ab12")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "index:feed")
	assert.NoError(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "article:resp:ab12", Key("article", "resp", "ab12"))
	assert.Equal(t, "solo", Key("solo"))
}
