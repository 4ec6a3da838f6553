package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorservicemsk/dealerchat/internal/chat"
	"github.com/floorservicemsk/dealerchat/internal/config"
	"github.com/floorservicemsk/dealerchat/internal/observability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:", MaxOpenConns: 1},
	}, observability.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_AppendAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendMessage(ctx, "s1", "user", "артикул AB123", nil))
	require.NoError(t, store.AppendMessage(ctx, "s1", "assistant", `{"type":"product_info"}`, []chat.Attachment{
		{Type: "image", URL: "https://cdn.example.ru/ab123.jpg", Name: "Ламинат Дуб"},
	}))
	require.NoError(t, store.AppendMessage(ctx, "s2", "user", "другая сессия", nil))

	messages, err := store.Messages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "артикул AB123", messages[0].Content)
	assert.Empty(t, messages[0].Attachments)
	assert.False(t, messages[0].CreatedAt.IsZero())

	assert.Equal(t, "assistant", messages[1].Role)
	require.Len(t, messages[1].Attachments, 1)
	assert.Equal(t, "image", messages[1].Attachments[0].Type)
}

func TestStore_EmptySession(t *testing.T) {
	store := newTestStore(t)

	messages, err := store.Messages(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, observability.Nop())
	assert.Error(t, err)
}
