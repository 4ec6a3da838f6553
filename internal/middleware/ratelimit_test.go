package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floorservicemsk/dealerchat/internal/config"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(config.RateLimitConfig{Enabled: true, PerWindow: limit, Window: window})
	t.Cleanup(l.Close)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Check("dealer-1")
		assert.True(t, allowed, "attempt %d", i+1)
	}

	allowed, retryAfter := l.Check("dealer-1")
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, retryAfter)

	// Other clients are unaffected.
	allowed, _ = l.Check("dealer-2")
	assert.True(t, allowed)
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, now := newTestLimiter(t, 2, time.Minute)

	l.Check("dealer-1")
	*now = now.Add(30 * time.Second)
	l.Check("dealer-1")

	allowed, retryAfter := l.Check("dealer-1")
	require.False(t, allowed)
	assert.Equal(t, 30*time.Second, retryAfter)

	// The first attempt ages out, freeing one slot.
	*now = now.Add(31 * time.Second)
	allowed, _ = l.Check("dealer-1")
	assert.True(t, allowed)
}

func TestLimiter_SweepDropsIdleClients(t *testing.T) {
	l, now := newTestLimiter(t, 2, time.Minute)

	l.Check("dealer-1")
	l.Check("dealer-2")
	*now = now.Add(2 * time.Minute)
	l.Check("dealer-2")

	l.sweep()

	l.mu.Lock()
	_, hasIdle := l.windows["dealer-1"]
	_, hasActive := l.windows["dealer-2"]
	l.mu.Unlock()
	assert.False(t, hasIdle, "idle client is dropped")
	assert.True(t, hasActive, "active client is kept")
}

func TestSetRateHeaders(t *testing.T) {
	l, _ := newTestLimiter(t, 5, time.Minute)
	l.Check("dealer-1")
	l.Check("dealer-1")

	rec := httptest.NewRecorder()
	SetRateHeaders(rec, l, "dealer-1")
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))

	// nil limiter is a no-op
	rec = httptest.NewRecorder()
	SetRateHeaders(rec, nil, "dealer-1")
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://portal.example.ru"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.Header.Set("Origin", "https://portal.example.ru")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "https://portal.example.ru", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
		req.Header.Set("Origin", "https://portal.example.ru")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
