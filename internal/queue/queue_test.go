package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/floorservicemsk/dealerchat/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() Config {
	return Config{
		MaxConcurrent:  1,
		MaxQueueSize:   2,
		DefaultTimeout: 5 * time.Second,
		RetryAttempts:  2,
		RetryDelay:     10 * time.Millisecond,
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestQueue_SimpleExecution(t *testing.T) {
	q := New(observability.Nop(), testConfig())

	result, err := q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
		return "ответ", nil
	}, Options{})

	require.NoError(t, err)
	assert.Equal(t, "ответ", result)

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.TotalProcessed)
	assert.Zero(t, stats.TotalFailed)
}

func TestQueue_RejectsWhenFull(t *testing.T) {
	q := New(observability.Nop(), testConfig())

	block := make(chan struct{})
	task := func(ctx context.Context) (string, error) {
		select {
		case <-block:
			return "done", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Enqueue(context.Background(), task, Options{})
		}()
	}

	// One running, two queued: the queue is at capacity.
	waitFor(t, func() bool {
		s := q.Stats()
		return s.ActiveRequests == 1 && s.QueueLength == 2
	})

	start := time.Now()
	_, err := q.Enqueue(context.Background(), task, Options{})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), time.Second, "rejection must not wait for running tasks")

	close(block)
	wg.Wait()
}

func TestQueue_PriorityStartOrder(t *testing.T) {
	q := New(observability.Nop(), testConfig())

	block := make(chan struct{})
	started := make(chan int, 3)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
			started <- 0
			<-block
			return "", nil
		}, Options{})
	}()

	waitFor(t, func() bool { return q.Stats().ActiveRequests == 1 })

	enqueue := func(priority int) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
				started <- priority
				return "", nil
			}, Options{Priority: priority})
		}()
	}

	enqueue(1)
	waitFor(t, func() bool { return q.Stats().QueueLength == 1 })
	enqueue(5)
	waitFor(t, func() bool { return q.Stats().QueueLength == 2 })

	close(block)
	wg.Wait()
	close(started)

	var order []int
	for p := range started {
		order = append(order, p)
	}
	require.Equal(t, []int{0, 5, 1}, order, "priority 5 must start before priority 1")
}

func TestQueue_RetriesRateLimit(t *testing.T) {
	q := New(observability.Nop(), testConfig())

	attempts := 0
	result, err := q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts <= 2 {
			return "", errors.New("rate limit exceeded")
		}
		return "успех", nil
	}, Options{})

	require.NoError(t, err)
	assert.Equal(t, "успех", result)
	assert.Equal(t, 3, attempts, "2 retries mean 3 total attempts")
}

func TestQueue_NonRetryableFailsFast(t *testing.T) {
	q := New(observability.Nop(), testConfig())

	attempts := 0
	_, err := q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("invalid api key")
	}, Options{})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, int64(1), q.Stats().TotalFailed)
}

func TestQueue_TimeoutWhileQueued(t *testing.T) {
	q := New(observability.Nop(), testConfig())

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
			<-block
			return "", nil
		}, Options{})
	}()

	waitFor(t, func() bool { return q.Stats().ActiveRequests == 1 })

	_, err := q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
		return "never", nil
	}, Options{Timeout: 30 * time.Millisecond})

	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, int64(1), q.Stats().TotalTimeout)
	assert.Zero(t, q.Stats().QueueLength, "timed out request must leave the queue")

	close(block)
	wg.Wait()
}

func TestQueue_TimeoutWhileRunning(t *testing.T) {
	q := New(observability.Nop(), testConfig())

	_, err := q.Enqueue(context.Background(), func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, Options{Timeout: 30 * time.Millisecond})

	assert.ErrorIs(t, err, ErrRequestTimeout)

	waitFor(t, func() bool { return q.Stats().ActiveRequests == 0 })
}

func TestQueue_IsRetryable(t *testing.T) {
	tests := []struct {
		msg       string
		retryable bool
	}{
		{"rate limit exceeded", true},
		{"request timeout", true},
		{"read tcp: econnreset", true},
		{"upstream returned 503", true},
		{"upstream returned 529", true},
		{"invalid api key", false},
		{"bad request", false},
	}

	for _, tc := range tests {
		t.Run(tc.msg, func(t *testing.T) {
			assert.Equal(t, tc.retryable, IsRetryable(errors.New(tc.msg)))
		})
	}
	assert.False(t, IsRetryable(nil))
}

func TestQueue_EstimatedWait(t *testing.T) {
	q := New(observability.Nop(), Config{MaxConcurrent: 2, MaxQueueSize: 10})

	// No samples yet: the default 3s average applies, empty queue means no wait.
	assert.Equal(t, time.Duration(0), q.EstimatedWait())
	assert.True(t, q.HasCapacity())
}
