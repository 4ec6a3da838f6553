// Package queue provides the bounded-concurrency priority queue guarding
// all outbound LLM calls. Admission is capped, start order is priority
// then FIFO, and transient provider errors are retried in place.
package queue

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull signals backpressure: the caller should surface a
	// service-unavailable condition, not a generic error.
	ErrQueueFull = errors.New("request queue is full")

	// ErrRequestTimeout is returned when a request's own timer fires,
	// whether the request was still queued or already running.
	ErrRequestTimeout = errors.New("request timed out in queue")
)

// Task is a unit of work producing a text result.
type Task func(ctx context.Context) (string, error)

// Options control a single enqueue.
type Options struct {
	Priority int
	Timeout  time.Duration
}

// Config holds queue tuning parameters.
type Config struct {
	MaxConcurrent  int
	MaxQueueSize   int
	DefaultTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

// DefaultConfig returns default queue parameters.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  10,
		MaxQueueSize:   100,
		DefaultTimeout: 60 * time.Second,
		RetryAttempts:  2,
		RetryDelay:     time.Second,
	}
}

// Stats is a snapshot of queue counters.
type Stats struct {
	QueueLength    int     `json:"queueLength"`
	ActiveRequests int     `json:"activeRequests"`
	TotalProcessed int64   `json:"totalProcessed"`
	TotalFailed    int64   `json:"totalFailed"`
	TotalTimeout   int64   `json:"totalTimeout"`
	AvgWaitMs      float64 `json:"avgWaitMs"`
	AvgProcessMs   float64 `json:"avgProcessMs"`
}

type outcome struct {
	result string
	err    error
}

type request struct {
	id         uuid.UUID
	task       Task
	priority   int
	seq        uint64
	enqueuedAt time.Time
	done       chan outcome
	cancel     context.CancelFunc
	ctx        context.Context
	abandoned  bool // set under Queue.mu when the caller stopped waiting
}

// Queue is a bounded-concurrency, priority-ordered task queue.
type Queue struct {
	mu      sync.Mutex
	pending []*request
	active  int
	seq     uint64
	cfg     Config
	logger  zerolog.Logger

	totalProcessed int64
	totalFailed    int64
	totalTimeout   int64
	avgWaitMs      float64
	avgProcessMs   float64
	samples        int64
}

// New creates a request queue.
func New(logger zerolog.Logger, cfg Config) *Queue {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	return &Queue{
		cfg:    cfg,
		logger: logger,
	}
}

// Enqueue admits a task and blocks until it settles, its timer fires, or
// the caller's context is done. Admission is rejected immediately with
// ErrQueueFull when the queue is at capacity.
func (q *Queue) Enqueue(ctx context.Context, task Task, opts Options) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = q.cfg.DefaultTimeout
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req := &request{
		id:         uuid.New(),
		task:       task,
		priority:   opts.Priority,
		enqueuedAt: time.Now(),
		done:       make(chan outcome, 1),
		cancel:     cancel,
		ctx:        reqCtx,
	}

	q.mu.Lock()
	if len(q.pending) >= q.cfg.MaxQueueSize {
		q.mu.Unlock()
		cancel()
		return "", ErrQueueFull
	}
	q.seq++
	req.seq = q.seq
	q.insertLocked(req)
	depth := len(q.pending)
	q.mu.Unlock()

	q.logger.Debug().
		Str("request_id", req.id.String()).
		Int("priority", opts.Priority).
		Int("queue_depth", depth).
		Msg("Request enqueued")

	q.dispatch()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-req.done:
		return out.result, out.err
	case <-timer.C:
		q.abandon(req, true)
		return "", ErrRequestTimeout
	case <-ctx.Done():
		q.abandon(req, false)
		return "", ctx.Err()
	}
}

// insertLocked keeps pending ordered by descending priority; equal
// priorities stay in insertion order.
func (q *Queue) insertLocked(req *request) {
	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].priority < req.priority
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = req
}

// abandon stops waiting for a request: a queued request is removed, a
// running one is cancelled and its eventual result discarded.
func (q *Queue) abandon(req *request, timedOut bool) {
	q.mu.Lock()
	req.abandoned = true
	removed := false
	for i, p := range q.pending {
		if p == req {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			removed = true
			break
		}
	}
	if timedOut {
		q.totalTimeout++
	}
	q.mu.Unlock()

	req.cancel()

	if timedOut {
		q.logger.Warn().
			Str("request_id", req.id.String()).
			Bool("was_queued", removed).
			Msg("Request timed out")
	}
}

// dispatch starts queued work while concurrency slots are available.
func (q *Queue) dispatch() {
	for {
		q.mu.Lock()
		if q.active >= q.cfg.MaxConcurrent || len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		req := q.pending[0]
		q.pending = q.pending[1:]
		q.active++
		q.mu.Unlock()

		go q.run(req)
	}
}

func (q *Queue) run(req *request) {
	waitMs := float64(time.Since(req.enqueuedAt).Milliseconds())
	start := time.Now()

	result, err := q.execute(req)

	processMs := float64(time.Since(start).Milliseconds())

	q.mu.Lock()
	q.active--
	if !req.abandoned {
		q.samples++
		q.avgWaitMs += (waitMs - q.avgWaitMs) / float64(q.samples)
		q.avgProcessMs += (processMs - q.avgProcessMs) / float64(q.samples)
		if err != nil {
			q.totalFailed++
		} else {
			q.totalProcessed++
		}
	}
	q.mu.Unlock()

	req.cancel()
	req.done <- outcome{result: result, err: err}

	q.dispatch()
}

// execute runs the task, retrying transient failures in place with a
// linearly increasing delay. Non-retryable errors fail fast.
func (q *Queue) execute(req *request) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= q.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := q.cfg.RetryDelay * time.Duration(attempt)
			q.logger.Debug().
				Str("request_id", req.id.String()).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying request")

			select {
			case <-req.ctx.Done():
				return "", req.ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := req.task(req.ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return "", err
		}
	}

	return "", lastErr
}

// retryableFragments is a deliberately narrow allow-list: anything not
// matching fails fast.
var retryableFragments = []string{"rate limit", "timeout", "econnreset", "503", "529"}

// IsRetryable reports whether an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// HasCapacity reports whether a new request would be admitted.
func (q *Queue) HasCapacity() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) < q.cfg.MaxQueueSize
}

// EstimatedWait predicts how long a newly admitted request would queue.
func (q *Queue) EstimatedWait() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	avg := q.avgProcessMs
	if q.samples == 0 {
		avg = 3000
	}
	batches := float64(len(q.pending)) / float64(q.cfg.MaxConcurrent)
	return time.Duration(batches*avg) * time.Millisecond
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		QueueLength:    len(q.pending),
		ActiveRequests: q.active,
		TotalProcessed: q.totalProcessed,
		TotalFailed:    q.totalFailed,
		TotalTimeout:   q.totalTimeout,
		AvgWaitMs:      q.avgWaitMs,
		AvgProcessMs:   q.avgProcessMs,
	}
}
