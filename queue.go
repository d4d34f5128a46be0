// Copyright 2025 NewsAnalyzer, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package newsanalyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Queue sizing defaults. Linking requests spend most of their time waiting
// on rate-limited upstream calls, so the queue tolerates a deep backlog.
const (
	DefaultMaxConcurrentRequests = 10
	DefaultMaxQueueSize          = 100
	DefaultQueueTimeout          = 30 * time.Second
)

var (
	// ErrQueueFull is returned when the wait queue has no room left.
	ErrQueueFull = errors.New("request queue is full")

	// ErrRequestTimeout is returned when a request waited too long for a slot.
	ErrRequestTimeout = errors.New("request timed out waiting in queue")
)

// RequestQueueConfig bounds concurrent link work. Zero values fall back to
// the package defaults.
type RequestQueueConfig struct {
	MaxConcurrentRequests int
	MaxQueueSize          int
	RequestTimeout        time.Duration
}

// QueueStats is a point-in-time snapshot of queue occupancy.
type QueueStats struct {
	CurrentActive int64 `json:"current_active"`
	CurrentQueued int64 `json:"current_queued"`
	MaxConcurrent int   `json:"max_concurrent"`
	MaxQueueSize  int   `json:"max_queue_size"`
}

// RequestQueue applies backpressure to the link endpoints: a semaphore caps
// in-flight requests, and a bounded wait queue rejects overflow outright
// instead of letting callers pile up.
type RequestQueue struct {
	sem           *semaphore.Weighted
	active        atomic.Int64
	queued        atomic.Int64
	maxConcurrent int
	maxQueueSize  int
	timeout       time.Duration
	logger        *zap.Logger
}

// NewRequestQueue creates a queue from config, filling in defaults for
// unset fields.
func NewRequestQueue(cfg RequestQueueConfig, logger *zap.Logger) *RequestQueue {
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultQueueTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("Request queue initialized",
		zap.Int("max_concurrent", cfg.MaxConcurrentRequests),
		zap.Int("max_queue_size", cfg.MaxQueueSize),
		zap.Duration("request_timeout", cfg.RequestTimeout))

	return &RequestQueue{
		sem:           semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		maxConcurrent: cfg.MaxConcurrentRequests,
		maxQueueSize:  cfg.MaxQueueSize,
		timeout:       cfg.RequestTimeout,
		logger:        logger,
	}
}

// Acquire blocks until a processing slot is free and returns a release
// function the caller must invoke when done. Returns ErrQueueFull when the
// wait queue is saturated, ErrRequestTimeout when the slot did not free up
// in time, or the context error when the caller went away.
func (q *RequestQueue) Acquire(ctx context.Context) (func(), error) {
	if q.queued.Load() >= int64(q.maxQueueSize) {
		q.logger.Warn("Rejecting request, queue full",
			zap.Int64("queued", q.queued.Load()),
			zap.Int("max_queue_size", q.maxQueueSize))
		return nil, ErrQueueFull
	}

	q.queued.Add(1)
	defer q.queued.Add(-1)

	waitCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	start := time.Now()
	if err := q.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		q.logger.Warn("Request timed out in queue", zap.Duration("waited", time.Since(start)))
		return nil, ErrRequestTimeout
	}
	RecordQueueWaitTime(time.Since(start).Seconds())

	q.active.Add(1)
	return func() {
		q.active.Add(-1)
		q.sem.Release(1)
	}, nil
}

// Stats returns current queue occupancy.
func (q *RequestQueue) Stats() QueueStats {
	return QueueStats{
		CurrentActive: q.active.Load(),
		CurrentQueued: q.queued.Load(),
		MaxConcurrent: q.maxConcurrent,
		MaxQueueSize:  q.maxQueueSize,
	}
}

// WriteQueueFullResponse writes a 503 with a Retry-After hint.
func WriteQueueFullResponse(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	http.Error(w, "server is at capacity, retry later", http.StatusServiceUnavailable)
}

// WriteTimeoutResponse writes a 503 for requests that timed out in queue.
func WriteTimeoutResponse(w http.ResponseWriter) {
	http.Error(w, "request timed out waiting for a processing slot", http.StatusServiceUnavailable)
}
