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
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRequestQueue_AcquireRelease(t *testing.T) {
	q := NewRequestQueue(RequestQueueConfig{
		MaxConcurrentRequests: 2,
		MaxQueueSize:          10,
	}, zaptest.NewLogger(t))

	release, err := q.Acquire(context.Background())
	require.NoError(t, err)

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.CurrentActive)
	assert.Equal(t, int64(0), stats.CurrentQueued)

	release()

	stats = q.Stats()
	assert.Equal(t, int64(0), stats.CurrentActive)
}

func TestRequestQueue_Defaults(t *testing.T) {
	q := NewRequestQueue(RequestQueueConfig{}, zaptest.NewLogger(t))

	stats := q.Stats()
	assert.Equal(t, DefaultMaxConcurrentRequests, stats.MaxConcurrent)
	assert.Equal(t, DefaultMaxQueueSize, stats.MaxQueueSize)
}

func TestRequestQueue_Full(t *testing.T) {
	q := NewRequestQueue(RequestQueueConfig{
		MaxConcurrentRequests: 1,
		MaxQueueSize:          1,
		RequestTimeout:        5 * time.Second,
	}, zaptest.NewLogger(t))

	// Take the only processing slot
	release, err := q.Acquire(context.Background())
	require.NoError(t, err)

	// Park a second caller in the only queue slot
	blocked := make(chan struct{})
	go func() {
		defer close(blocked)
		if r, err := q.Acquire(context.Background()); err == nil {
			r()
		}
	}()
	require.Eventually(t, func() bool {
		return q.Stats().CurrentQueued == 1
	}, time.Second, time.Millisecond)

	// A third caller is rejected outright
	_, err = q.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrQueueFull)

	release()
	<-blocked
}

func TestRequestQueue_Timeout(t *testing.T) {
	q := NewRequestQueue(RequestQueueConfig{
		MaxConcurrentRequests: 1,
		MaxQueueSize:          10,
		RequestTimeout:        20 * time.Millisecond,
	}, zaptest.NewLogger(t))

	release, err := q.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = q.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrRequestTimeout)

	// The timed-out wait leaves no residue in the counters
	stats := q.Stats()
	assert.Equal(t, int64(1), stats.CurrentActive)
	assert.Equal(t, int64(0), stats.CurrentQueued)
}

func TestRequestQueue_ContextCancelled(t *testing.T) {
	q := NewRequestQueue(RequestQueueConfig{
		MaxConcurrentRequests: 1,
		MaxQueueSize:          10,
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestQueue_ConcurrentCallers(t *testing.T) {
	q := NewRequestQueue(RequestQueueConfig{
		MaxConcurrentRequests: 4,
		MaxQueueSize:          100,
		RequestTimeout:        5 * time.Second,
	}, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := q.Acquire(context.Background())
			if err != nil {
				return
			}
			time.Sleep(time.Millisecond)
			release()
		}()
	}
	wg.Wait()

	stats := q.Stats()
	assert.Equal(t, int64(0), stats.CurrentActive)
	assert.Equal(t, int64(0), stats.CurrentQueued)
}

func TestWriteQueueFullResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteQueueFullResponse(w, 5*time.Second)

	assert.Equal(t, 503, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "at capacity")
}
