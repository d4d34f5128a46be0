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

package kb

import "github.com/prometheus/client_golang/prometheus"

var (
	lookupRequestOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsanalyzer",
			Subsystem: "linker",
			Name:      "kb_lookup_ops_total",
			Help:      "The total number of external knowledge base lookups.",
		},
		[]string{"source"},
	)

	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsanalyzer",
			Subsystem: "linker",
			Name:      "kb_lookup_duration_seconds",
			Help:      "Time taken to complete an external knowledge base lookup.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source", "outcome"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsanalyzer",
			Subsystem: "linker",
			Name:      "kb_cache_hits_total",
			Help:      "Total number of lookup cache hits.",
		},
		[]string{"source"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsanalyzer",
			Subsystem: "linker",
			Name:      "kb_cache_misses_total",
			Help:      "Total number of lookup cache misses.",
		},
		[]string{"source"},
	)

	rateLimitWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsanalyzer",
			Subsystem: "linker",
			Name:      "kb_rate_limit_wait_seconds",
			Help:      "Time spent waiting on the per-source rate limiter.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(lookupRequestOps)
	prometheus.MustRegister(lookupDuration)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
	prometheus.MustRegister(rateLimitWait)
}

// RecordLookupRequest increments the lookup counter for a source
func RecordLookupRequest(source string) {
	lookupRequestOps.WithLabelValues(source).Inc()
}

// RecordLookupDuration records how long an external lookup took
func RecordLookupDuration(source, outcome string, seconds float64) {
	lookupDuration.WithLabelValues(source, outcome).Observe(seconds)
}

// RecordCacheHit increments the cache hit counter for a source
func RecordCacheHit(source string) {
	cacheHits.WithLabelValues(source).Inc()
}

// RecordCacheMiss increments the cache miss counter for a source
func RecordCacheMiss(source string) {
	cacheMisses.WithLabelValues(source).Inc()
}

// RecordRateLimitWait records time spent waiting on a source's limiter
func RecordRateLimitWait(source string, seconds float64) {
	rateLimitWait.WithLabelValues(source).Observe(seconds)
}
