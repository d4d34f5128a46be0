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

// Package kb defines the uniform candidate shape and lookup contract shared
// by all knowledge base clients, plus the caching and scoring plumbing they
// have in common.
package kb

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
)

// Source identifies which knowledge base a candidate came from.
type Source string

const (
	SourceWikidata Source = "wikidata"
	SourceDBpedia  Source = "dbpedia"
)

const (
	// DefaultMaxCandidates bounds how many candidates a search returns.
	DefaultMaxCandidates = 5

	// DefaultTimeout is the per-request timeout for external lookups.
	DefaultTimeout = 10 * time.Second

	// DefaultCacheTTL is how long a stored search result stays fresh.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultCacheCapacity bounds the number of cached search results
	// per client before the oldest entries are evicted.
	DefaultCacheCapacity = 1000

	// DefaultUserAgent identifies outbound requests to the lookup services.
	DefaultUserAgent = "NewsAnalyzer/2.0 (https://newsanalyzer.org; contact@newsanalyzer.org)"

	// TypeFilterBonus is added to a candidate's provisional confidence
	// when the search was narrowed by a declared entity type.
	TypeFilterBonus = 0.1

	// AliasBonus is added when a candidate alias closely matches the query.
	AliasBonus = 0.1

	// PopularityBonusCap bounds the source-specific popularity bonus.
	PopularityBonusCap = 0.15
)

// ErrEmptyQuery marks the defined terminal outcome for blank queries. It is
// carried on the SearchResult, not returned from Search, and is never retried.
var ErrEmptyQuery = errors.New("empty query")

// Candidate is one possible external entity in the shared, source-agnostic
// shape. Candidates are immutable once parsed; disambiguation scores live on
// a separate wrapper.
type Candidate struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Types       []string `json:"types,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Source      Source   `json:"source"`
	Confidence  float64  `json:"confidence"`
}

// SearchResult is the outcome of one lookup. A transport failure yields zero
// candidates and a nil Err (soft-empty); Err is reserved for defined terminal
// outcomes such as an empty query.
type SearchResult struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
	FromCache  bool        `json:"from_cache"`
	Err        error       `json:"-"`
}

// Client is the lookup contract every knowledge base client implements.
type Client interface {
	// Search resolves a query to at most DefaultMaxCandidates candidates.
	// A non-nil error reports only unexpected failures (cancellation,
	// malformed responses); misses and transport errors are soft-empty.
	Search(ctx context.Context, query string, entityType *entity.Type, bypassCache bool) (*SearchResult, error)

	// Source names the knowledge base this client queries.
	Source() Source

	// Close releases the client's cache and background workers.
	Close()
}

// NormalizeQuery produces the canonical form a query is cached under.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// URITail returns the final path segment of a URI-form identifier, or the
// identifier unchanged when it has no path.
func URITail(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// CacheKey builds the cache key for a (source, type, query) triple. The
// declared type folds in as "any" when absent so typed and untyped searches
// never collide.
func CacheKey(source Source, entityType *entity.Type, query string) string {
	typePart := "any"
	if entityType != nil {
		typePart = entityType.String()
	}

	h := xxhash.New()
	_, _ = h.WriteString(string(source))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(typePart)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(NormalizeQuery(query))

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return string(buf[:])
}
