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

// Package dbpedia looks up entities through the DBpedia Lookup API and
// fetches per-resource JSON-LD records from the data endpoint.
package dbpedia

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
)

const (
	// DefaultEndpoint is the DBpedia Lookup API search endpoint.
	DefaultEndpoint = "https://lookup.dbpedia.org/api/search"

	// DefaultDataEndpoint serves per-resource JSON-LD records.
	DefaultDataEndpoint = "https://dbpedia.org/data"

	// DefaultMinInterval spaces requests to the public endpoints.
	DefaultMinInterval = 500 * time.Millisecond

	// searchLimit is how many raw hits a search works through before
	// confidence ranking trims the list.
	searchLimit = 10

	// resourceURIPrefix is the canonical URI namespace for resources.
	resourceURIPrefix = "http://dbpedia.org/resource/"

	// ontologyMarker identifies type URIs from the DBpedia ontology.
	ontologyMarker = "dbpedia.org/ontology/"
)

// typeClasses maps each entity type to the DBpedia ontology classes treated
// as a match for it. The first class doubles as the Lookup API type filter.
var typeClasses = map[entity.Type][]string{
	entity.TypePerson:        {"Person"},
	entity.TypeOrganization:  {"Organisation", "Company"},
	entity.TypeGovernmentOrg: {"GovernmentAgency", "Organisation"},
	entity.TypeLocation:      {"Place", "City", "Country", "PopulatedPlace"},
	entity.TypeEvent:         {"Event"},
}

// Client queries DBpedia. Search results and resource records are cached
// with a TTL, and all external calls go through a shared rate limiter.
type Client struct {
	endpoint      string
	dataEndpoint  string
	userAgent     string
	minInterval   time.Duration
	cacheTTL      time.Duration
	cacheCapacity uint64

	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *kb.SearchCache
	resources  *ttlcache.Cache[string, *ResourceInfo]
	logger     *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithEndpoint overrides the Lookup API endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSuffix(url, "/")
	}
}

// WithDataEndpoint overrides the JSON-LD data endpoint.
func WithDataEndpoint(url string) Option {
	return func(c *Client) {
		c.dataEndpoint = strings.TrimSuffix(url, "/")
	}
}

// WithUserAgent overrides the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMinInterval sets the spacing between external requests.
func WithMinInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.minInterval = interval
	}
}

// WithCacheTTL sets how long search results stay fresh.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithCacheCapacity bounds the number of cached results.
func WithCacheCapacity(capacity uint64) Option {
	return func(c *Client) {
		c.cacheCapacity = capacity
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a DBpedia client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:      DefaultEndpoint,
		dataEndpoint:  DefaultDataEndpoint,
		userAgent:     kb.DefaultUserAgent,
		minInterval:   DefaultMinInterval,
		cacheTTL:      kb.DefaultCacheTTL,
		cacheCapacity: kb.DefaultCacheCapacity,
		httpClient: &http.Client{
			Timeout: kb.DefaultTimeout,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.limiter = rate.NewLimiter(rate.Every(c.minInterval), 1)
	c.cache = kb.NewSearchCache(kb.SourceDBpedia, c.cacheTTL, c.cacheCapacity, c.logger)
	c.resources = ttlcache.New(
		ttlcache.WithTTL[string, *ResourceInfo](c.cacheTTL),
		ttlcache.WithCapacity[string, *ResourceInfo](c.cacheCapacity),
	)
	go c.resources.Start()

	return c
}

// Source names the knowledge base this client queries.
func (c *Client) Source() kb.Source {
	return kb.SourceDBpedia
}

// Close stops the caches.
func (c *Client) Close() {
	c.cache.Close()
	c.resources.Stop()
}

// CacheStats reports cache effectiveness counters.
func (c *Client) CacheStats() kb.CacheStats {
	return c.cache.Stats()
}

// Search resolves a query to at most kb.DefaultMaxCandidates candidates,
// consulting the cache first. A blank query is a defined terminal outcome
// carried on the result, not an error.
func (c *Client) Search(ctx context.Context, query string, entityType *entity.Type, bypassCache bool) (*kb.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return &kb.SearchResult{Query: query, Err: kb.ErrEmptyQuery}, nil
	}

	key := kb.CacheKey(kb.SourceDBpedia, entityType, query)
	return c.cache.Resolve(key, bypassCache, func() (*kb.SearchResult, error) {
		return c.searchRemote(ctx, query, entityType)
	})
}

func (c *Client) searchRemote(ctx context.Context, query string, entityType *entity.Type) (*kb.SearchResult, error) {
	c.logger.Info("Searching DBpedia",
		zap.String("query", query),
		zap.String("type", typeLabel(entityType)))

	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("maxResults", strconv.Itoa(searchLimit))
	params.Set("format", "json")
	if entityType != nil {
		if class := primaryClass(*entityType); class != "" {
			params.Set("type", class)
		}
	}

	kb.RecordLookupRequest(string(kb.SourceDBpedia))
	start := time.Now()

	var payload lookupResponse
	if err := c.getJSON(ctx, c.endpoint+"?"+params.Encode(), &payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		kb.RecordLookupDuration(string(kb.SourceDBpedia), "error", time.Since(start).Seconds())
		c.logger.Error("DBpedia lookup failed", zap.String("query", query), zap.Error(err))
		return &kb.SearchResult{Query: query}, nil
	}
	kb.RecordLookupDuration(string(kb.SourceDBpedia), "ok", time.Since(start).Seconds())

	candidates := collectCandidates(query, entityType, payload.Docs)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > kb.DefaultMaxCandidates {
		candidates = candidates[:kb.DefaultMaxCandidates]
	}

	c.logger.Info("DBpedia search complete",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)))

	return &kb.SearchResult{Query: query, Candidates: candidates}, nil
}

// collectCandidates parses Lookup API docs, scoring popularity against the
// best-referenced doc in the same response.
func collectCandidates(query string, entityType *entity.Type, docs []lookupDoc) []kb.Candidate {
	kept := make([]lookupDoc, 0, len(docs))
	maxRef := 1.0
	for _, doc := range docs {
		if first(doc.Resource) == "" || first(doc.Label) == "" {
			continue
		}
		if ref := doc.refCount(); ref > maxRef {
			maxRef = ref
		}
		kept = append(kept, doc)
	}

	typeMatch := entityType != nil

	candidates := make([]kb.Candidate, 0, len(kept))
	for _, doc := range kept {
		label := first(doc.Label)
		var types []string
		for _, t := range doc.Type {
			types = append(types, kb.URITail(t))
		}
		candidates = append(candidates, kb.Candidate{
			ID:          first(doc.Resource),
			Label:       label,
			Description: first(doc.Comment),
			Types:       types,
			Source:      kb.SourceDBpedia,
			Confidence:  confidence(query, label, doc.refCount(), maxRef, typeMatch),
		})
	}
	return candidates
}

// confidence scores one candidate against the query. Reference counts add a
// popularity bonus proportional to maxRef, so better-known resources rank
// ahead of obscure ones with similar labels.
func confidence(query, label string, refCount, maxRef float64, typeMatch bool) float64 {
	score := kb.MatchConfidence(query, label)

	if refCount > 0 {
		score += math.Min(refCount/maxRef, 1.0) * kb.PopularityBonusCap
	}
	if typeMatch {
		score += kb.TypeFilterBonus
	}
	return math.Min(1.0, score)
}

// ResourceInfo is the trimmed JSON-LD record for one resource.
type ResourceInfo struct {
	URI      string   `json:"uri"`
	Label    string   `json:"label,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Types    []string `json:"types,omitempty"`
}

// GetResource fetches the JSON-LD record for a resource by name and extracts
// its English label, English abstract, and ontology types. Names may use
// spaces or underscores. A resource the endpoint does not know yields a
// record with only the URI set.
func (c *Client) GetResource(ctx context.Context, name string) (*ResourceInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	name = strings.ReplaceAll(name, " ", "_")

	key := "resource:" + name
	if item := c.resources.Get(key); item != nil {
		return item.Value(), nil
	}

	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	kb.RecordLookupRequest(string(kb.SourceDBpedia))

	var payload map[string]map[string][]jsonldValue
	if err := c.getJSON(ctx, c.dataEndpoint+"/"+url.PathEscape(name)+".json", &payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("DBpedia resource fetch failed", zap.String("name", name), zap.Error(err))
		return nil, nil
	}

	uri := resourceURIPrefix + name
	info := &ResourceInfo{URI: uri}
	for predicate, values := range payload[uri] {
		switch {
		case strings.HasSuffix(predicate, "rdf-schema#label"):
			for _, v := range values {
				if v.Lang == "en" {
					info.Label = v.str()
					break
				}
			}
		case strings.HasSuffix(predicate, "/abstract"):
			for _, v := range values {
				if v.Lang == "en" {
					info.Abstract = v.str()
					break
				}
			}
		case strings.HasSuffix(predicate, "rdf-syntax-ns#type"):
			for _, v := range values {
				if t := v.str(); strings.Contains(t, ontologyMarker) {
					info.Types = append(info.Types, kb.URITail(t))
				}
			}
		}
	}

	c.resources.Set(key, info, ttlcache.DefaultTTL)
	return info, nil
}

// ResourceName converts a resource URI to the human-readable name encoded
// in its final path segment.
func ResourceName(uri string) string {
	return strings.ReplaceAll(kb.URITail(uri), "_", " ")
}

// primaryClass picks the ontology class sent as the Lookup API type filter.
func primaryClass(t entity.Type) string {
	classes := typeClasses[t]
	if len(classes) == 0 {
		return ""
	}
	return classes[0]
}

// waitTurn blocks until the limiter allows another external call.
func (c *Client) waitTurn(ctx context.Context) error {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	kb.RecordRateLimitWait(string(kb.SourceDBpedia), time.Since(start).Seconds())
	return nil
}

// getJSON performs a GET and decodes the JSON response body into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("querying dbpedia: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dbpedia returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// typeLabel renders an optional entity type for logging.
func typeLabel(t *entity.Type) string {
	if t == nil {
		return "any"
	}
	return t.String()
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

type lookupResponse struct {
	Docs []lookupDoc `json:"docs"`
}

// lookupDoc is one Lookup API hit. Every field arrives as an array.
type lookupDoc struct {
	Resource []string `json:"resource"`
	Label    []string `json:"label"`
	Comment  []string `json:"comment"`
	Type     []string `json:"type"`
	RefCount []any    `json:"refCount"`
}

// refCount coerces the first refCount element. Deployments serve it as a
// number or as a numeric string.
func (d lookupDoc) refCount() float64 {
	if len(d.RefCount) == 0 {
		return 0
	}
	switch v := d.RefCount[0].(type) {
	case float64:
		return v
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// jsonldValue is one object in a JSON-LD predicate list. Values are usually
// strings but can be numbers or booleans for datatype properties.
type jsonldValue struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
	Lang  string `json:"lang"`
}

func (v jsonldValue) str() string {
	s, _ := v.Value.(string)
	return s
}
