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

// Package wikidata looks up entities through the Wikidata Action API, with
// a SPARQL label query against the Query Service as fallback.
package wikidata

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
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
)

const (
	// DefaultEndpoint is the Wikidata Action API endpoint.
	DefaultEndpoint = "https://www.wikidata.org/w/api.php"

	// DefaultSPARQLEndpoint is the Wikidata Query Service endpoint.
	DefaultSPARQLEndpoint = "https://query.wikidata.org/sparql"

	// DefaultMinInterval spaces requests to the public endpoints.
	DefaultMinInterval = time.Second

	// rateLimitBackoff is how long to wait before the single retry after
	// the Query Service answers 429.
	rateLimitBackoff = 5 * time.Second

	// searchLimit is how many raw hits a search works through before
	// confidence ranking trims the list.
	searchLimit = 10

	// entityURLPrefix is the canonical page URL for an item.
	entityURLPrefix = "https://www.wikidata.org/wiki/"
)

// typeQIDs maps each entity type to the instance-of (P31) classes accepted
// for it. The Action API search cannot filter on these server-side; the
// SPARQL fallback can.
var typeQIDs = map[entity.Type][]string{
	entity.TypePerson:        {"Q5"},
	entity.TypeOrganization:  {"Q43229", "Q4830453"},
	entity.TypeGovernmentOrg: {"Q327333", "Q43229", "Q7210356"},
	entity.TypeLocation:      {"Q515", "Q6256", "Q82794", "Q35657"},
	entity.TypeEvent:         {"Q1190554", "Q1656682"},
}

// Client queries Wikidata. Search results and entity details are cached
// with a TTL, and all external calls go through a shared rate limiter.
type Client struct {
	endpoint       string
	sparqlEndpoint string
	userAgent      string
	minInterval    time.Duration
	backoff        time.Duration
	cacheTTL       time.Duration
	cacheCapacity  uint64

	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *kb.SearchCache
	details    *ttlcache.Cache[string, *EntityDetails]
	logger     *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithEndpoint overrides the Action API endpoint.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSuffix(url, "/")
	}
}

// WithSPARQLEndpoint overrides the Query Service endpoint.
func WithSPARQLEndpoint(url string) Option {
	return func(c *Client) {
		c.sparqlEndpoint = strings.TrimSuffix(url, "/")
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

// NewClient creates a Wikidata client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:       DefaultEndpoint,
		sparqlEndpoint: DefaultSPARQLEndpoint,
		userAgent:      kb.DefaultUserAgent,
		minInterval:    DefaultMinInterval,
		backoff:        rateLimitBackoff,
		cacheTTL:       kb.DefaultCacheTTL,
		cacheCapacity:  kb.DefaultCacheCapacity,
		httpClient: &http.Client{
			Timeout: kb.DefaultTimeout,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.limiter = rate.NewLimiter(rate.Every(c.minInterval), 1)
	c.cache = kb.NewSearchCache(kb.SourceWikidata, c.cacheTTL, c.cacheCapacity, c.logger)
	c.details = ttlcache.New(
		ttlcache.WithTTL[string, *EntityDetails](c.cacheTTL),
		ttlcache.WithCapacity[string, *EntityDetails](c.cacheCapacity),
	)
	go c.details.Start()

	return c
}

// Source names the knowledge base this client queries.
func (c *Client) Source() kb.Source {
	return kb.SourceWikidata
}

// Close stops the caches.
func (c *Client) Close() {
	c.cache.Close()
	c.details.Stop()
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

	key := kb.CacheKey(kb.SourceWikidata, entityType, query)
	return c.cache.Resolve(key, bypassCache, func() (*kb.SearchResult, error) {
		return c.searchRemote(ctx, query, entityType)
	})
}

func (c *Client) searchRemote(ctx context.Context, query string, entityType *entity.Type) (*kb.SearchResult, error) {
	c.logger.Info("Searching Wikidata",
		zap.String("query", query),
		zap.String("type", typeLabel(entityType)))

	candidates, err := c.searchEntities(ctx, query, entityType)
	if err != nil {
		return nil, err
	}

	// The Action API search cannot filter by type and occasionally comes
	// back empty for well-known labels. Fall back to an exact label query.
	if len(candidates) == 0 {
		candidates, err = c.searchSPARQL(ctx, query, entityType)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > kb.DefaultMaxCandidates {
		candidates = candidates[:kb.DefaultMaxCandidates]
	}

	c.logger.Info("Wikidata search complete",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)))

	return &kb.SearchResult{Query: query, Candidates: candidates}, nil
}

// searchEntities queries the wbsearchentities Action API. Misses and
// transport failures yield a nil slice; only cancellation is an error.
func (c *Client) searchEntities(ctx context.Context, query string, entityType *entity.Type) ([]kb.Candidate, error) {
	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", query)
	params.Set("language", "en")
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(searchLimit*2))
	params.Set("type", "item")

	kb.RecordLookupRequest(string(kb.SourceWikidata))
	start := time.Now()

	var payload searchEntitiesResponse
	if err := c.getJSON(ctx, c.endpoint+"?"+params.Encode(), "application/json", &payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		kb.RecordLookupDuration(string(kb.SourceWikidata), "error", time.Since(start).Seconds())
		c.logger.Error("Wikidata API search failed", zap.String("query", query), zap.Error(err))
		return nil, nil
	}
	kb.RecordLookupDuration(string(kb.SourceWikidata), "ok", time.Since(start).Seconds())

	// The API cannot apply the type filter, so typed searches get no type
	// bonus on this path.
	typeMatch := entityType == nil

	candidates := make([]kb.Candidate, 0, len(payload.Search))
	for _, match := range payload.Search {
		if match.ID == "" || match.Label == "" {
			continue
		}
		candidates = append(candidates, kb.Candidate{
			ID:          match.ID,
			Label:       match.Label,
			Description: match.Description,
			Aliases:     match.Aliases,
			Source:      kb.SourceWikidata,
			Confidence:  confidence(query, match.Label, match.Aliases, typeMatch),
		})
	}
	return candidates, nil
}

// searchSPARQL runs the fallback label query against the Query Service.
func (c *Client) searchSPARQL(ctx context.Context, query string, entityType *entity.Type) ([]kb.Candidate, error) {
	payload, err := c.executeSPARQL(ctx, buildLabelQuery(query, entityType))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("Wikidata SPARQL fallback failed", zap.String("query", query), zap.Error(err))
		return nil, nil
	}

	// The SPARQL query did filter by type, so surviving candidates earn
	// the type bonus.
	typeMatch := entityType != nil

	var candidates []kb.Candidate
	for _, binding := range payload.Results.Bindings {
		qid := kb.URITail(binding.Item.Value)
		label := binding.ItemLabel.Value
		if qid == "" || label == "" || !strings.HasPrefix(qid, "Q") {
			continue
		}
		candidates = append(candidates, kb.Candidate{
			ID:          qid,
			Label:       label,
			Description: binding.ItemDescription.Value,
			Source:      kb.SourceWikidata,
			Confidence:  confidence(query, label, nil, typeMatch),
		})
	}
	return candidates, nil
}

// executeSPARQL runs one query, retrying once after a cool-down when the
// endpoint answers 429.
func (c *Client) executeSPARQL(ctx context.Context, query string) (*sparqlResponse, error) {
	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	kb.RecordLookupRequest(string(kb.SourceWikidata))
	start := time.Now()

	resp, err := c.doSPARQL(ctx, query)
	if err != nil {
		kb.RecordLookupDuration(string(kb.SourceWikidata), "error", time.Since(start).Seconds())
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		c.logger.Warn("Wikidata rate limit hit, backing off",
			zap.Duration("backoff", c.backoff))
		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := c.waitTurn(ctx); err != nil {
			return nil, err
		}
		resp, err = c.doSPARQL(ctx, query)
		if err != nil {
			kb.RecordLookupDuration(string(kb.SourceWikidata), "error", time.Since(start).Seconds())
			return nil, err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		kb.RecordLookupDuration(string(kb.SourceWikidata), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("query service returned status %d", resp.StatusCode)
	}

	var payload sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		kb.RecordLookupDuration(string(kb.SourceWikidata), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("parsing sparql response: %w", err)
	}
	kb.RecordLookupDuration(string(kb.SourceWikidata), "ok", time.Since(start).Seconds())
	return &payload, nil
}

func (c *Client) doSPARQL(ctx context.Context, query string) (*http.Response, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sparqlEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying wikidata: %w", err)
	}
	return resp, nil
}

// buildLabelQuery renders the fallback query. It only matches exact English
// labels, optionally constrained to the accepted instance-of classes.
func buildLabelQuery(term string, entityType *entity.Type) string {
	escaped := strings.ReplaceAll(term, `"`, `\"`)

	var typeFilter string
	if entityType != nil {
		if qids, ok := typeQIDs[*entityType]; ok {
			values := make([]string, len(qids))
			for i, qid := range qids {
				values[i] = "wd:" + qid
			}
			typeFilter = fmt.Sprintf("VALUES ?typeFilter { %s }\n  ?item wdt:P31/wdt:P279* ?typeFilter .\n",
				strings.Join(values, " "))
		}
	}

	return fmt.Sprintf(`SELECT DISTINCT ?item ?itemLabel ?itemDescription WHERE {
  ?item rdfs:label "%s"@en .
  %sSERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
LIMIT %d`, escaped, typeFilter, searchLimit)
}

// confidence scores one candidate against the query. A near-exact alias and
// a type-filtered search each add a small bonus on top of the label blend.
func confidence(query, label string, aliases []string, typeMatch bool) float64 {
	score := kb.MatchConfidence(query, label)

	aliasBonus := 0.0
	q := kb.NormalizeQuery(query)
	for _, alias := range aliases {
		if float64(fuzzy.Ratio(q, strings.ToLower(alias)))/100.0 > 0.9 {
			aliasBonus = kb.AliasBonus
			break
		}
	}

	typeBonus := 0.0
	if typeMatch {
		typeBonus = kb.TypeFilterBonus
	}

	return math.Min(1.0, score+aliasBonus+typeBonus)
}

// EntityDetails is the trimmed wbgetentities record for one item.
type EntityDetails struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	InstanceOf  []string `json:"instance_of,omitempty"`
	URL         string   `json:"url"`
}

// GetEntity fetches one item's English label, description, aliases, and
// instance-of classes. Identifiers that are not QIDs, and items the API
// does not know, yield nil without error.
func (c *Client) GetEntity(ctx context.Context, qid string) (*EntityDetails, error) {
	if qid == "" || !strings.HasPrefix(qid, "Q") {
		return nil, nil
	}

	key := "entity:" + qid
	if item := c.details.Get(key); item != nil {
		return item.Value(), nil
	}

	if err := c.waitTurn(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", qid)
	params.Set("languages", "en")
	params.Set("format", "json")

	kb.RecordLookupRequest(string(kb.SourceWikidata))

	var payload getEntitiesResponse
	if err := c.getJSON(ctx, c.endpoint+"?"+params.Encode(), "application/json", &payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("Wikidata entity fetch failed", zap.String("qid", qid), zap.Error(err))
		return nil, nil
	}

	raw, ok := payload.Entities[qid]
	if !ok {
		return nil, nil
	}

	details := &EntityDetails{
		ID:          qid,
		Label:       raw.Labels["en"].Value,
		Description: raw.Descriptions["en"].Value,
		URL:         entityURLPrefix + qid,
	}
	for _, alias := range raw.Aliases["en"] {
		details.Aliases = append(details.Aliases, alias.Value)
	}
	if p31, ok := raw.Claims["P31"]; ok {
		var claims []instanceClaim
		if err := json.Unmarshal(p31, &claims); err == nil {
			for _, claim := range claims {
				if id := claim.MainSnak.DataValue.Value.ID; id != "" {
					details.InstanceOf = append(details.InstanceOf, id)
				}
			}
		}
	}

	c.details.Set(key, details, ttlcache.DefaultTTL)
	return details, nil
}

// waitTurn blocks until the limiter allows another external call.
func (c *Client) waitTurn(ctx context.Context) error {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	kb.RecordRateLimitWait(string(kb.SourceWikidata), time.Since(start).Seconds())
	return nil
}

// getJSON performs a GET and decodes the JSON response body into out.
func (c *Client) getJSON(ctx context.Context, rawURL, accept string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("querying wikidata: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikidata returned status %d", resp.StatusCode)
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

type searchEntitiesResponse struct {
	Search []searchMatch `json:"search"`
}

type searchMatch struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []sparqlBinding `json:"bindings"`
	} `json:"results"`
}

type sparqlBinding struct {
	Item            sparqlValue `json:"item"`
	ItemLabel       sparqlValue `json:"itemLabel"`
	ItemDescription sparqlValue `json:"itemDescription"`
}

type sparqlValue struct {
	Value string `json:"value"`
}

type getEntitiesResponse struct {
	Entities map[string]entityPayload `json:"entities"`
}

type entityPayload struct {
	Labels       map[string]langValue       `json:"labels"`
	Descriptions map[string]langValue       `json:"descriptions"`
	Aliases      map[string][]langValue     `json:"aliases"`
	Claims       map[string]json.RawMessage `json:"claims"`
}

type langValue struct {
	Value string `json:"value"`
}

type instanceClaim struct {
	MainSnak struct {
		DataValue struct {
			Value struct {
				ID string `json:"id"`
			} `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}
