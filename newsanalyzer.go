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

// Package newsanalyzer runs the entity linking node: an HTTP service that
// resolves typed entity mentions against Wikidata and DBpedia.
package newsanalyzer

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/newsanalyzer-admin/news-analyzer/lib/disambig"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb/dbpedia"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb/wikidata"
	"github.com/newsanalyzer-admin/news-analyzer/lib/linker"
)

// Config carries the node settings. Duration fields are strings in Go
// duration syntax so they can come straight from flags and env vars.
type Config struct {
	ApiUrl    string `json:"api_url,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	WikidataEndpoint       string `json:"wikidata_endpoint,omitempty"`
	WikidataSparqlEndpoint string `json:"wikidata_sparql_endpoint,omitempty"`
	WikidataMinInterval    string `json:"wikidata_min_interval,omitempty"`

	DbpediaEndpoint     string `json:"dbpedia_endpoint,omitempty"`
	DbpediaDataEndpoint string `json:"dbpedia_data_endpoint,omitempty"`
	DbpediaMinInterval  string `json:"dbpedia_min_interval,omitempty"`

	CacheTTL       string `json:"cache_ttl,omitempty"`
	CacheCapacity  int    `json:"cache_capacity,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`

	MinConfidence    float64 `json:"min_confidence,omitempty"`
	MaxCandidates    int     `json:"max_candidates,omitempty"`
	AlwaysQueryBoth  bool    `json:"always_query_both,omitempty"`
	AmbiguityPenalty string  `json:"ambiguity_penalty,omitempty"`

	MaxConcurrentRequests int    `json:"max_concurrent_requests,omitempty"`
	MaxQueueSize          int    `json:"max_queue_size,omitempty"`
	QueueTimeout          string `json:"queue_timeout,omitempty"`
}

type LinkerNode struct {
	logger *zap.Logger

	linker *linker.Linker

	// Lookup clients, kept for readiness reporting
	wikidata kb.Client
	dbpedia  kb.Client

	// Request queue for backpressure control
	requestQueue *RequestQueue
}

// corsMiddleware adds permissive CORS headers for the linker API
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// DefaultShutdownTimeout is the default time to wait for graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

// parseDuration parses an optional duration-valued config string. Empty and
// "0" mean unset. Anything else that fails to parse is fatal.
func parseDuration(zl *zap.Logger, key, value string) time.Duration {
	if value == "" || value == "0" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		zl.Fatal("Invalid duration", zap.String(key, value), zap.Error(err))
	}
	return d
}

// RunAsLinker runs an entity linking node until ctx is cancelled.
// If readyC is non-nil, it will be closed when the server is ready to accept requests.
func RunAsLinker(ctx context.Context, zl *zap.Logger, config Config, readyC chan struct{}) {
	zl = zl.Named("newsanalyzer")
	zl.Info("Starting linker node", zap.Any("config", config))

	u, err := url.Parse(config.ApiUrl)
	if err != nil {
		zl.Fatal("Invalid API URL", zap.String("url", config.ApiUrl), zap.Error(err))
	}

	// Parse duration-valued settings up front so bad config fails fast
	requestTimeout := parseDuration(zl, "request_timeout", config.RequestTimeout)
	cacheTTL := parseDuration(zl, "cache_ttl", config.CacheTTL)
	wikidataMinInterval := parseDuration(zl, "wikidata_min_interval", config.WikidataMinInterval)
	dbpediaMinInterval := parseDuration(zl, "dbpedia_min_interval", config.DbpediaMinInterval)
	queueTimeout := parseDuration(zl, "queue_timeout", config.QueueTimeout)

	// Build the Wikidata client. Unset fields keep the client defaults.
	wikidataOpts := []wikidata.Option{
		wikidata.WithLogger(zl.Named("wikidata")),
	}
	if config.WikidataEndpoint != "" {
		wikidataOpts = append(wikidataOpts, wikidata.WithEndpoint(config.WikidataEndpoint))
	}
	if config.WikidataSparqlEndpoint != "" {
		wikidataOpts = append(wikidataOpts, wikidata.WithSPARQLEndpoint(config.WikidataSparqlEndpoint))
	}
	if config.UserAgent != "" {
		wikidataOpts = append(wikidataOpts, wikidata.WithUserAgent(config.UserAgent))
	}
	if requestTimeout > 0 {
		wikidataOpts = append(wikidataOpts, wikidata.WithTimeout(requestTimeout))
	}
	if wikidataMinInterval > 0 {
		wikidataOpts = append(wikidataOpts, wikidata.WithMinInterval(wikidataMinInterval))
	}
	if cacheTTL > 0 {
		wikidataOpts = append(wikidataOpts, wikidata.WithCacheTTL(cacheTTL))
	}
	if config.CacheCapacity > 0 {
		wikidataOpts = append(wikidataOpts, wikidata.WithCacheCapacity(uint64(config.CacheCapacity)))
	}
	wikidataClient := wikidata.NewClient(wikidataOpts...)
	defer wikidataClient.Close()

	// Build the DBpedia client the same way
	dbpediaOpts := []dbpedia.Option{
		dbpedia.WithLogger(zl.Named("dbpedia")),
	}
	if config.DbpediaEndpoint != "" {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithEndpoint(config.DbpediaEndpoint))
	}
	if config.DbpediaDataEndpoint != "" {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithDataEndpoint(config.DbpediaDataEndpoint))
	}
	if config.UserAgent != "" {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithUserAgent(config.UserAgent))
	}
	if requestTimeout > 0 {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithTimeout(requestTimeout))
	}
	if dbpediaMinInterval > 0 {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithMinInterval(dbpediaMinInterval))
	}
	if cacheTTL > 0 {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithCacheTTL(cacheTTL))
	}
	if config.CacheCapacity > 0 {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithCacheCapacity(uint64(config.CacheCapacity)))
	}
	dbpediaClient := dbpedia.NewClient(dbpediaOpts...)
	defer dbpediaClient.Close()

	// Configure the disambiguator
	penaltyMode := disambig.PenaltyNoContext
	if config.AmbiguityPenalty != "" {
		penaltyMode, err = disambig.ParsePenaltyMode(config.AmbiguityPenalty)
		if err != nil {
			zl.Fatal("Invalid ambiguity_penalty mode",
				zap.String("ambiguity_penalty", config.AmbiguityPenalty), zap.Error(err))
		}
	}
	disambiguator := disambig.New(
		disambig.WithPenaltyMode(penaltyMode),
		disambig.WithLogger(zl.Named("disambig")),
	)

	entityLinker := linker.New(wikidataClient, dbpediaClient,
		linker.WithDisambiguator(disambiguator),
		linker.WithDefaults(linker.Options{
			Sources:         linker.SourcesBoth,
			MinConfidence:   config.MinConfidence,
			MaxAlternatives: config.MaxCandidates,
			AlwaysQueryBoth: config.AlwaysQueryBoth,
		}),
		linker.WithLogger(zl.Named("linker")),
	)

	zl.Info("Entity linker ready",
		zap.String("penalty_mode", string(penaltyMode)),
		zap.Float64("min_confidence", entityLinker.Defaults().MinConfidence),
		zap.Int("max_candidates", entityLinker.Defaults().MaxAlternatives))

	// Initialize request queue for backpressure control
	requestQueue := NewRequestQueue(RequestQueueConfig{
		MaxConcurrentRequests: config.MaxConcurrentRequests,
		MaxQueueSize:          config.MaxQueueSize,
		RequestTimeout:        queueTimeout,
	}, zl.Named("queue"))

	node := &LinkerNode{
		logger: zl,

		linker:   entityLinker,
		wikidata: wikidataClient,
		dbpedia:  dbpediaClient,

		requestQueue: requestQueue,
	}

	// Create API handler
	apiHandler := NewLinkerAPI(zl, node)

	// Create root mux with health endpoints and API handler
	rootMux := http.NewServeMux()

	// Health endpoints (outside /api prefix for k8s compatibility)
	rootMux.HandleFunc("GET /healthz", node.handleHealthz)
	rootMux.HandleFunc("GET /readyz", node.handleReadyz)

	// Mount the API handler (includes /api/version)
	rootMux.Handle("/api/", apiHandler)

	srv := &http.Server{
		Addr:        u.Host,
		Handler:     corsMiddleware(rootMux),
		ReadTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		zl.Info("Linker api server starting", zap.String("address", config.ApiUrl))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Signal readiness after server starts
	if readyC != nil {
		close(readyC)
	}

	// Wait for context cancellation or server error
	select {
	case err := <-serverErr:
		if err != nil {
			zl.Fatal("HTTP server error", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("Shutdown signal received, starting graceful shutdown...")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections
	srv.SetKeepAlivesEnabled(false)

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("Graceful shutdown failed, forcing close",
			zap.Error(err),
			zap.Duration("timeout", DefaultShutdownTimeout))
		_ = srv.Close()
	} else {
		zl.Info("Graceful shutdown completed successfully")
	}

	zl.Info("HTTP server stopped")
}
