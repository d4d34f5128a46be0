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
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
	"go.uber.org/zap"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/linker"
	"github.com/newsanalyzer-admin/news-analyzer/lib/schemaorg"
)

// LinkerAPI is the HTTP surface of the linker node.
type LinkerAPI struct {
	logger *zap.Logger
	node   *LinkerNode
}

// NewLinkerAPI creates the /api handler for a node.
func NewLinkerAPI(logger *zap.Logger, node *LinkerNode) http.Handler {
	api := &LinkerAPI{
		logger: logger,
		node:   node,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/link", api.LinkEntities)
	mux.HandleFunc("POST /api/link/single", api.LinkSingleEntity)
	mux.HandleFunc("GET /api/sources", api.ListSources)
	mux.HandleFunc("GET /api/version", api.GetVersion)
	return mux
}

// LinkEntityRequest is one mention inside a batch link request.
type LinkEntityRequest struct {
	Text       string `json:"text"`
	EntityType string `json:"entity_type"`
	Context    string `json:"context,omitempty"`
}

// LinkRequestOptions carries per-request overrides for the linker defaults.
type LinkRequestOptions struct {
	Sources       string  `json:"sources,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	MaxCandidates int     `json:"max_candidates,omitempty"`
}

// LinkRequest is the body of POST /api/link.
type LinkRequest struct {
	Entities []LinkEntityRequest `json:"entities"`
	Options  *LinkRequestOptions `json:"options,omitempty"`
}

// LinkResponse is the body of a successful POST /api/link.
type LinkResponse struct {
	LinkedEntities []entity.Link    `json:"linked_entities"`
	Statistics     entity.LinkStats `json:"statistics"`
}

// SingleLinkRequest is the body of POST /api/link/single.
type SingleLinkRequest struct {
	Text       string              `json:"text"`
	EntityType string              `json:"entity_type"`
	Context    string              `json:"context,omitempty"`
	Options    *LinkRequestOptions `json:"options,omitempty"`
}

// SourcesResponse is the body of GET /api/sources.
type SourcesResponse struct {
	Sources []SourceInfo `json:"sources"`
}

// VersionResponse is the body of GET /api/version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// LinkEntities handles batch linking requests
func (t *LinkerAPI) LinkEntities(w http.ResponseWriter, r *http.Request) {
	t.node.handleApiLink(w, r)
}

// LinkSingleEntity handles single-mention linking requests
func (t *LinkerAPI) LinkSingleEntity(w http.ResponseWriter, r *http.Request) {
	t.node.handleApiLinkSingle(w, r)
}

// ListSources serves the knowledge base catalog
func (t *LinkerAPI) ListSources(w http.ResponseWriter, r *http.Request) {
	resp := SourcesResponse{Sources: Sources()}

	w.Header().Set("Content-Type", "application/json")
	if err := encoder.NewStreamEncoder(w).Encode(resp); err != nil {
		t.logger.Error("encoding response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// GetVersion serves version and build information
func (t *LinkerAPI) GetVersion(w http.ResponseWriter, r *http.Request) {
	resp := VersionResponse{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := encoder.NewStreamEncoder(w).Encode(resp); err != nil {
		t.logger.Error("encoding response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleApiLink handles batch entity linking requests
func (ln *LinkerNode) handleApiLink(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	start := time.Now()

	// Apply backpressure via request queue
	release, err := ln.requestQueue.Acquire(r.Context())
	if err != nil {
		switch err {
		case ErrQueueFull:
			RecordQueueRejection()
			WriteQueueFullResponse(w, 5*time.Second)
		case ErrRequestTimeout:
			RecordQueueTimeout()
			WriteTimeoutResponse(w)
		default:
			// Context cancelled
			http.Error(w, "request cancelled", http.StatusRequestTimeout)
		}
		return
	}
	defer release()

	// Update queue metrics
	UpdateQueueMetrics(ln.requestQueue.Stats())

	var req LinkRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		RecordHTTPRequest("link", "bad_request")
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}

	if len(req.Entities) == 0 {
		RecordHTTPRequest("link", "bad_request")
		http.Error(w, "entities are required", http.StatusBadRequest)
		return
	}

	mentions, err := buildMentions(req.Entities)
	if err != nil {
		RecordHTTPRequest("link", "bad_request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts, err := ln.resolveOptions(req.Options)
	if err != nil {
		RecordHTTPRequest("link", "bad_request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	links, stats := ln.linker.LinkBatchWith(r.Context(), mentions, opts)

	ln.logger.Info("Link request completed",
		zap.Int("entities", len(links)),
		zap.Int("linked", stats.Linked),
		zap.Duration("elapsed", time.Since(start)))

	resp := LinkResponse{
		LinkedEntities: links,
		Statistics:     stats,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := encoder.NewStreamEncoder(w).Encode(resp); err != nil {
		ln.logger.Error("encoding response", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	RecordHTTPRequest("link", "ok")
	RecordRequestDuration("link", "ok", time.Since(start).Seconds())
}

// handleApiLinkSingle handles single-mention linking requests
func (ln *LinkerNode) handleApiLinkSingle(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()
	start := time.Now()

	// Apply backpressure via request queue
	release, err := ln.requestQueue.Acquire(r.Context())
	if err != nil {
		switch err {
		case ErrQueueFull:
			RecordQueueRejection()
			WriteQueueFullResponse(w, 5*time.Second)
		case ErrRequestTimeout:
			RecordQueueTimeout()
			WriteTimeoutResponse(w)
		default:
			http.Error(w, "request cancelled", http.StatusRequestTimeout)
		}
		return
	}
	defer release()

	// Update queue metrics
	UpdateQueueMetrics(ln.requestQueue.Stats())

	var req SingleLinkRequest
	if err := decoder.NewStreamDecoder(r.Body).Decode(&req); err != nil {
		RecordHTTPRequest("link_single", "bad_request")
		http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
		return
	}

	entityType, err := entity.ParseType(req.EntityType)
	if err != nil {
		RecordHTTPRequest("link_single", "bad_request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts, err := ln.resolveOptions(req.Options)
	if err != nil {
		RecordHTTPRequest("link_single", "bad_request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mention := entity.Mention{
		Text:    req.Text,
		Type:    entityType,
		Context: req.Context,
	}
	link := ln.linker.LinkOneWith(r.Context(), mention, opts)

	w.Header().Set("Content-Type", "application/json")

	// JSON-LD rendering on request, plain link otherwise.
	switch r.Header.Get("Accept") {
	case "application/ld+json":
		w.Header().Set("Content-Type", "application/ld+json")
		if err := encoder.NewStreamEncoder(w).Encode(schemaorg.JSONLD(link)); err != nil {
			ln.logger.Error("encoding response", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

	default:
		if err := encoder.NewStreamEncoder(w).Encode(link); err != nil {
			ln.logger.Error("encoding response", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	RecordHTTPRequest("link_single", "ok")
	RecordRequestDuration("link_single", "ok", time.Since(start).Seconds())
}

// buildMentions validates the wire entities and converts them to mentions.
// Unknown entity types fail the whole request; blank text does not, it
// yields an error-status link for that mention instead.
func buildMentions(entities []LinkEntityRequest) ([]entity.Mention, error) {
	mentions := make([]entity.Mention, len(entities))
	for i, e := range entities {
		entityType, err := entity.ParseType(e.EntityType)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		mentions[i] = entity.Mention{
			Text:    e.Text,
			Type:    entityType,
			Context: e.Context,
		}
	}
	return mentions, nil
}

// resolveOptions merges request overrides onto the node's linker defaults.
func (ln *LinkerNode) resolveOptions(reqOpts *LinkRequestOptions) (linker.Options, error) {
	opts := ln.linker.Defaults()
	if reqOpts == nil {
		return opts, nil
	}

	if reqOpts.Sources != "" {
		mode, err := linker.ParseSourceMode(reqOpts.Sources)
		if err != nil {
			return linker.Options{}, err
		}
		opts.Sources = mode
	}
	if reqOpts.MinConfidence > 0 {
		opts.MinConfidence = reqOpts.MinConfidence
	}
	if reqOpts.MaxCandidates > 0 {
		opts.MaxAlternatives = reqOpts.MaxCandidates
	}
	return opts, nil
}
