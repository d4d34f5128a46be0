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

package wikidata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
)

const searchEPAPayload = `{
	"search": [
		{"id": "Q460173", "label": "United States Environmental Protection Agency", "description": "agency of the United States federal government", "aliases": ["EPA", "US EPA"]},
		{"id": "Q3045357", "label": "Environmental Protection Agency", "description": "Irish state agency"}
	]
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(
		WithEndpoint(server.URL+"/w/api.php"),
		WithSPARQLEndpoint(server.URL+"/sparql"),
		WithMinInterval(time.Millisecond),
	)
	t.Cleanup(client.Close)
	return client
}

func TestTypeQIDs(t *testing.T) {
	if got := typeQIDs[entity.TypePerson]; len(got) != 1 || got[0] != "Q5" {
		t.Errorf("person QIDs = %v, want [Q5]", got)
	}
	if got := typeQIDs[entity.TypeGovernmentOrg]; got[0] != "Q327333" {
		t.Errorf("government_org primary QID = %v, want Q327333", got[0])
	}
	if got := typeQIDs[entity.TypeLocation]; len(got) != 4 {
		t.Errorf("location QIDs = %v, want 4 classes", got)
	}
}

func TestBuildLabelQuery(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		query := buildLabelQuery("EPA", nil)
		if !strings.Contains(query, `rdfs:label "EPA"@en`) {
			t.Errorf("query missing label pattern:\n%s", query)
		}
		if strings.Contains(query, "typeFilter") {
			t.Errorf("untyped query should not filter:\n%s", query)
		}
	})

	t.Run("with type filter", func(t *testing.T) {
		personType := entity.TypePerson
		query := buildLabelQuery("Barack Obama", &personType)
		if !strings.Contains(query, "wd:Q5") {
			t.Errorf("query missing person class:\n%s", query)
		}
		if !strings.Contains(query, "wdt:P31/wdt:P279*") {
			t.Errorf("query missing instance-of path:\n%s", query)
		}
	})

	t.Run("escapes quotes", func(t *testing.T) {
		query := buildLabelQuery(`The "Best" Band`, nil)
		if !strings.Contains(query, `\"Best\"`) {
			t.Errorf("quotes not escaped:\n%s", query)
		}
	})
}

func TestSearchParsesAPIResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "wbsearchentities" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(searchEPAPayload))
			return
		}
		http.NotFound(w, r)
	}))

	result, err := client.Search(context.Background(), "Environmental Protection Agency", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Err != nil {
		t.Fatalf("result.Err = %v, want nil", result.Err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(result.Candidates))
	}

	// Exact label match outranks the fuzzy one.
	best := result.Candidates[0]
	if best.ID != "Q3045357" {
		t.Errorf("Candidates[0].ID = %v, want Q3045357", best.ID)
	}
	if best.Confidence != 1.0 {
		t.Errorf("exact match confidence = %v, want 1.0", best.Confidence)
	}
	if best.Source != kb.SourceWikidata {
		t.Errorf("Source = %v, want wikidata", best.Source)
	}
	if result.Candidates[1].Confidence >= best.Confidence {
		t.Errorf("candidates not sorted by confidence: %v then %v",
			best.Confidence, result.Candidates[1].Confidence)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	for _, query := range []string{"", "   "} {
		result, err := client.Search(context.Background(), query, nil, false)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", query, err)
		}
		if !errors.Is(result.Err, kb.ErrEmptyQuery) {
			t.Errorf("Search(%q) result.Err = %v, want ErrEmptyQuery", query, result.Err)
		}
		if len(result.Candidates) != 0 {
			t.Errorf("Search(%q) returned %d candidates, want 0", query, len(result.Candidates))
		}
	}

	if calls.Load() != 0 {
		t.Errorf("blank queries reached the server %d times", calls.Load())
	}
}

func TestSearchCaching(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchEPAPayload))
	}))

	first, err := client.Search(context.Background(), "EPA", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if first.FromCache {
		t.Error("first search should not come from cache")
	}

	second, err := client.Search(context.Background(), "epa ", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second search should come from cache")
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}

	third, err := client.Search(context.Background(), "EPA", nil, true)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if third.FromCache {
		t.Error("bypassed search should not come from cache")
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls after bypass, want 2", calls.Load())
	}
}

func TestSearchFallsBackToSPARQL(t *testing.T) {
	var apiCalls, sparqlCalls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/w/api.php":
			apiCalls.Add(1)
			_, _ = w.Write([]byte(`{"search": []}`))
		case "/sparql":
			sparqlCalls.Add(1)
			_, _ = w.Write([]byte(`{
				"results": {"bindings": [
					{"item": {"type": "uri", "value": "http://www.wikidata.org/entity/Q30"},
					 "itemLabel": {"value": "United States of America"},
					 "itemDescription": {"value": "country in North America"}}
				]}
			}`))
		default:
			http.NotFound(w, r)
		}
	}))

	locationType := entity.TypeLocation
	result, err := client.Search(context.Background(), "United States of America", &locationType, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if apiCalls.Load() != 1 || sparqlCalls.Load() != 1 {
		t.Errorf("calls = api %d, sparql %d; want 1 and 1", apiCalls.Load(), sparqlCalls.Load())
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1", len(result.Candidates))
	}
	if result.Candidates[0].ID != "Q30" {
		t.Errorf("ID = %v, want Q30", result.Candidates[0].ID)
	}
	if result.Candidates[0].Confidence != 1.0 {
		t.Errorf("exact typed match confidence = %v, want 1.0", result.Candidates[0].Confidence)
	}
}

func TestSearchTransportFailureSoftEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))

	result, err := client.Search(context.Background(), "anything", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v, want nil (soft-empty)", err)
	}
	if result.Err != nil {
		t.Errorf("result.Err = %v, want nil", result.Err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("len(Candidates) = %d, want 0", len(result.Candidates))
	}
}

func TestSPARQLRateLimitRetriesOnce(t *testing.T) {
	var sparqlCalls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/w/api.php":
			_, _ = w.Write([]byte(`{"search": []}`))
		case "/sparql":
			if sparqlCalls.Add(1) == 1 {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{
				"results": {"bindings": [
					{"item": {"value": "http://www.wikidata.org/entity/Q30"}, "itemLabel": {"value": "United States of America"}}
				]}
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	client.backoff = 5 * time.Millisecond

	result, err := client.Search(context.Background(), "United States of America", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if sparqlCalls.Load() != 2 {
		t.Errorf("sparql calls = %d, want 2 (one retry)", sparqlCalls.Load())
	}
	if len(result.Candidates) != 1 {
		t.Errorf("len(Candidates) = %d, want 1", len(result.Candidates))
	}
}

func TestRateLimitingDelaysRequests(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchEPAPayload))
	}))
	client.limiter.SetLimit(20) // 50ms between requests

	start := time.Now()
	if _, err := client.Search(context.Background(), "first", nil, false); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, err := client.Search(context.Background(), "second", nil, false); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("two searches finished in %v, want at least the limiter interval", elapsed)
	}
}

func TestGetEntity(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "wbgetentities" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"entities": {
				"Q30": {
					"labels": {"en": {"language": "en", "value": "United States of America"}},
					"descriptions": {"en": {"value": "country in North America"}},
					"aliases": {"en": [{"value": "USA"}, {"value": "US"}]},
					"claims": {
						"P31": [{"mainsnak": {"datavalue": {"value": {"id": "Q6256"}}}}],
						"P373": [{"mainsnak": {"datavalue": {"value": "United States"}}}]
					}
				}
			}
		}`))
	}))

	t.Run("invalid qid", func(t *testing.T) {
		for _, qid := range []string{"", "30", "P31"} {
			details, err := client.GetEntity(context.Background(), qid)
			if err != nil {
				t.Fatalf("GetEntity(%q) error = %v", qid, err)
			}
			if details != nil {
				t.Errorf("GetEntity(%q) = %+v, want nil", qid, details)
			}
		}
		if calls.Load() != 0 {
			t.Errorf("invalid QIDs reached the server %d times", calls.Load())
		}
	})

	t.Run("fetch and cache", func(t *testing.T) {
		details, err := client.GetEntity(context.Background(), "Q30")
		if err != nil {
			t.Fatalf("GetEntity() error = %v", err)
		}
		if details == nil {
			t.Fatal("GetEntity() = nil, want details")
		}
		if details.Label != "United States of America" {
			t.Errorf("Label = %v", details.Label)
		}
		if len(details.Aliases) != 2 {
			t.Errorf("Aliases = %v, want 2", details.Aliases)
		}
		if len(details.InstanceOf) != 1 || details.InstanceOf[0] != "Q6256" {
			t.Errorf("InstanceOf = %v, want [Q6256]", details.InstanceOf)
		}
		if details.URL != "https://www.wikidata.org/wiki/Q30" {
			t.Errorf("URL = %v", details.URL)
		}

		again, err := client.GetEntity(context.Background(), "Q30")
		if err != nil {
			t.Fatalf("GetEntity() error = %v", err)
		}
		if again != details {
			t.Error("second fetch should return the cached record")
		}
		if calls.Load() != 1 {
			t.Errorf("server saw %d calls, want 1", calls.Load())
		}
	})
}

func TestConfidence(t *testing.T) {
	t.Run("alias bonus", func(t *testing.T) {
		with := confidence("USA", "United States of America", []string{"USA", "America"}, false)
		without := confidence("USA", "United States of America", nil, false)
		if diff := with - without; diff < 0.09 || diff > 0.11 {
			t.Errorf("alias bonus = %v, want about 0.1", diff)
		}
	})

	t.Run("capped at one", func(t *testing.T) {
		if got := confidence("EPA", "EPA", []string{"EPA"}, true); got != 1.0 {
			t.Errorf("confidence = %v, want capped 1.0", got)
		}
	})
}
