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

package dbpedia

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
)

const lookupEPAPayload = `{
	"docs": [
		{
			"resource": ["http://dbpedia.org/resource/United_States_Environmental_Protection_Agency"],
			"label": ["United States Environmental Protection Agency"],
			"comment": ["The Environmental Protection Agency is an independent agency of the United States federal government."],
			"type": ["http://dbpedia.org/ontology/GovernmentAgency", "http://dbpedia.org/ontology/Organisation", "http://www.w3.org/2002/07/owl#Thing"],
			"refCount": ["97"]
		},
		{
			"resource": ["http://dbpedia.org/resource/Environmental_Protection_Agency"],
			"label": ["Environmental Protection Agency"],
			"comment": ["An environmental protection agency is a government body tasked with protecting the environment."],
			"type": ["http://dbpedia.org/ontology/GovernmentAgency"],
			"refCount": ["1287"]
		},
		{
			"resource": [],
			"label": ["Doc without a resource URI"]
		}
	]
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(
		WithEndpoint(server.URL+"/api/search"),
		WithDataEndpoint(server.URL+"/data"),
		WithMinInterval(time.Millisecond),
	)
	t.Cleanup(client.Close)
	return client
}

func TestTypeClasses(t *testing.T) {
	if got := typeClasses[entity.TypePerson]; len(got) != 1 || got[0] != "Person" {
		t.Errorf("person classes = %v, want [Person]", got)
	}
	if got := primaryClass(entity.TypeGovernmentOrg); got != "GovernmentAgency" {
		t.Errorf("government_org filter = %v, want GovernmentAgency", got)
	}
	if got := primaryClass(entity.TypeLocation); got != "Place" {
		t.Errorf("location filter = %v, want Place", got)
	}
}

func TestSearchParsesResponse(t *testing.T) {
	govType := entity.TypeGovernmentOrg
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "Environmental Protection Agency" {
			t.Errorf("query param = %q", got)
		}
		if got := r.URL.Query().Get("maxResults"); got != "10" {
			t.Errorf("maxResults param = %q", got)
		}
		if got := r.URL.Query().Get("type"); got != "GovernmentAgency" {
			t.Errorf("type param = %q, want GovernmentAgency", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lookupEPAPayload))
	}))

	result, err := client.Search(context.Background(), "Environmental Protection Agency", &govType, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if result.Err != nil {
		t.Fatalf("result.Err = %v, want nil", result.Err)
	}

	// The doc without a resource URI is dropped.
	if len(result.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(result.Candidates))
	}

	best := result.Candidates[0]
	if best.ID != "http://dbpedia.org/resource/Environmental_Protection_Agency" {
		t.Errorf("Candidates[0].ID = %v, want the exact label match", best.ID)
	}
	if best.Source != kb.SourceDBpedia {
		t.Errorf("Source = %v, want dbpedia", best.Source)
	}
	if best.Confidence <= result.Candidates[1].Confidence {
		t.Errorf("candidates not sorted by confidence: %v then %v",
			best.Confidence, result.Candidates[1].Confidence)
	}

	// Type URIs are reduced to their tails, in response order.
	types := result.Candidates[1].Types
	if len(types) != 3 || types[0] != "GovernmentAgency" || types[2] != "owl#Thing" {
		t.Errorf("Types = %v, want tails of all three type URIs", types)
	}
}

func TestSearchUntypedSendsNoFilter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["type"]; ok {
			t.Error("untyped search sent a type filter")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"docs": []}`))
	}))

	result, err := client.Search(context.Background(), "anything", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Errorf("len(Candidates) = %d, want 0", len(result.Candidates))
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	for _, query := range []string{"", "  \t"} {
		result, err := client.Search(context.Background(), query, nil, false)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", query, err)
		}
		if !errors.Is(result.Err, kb.ErrEmptyQuery) {
			t.Errorf("Search(%q) result.Err = %v, want ErrEmptyQuery", query, result.Err)
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
		_, _ = w.Write([]byte(lookupEPAPayload))
	}))

	first, err := client.Search(context.Background(), "EPA", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if first.FromCache {
		t.Error("first search should not come from cache")
	}

	second, err := client.Search(context.Background(), "EPA", nil, false)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second search should come from cache")
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}

	if _, err := client.Search(context.Background(), "EPA", nil, true); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls after bypass, want 2", calls.Load())
	}
}

func TestSearchTransportFailureSoftEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusServiceUnavailable)
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

func TestConfidencePopularityMonotone(t *testing.T) {
	low := confidence("acme", "Acme Corporation", 10, 1000, false)
	high := confidence("acme", "Acme Corporation", 900, 1000, false)
	top := confidence("acme", "Acme Corporation", 1000, 1000, false)

	if high <= low {
		t.Errorf("confidence(ref=900) = %v, not above confidence(ref=10) = %v", high, low)
	}
	if top <= high {
		t.Errorf("confidence(ref=1000) = %v, not above confidence(ref=900) = %v", top, high)
	}

	base := confidence("acme", "Acme Corporation", 0, 1000, false)
	if bonus := top - base; bonus < 0.149 || bonus > 0.151 {
		t.Errorf("full popularity bonus = %v, want 0.15", bonus)
	}
}

func TestRefCountCoercion(t *testing.T) {
	cases := []struct {
		name string
		raw  []any
		want float64
	}{
		{"number", []any{float64(42)}, 42},
		{"numeric string", []any{"1287"}, 1287},
		{"bad string", []any{"many"}, 0},
		{"empty", nil, 0},
		{"unexpected type", []any{true}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := lookupDoc{RefCount: tc.raw}
			if got := doc.refCount(); got != tc.want {
				t.Errorf("refCount() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGetResource(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/Barack_Obama.json" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"http://dbpedia.org/resource/Barack_Obama": {
				"http://www.w3.org/2000/01/rdf-schema#label": [
					{"type": "literal", "value": "Barack Obama", "lang": "en"},
					{"type": "literal", "value": "باراك أوباما", "lang": "ar"}
				],
				"http://dbpedia.org/ontology/abstract": [
					{"type": "literal", "value": "Barack Hussein Obama II is an American politician who served as the 44th president of the United States.", "lang": "en"}
				],
				"http://www.w3.org/1999/02/22-rdf-syntax-ns#type": [
					{"type": "uri", "value": "http://dbpedia.org/ontology/Person"},
					{"type": "uri", "value": "http://dbpedia.org/ontology/Politician"},
					{"type": "uri", "value": "http://xmlns.com/foaf/0.1/Person"}
				],
				"http://dbpedia.org/ontology/birthDate": [
					{"type": "literal", "value": "1961-08-04", "datatype": "http://www.w3.org/2001/XMLSchema#date"}
				]
			},
			"http://dbpedia.org/resource/Michelle_Obama": {
				"http://www.w3.org/2000/01/rdf-schema#label": [
					{"type": "literal", "value": "Michelle Obama", "lang": "en"}
				]
			}
		}`))
	}))

	t.Run("empty name", func(t *testing.T) {
		info, err := client.GetResource(context.Background(), "  ")
		if err != nil {
			t.Fatalf("GetResource() error = %v", err)
		}
		if info != nil {
			t.Errorf("GetResource() = %+v, want nil", info)
		}
	})

	t.Run("fetch and cache", func(t *testing.T) {
		info, err := client.GetResource(context.Background(), "Barack Obama")
		if err != nil {
			t.Fatalf("GetResource() error = %v", err)
		}
		if info == nil {
			t.Fatal("GetResource() = nil, want info")
		}
		if info.URI != "http://dbpedia.org/resource/Barack_Obama" {
			t.Errorf("URI = %v", info.URI)
		}
		if info.Label != "Barack Obama" {
			t.Errorf("Label = %v, want the English label", info.Label)
		}
		if info.Abstract == "" {
			t.Error("Abstract not extracted")
		}
		if len(info.Types) != 2 || info.Types[0] != "Person" || info.Types[1] != "Politician" {
			t.Errorf("Types = %v, want the ontology classes only", info.Types)
		}

		again, err := client.GetResource(context.Background(), "Barack_Obama")
		if err != nil {
			t.Fatalf("GetResource() error = %v", err)
		}
		if again != info {
			t.Error("second fetch should return the cached record")
		}
		if calls.Load() != 1 {
			t.Errorf("server saw %d calls, want 1", calls.Load())
		}
	})
}

func TestGetResourceFetchFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	info, err := client.GetResource(context.Background(), "Nobody_Knows_This")
	if err != nil {
		t.Fatalf("GetResource() error = %v, want nil", err)
	}
	if info != nil {
		t.Errorf("GetResource() = %+v, want nil", info)
	}
}

func TestResourceName(t *testing.T) {
	cases := map[string]string{
		"http://dbpedia.org/resource/Barack_Obama": "Barack Obama",
		"http://dbpedia.org/resource/NASA":         "NASA",
		"Plain_Name":                               "Plain Name",
		"": "",
	}
	for uri, want := range cases {
		if got := ResourceName(uri); got != want {
			t.Errorf("ResourceName(%q) = %q, want %q", uri, got, want)
		}
	}
}
