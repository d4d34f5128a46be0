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
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb/dbpedia"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb/wikidata"
)

// SourceInfo describes one knowledge base in the catalog.
type SourceInfo struct {
	Name        string `json:"name"`
	Endpoint    string `json:"endpoint"`
	MinInterval string `json:"min_interval"`
	Description string `json:"description"`
}

// Sources returns the catalog of knowledge bases the service queries,
// served by GET /api/sources and the sources CLI command.
func Sources() []SourceInfo {
	return []SourceInfo{
		{
			Name:        string(kb.SourceWikidata),
			Endpoint:    wikidata.DefaultEndpoint,
			MinInterval: wikidata.DefaultMinInterval.String(),
			Description: "Wikidata entity search with SPARQL label-match fallback",
		},
		{
			Name:        string(kb.SourceDBpedia),
			Endpoint:    dbpedia.DefaultEndpoint,
			MinInterval: dbpedia.DefaultMinInterval.String(),
			Description: "DBpedia Lookup search with JSON-LD resource details",
		},
	}
}
