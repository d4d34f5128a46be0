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

package schemaorg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, "Person", TypeOf(entity.TypePerson))
	assert.Equal(t, "Organization", TypeOf(entity.TypeOrganization))
	assert.Equal(t, "GovernmentOrganization", TypeOf(entity.TypeGovernmentOrg))
	assert.Equal(t, "Place", TypeOf(entity.TypeLocation))
	assert.Equal(t, "Event", TypeOf(entity.TypeEvent))
	assert.Equal(t, "Thing", TypeOf(entity.Type("concept")))
	assert.Equal(t, "Thing", TypeOf(entity.Type("")))
}

func TestJSONLDFullyLinked(t *testing.T) {
	doc := JSONLD(entity.Link{
		Text:        "EPA",
		EntityType:  entity.TypeGovernmentOrg,
		WikidataID:  "Q460173",
		WikidataURL: "https://www.wikidata.org/wiki/Q460173",
		DBpediaURI:  "http://dbpedia.org/resource/United_States_Environmental_Protection_Agency",
		Status:      entity.StatusLinked,
	})

	assert.Equal(t, Context, doc.Context)
	assert.Equal(t, "GovernmentOrganization", doc.Type)
	assert.Equal(t, "https://newsanalyzer.org/entities/Q460173", doc.ID)
	assert.Equal(t, "EPA", doc.Name)
	assert.Equal(t, []string{
		"https://www.wikidata.org/wiki/Q460173",
		"http://dbpedia.org/resource/United_States_Environmental_Protection_Agency",
	}, doc.SameAs)
}

func TestJSONLDDBpediaOnly(t *testing.T) {
	doc := JSONLD(entity.Link{
		Text:       "Barack Obama",
		EntityType: entity.TypePerson,
		DBpediaURI: "http://dbpedia.org/resource/Barack_Obama",
		Status:     entity.StatusLinked,
	})

	assert.Equal(t, "https://newsanalyzer.org/entities/Barack_Obama", doc.ID)
	assert.Equal(t, []string{"http://dbpedia.org/resource/Barack_Obama"}, doc.SameAs)
}

func TestJSONLDUnresolved(t *testing.T) {
	doc := JSONLD(entity.Link{
		Text:       "Ada",
		EntityType: entity.TypePerson,
		Status:     entity.StatusNotFound,
	})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"@context":"https://schema.org","@type":"Person","name":"Ada"}`, string(raw))
}
