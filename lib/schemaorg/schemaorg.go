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

// Package schemaorg maps entity types onto the Schema.org vocabulary and
// renders linked entities as JSON-LD documents.
package schemaorg

import (
	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
)

const (
	// Context is the @context value every document carries.
	Context = "https://schema.org"

	entityIDPrefix = "https://newsanalyzer.org/entities/"
)

var schemaTypes = map[entity.Type]string{
	entity.TypePerson:        "Person",
	entity.TypeOrganization:  "Organization",
	entity.TypeGovernmentOrg: "GovernmentOrganization",
	entity.TypeLocation:      "Place",
	entity.TypeEvent:         "Event",
}

// TypeOf returns the Schema.org type for an entity type. Anything outside
// the vocabulary maps to Thing.
func TypeOf(t entity.Type) string {
	if st, ok := schemaTypes[t]; ok {
		return st
	}
	return "Thing"
}

// Document is a minimal Schema.org JSON-LD rendering of a linked entity.
type Document struct {
	Context string   `json:"@context"`
	Type    string   `json:"@type"`
	ID      string   `json:"@id,omitempty"`
	Name    string   `json:"name"`
	SameAs  []string `json:"sameAs,omitempty"`
}

// JSONLD renders a link as a Schema.org document. The @id slug prefers the
// Wikidata QID and falls back to the DBpedia resource name; unresolved links
// carry no @id and no sameAs references.
func JSONLD(link entity.Link) Document {
	doc := Document{
		Context: Context,
		Type:    TypeOf(link.EntityType),
		Name:    link.Text,
	}

	if slug := idSlug(link); slug != "" {
		doc.ID = entityIDPrefix + slug
	}
	if link.WikidataURL != "" {
		doc.SameAs = append(doc.SameAs, link.WikidataURL)
	}
	if link.DBpediaURI != "" {
		doc.SameAs = append(doc.SameAs, link.DBpediaURI)
	}
	return doc
}

func idSlug(link entity.Link) string {
	switch {
	case link.WikidataID != "":
		return link.WikidataID
	case link.DBpediaURI != "":
		return kb.URITail(link.DBpediaURI)
	}
	return ""
}
