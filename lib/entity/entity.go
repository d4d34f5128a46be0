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

// Package entity defines the shared shapes of the linking pipeline: typed
// mentions going in, linked records and batch statistics coming out.
package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type is the closed set of entity types the linker understands.
// Every component keys its mapping tables off this one enum.
type Type string

const (
	TypePerson        Type = "person"
	TypeOrganization  Type = "organization"
	TypeGovernmentOrg Type = "government_org"
	TypeLocation      Type = "location"
	TypeEvent         Type = "event"
)

// Types lists all supported entity types in a stable order.
func Types() []Type {
	return []Type{TypePerson, TypeOrganization, TypeGovernmentOrg, TypeLocation, TypeEvent}
}

// ParseType converts a string to a Type. Unknown strings are an error;
// matching is case-insensitive.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case TypePerson:
		return TypePerson, nil
	case TypeOrganization:
		return TypeOrganization, nil
	case TypeGovernmentOrg:
		return TypeGovernmentOrg, nil
	case TypeLocation:
		return TypeLocation, nil
	case TypeEvent:
		return TypeEvent, nil
	default:
		return "", fmt.Errorf("unknown entity type: %q", s)
	}
}

func (t Type) String() string {
	return string(t)
}

// Mention is one span of text to resolve, with its declared type and any
// surrounding context. Mentions are immutable inputs.
type Mention struct {
	Text    string `json:"text"`
	Type    Type   `json:"entity_type"`
	Context string `json:"context,omitempty"`
}

// Status is the terminal classification of a mention's resolution attempt.
type Status string

const (
	StatusLinked      Status = "linked"
	StatusNeedsReview Status = "needs_review"
	StatusNotFound    Status = "not_found"
	StatusError       Status = "error"
)

// CandidateView is the audit form of a scored candidate attached to a Link
// when review is needed.
type CandidateView struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Types       []string `json:"types,omitempty"`
	Source      string   `json:"source"`
	Score       float64  `json:"score"`
}

// Link is the terminal record for one mention. Exactly one Link is produced
// per mention, whatever happens during resolution.
type Link struct {
	Text        string          `json:"text"`
	EntityType  Type            `json:"entity_type"`
	WikidataID  string          `json:"wikidata_id,omitempty"`
	WikidataURL string          `json:"wikidata_url,omitempty"`
	DBpediaURI  string          `json:"dbpedia_uri,omitempty"`
	Confidence  float64         `json:"linking_confidence"`
	Source      string          `json:"linking_source,omitempty"`
	Status      Status          `json:"linking_status"`
	NeedsReview bool            `json:"needs_review"`
	IsAmbiguous bool            `json:"is_ambiguous"`
	Candidates  []CandidateView `json:"candidates,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// LinkStats aggregates the outcomes of one batch. Counters are incremented
// exactly once per mention, keyed by the mention's final status.
type LinkStats struct {
	Total       int `json:"total"`
	Linked      int `json:"linked"`
	NeedsReview int `json:"needs_review"`
	NotFound    int `json:"not_found"`
	Errors      int `json:"errors"`
}

// Record bumps the counter matching a final status.
func (s *LinkStats) Record(status Status) {
	s.Total++
	switch status {
	case StatusLinked:
		s.Linked++
	case StatusNeedsReview:
		s.NeedsReview++
	case StatusNotFound:
		s.NotFound++
	case StatusError:
		s.Errors++
	}
}

// SuccessRate is the fraction of mentions that linked cleanly, 0 for an
// empty batch.
func (s LinkStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Linked) / float64(s.Total)
}

// MarshalJSON emits the counters together with the derived success_rate so
// every consumer sees the same wire shape.
func (s LinkStats) MarshalJSON() ([]byte, error) {
	type alias LinkStats
	return json.Marshal(struct {
		alias
		SuccessRate float64 `json:"success_rate"`
	}{alias(s), s.SuccessRate()})
}
