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

package entity

import "strings"

// nerLabelTypes maps NER model labels to entity types. Labels mapping to ""
// are recognized but deliberately skipped (dates, quantities and the like).
var nerLabelTypes = map[string]Type{
	"PERSON": TypePerson,
	"PER":    TypePerson,
	"ORG":    TypeOrganization,
	"GPE":    TypeLocation,
	"LOC":    TypeLocation,
	"EVENT":  TypeEvent,
}

// governmentKeywords promote a bare ORG label to government_org when the
// mention text names a government body.
var governmentKeywords = []string{
	"senate", "congress", "house", "committee", "agency", "department",
	"administration", "bureau", "commission", "epa", "fbi", "cia", "fda",
	"doj", "treasury", "state department", "defense", "white house",
	"government", "federal", "ministry", "parliament",
}

// FromNERLabel maps an NER label to an entity type, using the mention text
// to promote organizations that look governmental. The second return is
// false when the label has no linkable type.
func FromNERLabel(label, text string) (Type, bool) {
	// Strip BIO prefixes (B-ORG, I-PER) emitted by token classifiers.
	if len(label) >= 2 && (label[0] == 'B' || label[0] == 'I') && label[1] == '-' {
		label = label[2:]
	}

	t, ok := nerLabelTypes[strings.ToUpper(label)]
	if !ok {
		return "", false
	}

	if t == TypeOrganization && looksGovernmental(text) {
		return TypeGovernmentOrg, true
	}
	return t, true
}

func looksGovernmental(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range governmentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
