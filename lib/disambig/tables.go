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

package disambig

import (
	"strings"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
)

// wikidataTypeWeights scores a candidate's instance-of classes against the
// declared entity type.
var wikidataTypeWeights = map[entity.Type]map[string]float64{
	entity.TypePerson: {
		"Q5":      1.0, // human
		"Q215627": 0.8, // person
		"Q36180":  0.7, // writer
		"Q82955":  0.7, // politician
	},
	entity.TypeOrganization: {
		"Q43229":   1.0, // organization
		"Q4830453": 0.9, // business
		"Q783794":  0.8, // company
		"Q163740":  0.8, // nonprofit organization
	},
	entity.TypeGovernmentOrg: {
		"Q327333":  1.0, // government agency
		"Q7210356": 0.9, // political organization
		"Q43229":   0.7, // organization
		"Q7188":    0.8, // government
	},
	entity.TypeLocation: {
		"Q515":    1.0, // city
		"Q6256":   1.0, // country
		"Q82794":  0.9, // geographic region
		"Q35657":  0.9, // state
		"Q486972": 0.8, // human settlement
	},
	entity.TypeEvent: {
		"Q1190554":  1.0, // event
		"Q1656682":  0.9, // occurrence
		"Q18669875": 0.8, // recurring event
	},
}

// dbpediaTypeWeights scores a candidate's ontology classes against the
// declared entity type.
var dbpediaTypeWeights = map[entity.Type]map[string]float64{
	entity.TypePerson: {
		"Person":     1.0,
		"Artist":     0.8,
		"Politician": 0.8,
		"Writer":     0.8,
	},
	entity.TypeOrganization: {
		"Organisation":           1.0,
		"Company":                0.9,
		"Non-ProfitOrganisation": 0.8,
	},
	entity.TypeGovernmentOrg: {
		"GovernmentAgency": 1.0,
		"Government":       0.9,
		"Organisation":     0.7,
	},
	entity.TypeLocation: {
		"Place":                1.0,
		"City":                 1.0,
		"Country":              1.0,
		"PopulatedPlace":       0.9,
		"AdministrativeRegion": 0.8,
	},
	entity.TypeEvent: {
		"Event":       1.0,
		"SportsEvent": 0.9,
		"Election":    0.9,
	},
}

// ambiguousNames lists names routinely used for more than one kind of
// entity in news text, keyed by normalized form.
var ambiguousNames = map[string][]entity.Type{
	"washington": {entity.TypePerson, entity.TypeLocation, entity.TypeGovernmentOrg},
	"johnson":    {entity.TypePerson, entity.TypeOrganization, entity.TypeLocation},
	"clinton":    {entity.TypePerson, entity.TypeLocation},
	"jackson":    {entity.TypePerson, entity.TypeLocation},
	"lincoln":    {entity.TypePerson, entity.TypeLocation},
	"madison":    {entity.TypePerson, entity.TypeLocation},
	"congress":   {entity.TypeGovernmentOrg, entity.TypeEvent},
	"senate":     {entity.TypeGovernmentOrg, entity.TypeLocation},
	"sec":        {entity.TypeGovernmentOrg, entity.TypeOrganization},
	"doj":        {entity.TypeGovernmentOrg},
	"fbi":        {entity.TypeGovernmentOrg},
	"cia":        {entity.TypeGovernmentOrg},
}

// stopWords are dropped before comparing context against descriptions.
var stopWords = makeWordSet(`
	a an the and or but in on at to for of with by from as is was are were
	been be have has had do does did will would could should may might must
	shall can need that this these those it its they them their he she him
	her his we us our you your who which what when where why how all each
	every both few more most other some such no not only own same so than
	too very just
`)

func makeWordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
