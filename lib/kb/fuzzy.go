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

package kb

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// MatchConfidence scores how well a query matches a candidate label on a
// 0..1 scale. An exact match after lowercasing and trimming scores 1.0;
// anything else blends three fuzzy ratios, weighted toward whole-string and
// token-sorted similarity over partial overlap.
func MatchConfidence(query, label string) float64 {
	q := NormalizeQuery(query)
	l := NormalizeQuery(label)

	if q == l {
		return 1.0
	}

	ratio := float64(fuzzy.Ratio(q, l)) / 100.0
	tokenSort := float64(fuzzy.TokenSortRatio(q, l)) / 100.0
	partial := float64(fuzzy.PartialRatio(q, l)) / 100.0

	return ratio*0.4 + tokenSort*0.4 + partial*0.2
}
