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

// Package disambig selects the best knowledge-base candidate for a mention
// by combining type, name, and context evidence into one score.
package disambig

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
)

const (
	// reviewThreshold flags results for human review below this score.
	reviewThreshold = 0.7

	// matchThreshold is the floor for emitting a match at all.
	matchThreshold = 0.5

	// closeScoreMargin flags a result when the two best scores are this
	// close, regardless of the absolute confidence.
	closeScoreMargin = 0.1

	// ambiguityPenalty scales scores for known ambiguous names.
	ambiguityPenalty = 0.8

	typeWeight    = 0.4
	nameWeight    = 0.3
	contextWeight = 0.3

	typeWeightNoContext = 0.5
	nameWeightNoContext = 0.5
)

// PenaltyMode controls when the ambiguity penalty applies.
type PenaltyMode string

const (
	// PenaltyNoContext applies the penalty only when the mention carries
	// no context to disambiguate with.
	PenaltyNoContext PenaltyMode = "no_context"

	// PenaltyNever disables the penalty.
	PenaltyNever PenaltyMode = "never"

	// PenaltyAlways applies the penalty to every known ambiguous name,
	// context or not.
	PenaltyAlways PenaltyMode = "always"
)

// ParsePenaltyMode parses a penalty mode name. The empty string selects the
// default mode.
func ParsePenaltyMode(s string) (PenaltyMode, error) {
	switch PenaltyMode(strings.ToLower(strings.TrimSpace(s))) {
	case PenaltyNoContext, "":
		return PenaltyNoContext, nil
	case PenaltyNever:
		return PenaltyNever, nil
	case PenaltyAlways:
		return PenaltyAlways, nil
	}
	return "", fmt.Errorf("unknown ambiguity penalty mode %q", s)
}

// ScoredCandidate pairs a candidate with its disambiguation sub-scores.
// The candidate itself is never mutated; scores live on the wrapper.
type ScoredCandidate struct {
	kb.Candidate

	TypeScore    float64 `json:"type_score"`
	NameScore    float64 `json:"name_score"`
	ContextScore float64 `json:"context_score"`
	FinalScore   float64 `json:"final_score"`
}

// Result is the outcome of disambiguating one mention.
type Result struct {
	Text        string            `json:"text"`
	Type        entity.Type       `json:"entity_type"`
	Match       *ScoredCandidate  `json:"match,omitempty"`
	Confidence  float64           `json:"confidence"`
	NeedsReview bool              `json:"needs_review"`
	IsAmbiguous bool              `json:"is_ambiguous"`
	Candidates  []ScoredCandidate `json:"candidates,omitempty"`
}

// Disambiguator scores candidates for mentions. The zero value is not
// usable; construct with New.
type Disambiguator struct {
	penaltyMode PenaltyMode
	logger      *zap.Logger
}

// Option configures the disambiguator.
type Option func(*Disambiguator)

// WithPenaltyMode sets when the ambiguity penalty applies.
func WithPenaltyMode(mode PenaltyMode) Option {
	return func(d *Disambiguator) {
		d.penaltyMode = mode
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Disambiguator) {
		d.logger = logger
	}
}

// New creates a disambiguator.
func New(opts ...Option) *Disambiguator {
	d := &Disambiguator{
		penaltyMode: PenaltyNoContext,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Disambiguate scores every candidate against the mention and selects the
// best one. Scoring is a pure function of its inputs: the same mention and
// candidates always produce the same result.
func (d *Disambiguator) Disambiguate(mention entity.Mention, candidates []kb.Candidate) Result {
	result := Result{Text: mention.Text, Type: mention.Type}

	if len(candidates) == 0 {
		d.logger.Info("No candidates to disambiguate", zap.String("text", mention.Text))
		result.NeedsReview = true
		return result
	}

	result.IsAmbiguous = isAmbiguousName(mention.Text)
	if result.IsAmbiguous {
		d.logger.Info("Ambiguous name detected", zap.String("text", mention.Text))
	}

	hasContext := strings.TrimSpace(mention.Context) != ""
	penalize := result.IsAmbiguous && d.penalizes(hasContext)

	scored := make([]ScoredCandidate, len(candidates))
	for i, candidate := range candidates {
		scored[i] = score(mention, candidate, hasContext, penalize)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	best := scored[0]
	result.Confidence = best.FinalScore
	result.NeedsReview = best.FinalScore < reviewThreshold
	result.Candidates = scored

	if len(scored) > 1 {
		if diff := best.FinalScore - scored[1].FinalScore; diff < closeScoreMargin {
			result.NeedsReview = true
			d.logger.Info("Close disambiguation scores",
				zap.String("text", mention.Text),
				zap.String("best", best.Label),
				zap.Float64("best_score", best.FinalScore),
				zap.String("runner_up", scored[1].Label),
				zap.Float64("runner_up_score", scored[1].FinalScore))
		}
	}

	if best.FinalScore >= matchThreshold {
		result.Match = &best
	}

	d.logger.Info("Disambiguation complete",
		zap.String("text", mention.Text),
		zap.String("best", best.Label),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("needs_review", result.NeedsReview))

	return result
}

func (d *Disambiguator) penalizes(hasContext bool) bool {
	switch d.penaltyMode {
	case PenaltyNever:
		return false
	case PenaltyAlways:
		return true
	default:
		return !hasContext
	}
}

func score(mention entity.Mention, candidate kb.Candidate, hasContext, penalize bool) ScoredCandidate {
	sc := ScoredCandidate{
		Candidate:    candidate,
		TypeScore:    typeScore(mention.Type, candidate.Types, candidate.Source),
		NameScore:    nameScore(mention.Text, candidate.Label, candidate.Aliases),
		ContextScore: 0.5,
	}

	if hasContext {
		sc.ContextScore = contextScore(mention.Context, candidate.Description)
		sc.FinalScore = sc.TypeScore*typeWeight + sc.NameScore*nameWeight + sc.ContextScore*contextWeight
	} else {
		sc.FinalScore = sc.TypeScore*typeWeightNoContext + sc.NameScore*nameWeightNoContext
	}

	if penalize {
		sc.FinalScore *= ambiguityPenalty
	}
	return sc
}

// typeScore rates how well the candidate's native type codes fit the
// declared type. A candidate that reports no types stays neutral; one whose
// types are all unrelated scores zero.
func typeScore(declared entity.Type, candidateTypes []string, source kb.Source) float64 {
	if len(candidateTypes) == 0 {
		return 0.5
	}

	weights := wikidataTypeWeights
	if source == kb.SourceDBpedia {
		weights = dbpediaTypeWeights
	}
	table, ok := weights[declared]
	if !ok {
		return 0.5
	}

	best := 0.0
	for _, t := range candidateTypes {
		if w, ok := table[kb.URITail(t)]; ok && w > best {
			best = w
		}
	}
	return best
}

// nameScore rates how closely the candidate's label (or aliases) matches
// the mention text. Structural matches outrank the fuzzy blend.
func nameScore(text, label string, aliases []string) float64 {
	n1 := normalize(text)
	n2 := normalize(label)

	if n1 == n2 {
		return 1.0
	}

	acronym := isAcronym(text)
	if acronym && matchesAcronym(text, label) {
		return 0.95
	}

	if strings.Contains(n2, n1) || strings.Contains(n1, n2) {
		return 0.85
	}

	for _, alias := range aliases {
		if n1 == normalize(alias) {
			return 0.95
		}
		if acronym && matchesAcronym(text, alias) {
			return 0.9
		}
	}

	return kb.MatchConfidence(n1, n2)
}

// contextScore measures content-word overlap between the mention's context
// and the candidate's description. Five shared words saturate the score.
func contextScore(context, description string) float64 {
	if description == "" {
		return 0.5
	}

	contextWords := contentWords(context)
	descWords := contentWords(description)
	if len(descWords) == 0 || len(contextWords) == 0 {
		return 0.5
	}

	overlap := 0
	for w := range contextWords {
		if _, ok := descWords[w]; ok {
			overlap++
		}
	}
	return math.Min(1.0, float64(overlap)/5.0)
}

func contentWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(normalize(text)) {
		if _, stop := stopWords[w]; !stop {
			words[w] = struct{}{}
		}
	}
	return words
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

// normalize lowercases, strips punctuation except hyphens, and collapses
// whitespace.
func normalize(text string) string {
	text = strings.ToLower(text)
	text = punctuation.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// isAcronym reports whether text looks like an acronym: two to six
// uppercase letters.
func isAcronym(text string) bool {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) < 2 || len(runes) > 6 {
		return false
	}
	for _, r := range runes {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// matchesAcronym reports whether the full name could expand the acronym,
// either through its initial letters or by spelling the acronym in
// parentheses.
func matchesAcronym(acronym, fullName string) bool {
	acronym = strings.ToUpper(strings.TrimSpace(acronym))
	words := strings.Fields(fullName)

	if len(words) >= len([]rune(acronym)) {
		var initials strings.Builder
		for _, w := range words {
			initials.WriteRune(unicode.ToUpper([]rune(w)[0]))
		}
		if strings.Contains(initials.String(), acronym) {
			return true
		}
	}

	return strings.Contains(strings.ToUpper(fullName), "("+acronym+")")
}

func isAmbiguousName(name string) bool {
	_, ok := ambiguousNames[normalize(name)]
	return ok
}
