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

// Package linker orchestrates knowledge-base lookups and disambiguation,
// turning entity mentions into linked records with external identifiers.
package linker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/newsanalyzer-admin/news-analyzer/lib/disambig"
	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb"
)

const (
	// DefaultMinConfidence is the score needed for automatic linking.
	DefaultMinConfidence = 0.7

	// DefaultMaxAlternatives bounds the candidates attached to links that
	// need review.
	DefaultMaxAlternatives = 5

	// MaxAlternativesCap is the hard ceiling on attached candidates,
	// whatever the request asks for.
	MaxAlternativesCap = 10

	// wikidataURLPrefix builds the canonical page URL for a linked item.
	wikidataURLPrefix = "https://www.wikidata.org/wiki/"
)

// SourceMode selects which knowledge bases a link request queries.
type SourceMode string

const (
	SourcesWikidata SourceMode = "wikidata"
	SourcesDBpedia  SourceMode = "dbpedia"
	SourcesBoth     SourceMode = "both"
)

// ParseSourceMode parses a source selection. The empty string selects both.
func ParseSourceMode(s string) (SourceMode, error) {
	switch SourceMode(strings.ToLower(strings.TrimSpace(s))) {
	case SourcesBoth, "":
		return SourcesBoth, nil
	case SourcesWikidata:
		return SourcesWikidata, nil
	case SourcesDBpedia:
		return SourcesDBpedia, nil
	}
	return "", fmt.Errorf("unknown source selection %q", s)
}

// Options tune one linking request. Zero fields inherit the linker's
// defaults.
type Options struct {
	Sources         SourceMode `json:"sources,omitempty"`
	MinConfidence   float64    `json:"min_confidence,omitempty"`
	MaxAlternatives int        `json:"max_candidates,omitempty"`
	AlwaysQueryBoth bool       `json:"always_query_both,omitempty"`
}

func (o Options) normalized(defaults Options) Options {
	if o.Sources == "" {
		o.Sources = defaults.Sources
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = defaults.MinConfidence
	}
	if o.MaxAlternatives <= 0 {
		o.MaxAlternatives = defaults.MaxAlternatives
	}
	if o.MaxAlternatives > MaxAlternativesCap {
		o.MaxAlternatives = MaxAlternativesCap
	}
	o.AlwaysQueryBoth = o.AlwaysQueryBoth || defaults.AlwaysQueryBoth
	return o
}

// Linker coordinates the lookup clients and the disambiguator. One Link
// comes out per mention, whatever happens along the way.
type Linker struct {
	wikidata      kb.Client
	dbpedia       kb.Client
	disambiguator *disambig.Disambiguator
	defaults      Options
	logger        *zap.Logger
}

// Option configures the linker.
type Option func(*Linker)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Linker) {
		l.logger = logger
	}
}

// WithDisambiguator replaces the default disambiguator.
func WithDisambiguator(d *disambig.Disambiguator) Option {
	return func(l *Linker) {
		l.disambiguator = d
	}
}

// WithDefaults sets the baseline options requests inherit. Zero fields keep
// the built-in defaults.
func WithDefaults(defaults Options) Option {
	return func(l *Linker) {
		l.defaults = defaults.normalized(l.defaults)
	}
}

// New creates a linker over the given lookup clients.
func New(wikidata, dbpedia kb.Client, opts ...Option) *Linker {
	l := &Linker{
		wikidata:      wikidata,
		dbpedia:       dbpedia,
		disambiguator: disambig.New(),
		defaults: Options{
			Sources:         SourcesBoth,
			MinConfidence:   DefaultMinConfidence,
			MaxAlternatives: DefaultMaxAlternatives,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Defaults returns the options requests inherit when they leave fields
// unset.
func (l *Linker) Defaults() Options {
	return l.defaults
}

// LinkOne links a single mention with the linker's default options.
func (l *Linker) LinkOne(ctx context.Context, mention entity.Mention) entity.Link {
	return l.LinkOneWith(ctx, mention, l.defaults)
}

// LinkOneWith links a single mention. Failures are carried on the returned
// link as status error; the method itself never fails.
func (l *Linker) LinkOneWith(ctx context.Context, mention entity.Mention, opts Options) entity.Link {
	link := l.linkOne(ctx, mention, opts.normalized(l.defaults))
	RecordLinkResult(string(link.Status))
	return link
}

func (l *Linker) linkOne(ctx context.Context, mention entity.Mention, opts Options) entity.Link {
	link := entity.Link{
		Text:       mention.Text,
		EntityType: mention.Type,
		Status:     entity.StatusNotFound,
	}

	if strings.TrimSpace(mention.Text) == "" {
		link.Status = entity.StatusError
		link.Error = kb.ErrEmptyQuery.Error()
		link.NeedsReview = true
		return link
	}

	l.logger.Info("Linking entity",
		zap.String("text", mention.Text),
		zap.String("type", mention.Type.String()),
		zap.String("sources", string(opts.Sources)))

	candidates, err := l.gatherCandidates(ctx, mention, opts)
	if err != nil {
		l.logger.Error("Entity linking failed",
			zap.String("text", mention.Text),
			zap.Error(err))
		link.Status = entity.StatusError
		link.Error = err.Error()
		link.NeedsReview = true
		return link
	}

	if len(candidates) == 0 {
		l.logger.Info("No candidates found", zap.String("text", mention.Text))
		link.NeedsReview = true
		return link
	}

	result := l.disambiguator.Disambiguate(mention, candidates)

	link.Confidence = result.Confidence
	link.NeedsReview = result.NeedsReview
	link.IsAmbiguous = result.IsAmbiguous

	if result.Match != nil {
		link.Source = string(result.Match.Source)
		switch result.Match.Source {
		case kb.SourceWikidata:
			link.WikidataID = result.Match.ID
			link.WikidataURL = wikidataURLPrefix + result.Match.ID
		case kb.SourceDBpedia:
			link.DBpediaURI = result.Match.ID
		}

		if result.Confidence >= opts.MinConfidence {
			link.Status = entity.StatusLinked
		} else {
			link.Status = entity.StatusNeedsReview
			link.NeedsReview = true
		}
	}

	if link.NeedsReview {
		link.Candidates = alternatives(result.Candidates, opts.MaxAlternatives)
	}

	l.logger.Info("Entity linked",
		zap.String("text", mention.Text),
		zap.String("status", string(link.Status)),
		zap.Float64("confidence", link.Confidence))

	return link
}

// gatherCandidates queries the selected sources. With both sources enabled,
// DBpedia serves as the fallback and is only consulted when Wikidata comes
// back empty, unless the request always queries both.
func (l *Linker) gatherCandidates(ctx context.Context, mention entity.Mention, opts Options) ([]kb.Candidate, error) {
	var entityType *entity.Type
	if mention.Type != "" {
		entityType = &mention.Type
	}
	var candidates []kb.Candidate

	if opts.Sources == SourcesWikidata || opts.Sources == SourcesBoth {
		result, err := l.wikidata.Search(ctx, mention.Text, entityType, false)
		if err != nil {
			return nil, fmt.Errorf("querying wikidata: %w", err)
		}
		candidates = append(candidates, result.Candidates...)
	}

	if opts.Sources == SourcesDBpedia ||
		(opts.Sources == SourcesBoth && (len(candidates) == 0 || opts.AlwaysQueryBoth)) {
		result, err := l.dbpedia.Search(ctx, mention.Text, entityType, false)
		if err != nil {
			return nil, fmt.Errorf("querying dbpedia: %w", err)
		}
		candidates = append(candidates, result.Candidates...)
	}

	return candidates, nil
}

// alternatives converts ranked candidates into the bounded audit view
// attached to links that need review.
func alternatives(scored []disambig.ScoredCandidate, limit int) []entity.CandidateView {
	if len(scored) > limit {
		scored = scored[:limit]
	}
	views := make([]entity.CandidateView, len(scored))
	for i, sc := range scored {
		views[i] = entity.CandidateView{
			ID:          sc.ID,
			Label:       sc.Label,
			Description: sc.Description,
			Types:       sc.Types,
			Source:      string(sc.Source),
			Score:       sc.FinalScore,
		}
	}
	return views
}

// LinkBatch links mentions sequentially in input order with the linker's
// default options.
func (l *Linker) LinkBatch(ctx context.Context, mentions []entity.Mention) ([]entity.Link, entity.LinkStats) {
	return l.LinkBatchWith(ctx, mentions, l.defaults)
}

// LinkBatchWith links mentions sequentially in input order. Statistics
// count each mention exactly once by its final status. A failure on one
// mention never disturbs its siblings.
func (l *Linker) LinkBatchWith(ctx context.Context, mentions []entity.Mention, opts Options) ([]entity.Link, entity.LinkStats) {
	l.logger.Info("Batch linking entities", zap.Int("count", len(mentions)))

	links := make([]entity.Link, 0, len(mentions))
	var stats entity.LinkStats

	for _, mention := range mentions {
		link := l.LinkOneWith(ctx, mention, opts)
		links = append(links, link)
		stats.Record(link.Status)
	}

	l.logger.Info("Batch linking complete",
		zap.Int("total", stats.Total),
		zap.Int("linked", stats.Linked),
		zap.Int("needs_review", stats.NeedsReview),
		zap.Int("not_found", stats.NotFound),
		zap.Int("errors", stats.Errors))

	return links, stats
}
