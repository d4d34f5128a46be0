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

// Package cli provides shared functions for one-off entity linking from the
// command line. The cobra layer stays thin and delegates here.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/newsanalyzer-admin/news-analyzer/lib/disambig"
	"github.com/newsanalyzer-admin/news-analyzer/lib/entity"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb/dbpedia"
	"github.com/newsanalyzer-admin/news-analyzer/lib/kb/wikidata"
	"github.com/newsanalyzer-admin/news-analyzer/lib/linker"
)

// LinkOptions contains options for linking one mention from the command line
type LinkOptions struct {
	Text    string
	Type    string
	Context string

	Sources       string
	MinConfidence float64
	MaxCandidates int

	UserAgent              string
	WikidataEndpoint       string
	WikidataSparqlEndpoint string
	DbpediaEndpoint        string
	DbpediaDataEndpoint    string
	AmbiguityPenalty       string
	Timeout                time.Duration

	JSON   bool
	Logger *zap.Logger
}

// RunLink resolves a single mention against the configured knowledge bases
// and prints the result to stdout.
func RunLink(opts LinkOptions) error {
	entityType, err := entity.ParseType(opts.Type)
	if err != nil {
		return err
	}
	mode, err := linker.ParseSourceMode(opts.Sources)
	if err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	wikidataOpts := []wikidata.Option{
		wikidata.WithLogger(logger.Named("wikidata")),
	}
	if opts.WikidataEndpoint != "" {
		wikidataOpts = append(wikidataOpts, wikidata.WithEndpoint(opts.WikidataEndpoint))
	}
	if opts.WikidataSparqlEndpoint != "" {
		wikidataOpts = append(wikidataOpts, wikidata.WithSPARQLEndpoint(opts.WikidataSparqlEndpoint))
	}
	if opts.UserAgent != "" {
		wikidataOpts = append(wikidataOpts, wikidata.WithUserAgent(opts.UserAgent))
	}
	wd := wikidata.NewClient(wikidataOpts...)
	defer wd.Close()

	dbpediaOpts := []dbpedia.Option{
		dbpedia.WithLogger(logger.Named("dbpedia")),
	}
	if opts.DbpediaEndpoint != "" {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithEndpoint(opts.DbpediaEndpoint))
	}
	if opts.DbpediaDataEndpoint != "" {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithDataEndpoint(opts.DbpediaDataEndpoint))
	}
	if opts.UserAgent != "" {
		dbpediaOpts = append(dbpediaOpts, dbpedia.WithUserAgent(opts.UserAgent))
	}
	dp := dbpedia.NewClient(dbpediaOpts...)
	defer dp.Close()

	linkerOpts := []linker.Option{
		linker.WithLogger(logger.Named("linker")),
	}
	if opts.AmbiguityPenalty != "" {
		penaltyMode, err := disambig.ParsePenaltyMode(opts.AmbiguityPenalty)
		if err != nil {
			return err
		}
		linkerOpts = append(linkerOpts, linker.WithDisambiguator(disambig.New(
			disambig.WithPenaltyMode(penaltyMode),
			disambig.WithLogger(logger.Named("disambig")),
		)))
	}
	l := linker.New(wd, dp, linkerOpts...)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	mention := entity.Mention{
		Text:    opts.Text,
		Type:    entityType,
		Context: opts.Context,
	}
	link := l.LinkOneWith(ctx, mention, linker.Options{
		Sources:         mode,
		MinConfidence:   opts.MinConfidence,
		MaxAlternatives: opts.MaxCandidates,
	})

	if opts.JSON {
		data, err := json.MarshalIndent(link, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding link: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	PrintLink(os.Stdout, link)
	return nil
}

// PrintLink renders a link result as a human-readable summary.
func PrintLink(w io.Writer, link entity.Link) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Text:\t%s\n", link.Text)
	fmt.Fprintf(tw, "Type:\t%s\n", link.EntityType)
	fmt.Fprintf(tw, "Status:\t%s\n", link.Status)
	fmt.Fprintf(tw, "Confidence:\t%.3f\n", link.Confidence)
	if link.WikidataID != "" {
		fmt.Fprintf(tw, "Wikidata:\t%s (%s)\n", link.WikidataID, link.WikidataURL)
	}
	if link.DBpediaURI != "" {
		fmt.Fprintf(tw, "DBpedia:\t%s\n", link.DBpediaURI)
	}
	if link.Source != "" {
		fmt.Fprintf(tw, "Source:\t%s\n", link.Source)
	}
	if link.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", link.Error)
	}
	_ = tw.Flush()

	if len(link.Candidates) > 0 {
		fmt.Fprintln(w, "\nCandidates:")
		ctw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(ctw, "  ID\tLABEL\tSOURCE\tSCORE")
		for _, c := range link.Candidates {
			fmt.Fprintf(ctw, "  %s\t%s\t%s\t%.3f\n", c.ID, c.Label, c.Source, c.Score)
		}
		_ = ctw.Flush()
	}
}
