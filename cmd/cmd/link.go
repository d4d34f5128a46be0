// Copyright 2025 NewsAnalyzer, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/newsanalyzer-admin/news-analyzer/lib/cli"
)

var linkCmd = &cobra.Command{
	Use:   "link <mention>",
	Short: "Link a single entity mention",
	Long: `Resolve one entity mention against the configured knowledge bases
and print the linking result.

Examples:
  # Link a government agency
  newsanalyzer link "Environmental Protection Agency" --type government_org

  # Restrict the lookup to Wikidata
  newsanalyzer link "Berlin" --type location --sources wikidata

  # Disambiguate with surrounding text
  newsanalyzer link "Springfield" --type location --context "Illinois state capital"

  # Raise the confidence bar and print raw JSON
  newsanalyzer link "Springfield" --type location --min-confidence 0.9 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)

	// Link command flags
	linkCmd.Flags().String("type", "", "entity type (person, organization, government_org, location, event)")
	linkCmd.Flags().String("context", "", "surrounding text that disambiguates the mention")
	linkCmd.Flags().String("sources", "both", "knowledge bases to query (wikidata, dbpedia, both)")
	linkCmd.Flags().Float64("min-confidence", 0, "confidence needed for automatic linking (0 uses the configured default)")
	linkCmd.Flags().Int("max-candidates", 0, "max alternatives attached when review is needed (0 uses the configured default)")
	linkCmd.Flags().Bool("json", false, "print the raw JSON link instead of a summary")
	_ = linkCmd.MarkFlagRequired("type")
}

func runLink(cmd *cobra.Command, args []string) error {
	typeStr, _ := cmd.Flags().GetString("type")
	contextStr, _ := cmd.Flags().GetString("context")
	sourcesStr, _ := cmd.Flags().GetString("sources")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	maxCandidates, _ := cmd.Flags().GetInt("max-candidates")
	asJSON, _ := cmd.Flags().GetBool("json")

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	// One-off lookups share the server's upstream settings
	timeout, _ := time.ParseDuration(viper.GetString("request_timeout"))

	return cli.RunLink(cli.LinkOptions{
		Text:    args[0],
		Type:    typeStr,
		Context: contextStr,

		Sources:       sourcesStr,
		MinConfidence: minConfidence,
		MaxCandidates: maxCandidates,

		UserAgent:              viper.GetString("user_agent"),
		WikidataEndpoint:       viper.GetString("wikidata.endpoint"),
		WikidataSparqlEndpoint: viper.GetString("wikidata.sparql_endpoint"),
		DbpediaEndpoint:        viper.GetString("dbpedia.endpoint"),
		DbpediaDataEndpoint:    viper.GetString("dbpedia.data_endpoint"),
		AmbiguityPenalty:       viper.GetString("ambiguity_penalty"),
		Timeout:                timeout,

		JSON:   asJSON,
		Logger: logger,
	})
}
