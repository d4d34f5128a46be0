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
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	newsanalyzer "github.com/newsanalyzer-admin/news-analyzer"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the supported knowledge bases",
	Long: `List the knowledge bases the linker can query, with their endpoints
and rate limits.`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	// Sources command flags
	sourcesCmd.Flags().Bool("json", false, "print the catalog as JSON")
}

func runSources(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	sources := newsanalyzer.Sources()

	if asJSON {
		data, err := json.MarshalIndent(sources, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding sources: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tENDPOINT\tMIN INTERVAL\tDESCRIPTION")
	for _, s := range sources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Endpoint, s.MinInterval, s.Description)
	}
	return tw.Flush()
}
