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
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	newsanalyzer "github.com/newsanalyzer-admin/news-analyzer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the entity linking server",
	Long:  `Start the entity linking server that resolves mentions against Wikidata and DBpedia.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Run command flags
	runCmd.Flags().Int("health-port", 4501, "health/metrics server port")
	mustBindPFlag("health_port", runCmd.Flags().Lookup("health-port"))
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create logger from config
	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Running as newsanalyzer")

	// Build node config from viper/env
	cfg := newsanalyzer.Config{
		ApiUrl:                 viper.GetString("api_url"),
		UserAgent:              viper.GetString("user_agent"),
		WikidataEndpoint:       viper.GetString("wikidata.endpoint"),
		WikidataSparqlEndpoint: viper.GetString("wikidata.sparql_endpoint"),
		WikidataMinInterval:    viper.GetString("wikidata.min_interval"),
		DbpediaEndpoint:        viper.GetString("dbpedia.endpoint"),
		DbpediaDataEndpoint:    viper.GetString("dbpedia.data_endpoint"),
		DbpediaMinInterval:     viper.GetString("dbpedia.min_interval"),
		CacheTTL:               viper.GetString("cache_ttl"),
		CacheCapacity:          viper.GetInt("cache_capacity"),
		RequestTimeout:         viper.GetString("request_timeout"),
		MinConfidence:          viper.GetFloat64("min_confidence"),
		MaxCandidates:          viper.GetInt("max_candidates"),
		AlwaysQueryBoth:        viper.GetBool("always_query_both"),
		AmbiguityPenalty:       viper.GetString("ambiguity_penalty"),
		MaxConcurrentRequests:  viper.GetInt("max_concurrent_requests"),
		MaxQueueSize:           viper.GetInt("max_queue_size"),
		QueueTimeout:           viper.GetString("queue_timeout"),
	}

	// Track readiness state
	ready := &atomic.Bool{}
	ready.Store(false)
	readyC := make(chan struct{})

	// Start health server with readiness checker
	newsanalyzer.StartHealthServer(logger, viper.GetInt("health_port"), ready.Load)

	// Wait for ready signal in background
	go func() {
		<-readyC
		ready.Store(true)
		logger.Info("NewsAnalyzer is ready")
	}()

	newsanalyzer.RunAsLinker(ctx, logger, cfg, readyC)
	return nil
}
