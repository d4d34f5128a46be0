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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set by main from the build's ldflags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "newsanalyzer",
	Short: "Entity linking service for news analysis",
	Long: `NewsAnalyzer resolves entity mentions extracted from news articles
against public knowledge bases (Wikidata and DBpedia), attaching stable
identifiers and confidence scores.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Flags shared by every subcommand
	rootCmd.PersistentFlags().String("api-url", "http://localhost:4500", "address the API server binds to")
	mustBindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-style", "console", "log style (console, json)")
	mustBindPFlag("log.style", rootCmd.PersistentFlags().Lookup("log-style"))
}

// initConfig wires environment variables and defaults into viper. Every key
// can be set via NEWSANALYZER_* variables, with dots replaced by underscores
// (for example NEWSANALYZER_WIKIDATA_ENDPOINT).
func initConfig() {
	viper.SetEnvPrefix("NEWSANALYZER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("api_url", "http://localhost:4500")
	viper.SetDefault("health_port", 4501)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.style", "console")

	viper.SetDefault("user_agent", "NewsAnalyzer/2.0 (https://newsanalyzer.org; contact@newsanalyzer.org)")
	viper.SetDefault("wikidata.endpoint", "https://www.wikidata.org/w/api.php")
	viper.SetDefault("wikidata.sparql_endpoint", "https://query.wikidata.org/sparql")
	viper.SetDefault("wikidata.min_interval", "1s")
	viper.SetDefault("dbpedia.endpoint", "https://lookup.dbpedia.org/api/search")
	viper.SetDefault("dbpedia.data_endpoint", "https://dbpedia.org/data")
	viper.SetDefault("dbpedia.min_interval", "500ms")

	viper.SetDefault("cache_ttl", "24h")
	viper.SetDefault("cache_capacity", 1000)
	viper.SetDefault("request_timeout", "10s")

	viper.SetDefault("min_confidence", 0.7)
	viper.SetDefault("max_candidates", 5)
	viper.SetDefault("always_query_both", false)
	viper.SetDefault("ambiguity_penalty", "no_context")

	viper.SetDefault("max_concurrent_requests", 10)
	viper.SetDefault("max_queue_size", 100)
	viper.SetDefault("queue_timeout", "30s")
}

// mustBindPFlag panics when a flag cannot back a config key, which only
// happens on a typo at init time.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %q: %v", key, err))
	}
}

// newLogger builds the process logger from the log.level and log.style keys.
func newLogger() *zap.Logger {
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	if viper.GetString("log.style") == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return zap.Must(cfg.Build())
}
