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

package linker

import "github.com/prometheus/client_golang/prometheus"

var linkResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "newsanalyzer",
		Subsystem: "linker",
		Name:      "link_results_total",
		Help:      "The total number of finished links by final status.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(linkResults)
}

// RecordLinkResult counts one finished link by its final status
func RecordLinkResult(status string) {
	linkResults.WithLabelValues(status).Inc()
}
