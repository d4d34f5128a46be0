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

package newsanalyzer

import (
	"fmt"
	"net/http"

	"github.com/bytedance/sonic/encoder"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Version information - set at build time via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// HealthResponse is the response for /healthz endpoint
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for /readyz endpoint
type ReadyResponse struct {
	Status  string   `json:"status"`
	Sources []string `json:"sources"`
}

// handleHealthz returns 200 if the service is running (liveness check)
func (ln *LinkerNode) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = encoder.NewStreamEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleReadyz returns 200 if the service is ready to accept requests
// (readiness check)
func (ln *LinkerNode) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Status:  "ready",
		Sources: []string{},
	}

	if ln.wikidata != nil {
		resp.Sources = append(resp.Sources, string(ln.wikidata.Source()))
	}
	if ln.dbpedia != nil {
		resp.Sources = append(resp.Sources, string(ln.dbpedia.Source()))
	}

	// The node cannot link anything without at least one knowledge base.
	if len(resp.Sources) == 0 {
		resp.Status = "not_ready"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = encoder.NewStreamEncoder(w).Encode(resp)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = encoder.NewStreamEncoder(w).Encode(resp)
}

// StartHealthServer starts the sidecar health/metrics server on its own
// port. /readyz flips to 200 once the ready check reports true, which lets
// orchestrators hold traffic until the API server is listening.
func StartHealthServer(logger *zap.Logger, port int, ready func() bool) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = encoder.NewStreamEncoder(w).Encode(HealthResponse{Status: "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = encoder.NewStreamEncoder(w).Encode(HealthResponse{Status: "not_ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = encoder.NewStreamEncoder(w).Encode(HealthResponse{Status: "ready"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.Info("Health server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server failed", zap.Error(err))
		}
	}()
}
