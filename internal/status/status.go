// Copyright (c) 2013 Uwe Hoffmann. All rights reserved.

/*
Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions are
met:

   * Redistributions of source code must retain the above copyright
notice, this list of conditions and the following disclaimer.
   * Redistributions in binary form must reproduce the above
copyright notice, this list of conditions and the following disclaimer
in the documentation and/or other materials provided with the
distribution.
   * Neither the name of Google Inc. nor the names of its
contributors may be used to endorse or promote products derived from
this software without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
"AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
(INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
*/

// Package status serves the pipeline's throttling/health endpoints over
// plain net/http, the same serving idiom cmds/rombaserver/main.go uses
// (http.Handle plus expvar/pprof debug mounts), generalized from that
// server's gorilla/rpc JSON-RPC surface down to the two read-only
// endpoints this pipeline needs.
package status

import (
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotFunc returns the current status payload to serialize. Using a
// func instead of an interface keeps this package from importing
// pipeline, which already imports status for its Metrics and would
// otherwise form an import cycle.
type SnapshotFunc func() interface{}

// Metrics are the prometheus gauges the pipeline updates as it runs,
// mirroring rockstar-0000-aistore's pattern of a handful of package-
// level gauge vectors registered once at startup.
type Metrics struct {
	Reserved       prometheus.Gauge
	ActiveWorkers  *prometheus.GaugeVec
	TotalCompleted prometheus.Counter
	TotalErrors    prometheus.Counter
}

// NewMetrics registers and returns the pipeline's prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		Reserved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rehydrate_disk_reserved_bytes",
			Help: "Bytes currently reserved against the scratch disk budget.",
		}),
		ActiveWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rehydrate_active_workers",
			Help: "Number of workers currently executing a task, by stage.",
		}, []string{"stage"}),
		TotalCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rehydrate_tasks_completed_total",
			Help: "Total archive sets successfully rehydrated.",
		}),
		TotalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rehydrate_tasks_failed_total",
			Help: "Total archive sets that ended in a failure status.",
		}),
	}
	prometheus.MustRegister(m.Reserved, m.ActiveWorkers, m.TotalCompleted, m.TotalErrors)
	return m
}

// Server serves /throttling, /healthz, /metrics, and the expvar/pprof
// debug endpoints, all registered explicitly on the server's own mux in
// Start.
type Server struct {
	snap SnapshotFunc
	addr string
}

func New(addr string, snap SnapshotFunc) *Server {
	return &Server{snap: snap, addr: addr}
}

// Start registers the handlers and begins serving in a goroutine. It
// never blocks; a listener failure is logged fatally, matching
// cmds/rombaserver/main.go's log.Fatal(http.ListenAndServe(...)).
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/throttling", s.handleThrottling)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	glog.Infof("status server listening on %s", s.addr)
	go func() {
		if err := http.ListenAndServe(s.addr, mux); err != nil {
			glog.Fatalf("status server failed: %v", err)
		}
	}()
}

func (s *Server) handleThrottling(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snap()); err != nil {
		glog.Errorf("encoding /throttling response: %v", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}
