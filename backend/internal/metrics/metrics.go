// Package metrics holds the Prometheus collectors of the server. They are
// registered with the default registry on package load.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kgchat_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// Buckets span cached graph reads up to full generator turns
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kgchat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	TurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kgchat_turns_total",
		Help: "Conversation turns recorded",
	})

	GeneratorLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kgchat_generator_latency_seconds",
		Help:    "Time spent waiting for the text generator",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	SubgraphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kgchat_subgraph_nodes",
		Help:    "Nodes in each contextual subgraph",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kgchat_graph_nodes",
		Help: "Nodes in the published graph snapshot",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kgchat_graph_edges",
		Help: "Edges in the published graph snapshot",
	})

	GraphReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kgchat_graph_reloads_total",
			Help: "Graph reloads by result",
		},
		[]string{"result"},
	)

	CentralityFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kgchat_centrality_fallbacks_total",
		Help: "Snapshots whose centrality fell back to degree",
	})
)

// Reload results
const (
	ReloadOK       = "ok"
	ReloadDegraded = "degraded"
)

// ObserveReload records a published snapshot. A non-nil err marks the reload
// as degraded.
func ObserveReload(nodes, edges int, fellBack bool, err error) {
	GraphNodes.Set(float64(nodes))
	GraphEdges.Set(float64(edges))
	result := ReloadOK
	if err != nil {
		result = ReloadDegraded
	}
	GraphReloadsTotal.WithLabelValues(result).Inc()
	if fellBack {
		CentralityFallbacksTotal.Inc()
	}
}
