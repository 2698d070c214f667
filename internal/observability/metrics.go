package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the adapter library and its
// query service.
type Metrics struct {
	// --- Adapter queries ---
	AdapterCalls    *prometheus.CounterVec
	AdapterErrors   *prometheus.CounterVec
	AdapterDuration *prometheus.HistogramVec

	// --- Upstream chain reads ---
	UpstreamCalls    *prometheus.CounterVec
	UpstreamFailures *prometheus.CounterVec

	// --- Metadata resolution ---
	MetadataFileHits       *prometheus.CounterVec
	MetadataChainFallbacks *prometheus.CounterVec

	// --- HTTP surface ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	// Chain reads sit behind RPC round trips; buckets span 5ms to 10s.
	rpcBuckets := []float64{
		0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
	}

	return &Metrics{
		AdapterCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_adapter_calls_total",
			Help: "Adapter query calls by protocol, chain, and operation",
		}, []string{"protocol", "chain", "operation"}),

		AdapterErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_adapter_errors_total",
			Help: "Adapter query failures by protocol, chain, operation, and kind",
		}, []string{"protocol", "chain", "operation", "kind"}),

		AdapterDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "defi_adapter_call_duration_seconds",
			Help:    "End-to-end adapter query duration",
			Buckets: rpcBuckets,
		}, []string{"protocol", "chain", "operation"}),

		UpstreamCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_upstream_calls_total",
			Help: "Read-only RPC calls issued to chain nodes",
		}, []string{"chain"}),

		UpstreamFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_upstream_failures_total",
			Help: "Failed RPC calls by chain",
		}, []string{"chain"}),

		MetadataFileHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_metadata_file_hits_total",
			Help: "Market metadata served from the file cache",
		}, []string{"protocol", "chain"}),

		MetadataChainFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_metadata_chain_fallbacks_total",
			Help: "Market metadata resolved by live on-chain lookup",
		}, []string{"protocol", "chain"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "defi_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: rpcBuckets,
		}, []string{"route"}),
	}
}

// NewTestMetrics creates an unregistered metric bundle for tests, so multiple
// test packages do not fight over the default registry.
func NewTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		AdapterCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_adapter_calls_total",
		}, []string{"protocol", "chain", "operation"}),
		AdapterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_adapter_errors_total",
		}, []string{"protocol", "chain", "operation", "kind"}),
		AdapterDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "defi_adapter_call_duration_seconds",
		}, []string{"protocol", "chain", "operation"}),
		UpstreamCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_upstream_calls_total",
		}, []string{"chain"}),
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_upstream_failures_total",
		}, []string{"chain"}),
		MetadataFileHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_metadata_file_hits_total",
		}, []string{"protocol", "chain"}),
		MetadataChainFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_metadata_chain_fallbacks_total",
		}, []string{"protocol", "chain"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defi_http_requests_total",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "defi_http_request_duration_seconds",
		}, []string{"route"}),
	}
}
