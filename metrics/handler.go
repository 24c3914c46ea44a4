package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = newRegistry()

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	// Register all PromptHub metrics
	for _, collector := range allMetrics {
		reg.MustRegister(collector)
	}

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return reg
}

// Registry returns the underlying Prometheus registry.
func Registry() *prometheus.Registry {
	return registry
}

// Handler returns an http.Handler for the metrics endpoint.
// It is mounted into the API server rather than served on its own listener.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
