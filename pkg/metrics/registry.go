// Package metrics owns the process-wide Prometheus registry and the HTTP
// server that exposes it.
//
// Metrics are opt-in. Until InitRegistry is called IsEnabled reports false
// and the constructors in this package and its prometheus subpackage
// return nil, which every consumer treats as "collection disabled".
//
// Example usage:
//
//	metrics.InitRegistry()
//	ctrlMetrics := control.NewMetrics(metrics.GetRegistry())
//	srv := metrics.NewServer(metrics.ServerConfig{Port: 9090})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the registry with the Go runtime and process
// collectors. Calling it again replaces the registry; tests rely on that.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset disables metrics again.
func Reset() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}
