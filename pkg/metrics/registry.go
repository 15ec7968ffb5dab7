// Package metrics defines the observability interfaces for the harness and
// owns the Prometheus registry.
//
// Collection is optional: every interface here accepts nil as "disabled
// with zero overhead", and the promauto-backed implementations in the
// prometheus subpackage return nil when the registry was never
// initialized.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grovelabs/grove/internal/logger"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// Init creates the registry and starts the metrics HTTP server on the
// given port. It is a no-op when called twice.
func Init(port int) error {
	mu.Lock()
	if registry != nil {
		mu.Unlock()
		return nil
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg := registry
	mu.Unlock()

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logger.KeyError, err)
		}
	}()

	return nil
}

// IsEnabled reports whether the registry was initialized.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// Registry returns the registry, or nil when metrics are disabled.
func Registry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// InitTesting installs a fresh registry without an HTTP server. For tests.
func InitTesting() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	return registry
}
