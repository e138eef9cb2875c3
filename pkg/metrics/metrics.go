// Package metrics exposes the loader's Prometheus metrics.
// All metrics are defined in their respective packages (client, people,
// pagination, store) and registered via promauto on the default registry.
//
// This package provides the scrape endpoint and documents what is available.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the loader.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// ShutdownTimeout bounds the graceful stop of the metrics server.
const ShutdownTimeout = 5 * time.Second

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - swapi_requests_total{resource, status} (Counter): Requests by resource (people, planets, ...) and HTTP status
//   - swapi_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - swapi_errors_total{class} (Counter): Errors by class (client, server, network, decode)
//
// Fetch Metrics (pkg/people):
//   - swapi_records_not_found_total (Counter): Ids answered with the not-found marker
//   - swapi_references_resolved_total{kind} (Counter): Reference URLs resolved to names by kind
//
// Chunk Metrics (pkg/pagination):
//   - swapi_chunks_fetched_total (Counter): Chunks whose ids were all fetched
//   - swapi_chunk_fetch_duration_seconds (Histogram): Time to fetch one chunk
//
// Persistence Metrics (pkg/store):
//   - swapi_rows_persisted_total{mode} (Counter): Rows committed by storage mode
//   - swapi_rows_skipped_total (Counter): Not-found records skipped by the columns mode
//   - swapi_commit_duration_seconds (Histogram): Duration of one chunk transaction
//   - swapi_persist_errors_total (Counter): Chunk transactions rolled back
//
// Example Prometheus Queries:
//
//   # Not-found ratio
//   rate(swapi_records_not_found_total[5m]) / rate(swapi_requests_total{resource="people"}[5m])
//
//   # Request Error Rate
//   rate(swapi_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(swapi_request_duration_seconds_bucket[5m]))
//
//   # P95 Commit Latency
//   histogram_quantile(0.95, rate(swapi_commit_duration_seconds_bucket[5m]))

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ServeListener(ctx, ln)
}

// ServeListener exposes /metrics on ln until ctx is done.
func ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Info().Str("component", "metrics").Str("addr", ln.Addr().String()).Msg("Serving metrics")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	<-errCh

	return nil
}
