// Package metrics exposes the scraper's Prometheus metrics over HTTP.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination, storage, orchestrator) and registered via promauto
// on the default registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/county-property-scraper/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the scraper.
var Registry = prometheus.DefaultRegisterer

// Handler serves /metrics and a /health probe.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

// Serve exposes Handler on addr until ctx is done. It returns once the
// listener is closed; a clean shutdown returns nil.
func Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	return serve(ctx, ln)
}

func serve(ctx context.Context, ln net.Listener) error {
	logger := logging.NewLogger("metrics")
	srv := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics endpoint listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	logger.Debug().Msg("Metrics endpoint stopped")
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - scrape_requests_total{status} (Counter): Portal page requests by HTTP status or "network_error"
//   - scrape_request_duration_seconds (Histogram): Portal page request duration
//   - scrape_fetch_errors_total{class} (Counter): Fetch failures by class (client, server, network, decode)
//
// Cache Metrics (pkg/cache):
//   - scrape_cache_hits_total (Counter): Pages served from Redis
//   - scrape_cache_misses_total (Counter): Page lookups not found or expired
//   - scrape_cache_stored_bytes_total (Counter): Bytes written to the page cache
//   - scrape_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pacing Metrics (pkg/ratelimit):
//   - scrape_pacing_waits_total (Counter): Inter-page pauses taken
//   - scrape_pacing_seconds_total (Counter): Time spent pausing
//
// Pagination Metrics (pkg/pagination):
//   - scrape_pages_total{outcome} (Counter): Pages by outcome (success, empty, failed)
//   - scrape_runs_total{reason} (Counter): Runs by termination reason
//   - scrape_rows_accumulated_total (Counter): Rows appended to run tables
//   - scrape_header_mismatches_total (Counter): Pages whose headers differed from the first
//
// Output Metrics (pkg/storage, pkg/orchestrator):
//   - scrape_files_written_total{kind} (Counter): Files written (csv, sidecar, provenance, xlsx)
//   - scrape_rows_repaired_total (Counter): Rows padded or truncated before writing
//   - scrape_catalog_entries_total{status} (Counter): Entries by status (persisted, empty, failed)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(scrape_cache_hits_total[5m])) /
//   (sum(rate(scrape_cache_hits_total[5m])) + sum(rate(scrape_cache_misses_total[5m])))
//
//   # Share of runs ended by failures rather than end of data
//   sum(scrape_runs_total{reason="too_many_failures"}) / sum(scrape_runs_total)
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(scrape_request_duration_seconds_bucket[5m]))
