// Package orchestrator runs every entry of a catalog through the pagination
// engine and persists the results.
//
// Entries run one after another. An empty result is reported and skipped; a
// failed entry is logged and the next entry still runs. Cancelling the
// context stops the current entry at its next page boundary, persists what it
// gathered, and starts no further entries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/county-property-scraper/pkg/catalog"
	"github.com/Sternrassler/county-property-scraper/pkg/filter"
	"github.com/Sternrassler/county-property-scraper/pkg/history"
	"github.com/Sternrassler/county-property-scraper/pkg/logging"
	"github.com/Sternrassler/county-property-scraper/pkg/pagination"
	"github.com/Sternrassler/county-property-scraper/pkg/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var scrapeEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scrape_catalog_entries_total",
	Help: "Catalog entries processed by status",
}, []string{"status"})

// Entry statuses.
const (
	StatusPersisted = history.StatusPersisted
	StatusEmpty     = history.StatusEmpty
	StatusFailed    = history.StatusFailed
)

// Paginator runs one query to completion. Implemented by pagination.Engine.
type Paginator interface {
	Run(ctx context.Context, filters filter.FilterSet) (*pagination.Result, error)
}

// Persister stores a non-empty run. Implemented by storage.Store.
type Persister interface {
	Save(ctx context.Context, run storage.Run) (*storage.Saved, error)
}

// Recorder keeps run history. Implemented by history.DB.
type Recorder interface {
	Record(ctx context.Context, run history.Run) (int64, error)
}

// Config holds the collaborators of a Runner.
type Config struct {
	Catalog   *catalog.Catalog
	Paginator Paginator
	Store     Persister

	// History is optional.
	History Recorder

	// RunID identifies this process run in sidecars and history. A random
	// UUID is used when empty.
	RunID string
}

// RunRecord is the outcome of one catalog entry.
type RunRecord struct {
	RunID     string
	Entry     catalog.Entry
	Result    *pagination.Result
	StartedAt time.Time
	Elapsed   time.Duration

	Status string
	Saved  *storage.Saved
	Err    error
}

// Rows returns the number of rows collected.
func (r RunRecord) Rows() int {
	return r.Result.Rows()
}

// Columns returns the number of header columns.
func (r RunRecord) Columns() int {
	if r.Result == nil {
		return 0
	}
	return r.Result.Table.Width()
}

// Reason returns the termination reason, or "" when the engine did not
// produce a result.
func (r RunRecord) Reason() string {
	if r.Result == nil {
		return ""
	}
	return string(r.Result.Reason)
}

// Summary reports a whole catalog run.
type Summary struct {
	RunID     string
	Entries   int
	Persisted int
	Empty     int
	Failed    int
	Cancelled bool
	Duration  time.Duration
	Records   []RunRecord
}

// Runner processes a catalog.
type Runner struct {
	catalog   *catalog.Catalog
	paginator Paginator
	store     Persister
	history   Recorder
	runID     string
	logger    zerolog.Logger
}

// New creates a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Catalog == nil || cfg.Catalog.Len() == 0 {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Paginator == nil {
		return nil, fmt.Errorf("paginator is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	return &Runner{
		catalog:   cfg.Catalog,
		paginator: cfg.Paginator,
		store:     cfg.Store,
		history:   cfg.History,
		runID:     cfg.RunID,
		logger:    logging.NewLogger("orchestrator").With().Str("run_id", cfg.RunID).Logger(),
	}, nil
}

// RunID returns the identifier of this process run.
func (r *Runner) RunID() string {
	return r.runID
}

// Run processes every catalog entry in order. The returned Summary is never
// nil. The error is non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	entries := r.catalog.Entries()
	summary := &Summary{RunID: r.runID}

	r.logger.Info().Int("entries", len(entries)).Msg("Catalog run started")

	var runErr error
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("catalog run cancelled before %s: %w", entry.Name(), err)
			break
		}

		r.logger.Info().
			Str("group", entry.Group).
			Str("label", entry.Label).
			Int("entry", i+1).
			Int("of", len(entries)).
			Msg("Processing entry")

		rec, cancelled := r.runEntry(ctx, entry)
		summary.add(rec)

		if cancelled {
			runErr = fmt.Errorf("catalog run cancelled during %s: %w", entry.Name(), rec.Err)
			break
		}
	}

	summary.Cancelled = runErr != nil
	summary.Duration = time.Since(start)

	r.logger.Info().
		Int("entries", summary.Entries).
		Int("persisted", summary.Persisted).
		Int("empty", summary.Empty).
		Int("failed", summary.Failed).
		Bool("cancelled", summary.Cancelled).
		Dur("duration", summary.Duration).
		Msg("Catalog run finished")

	return summary, runErr
}

// runEntry runs and persists one entry. cancelled reports whether the
// engine stopped because ctx was cancelled.
func (r *Runner) runEntry(ctx context.Context, entry catalog.Entry) (rec RunRecord, cancelled bool) {
	logger := r.logger.With().Str("group", entry.Group).Str("label", entry.Label).Logger()

	rec = RunRecord{RunID: r.runID, Entry: entry, StartedAt: time.Now()}
	res, err := r.paginator.Run(ctx, entry.Filters)
	rec.Result = res
	rec.Elapsed = time.Since(rec.StartedAt)

	persistCtx := ctx
	if err != nil {
		rec.Err = err
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			cancelled = true
			persistCtx = context.WithoutCancel(ctx)
			logger.Warn().Err(err).Int("rows", res.Rows()).Msg("Entry interrupted")
		} else {
			rec.Status = StatusFailed
			logger.Error().Err(err).Msg("Entry failed")
			r.finish(persistCtx, &rec, logger)
			return rec, false
		}
	}

	if res.Rows() == 0 {
		rec.Status = StatusEmpty
		logger.Warn().Str("reason", rec.Reason()).Msg("No data collected")
		r.finish(persistCtx, &rec, logger)
		return rec, cancelled
	}

	saved, err := r.store.Save(persistCtx, storage.Run{
		ID:               r.runID,
		Group:            entry.Group,
		Label:            entry.Label,
		Filters:          entry.Filters,
		Table:            res.Table,
		Reason:           string(res.Reason),
		PagesRequested:   res.PagesRequested,
		LastPage:         res.LastPage,
		HeaderMismatches: res.HeaderMismatches,
		Elapsed:          rec.Elapsed,
	})
	if err != nil {
		rec.Status = StatusFailed
		rec.Err = errors.Join(rec.Err, fmt.Errorf("persist %s: %w", entry.Name(), err))
		logger.Error().Err(err).Msg("Failed to persist entry")
		r.finish(persistCtx, &rec, logger)
		return rec, cancelled
	}

	rec.Status = StatusPersisted
	rec.Saved = saved

	s := saved.Summary
	logger.Info().
		Str("title", s.Title).
		Int("total_rows", s.TotalRows).
		Strs("columns", s.Columns).
		Str("first", s.FirstValue).
		Str("last", s.LastValue).
		Str("execution_time", s.ExecutionTime).
		Str("path", saved.CSV).
		Msg("Scraping summary")

	r.finish(persistCtx, &rec, logger)
	return rec, cancelled
}

// finish records metrics and history for a completed entry.
func (r *Runner) finish(ctx context.Context, rec *RunRecord, logger zerolog.Logger) {
	scrapeEntriesTotal.WithLabelValues(rec.Status).Inc()

	if r.history == nil {
		return
	}

	h := history.Run{
		RunID:     rec.RunID,
		Group:     rec.Entry.Group,
		Label:     rec.Entry.Label,
		Filters:   rec.Entry.Filters.String(),
		StartedAt: rec.StartedAt,
		Elapsed:   rec.Elapsed,
		Reason:    rec.Reason(),
		Rows:      rec.Rows(),
		Columns:   rec.Columns(),
		Status:    rec.Status,
	}
	if rec.Result != nil {
		h.Pages = rec.Result.PagesRequested
	}
	if rec.Saved != nil {
		h.CSVPath = rec.Saved.CSV
	}
	if rec.Err != nil {
		h.Error = rec.Err.Error()
	}

	if _, err := r.history.Record(ctx, h); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run history")
	}
}

func (s *Summary) add(rec RunRecord) {
	s.Entries++
	switch rec.Status {
	case StatusPersisted:
		s.Persisted++
	case StatusEmpty:
		s.Empty++
	case StatusFailed:
		s.Failed++
	}
	s.Records = append(s.Records, rec)
}
