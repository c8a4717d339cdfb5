package pagination

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/county-property-scraper/pkg/extract"
	"github.com/Sternrassler/county-property-scraper/pkg/filter"
	"github.com/Sternrassler/county-property-scraper/pkg/logging"
	"github.com/Sternrassler/county-property-scraper/pkg/ratelimit"
	"github.com/Sternrassler/county-property-scraper/pkg/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	scrapePagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_pages_total",
		Help: "Pages processed by outcome",
	}, []string{"outcome"})

	scrapeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_runs_total",
		Help: "Pagination runs by termination reason",
	}, []string{"reason"})

	scrapeRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrape_rows_accumulated_total",
		Help: "Rows appended to run tables",
	})

	scrapeHeaderMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrape_header_mismatches_total",
		Help: "Pages whose headers differed from the first page of the run",
	})
)

// Config holds engine configuration.
type Config struct {
	// MaxPages is the highest page index requested.
	MaxPages int

	// MaxConsecutiveEmpty is how many failed or empty pages in a row end a run.
	MaxConsecutiveEmpty int

	// InterPageDelay is the pause after each successfully fetched page.
	InterPageDelay time.Duration
}

// DefaultConfig returns the limits used against the live portal.
func DefaultConfig() Config {
	return Config{
		MaxPages:            100,
		MaxConsecutiveEmpty: 3,
		InterPageDelay:      ratelimit.DefaultDelay,
	}
}

// PageFetcher retrieves one page of a query. Implemented by client.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, filters filter.FilterSet, page int) (*goquery.Document, error)
}

// TableExtractor reads the result table from a page. Implemented by
// extract.Extractor.
type TableExtractor interface {
	Extract(doc *goquery.Document) (extract.Extraction, error)
}

type waiter interface {
	Wait(ctx context.Context) error
}

// Engine runs queries page by page. An Engine holds no per-run state and may
// be reused for sequential runs; each run gets its own accumulator and pacer.
type Engine struct {
	fetcher   PageFetcher
	extractor TableExtractor
	config    Config
	logger    zerolog.Logger

	newWaiter func(delay time.Duration, logger zerolog.Logger) waiter
}

// New creates an engine. Non-positive limits are replaced by defaults; a
// negative delay is treated as zero.
func New(fetcher PageFetcher, extractor TableExtractor, config Config) *Engine {
	defaults := DefaultConfig()
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.MaxConsecutiveEmpty <= 0 {
		config.MaxConsecutiveEmpty = defaults.MaxConsecutiveEmpty
	}
	if config.InterPageDelay < 0 {
		config.InterPageDelay = 0
	}

	return &Engine{
		fetcher:   fetcher,
		extractor: extractor,
		config:    config,
		logger:    logging.NewLogger("pagination"),
		newWaiter: func(delay time.Duration, logger zerolog.Logger) waiter {
			return ratelimit.NewPacer(delay, logger)
		},
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.config
}

// streak tracks consecutive bad pages. Failures and empties are kept apart
// but the threshold applies to their sum.
type streak struct {
	failures int
	empties  int
}

func (s streak) total() int { return s.failures + s.empties }

func (s *streak) reset() { *s = streak{} }

// Run fetches pages 1..MaxPages until a termination condition is met and
// returns the merged table. The returned Result is never nil. The error is
// non-nil only when ctx was cancelled, in which case Result holds the rows
// gathered so far and Reason is Cancelled.
func (e *Engine) Run(ctx context.Context, filters filter.FilterSet) (*Result, error) {
	start := time.Now()
	logger := e.logger.With().Str("filters", filters.String()).Logger()
	pacer := e.newWaiter(e.config.InterPageDelay, logger)

	res := &Result{Table: &table.Table{Rows: [][]string{}}}
	var bad streak

	finish := func(reason TerminationReason, err error) (*Result, error) {
		res.Reason = reason
		res.Duration = time.Since(start)
		scrapeRunsTotal.WithLabelValues(string(reason)).Inc()

		logger.Info().
			Str("reason", string(reason)).
			Int("pages", res.PagesRequested).
			Int("last_page", res.LastPage).
			Int("total_rows", res.Table.Len()).
			Int("failures", res.Failures).
			Int("empty_pages", res.EmptyPages).
			Dur("duration", res.Duration).
			Msg("Pagination finished")
		return res, err
	}

	logger.Info().
		Int("max_pages", e.config.MaxPages).
		Int("max_consecutive_empty", e.config.MaxConsecutiveEmpty).
		Dur("delay", e.config.InterPageDelay).
		Msg("Pagination started")

	for page := 1; ; page++ {
		if page > e.config.MaxPages {
			return finish(PageLimitReached, nil)
		}
		if err := ctx.Err(); err != nil {
			return finish(Cancelled, fmt.Errorf("run cancelled before page %d: %w", page, err))
		}

		res.PagesRequested++
		res.LastPage = page

		pr := e.fetchPage(ctx, filters, page)
		scrapePagesTotal.WithLabelValues(pr.Outcome.String()).Inc()

		switch pr.Outcome {
		case OutcomeFailed:
			if ctx.Err() != nil {
				return finish(Cancelled, fmt.Errorf("run cancelled on page %d: %w", page, ctx.Err()))
			}
			res.Failures++
			bad.failures++
			logger.Warn().
				Err(pr.Err).
				Int("page", page).
				Int("streak", bad.total()).
				Msg("Page fetch failed")
			if bad.total() >= e.config.MaxConsecutiveEmpty {
				return finish(TooManyFailures, nil)
			}
			continue

		case OutcomeEmpty:
			res.EmptyPages++
			bad.empties++
			event := logger.Warn().Int("page", page).Int("streak", bad.total())
			if pr.Err != nil {
				event = event.Err(pr.Err)
			}
			event.Msg("Page has no rows")
			if bad.total() >= e.config.MaxConsecutiveEmpty {
				return finish(TooManyEmptyPages, nil)
			}

		case OutcomeSuccess:
			bad.reset()
			e.accumulate(res, pr, logger)
		}

		if err := pacer.Wait(ctx); err != nil {
			return finish(Cancelled, fmt.Errorf("run cancelled after page %d: %w", page, err))
		}
	}
}

// fetchPage fetches and extracts one page into a tagged result.
func (e *Engine) fetchPage(ctx context.Context, filters filter.FilterSet, page int) PageResult {
	doc, err := e.fetcher.Fetch(ctx, filters, page)
	if err != nil {
		return PageResult{Page: page, Outcome: OutcomeFailed, Err: err}
	}

	ex, err := e.extractor.Extract(doc)
	if err != nil {
		if !errors.Is(err, extract.ErrTableNotFound) {
			err = fmt.Errorf("extract page %d: %w", page, err)
		}
		return PageResult{Page: page, Outcome: OutcomeEmpty, Err: err}
	}
	if ex.Empty() {
		return PageResult{Page: page, Outcome: OutcomeEmpty, Headers: ex.Headers}
	}

	return PageResult{Page: page, Outcome: OutcomeSuccess, Headers: ex.Headers, Rows: ex.Rows}
}

// accumulate appends a successful page. The first headers seen win.
func (e *Engine) accumulate(res *Result, pr PageResult, logger zerolog.Logger) {
	t := res.Table
	switch {
	case t.Headers == nil:
		t.Headers = slices.Clone(pr.Headers)
		if t.Headers == nil {
			t.Headers = []string{}
		}
	case !slices.Equal(t.Headers, pr.Headers):
		res.HeaderMismatches = append(res.HeaderMismatches, pr.Page)
		scrapeHeaderMismatchesTotal.Inc()
		logger.Warn().
			Int("page", pr.Page).
			Strs("headers", t.Headers).
			Strs("page_headers", pr.Headers).
			Msg("Header mismatch, keeping first headers")
	}

	t.Rows = append(t.Rows, pr.Rows...)
	scrapeRowsTotal.Add(float64(len(pr.Rows)))

	logger.Info().
		Int("page", pr.Page).
		Int("rows", len(pr.Rows)).
		Int("total_rows", t.Len()).
		Msg("Page accepted")
}
