package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/county-property-scraper/pkg/cache"
	"github.com/Sternrassler/county-property-scraper/pkg/client"
	"github.com/Sternrassler/county-property-scraper/pkg/extract"
	"github.com/Sternrassler/county-property-scraper/pkg/history"
	"github.com/Sternrassler/county-property-scraper/pkg/logging"
	"github.com/Sternrassler/county-property-scraper/pkg/metrics"
	"github.com/Sternrassler/county-property-scraper/pkg/orchestrator"
	"github.com/Sternrassler/county-property-scraper/pkg/pagination"
	"github.com/Sternrassler/county-property-scraper/pkg/storage"
	ptable "github.com/Sternrassler/county-property-scraper/pkg/table"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape every catalog entry and persist the results",
		Long: `Run each catalog entry in order: request pages until the page limit or
too many failed or empty pages in a row, then write the merged table.

Entries that fail or return no rows are reported and skipped. Interrupting
the run saves the rows collected so far for the current entry and stops.

Examples:
  property-scraper run
  property-scraper run -o /data/properties --group include
  property-scraper run --label VacantLand --max-pages 20 --delay 2s
  property-scraper run --redis-url redis://localhost:6379/0 --history-db scrape.db`,
		RunE: runRunCmd,
	}

	addCatalogFlags(cmd)

	cmd.Flags().String("base-url", getEnv("SCRAPER_BASE_URL", client.DefaultBaseURL),
		"Portal search endpoint (env SCRAPER_BASE_URL)")
	cmd.Flags().String("user-agent", client.DefaultUserAgent, "User-Agent header")
	cmd.Flags().Duration("timeout", client.DefaultTimeout, "Per-request timeout")
	cmd.Flags().StringP("output-dir", "o", getEnv("SCRAPER_OUTPUT_DIR", "output"),
		"Output root directory (env SCRAPER_OUTPUT_DIR)")
	cmd.Flags().String("date", "", "Date prefix for output files as YYYYMMDD (default today)")
	cmd.Flags().String("id-column", ptable.DefaultIdentifyingColumn,
		"Column recorded in the provenance log")
	cmd.Flags().Bool("xlsx", false, "Also write an .xlsx workbook per entry")
	cmd.Flags().Int("max-pages", pagination.DefaultConfig().MaxPages, "Highest page index requested per entry")
	cmd.Flags().Int("max-empty", pagination.DefaultConfig().MaxConsecutiveEmpty,
		"Consecutive failed or empty pages that end an entry")
	cmd.Flags().Duration("delay", pagination.DefaultConfig().InterPageDelay, "Pause after each fetched page")
	cmd.Flags().String("redis-url", getEnv("REDIS_URL", ""),
		"Redis page cache, host:port or redis:// URL (env REDIS_URL)")
	cmd.Flags().Duration("cache-ttl", time.Hour, "Page cache lifetime")
	cmd.Flags().String("history-db", getEnv("SCRAPER_HISTORY_DB", ""),
		"SQLite run history database (env SCRAPER_HISTORY_DB)")
	cmd.Flags().String("metrics-addr", getEnv("METRICS_ADDR", ""),
		"Serve Prometheus metrics on this address while running (env METRICS_ADDR)")

	return cmd
}

// runOptions holds the parsed flags of the run command.
type runOptions struct {
	baseURL     string
	userAgent   string
	timeout     time.Duration
	outputDir   string
	date        string
	idColumn    string
	xlsx        bool
	maxPages    int
	maxEmpty    int
	delay       time.Duration
	redisURL    string
	cacheTTL    time.Duration
	historyDB   string
	metricsAddr string
}

func parseRunOptions(cmd *cobra.Command) (runOptions, error) {
	var (
		o   runOptions
		err error
	)
	flags := cmd.Flags()
	if o.baseURL, err = flags.GetString("base-url"); err != nil {
		return o, err
	}
	if o.userAgent, err = flags.GetString("user-agent"); err != nil {
		return o, err
	}
	if o.timeout, err = flags.GetDuration("timeout"); err != nil {
		return o, err
	}
	if o.outputDir, err = flags.GetString("output-dir"); err != nil {
		return o, err
	}
	if o.date, err = flags.GetString("date"); err != nil {
		return o, err
	}
	if o.idColumn, err = flags.GetString("id-column"); err != nil {
		return o, err
	}
	if o.xlsx, err = flags.GetBool("xlsx"); err != nil {
		return o, err
	}
	if o.maxPages, err = flags.GetInt("max-pages"); err != nil {
		return o, err
	}
	if o.maxEmpty, err = flags.GetInt("max-empty"); err != nil {
		return o, err
	}
	if o.delay, err = flags.GetDuration("delay"); err != nil {
		return o, err
	}
	if o.redisURL, err = flags.GetString("redis-url"); err != nil {
		return o, err
	}
	if o.cacheTTL, err = flags.GetDuration("cache-ttl"); err != nil {
		return o, err
	}
	if o.historyDB, err = flags.GetString("history-db"); err != nil {
		return o, err
	}
	if o.metricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return o, err
	}

	if o.maxPages < 1 {
		return o, fmt.Errorf("--max-pages must be at least 1, got %d", o.maxPages)
	}
	if o.maxEmpty < 1 {
		return o, fmt.Errorf("--max-empty must be at least 1, got %d", o.maxEmpty)
	}
	if o.delay < 0 {
		return o, fmt.Errorf("--delay must not be negative, got %s", o.delay)
	}
	return o, nil
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	opts, err := parseRunOptions(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger("main")

	if opts.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, opts.metricsAddr); err != nil {
				logger.Error().Err(err).Str("addr", opts.metricsAddr).Msg("Metrics server failed")
			}
		}()
		logger.Info().Str("addr", opts.metricsAddr).Msg("Metrics server started")
	}

	clientCfg := client.Config{
		BaseURL:   opts.baseURL,
		UserAgent: opts.userAgent,
		Timeout:   opts.timeout,
	}
	if opts.redisURL != "" {
		redisClient, err := connectRedis(ctx, opts.redisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		pageCache, err := cache.NewManager(redisClient, opts.cacheTTL)
		if err != nil {
			return err
		}
		clientCfg.Cache = pageCache
		logger.Info().Str("redis", opts.redisURL).Dur("ttl", opts.cacheTTL).Msg("Page cache enabled")
	}

	fetcher, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	engine := pagination.New(fetcher, extract.New(""), pagination.Config{
		MaxPages:            opts.maxPages,
		MaxConsecutiveEmpty: opts.maxEmpty,
		InterPageDelay:      opts.delay,
	})

	storeOpts := storage.DefaultOptions()
	storeOpts.IdentifyingColumn = opts.idColumn
	storeOpts.XLSX = opts.xlsx
	if opts.date != "" {
		storeOpts.Date = opts.date
	}
	store, err := storage.NewStore(opts.outputDir, storeOpts)
	if err != nil {
		return err
	}

	runnerCfg := orchestrator.Config{
		Catalog:   cat,
		Paginator: engine,
		Store:     store,
	}
	if opts.historyDB != "" {
		db, err := history.Open(ctx, opts.historyDB, history.DefaultOptions())
		if err != nil {
			return err
		}
		defer db.Close()
		runnerCfg.History = db
	}

	runner, err := orchestrator.New(runnerCfg)
	if err != nil {
		return err
	}

	summary, runErr := runner.Run(ctx)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("run interrupted: %w", runErr)
		}
		return runErr
	}
	return nil
}

// connectRedis accepts either a redis:// URL or a bare host:port.
func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", opts.Addr, err)
	}
	return rdb, nil
}

func printSummary(w io.Writer, s *orchestrator.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run " + s.RunID)
	t.AppendHeader(table.Row{"Group", "Label", "Status", "Rows", "Pages", "Reason", "Elapsed", "File"})
	for _, rec := range s.Records {
		file := ""
		if rec.Saved != nil {
			file = rec.Saved.CSV
		} else if rec.Err != nil {
			file = rec.Err.Error()
		}
		pages := 0
		if rec.Result != nil {
			pages = rec.Result.PagesRequested
		}
		t.AppendRow(table.Row{
			rec.Entry.Group,
			rec.Entry.Label,
			rec.Status,
			rec.Rows(),
			pages,
			rec.Reason(),
			rec.Elapsed.Round(time.Millisecond).String(),
			file,
		})
	}
	t.AppendFooter(table.Row{
		"", "Total",
		fmt.Sprintf("%d persisted, %d empty, %d failed", s.Persisted, s.Empty, s.Failed),
		"", "", "", s.Duration.Round(time.Millisecond).String(), "",
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
