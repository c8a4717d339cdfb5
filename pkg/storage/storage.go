package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/county-property-scraper/pkg/filter"
	"github.com/Sternrassler/county-property-scraper/pkg/logging"
	"github.com/Sternrassler/county-property-scraper/pkg/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	scrapeFilesWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_files_written_total",
		Help: "Output files written by kind",
	}, []string{"kind"})

	scrapeRowsRepairedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrape_rows_repaired_total",
		Help: "Rows padded or truncated to the header width before writing",
	})
)

// DateLayout is the date prefix of output file names.
const DateLayout = "20060102"

var (
	// ErrEmptyTable is returned by Save for a table without rows.
	ErrEmptyTable = errors.New("table has no rows")

	// ErrNoHeaders is returned by Save for a table that has rows but no
	// header cells. Repairing its rows to zero width would drop every cell.
	ErrNoHeaders = errors.New("table has rows but no headers")
)

// Options configures a Store.
type Options struct {
	// Date prefixes every file name. Empty means today, fixed when the
	// store is created.
	Date string

	// IdentifyingColumn names the column written to the provenance log and
	// the summary. Falls back to the first column when absent.
	IdentifyingColumn string

	// XLSX also writes a workbook next to each CSV.
	XLSX bool
}

// DefaultOptions returns options dated today.
func DefaultOptions() Options {
	return Options{
		Date:              time.Now().Format(DateLayout),
		IdentifyingColumn: table.DefaultIdentifyingColumn,
	}
}

// Run is everything Save needs to know about one finished entry.
type Run struct {
	ID      string
	Group   string
	Label   string
	Filters filter.FilterSet
	Table   *table.Table

	Reason           string
	PagesRequested   int
	LastPage         int
	HeaderMismatches []int
	Elapsed          time.Duration
}

// Saved lists the files written for one run.
type Saved struct {
	CSV        string
	Sidecar    string
	Provenance string
	XLSX       string

	Summary  Summary
	Repaired []table.RowMismatch

	// ProvenanceRows is the number of lines appended to the provenance log.
	ProvenanceRows int
}

// Store writes run output below a root directory.
type Store struct {
	root   string
	opts   Options
	xlsx   XLSXWriter
	logger zerolog.Logger
}

// NewStore creates a store rooted at root. The directory is created on the
// first Save.
func NewStore(root string, opts Options) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Date == "" {
		opts.Date = time.Now().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, opts.Date); err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYYMMDD", opts.Date)
	}
	if opts.IdentifyingColumn == "" {
		opts.IdentifyingColumn = table.DefaultIdentifyingColumn
	}

	return &Store{
		root:   root,
		opts:   opts,
		xlsx:   XLSXWriter{},
		logger: logging.NewLogger("storage"),
	}, nil
}

// Root returns the output directory.
func (s *Store) Root() string {
	return s.root
}

// Date returns the file name date prefix.
func (s *Store) Date() string {
	return s.opts.Date
}

// BaseName returns "{date}_{label}".
func (s *Store) BaseName(label string) string {
	return s.opts.Date + "_" + label
}

// Paths returns where Save writes the files for a group and label.
func (s *Store) Paths(group, label string) Saved {
	dir := filepath.Join(s.root, group)
	base := s.BaseName(label)

	p := Saved{
		CSV:        filepath.Join(dir, base+".csv"),
		Sidecar:    filepath.Join(dir, base+"_parameters.json"),
		Provenance: filepath.Join(dir, group+".csv"),
	}
	if s.opts.XLSX {
		p.XLSX = filepath.Join(dir, base+".xlsx")
	}
	return p
}

// Save writes the table, its sidecar and provenance lines. It returns
// ErrEmptyTable without touching the file system when the table has no rows.
func (s *Store) Save(ctx context.Context, run Run) (*Saved, error) {
	if run.Table.IsEmpty() {
		return nil, ErrEmptyTable
	}
	if run.Table.Width() == 0 {
		return nil, fmt.Errorf("%w: %d rows", ErrNoHeaders, run.Table.Len())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("group", run.Group).Str("label", run.Label).Logger()

	t, repaired := run.Table.Repaired()
	for _, m := range repaired {
		logger.Warn().
			Int("row", m.Row).
			Int("cells", m.Cells).
			Int("want", m.Want).
			Msg("Row width does not match header, repaired")
	}
	scrapeRowsRepairedTotal.Add(float64(len(repaired)))

	saved := s.Paths(run.Group, run.Label)
	saved.Repaired = repaired

	if err := os.MkdirAll(filepath.Dir(saved.CSV), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	if err := WriteCSV(saved.CSV, t); err != nil {
		return nil, err
	}
	scrapeFilesWrittenTotal.WithLabelValues("csv").Inc()
	logger.Info().Str("path", saved.CSV).Int("rows", t.Len()).Msg("Table written")

	if saved.XLSX != "" {
		if err := s.xlsx.Write(saved.XLSX, t); err != nil {
			return nil, err
		}
		scrapeFilesWrittenTotal.WithLabelValues("xlsx").Inc()
		logger.Info().Str("path", saved.XLSX).Msg("Workbook written")
	}

	saved.Summary = Summarize(run, t, s.opts.IdentifyingColumn, s.BaseName(run.Label))
	saved.Summary.RepairedRows = len(repaired)

	sidecar := Sidecar{
		Parameters: run.Filters.Params(max(run.LastPage, 1)),
		Summary:    saved.Summary,
	}
	if err := writeSidecar(saved.Sidecar, sidecar); err != nil {
		return nil, err
	}
	scrapeFilesWrittenTotal.WithLabelValues("sidecar").Inc()

	n, err := appendProvenance(saved.Provenance, t, s.opts.IdentifyingColumn, run.Label)
	if err != nil {
		return nil, err
	}
	saved.ProvenanceRows = n
	scrapeFilesWrittenTotal.WithLabelValues("provenance").Inc()
	logger.Debug().Str("path", saved.Provenance).Int("rows", n).Msg("Provenance appended")

	return &saved, nil
}
