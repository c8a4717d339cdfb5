package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/county-property-scraper/pkg/table"
)

// Sidecar is the JSON document written next to each CSV.
type Sidecar struct {
	// Parameters is the query of the last page requested, keyed by the
	// portal's field names.
	Parameters map[string]string `json:"parameters"`
	Summary    Summary           `json:"summary"`
}

// Summary describes one persisted table.
type Summary struct {
	Title             string   `json:"title"`
	RunID             string   `json:"run_id,omitempty"`
	TotalRows         int      `json:"total_rows"`
	Columns           []string `json:"columns"`
	IdentifyingColumn string   `json:"identifying_column"`
	FirstValue        string   `json:"first_value"`
	LastValue         string   `json:"last_value"`
	ExecutionTime     string   `json:"execution_time"`
	ExecutionSeconds  float64  `json:"execution_seconds"`

	TerminationReason   string `json:"termination_reason,omitempty"`
	PagesRequested      int    `json:"pages_requested"`
	HeaderMismatchPages []int  `json:"header_mismatch_pages,omitempty"`
	RepairedRows        int    `json:"repaired_rows,omitempty"`
}

// Summarize builds the summary of a run's table. First and last values come
// from the identifying column, or the first column when it is absent; both
// are "N/A" for an empty table.
func Summarize(run Run, t *table.Table, identifyingColumn, title string) Summary {
	col, name := t.IdentifyingColumn(identifyingColumn)

	first, last := "N/A", "N/A"
	if t.Len() > 0 && col >= 0 {
		first = t.Value(0, col)
		last = t.Value(t.Len()-1, col)
	}

	seconds := run.Elapsed.Round(10 * time.Millisecond).Seconds()

	columns := t.Headers
	if columns == nil {
		columns = []string{}
	}

	return Summary{
		Title:               "Scraping Summary for " + title,
		RunID:               run.ID,
		TotalRows:           t.Len(),
		Columns:             columns,
		IdentifyingColumn:   name,
		FirstValue:          first,
		LastValue:           last,
		ExecutionTime:       fmt.Sprintf("%.2f seconds", run.Elapsed.Seconds()),
		ExecutionSeconds:    seconds,
		TerminationReason:   run.Reason,
		PagesRequested:      run.PagesRequested,
		HeaderMismatchPages: run.HeaderMismatches,
	}
}

func writeSidecar(path string, sidecar Sidecar) error {
	err := writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sidecar)
	})
	if err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
