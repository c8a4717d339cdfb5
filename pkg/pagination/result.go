package pagination

import (
	"time"

	"github.com/Sternrassler/county-property-scraper/pkg/table"
)

// TerminationReason says why a run stopped.
type TerminationReason string

const (
	PageLimitReached  TerminationReason = "page_limit_reached"
	TooManyFailures   TerminationReason = "too_many_failures"
	TooManyEmptyPages TerminationReason = "too_many_empty_pages"
	Cancelled         TerminationReason = "cancelled"
)

// Outcome tags a PageResult.
type Outcome int

const (
	// OutcomeSuccess means the page was fetched and had at least one row.
	OutcomeSuccess Outcome = iota
	// OutcomeEmpty means the page was fetched but had no table or no rows.
	OutcomeEmpty
	// OutcomeFailed means the request itself failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageResult is the outcome of fetching and extracting one page.
// Headers and Rows are set only for OutcomeSuccess. Err is set for
// OutcomeFailed, and for OutcomeEmpty when no table was found.
type PageResult struct {
	Page    int
	Outcome Outcome
	Headers []string
	Rows    [][]string
	Err     error
}

// Result is the merged table of one run plus how the run went.
type Result struct {
	Table  *table.Table
	Reason TerminationReason

	// PagesRequested counts fetch attempts, LastPage is the highest page
	// index requested (0 if none).
	PagesRequested int
	LastPage       int

	// HeaderMismatches lists pages whose headers differed from the first.
	HeaderMismatches []int

	// Failures and EmptyPages are totals over the run, not streaks.
	Failures   int
	EmptyPages int

	Duration time.Duration
}

// Rows returns the number of accumulated rows.
func (r *Result) Rows() int {
	if r == nil {
		return 0
	}
	return r.Table.Len()
}
