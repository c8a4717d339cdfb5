// Package pagination walks the result pages of one portal query and merges
// them into a single table.
//
// The portal never says how many pages a query has. The engine requests
// pages 1, 2, 3, ... in order and treats a run of consecutive empty pages or
// failed requests as the end of the data:
//
//	engine := pagination.New(fetcher, extract.New(""), pagination.DefaultConfig())
//	result, err := engine.Run(ctx, filter.FilterSet{PropertyType: "37", Surplus: "22"})
//
// A run ends for one of these reasons:
//   - PageLimitReached: the page index passed MaxPages
//   - TooManyFailures: the threshold was crossed by a failed request
//   - TooManyEmptyPages: the threshold was crossed by a page without rows
//   - Cancelled: the context was cancelled; the partial table is returned
//
// Failed requests and empty pages are counted separately but trip the same
// MaxConsecutiveEmpty threshold on their combined streak. Any page with rows
// resets both. The engine pauses InterPageDelay after every successfully
// fetched page (empty or not) and never after a failed request.
//
// Headers come from the first page with rows. A later page with different
// headers is logged and its rows are still appended.
package pagination
