// Package testutil provides a mock property portal for tests.
package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockPage defines the response for one page of one query.
type MockPage struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

type pageKey struct {
	propertyType string
	page         int
}

// MockPortal is a configurable stand-in for the county property portal.
// Responses are keyed by property-type code and page index; a response
// registered with an empty property type applies to every query.
type MockPortal struct {
	server   *httptest.Server
	mu       sync.RWMutex
	pages    map[pageKey]MockPage
	fallback MockPage

	// Tracking
	RequestCount      int
	RequestedPages    []int
	LastQuery         url.Values
	LastRequestHeader http.Header
}

// NewMockPortal starts a mock portal whose unknown pages render an empty
// results table.
func NewMockPortal() *MockPortal {
	mock := &MockPortal{
		pages:    make(map[pageKey]MockPage),
		fallback: NewHTMLPage(EmptyTableHTML([]string{"Folio", "Address"})),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

func (m *MockPortal) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("pageIndex"))

	m.mu.Lock()
	m.RequestCount++
	m.RequestedPages = append(m.RequestedPages, page)
	m.LastQuery = q
	m.LastRequestHeader = r.Header.Clone()

	resp, ok := m.pages[pageKey{propertyType: q.Get("PrpTypeF"), page: page}]
	if !ok {
		resp, ok = m.pages[pageKey{page: page}]
	}
	if !ok {
		resp = m.fallback
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the portal endpoint.
func (m *MockPortal) URL() string {
	return m.server.URL + "/apps/RealEstate_Portal/CountyOwnedProperties"
}

// Close shuts down the mock server.
func (m *MockPortal) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPortal) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.RequestedPages = nil
	m.LastQuery = nil
	m.LastRequestHeader = nil
}

// SetPage configures the response for a page index of every query.
func (m *MockPortal) SetPage(page int, resp MockPage) {
	m.SetPageFor("", page, resp)
}

// SetPageFor configures the response for a page index of one property type.
func (m *MockPortal) SetPageFor(propertyType string, page int, resp MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[pageKey{propertyType: propertyType, page: page}] = resp
}

// SetFallback replaces the response for pages without explicit configuration.
func (m *MockPortal) SetFallback(resp MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPortal) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequestedPages returns the page indexes requested so far, in order.
func (m *MockPortal) GetRequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, len(m.RequestedPages))
	copy(out, m.RequestedPages)
	return out
}

// GetLastQuery returns the query of the most recent request.
func (m *MockPortal) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockPortal) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// NewHTMLPage creates a 200 OK response with the given body.
func NewHTMLPage(body string) MockPage {
	return MockPage{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// NewRowsPage creates a 200 OK response with n generated property rows.
// Folio numbers start at first so pages do not repeat each other.
func NewRowsPage(first, n int) MockPage {
	return NewHTMLPage(TableHTML([]string{"Folio", "Address"}, GenerateRows(first, n)))
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockPage {
	return MockPage{
		StatusCode: http.StatusInternalServerError,
		Body:       "<html><body><h1>Server Error</h1></body></html>",
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockPage {
	return MockPage{
		StatusCode: http.StatusNotFound,
		Body:       "<html><body><h1>Not Found</h1></body></html>",
	}
}

// NewNoTablePage creates a 200 OK page without a results table.
func NewNoTablePage() MockPage {
	return NewHTMLPage("<html><body><p>No properties match the selected criteria.</p></body></html>")
}

// GenerateRows builds n rows of (folio, address) starting at folio number first.
func GenerateRows(first, n int) [][]string {
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		id := first + i
		rows = append(rows, []string{
			fmt.Sprintf("30-%04d-000-%04d", id/10000, id%10000),
			fmt.Sprintf("%d NW %d St", 100+id, id%200+1),
		})
	}
	return rows
}

// TableHTML renders a results page the way the portal does.
func TableHTML(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>County Owned Properties</title></head><body>\n")
	b.WriteString(`<table class="table table-striped">`)
	b.WriteString("<thead><tr>")
	for _, h := range headers {
		fmt.Fprintf(&b, "<th>%s</th>", html.EscapeString(h))
	}
	b.WriteString("</tr></thead>\n<tbody>\n")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<td>\n  %s\n</td>", html.EscapeString(cell))
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody></table>\n</body></html>")
	return b.String()
}

// EmptyTableHTML renders a results table with headers and no rows.
func EmptyTableHTML(headers []string) string {
	return TableHTML(headers, nil)
}
