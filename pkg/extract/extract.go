// Package extract pulls one HTML table out of a portal page.
package extract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSelector matches the results table rendered by the portal.
const DefaultSelector = "table.table"

// ErrTableNotFound is returned when the document has no matching table.
// A table that is present but has no body rows is not an error.
var ErrTableNotFound = errors.New("table not found")

var innerWhitespace = regexp.MustCompile(`\s+`)

// Extraction is the header and body text of one table.
type Extraction struct {
	Headers []string
	Rows    [][]string
}

// Empty reports whether the table had no body rows.
func (e Extraction) Empty() bool {
	return len(e.Rows) == 0
}

// Extractor locates a table by CSS selector.
type Extractor struct {
	selector string
}

// New creates an Extractor. An empty selector uses DefaultSelector.
func New(selector string) *Extractor {
	if selector == "" {
		selector = DefaultSelector
	}
	return &Extractor{selector: selector}
}

// Selector returns the CSS selector in use.
func (e *Extractor) Selector() string {
	return e.selector
}

// Extract returns the header cells and body rows of the first matching table.
// Cell text is trimmed and inner whitespace runs collapse to one space.
func (e *Extractor) Extract(doc *goquery.Document) (Extraction, error) {
	if doc == nil {
		return Extraction{}, ErrTableNotFound
	}

	tbl := doc.Find(e.selector).First()
	if tbl.Length() == 0 {
		return Extraction{}, ErrTableNotFound
	}

	out := Extraction{
		Headers: headerCells(tbl),
		Rows:    [][]string{},
	}

	bodyRows := tbl.ChildrenFiltered("tbody").ChildrenFiltered("tr")
	if tbl.ChildrenFiltered("tbody").Length() == 0 {
		bodyRows = tbl.ChildrenFiltered("tr")
	}

	bodyRows.Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered("td")
		if tds.Length() == 0 {
			return
		}
		out.Rows = append(out.Rows, cellTexts(tds))
	})

	return out, nil
}

// headerCells prefers the th cells of thead, then the td cells of the first
// thead row, then the first row of th cells anywhere in the table. Only the
// table's own rows are considered, never those of a nested table.
func headerCells(tbl *goquery.Selection) []string {
	headRows := tbl.ChildrenFiltered("thead").ChildrenFiltered("tr")

	cells := headRows.ChildrenFiltered("th")
	if cells.Length() == 0 {
		cells = headRows.First().ChildrenFiltered("td")
	}
	if cells.Length() == 0 {
		ownRows := tbl.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr").
			AddSelection(tbl.ChildrenFiltered("tr"))
		ownRows.EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			if found := tr.ChildrenFiltered("th"); found.Length() > 0 {
				cells = found
				return false
			}
			return true
		})
	}

	return cellTexts(cells)
}

func cellTexts(cells *goquery.Selection) []string {
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, cleanText(c.Text()))
	})
	return out
}

func cleanText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}
