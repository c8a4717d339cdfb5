// Package main provides the property-scraper command.
//
// property-scraper walks the county-owned properties portal for every entry
// of a query catalog and writes one CSV per entry, with a JSON sidecar and a
// per-group provenance log.
//
// Usage:
//
//	property-scraper run -o output
//	property-scraper run --group include --label VacantLand --xlsx
//	property-scraper catalog
//	property-scraper history --history-db scrape.db
package main

func main() {
	Execute()
}
