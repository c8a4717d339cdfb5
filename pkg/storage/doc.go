// Package storage persists the table of one catalog entry.
//
// For an entry labelled L in group G, run on date D (YYYYMMDD), Save writes:
//
//	{root}/G/D_L.csv               header row plus the rows as extracted
//	{root}/G/D_L_parameters.json   query parameters and a run summary
//	{root}/G/G.csv                 provenance log, appended: identifying value, L
//	{root}/G/D_L.xlsx              same table as a workbook, when enabled
//
// Rows whose cell count differs from the header are padded or truncated
// before writing and reported in Saved.Repaired. Empty tables are never
// written.
package storage
