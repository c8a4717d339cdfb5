package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/county-property-scraper/pkg/filter"
	"github.com/Sternrassler/county-property-scraper/pkg/table"
	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T, opts Options) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	if opts.Date == "" {
		opts.Date = "20240115"
	}
	s, err := NewStore(root, opts)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s, root
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func sampleRun() Run {
	return Run{
		ID:      "run-1",
		Group:   "include",
		Label:   "VacantLand",
		Filters: filter.FilterSet{PropertyType: "37", Surplus: "22"},
		Table: &table.Table{
			Headers: []string{"Folio", "Address"},
			Rows: [][]string{
				{"30-0001", "1 NW 1 St"},
				{"30-0002", "2 NW 2 St, Unit \"B\""},
				{"30-0001", "1 NW 1 St"},
			},
		},
		Reason:         "too_many_empty_pages",
		PagesRequested: 4,
		LastPage:       4,
		Elapsed:        1500 * time.Millisecond,
	}
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore("", Options{}); err == nil {
		t.Error("expected error for empty root")
	}
	if _, err := NewStore(t.TempDir(), Options{Date: "2024-01-15"}); err == nil {
		t.Error("expected error for malformed date")
	}

	s, err := NewStore(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.Date() != time.Now().Format(DateLayout) {
		t.Errorf("Date() = %q, want today", s.Date())
	}
}

func TestStore_Paths(t *testing.T) {
	s, root := newTestStore(t, Options{XLSX: true})

	got := s.Paths("exclude", "Park")
	want := Saved{
		CSV:        filepath.Join(root, "exclude", "20240115_Park.csv"),
		Sidecar:    filepath.Join(root, "exclude", "20240115_Park_parameters.json"),
		Provenance: filepath.Join(root, "exclude", "exclude.csv"),
		XLSX:       filepath.Join(root, "exclude", "20240115_Park.xlsx"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Paths() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_Save(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	run := sampleRun()

	saved, err := s.Save(context.Background(), run)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	wantCSV := [][]string{
		{"Folio", "Address"},
		{"30-0001", "1 NW 1 St"},
		{"30-0002", "2 NW 2 St, Unit \"B\""},
		{"30-0001", "1 NW 1 St"},
	}
	if diff := cmp.Diff(wantCSV, readCSV(t, saved.CSV)); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}

	wantProvenance := [][]string{
		{"Folio", "source"},
		{"30-0001", "VacantLand"},
		{"30-0002", "VacantLand"},
	}
	if diff := cmp.Diff(wantProvenance, readCSV(t, saved.Provenance)); diff != "" {
		t.Errorf("provenance mismatch (-want +got):\n%s", diff)
	}
	if saved.ProvenanceRows != 2 {
		t.Errorf("ProvenanceRows = %d, want 2", saved.ProvenanceRows)
	}
	if saved.XLSX != "" {
		t.Errorf("XLSX = %q, want no workbook", saved.XLSX)
	}
}

func TestStore_SaveSidecar(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	run := sampleRun()
	run.HeaderMismatches = []int{3}

	saved, err := s.Save(context.Background(), run)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(saved.Sidecar)
	if err != nil {
		t.Fatal(err)
	}
	var got Sidecar
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("sidecar is not valid json: %v", err)
	}

	wantParams := map[string]string{
		"FolioF": "", "PrpTypeF": "37", "DistrictF": "", "LotComF": "", "LotF": "",
		"LocationF": "", "AddressF": "", "ZoneF": "", "LegalF": "", "SurplusF": "22",
		"pageIndex": "4",
	}
	if diff := cmp.Diff(wantParams, got.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	wantSummary := Summary{
		Title:               "Scraping Summary for 20240115_VacantLand",
		RunID:               "run-1",
		TotalRows:           3,
		Columns:             []string{"Folio", "Address"},
		IdentifyingColumn:   "Folio",
		FirstValue:          "30-0001",
		LastValue:           "30-0001",
		ExecutionTime:       "1.50 seconds",
		ExecutionSeconds:    1.5,
		TerminationReason:   "too_many_empty_pages",
		PagesRequested:      4,
		HeaderMismatchPages: []int{3},
	}
	if diff := cmp.Diff(wantSummary, got.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantSummary, saved.Summary); diff != "" {
		t.Errorf("returned summary mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveEmptyTable(t *testing.T) {
	s, root := newTestStore(t, Options{})
	run := sampleRun()
	run.Table = &table.Table{Headers: []string{"Folio"}}

	if _, err := s.Save(context.Background(), run); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("err = %v, want ErrEmptyTable", err)
	}

	run.Table = nil
	if _, err := s.Save(context.Background(), run); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("nil table: err = %v, want ErrEmptyTable", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("empty table wrote %d entries to the output directory", len(entries))
	}
}

func TestStore_SaveRejectsRowsWithoutHeaders(t *testing.T) {
	s, root := newTestStore(t, Options{})
	run := sampleRun()
	run.Table = &table.Table{
		Rows: [][]string{{"01-1", "1 Main St"}, {"01-2", "2 Main St"}},
	}

	saved, err := s.Save(context.Background(), run)
	if !errors.Is(err, ErrNoHeaders) {
		t.Fatalf("err = %v, want ErrNoHeaders", err)
	}
	if saved != nil {
		t.Errorf("Save() returned %+v alongside the error", saved)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("headerless table wrote %d entries to the output directory", len(entries))
	}
}

func TestStore_ProvenanceHeaderForEmptyFile(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	run := sampleRun()

	path := s.Paths(run.Group, run.Label).Provenance
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Save(context.Background(), run); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	want := [][]string{
		{"Folio", "source"},
		{"30-0001", "VacantLand"},
		{"30-0002", "VacantLand"},
	}
	if diff := cmp.Diff(want, readCSV(t, path)); diff != "" {
		t.Errorf("provenance mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendProvenance_HeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "include.csv")
	tbl := &table.Table{
		Headers: []string{"Folio", "Address"},
		Rows:    [][]string{{"30-0001", "a"}, {"", "b"}, {"30-0001", "c"}},
	}

	for i, source := range []string{"VacantLand", "OfficeBuilding"} {
		n, err := appendProvenance(path, tbl, "Folio", source)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if n != 1 {
			t.Errorf("append %d wrote %d lines, want 1", i, n)
		}
	}

	want := [][]string{
		{"Folio", "source"},
		{"30-0001", "VacantLand"},
		{"30-0001", "OfficeBuilding"},
	}
	if diff := cmp.Diff(want, readCSV(t, path)); diff != "" {
		t.Errorf("provenance mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ProvenanceAppendsAcrossEntries(t *testing.T) {
	s, _ := newTestStore(t, Options{})

	first := sampleRun()
	second := sampleRun()
	second.Label = "GovernmentCenter"
	second.Table = &table.Table{
		Headers: []string{"Folio", "Address"},
		Rows:    [][]string{{"30-0002", "x"}, {"30-0009", "y"}},
	}

	if _, err := s.Save(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	saved, err := s.Save(context.Background(), second)
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"Folio", "source"},
		{"30-0001", "VacantLand"},
		{"30-0002", "VacantLand"},
		{"30-0002", "GovernmentCenter"},
		{"30-0009", "GovernmentCenter"},
	}
	if diff := cmp.Diff(want, readCSV(t, saved.Provenance)); diff != "" {
		t.Errorf("provenance mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveRepairsRows(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	run := sampleRun()
	run.Table = &table.Table{
		Headers: []string{"Folio", "Address", "Zone"},
		Rows: [][]string{
			{"30-0001", "a", "RU-1"},
			{"30-0002", "b"},
			{"30-0003", "c", "RU-2", "extra"},
		},
	}

	saved, err := s.Save(context.Background(), run)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	want := [][]string{
		{"Folio", "Address", "Zone"},
		{"30-0001", "a", "RU-1"},
		{"30-0002", "b", ""},
		{"30-0003", "c", "RU-2"},
	}
	if diff := cmp.Diff(want, readCSV(t, saved.CSV)); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}

	wantRepaired := []table.RowMismatch{
		{Row: 1, Cells: 2, Want: 3},
		{Row: 2, Cells: 4, Want: 3},
	}
	if diff := cmp.Diff(wantRepaired, saved.Repaired); diff != "" {
		t.Errorf("Repaired mismatch (-want +got):\n%s", diff)
	}
	if saved.Summary.RepairedRows != 2 {
		t.Errorf("RepairedRows = %d, want 2", saved.Summary.RepairedRows)
	}
	if len(run.Table.Rows[1]) != 2 {
		t.Error("Save modified the input table")
	}
}

func TestStore_IdentifyingColumnFallback(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	run := sampleRun()
	run.Table = &table.Table{
		Headers: []string{"Parcel", "Owner"},
		Rows:    [][]string{{"P1", "County"}, {"P2", "County"}},
	}

	saved, err := s.Save(context.Background(), run)
	if err != nil {
		t.Fatal(err)
	}

	if saved.Summary.IdentifyingColumn != "Parcel" || saved.Summary.LastValue != "P2" {
		t.Errorf("summary = %+v, want Parcel column values", saved.Summary)
	}
	if got := readCSV(t, saved.Provenance)[0]; !cmp.Equal(got, []string{"Parcel", "source"}) {
		t.Errorf("provenance header = %v", got)
	}
}

func TestStore_SaveCancelled(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, sampleRun()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestStore_OverwritesSameDayCSV(t *testing.T) {
	s, _ := newTestStore(t, Options{})
	run := sampleRun()

	if _, err := s.Save(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	run.Table = &table.Table{Headers: []string{"Folio", "Address"}, Rows: [][]string{{"30-0005", "z"}}}
	saved, err := s.Save(context.Background(), run)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(readCSV(t, saved.CSV)); got != 2 {
		t.Errorf("csv has %d records, want 2 after overwrite", got)
	}

	entries, err := os.ReadDir(filepath.Dir(saved.CSV))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".csv" && filepath.Ext(e.Name()) != ".json" {
			t.Errorf("unexpected file %q left in output directory", e.Name())
		}
	}
}
