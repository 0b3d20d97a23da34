package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ngina/kvidx/kvindex"
)

func Test_loadCSVInsertsRows(t *testing.T) {
	csvBody := "name,protein,calories,cost\n" +
		"Chicken Breast, 31, 165, 3.50\n" +
		"Brown Rice,3,216,1.20\n"

	opts := kvindex.DefaultOptions()
	opts.Order = 4
	idx, err := kvindex.Open(filepath.Join(t.TempDir(), "idx.db"), opts)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	defer idx.Close()

	n, err := loadCSV(strings.NewReader(csvBody), idx)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows loaded, got %d", n)
	}

	rec, found, err := idx.Search("Chicken Breast")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if !found {
		t.Fatalf("expected Chicken Breast to be inserted")
	}
	if rec.A != 31 || rec.B != 165 || rec.Value != 3.5 {
		t.Errorf("unexpected record fields: %+v", rec)
	}
}

func Test_loadCSVCollapsesInternalWhitespace(t *testing.T) {
	csvBody := "name,protein,calories,cost\n" +
		"  Greek   Yogurt  ,20,100,4.00\n"

	opts := kvindex.DefaultOptions()
	opts.Order = 4
	idx, err := kvindex.Open(filepath.Join(t.TempDir(), "idx.db"), opts)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	defer idx.Close()

	if _, err := loadCSV(strings.NewReader(csvBody), idx); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}

	rec, found, err := idx.Search("Greek Yogurt")
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if !found {
		t.Fatalf("expected normalized name %q to be found, got record %+v", "Greek Yogurt", rec)
	}
}

func Test_loadCSVWithoutHeaderRow(t *testing.T) {
	csvBody := "Tofu,8,76,2.00\n"

	opts := kvindex.DefaultOptions()
	opts.Order = 4
	idx, err := kvindex.Open(filepath.Join(t.TempDir(), "idx.db"), opts)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	defer idx.Close()

	n, err := loadCSV(strings.NewReader(csvBody), idx)
	if err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row loaded, got %d", n)
	}
}
