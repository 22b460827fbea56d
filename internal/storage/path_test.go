package storage

import (
	"testing"
	"time"
)

func TestBuildExportPath(t *testing.T) {
	exportedAt := time.Date(2026, time.March, 5, 14, 30, 9, 0, time.UTC)
	got, err := BuildExportPath("crm_customers", "csv", exportedAt)
	if err != nil {
		t.Fatalf("BuildExportPath: %v", err)
	}
	want := "exports/crm_customers/20260305T143009Z.csv"
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestBuildExportPathUsesUTC(t *testing.T) {
	zone := time.FixedZone("plus2", 2*60*60)
	exportedAt := time.Date(2026, time.March, 5, 1, 0, 0, 0, zone)
	got, err := BuildExportPath("crm_customers", "parquet", exportedAt)
	if err != nil {
		t.Fatalf("BuildExportPath: %v", err)
	}
	want := "exports/crm_customers/20260304T230000Z.parquet"
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestBuildExportPathRejectsBadComponents(t *testing.T) {
	exportedAt := time.Now()
	cases := []struct {
		table  string
		format string
	}{
		{"../../etc", "csv"},
		{"", "csv"},
		{"crm_customers", "csv/../.."},
		{"crm customers", "csv"},
	}
	for _, tc := range cases {
		if _, err := BuildExportPath(tc.table, tc.format, exportedAt); err == nil {
			t.Fatalf("expected error for table=%q format=%q", tc.table, tc.format)
		}
	}
}
