package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/colplan/colplan/internal/report"
	"github.com/colplan/colplan/internal/storage"
)

func sampleResult() report.Result {
	return report.Result{
		TableName: "crm_customers",
		Columns:   []string{"company_name", "industry", "arr"},
		Rows: [][]any{
			{"Acme Health", "Healthcare", 250_000.0},
			{"Mediplex", nil, 130_000.0},
		},
		RowCount: 2,
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		raw  string
		want Format
		ok   bool
	}{
		{"csv", FormatCSV, true},
		{"", FormatCSV, true},
		{"Parquet", FormatParquet, true},
		{"xlsx", "", false},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.raw)
		if (err == nil) != tc.ok {
			t.Fatalf("ParseFormat(%q) err = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestEncodeCSV(t *testing.T) {
	data, err := encodeCSV(sampleResult())
	if err != nil {
		t.Fatalf("encodeCSV: %v", err)
	}
	want := "company_name,industry,arr\nAcme Health,Healthcare,250000\nMediplex,,130000\n"
	if string(data) != want {
		t.Fatalf("csv = %q, want %q", data, want)
	}
}

// readParquet reads all rows of an encoded parquet file into maps. The
// generic reader requires the file's schema and pre-allocated map values
// when the row type is map[string]any.
func readParquet(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	reader := parquet.NewGenericReader[map[string]any](bytes.NewReader(data), file.Schema())
	defer func() { _ = reader.Close() }()
	rows := make([]map[string]any, file.NumRows())
	for i := range rows {
		rows[i] = map[string]any{}
	}
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		t.Fatalf("read parquet: %v", err)
	}
	return rows[:n]
}

func TestEncodeParquetRoundTrip(t *testing.T) {
	data, err := encodeParquet(sampleResult())
	if err != nil {
		t.Fatalf("encodeParquet: %v", err)
	}

	rows := readParquet(t, data)
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0]["company_name"] != "Acme Health" {
		t.Fatalf("first row = %v", rows[0])
	}
	if value, ok := rows[1]["industry"]; ok && value != nil && value != "" {
		t.Fatalf("null column came back as %v", value)
	}
}

func TestEncodeParquetEmptyResult(t *testing.T) {
	result := report.Result{TableName: "crm_customers", Columns: []string{"id"}}
	data, err := encodeParquet(result)
	if err != nil {
		t.Fatalf("encodeParquet: %v", err)
	}

	rows := readParquet(t, data)
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

type recordingStore struct {
	keys []string
	data map[string][]byte
}

func (r *recordingStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if r.data == nil {
		r.data = map[string][]byte{}
	}
	r.keys = append(r.keys, key)
	r.data[key] = payload
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (r *recordingStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	payload, ok := r.data[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (r *recordingStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	payload, ok := r.data[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func TestExportArchivesUnderDatedKey(t *testing.T) {
	store := &recordingStore{}
	service := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	service.now = func() time.Time {
		return time.Date(2026, time.March, 5, 14, 30, 9, 0, time.UTC)
	}

	exported, err := service.Export(context.Background(), sampleResult(), FormatCSV, true)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exported.ArchiveKey != "exports/crm_customers/20260305T143009Z.csv" {
		t.Fatalf("archive key = %q", exported.ArchiveKey)
	}
	if len(store.keys) != 1 {
		t.Fatalf("puts = %v", store.keys)
	}
	if !strings.HasPrefix(string(store.data[store.keys[0]]), "company_name,industry,arr\n") {
		t.Fatalf("archived payload = %q", store.data[store.keys[0]])
	}
}

func TestExportWithoutArchiveSkipsStore(t *testing.T) {
	store := &recordingStore{}
	service := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	exported, err := service.Export(context.Background(), sampleResult(), FormatCSV, false)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exported.ArchiveKey != "" || len(store.keys) != 0 {
		t.Fatalf("unexpected archive: %+v keys=%v", exported, store.keys)
	}
}

func TestExportArchiveRequiresStore(t *testing.T) {
	service := NewService(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := service.Export(context.Background(), sampleResult(), FormatCSV, true); err == nil {
		t.Fatal("expected error when archiving without a store")
	}
}

func TestArchivedReturnsStoredExport(t *testing.T) {
	store := &recordingStore{}
	service := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	service.now = func() time.Time {
		return time.Date(2026, time.March, 5, 14, 30, 9, 0, time.UTC)
	}

	exported, err := service.Export(context.Background(), sampleResult(), FormatCSV, true)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	body, info, err := service.Archived(context.Background(), exported.ArchiveKey)
	if err != nil {
		t.Fatalf("Archived: %v", err)
	}
	defer func() { _ = body.Close() }()

	payload, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read archived body: %v", err)
	}
	if !bytes.Equal(payload, exported.Data) {
		t.Fatalf("archived payload = %q, want %q", payload, exported.Data)
	}
	if info.Size != exported.SizeBytes {
		t.Fatalf("size = %d, want %d", info.Size, exported.SizeBytes)
	}
}

func TestArchivedUnknownKey(t *testing.T) {
	service := NewService(&recordingStore{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, _, err := service.Archived(context.Background(), "exports/crm_customers/20260101T000000Z.csv")
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestArchivedRequiresStore(t *testing.T) {
	service := NewService(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, _, err := service.Archived(context.Background(), "exports/x/y.csv"); err == nil {
		t.Fatal("expected error when no store is configured")
	}
}
