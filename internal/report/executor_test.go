package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/colplan/colplan/internal/schema"
)

type staticSchemas struct {
	tables map[string]schema.TableSchema
}

func (s staticSchemas) ColumnsOf(tableName string) (schema.TableSchema, error) {
	table, ok := s.tables[tableName]
	if !ok {
		return schema.TableSchema{}, schema.ErrUnknownTable
	}
	return table, nil
}

func newTestExecutor(t *testing.T, defaultLimit, maxLimit int) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	schemas := staticSchemas{tables: map[string]schema.TableSchema{"crm_customers": crmCustomers()}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExecutor(db, schemas, defaultLimit, maxLimit, logger), mock
}

func TestRunAppliesFiltersAndDefaultLimit(t *testing.T) {
	executor, mock := newTestExecutor(t, 100, 1000)

	mock.ExpectQuery(`SELECT "company_name", "arr" FROM "crm_customers" WHERE "arr" > $1 LIMIT 101`).
		WithArgs(100_000.0).
		WillReturnRows(sqlmock.NewRows([]string{"company_name", "arr"}).
			AddRow([]byte("Acme Health"), 250_000.0).
			AddRow([]byte("Mediplex"), 130_000.0))

	result, err := executor.Run(context.Background(), Request{
		TableName: "crm_customers",
		Columns:   []string{"company_name", "arr"},
		Filters:   map[string]any{"arr": map[string]any{">": 100_000.0}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RowCount != 2 || result.Truncated {
		t.Fatalf("result = %+v", result)
	}
	if result.Rows[0][0] != "Acme Health" {
		t.Fatalf("byte values must be normalized to strings: %v", result.Rows[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunCapsRowLimitAndFlagsTruncation(t *testing.T) {
	executor, mock := newTestExecutor(t, 100, 2)

	mock.ExpectQuery(`SELECT "id", "company_name", "industry", "mrr", "arr" FROM "crm_customers" LIMIT 3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_name", "industry", "mrr", "arr"}).
			AddRow(1, "a", "x", 1.0, 12.0).
			AddRow(2, "b", "y", 2.0, 24.0).
			AddRow(3, "c", "z", 3.0, 36.0))

	result, err := executor.Run(context.Background(), Request{TableName: "crm_customers", RowLimit: 500})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.RowCount != 2 {
		t.Fatalf("row count = %d, want capped at 2", result.RowCount)
	}
	if !result.Truncated {
		t.Fatal("truncation not reported")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunUnknownTable(t *testing.T) {
	executor, _ := newTestExecutor(t, 100, 1000)
	_, err := executor.Run(context.Background(), Request{TableName: "nope"})
	if !errors.Is(err, schema.ErrUnknownTable) {
		t.Fatalf("err = %v, want ErrUnknownTable", err)
	}
}

func TestRunRejectsUnknownFilterColumnBeforeQuerying(t *testing.T) {
	executor, mock := newTestExecutor(t, 100, 1000)

	_, err := executor.Run(context.Background(), Request{
		TableName: "crm_customers",
		Filters:   map[string]any{"growth_rate": 1},
	})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query must reach the database: %v", err)
	}
}
