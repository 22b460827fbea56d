package report

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/colplan/colplan/internal/observability"
	"github.com/colplan/colplan/internal/schema"
)

// SchemaIndex is the slice of the schema cache the executor needs.
type SchemaIndex interface {
	ColumnsOf(tableName string) (schema.TableSchema, error)
}

type Executor struct {
	db           *sql.DB
	schemas      SchemaIndex
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

func NewExecutor(db *sql.DB, schemas SchemaIndex, defaultLimit, maxLimit int, logger *slog.Logger) *Executor {
	return &Executor{db: db, schemas: schemas, defaultLimit: defaultLimit, maxLimit: maxLimit, logger: logger}
}

func (e *Executor) Run(ctx context.Context, req Request) (Result, error) {
	table, err := e.schemas.ColumnsOf(req.TableName)
	if err != nil {
		return Result{}, err
	}

	limit := req.RowLimit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	queryText, args, err := buildQuery(table, req, limit)
	if err != nil {
		observability.ObserveReport(observability.ReportOutcomeRejected)
		return Result{}, err
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, queryText, args...)
	if err != nil {
		observability.ObserveReport(observability.ReportOutcomeError)
		return Result{}, fmt.Errorf("run report: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		observability.ObserveReport(observability.ReportOutcomeError)
		return Result{}, fmt.Errorf("report columns: %w", err)
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if len(resultRows) == limit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			observability.ObserveReport(observability.ReportOutcomeError)
			return Result{}, fmt.Errorf("scan report row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		observability.ObserveReport(observability.ReportOutcomeError)
		return Result{}, fmt.Errorf("iterate report rows: %w", err)
	}

	observability.ObserveReport(observability.ReportOutcomeOK)
	e.logger.Info("report executed",
		slog.String("table", table.TableName),
		slog.Int("rows", len(resultRows)),
		slog.Bool("truncated", truncated),
		slog.Duration("duration", time.Since(start)))

	return Result{
		TableName: table.TableName,
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
