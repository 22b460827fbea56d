// Package postgres stores the request registry in the source database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/colplan/colplan/internal/requests"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping source db: %w", err)
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, in requests.CreateInput) (requests.Request, error) {
	if err := in.Validate(); err != nil {
		return requests.Request{}, err
	}

	query := `
INSERT INTO admin_report_request (table_name, requirement, technical_summary, required_columns, missing_columns, available_columns, reason, requested_by, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`
	request := requests.Request{
		TableName:        in.TableName,
		Requirement:      in.Requirement,
		TechnicalSummary: in.TechnicalSummary,
		RequiredColumns:  in.RequiredColumns,
		MissingColumns:   in.MissingColumns,
		AvailableColumns: in.AvailableColumns,
		Reason:           in.Reason,
		RequestedBy:      in.RequestedBy,
		Status:           requests.StatusPending,
	}
	if err := r.db.QueryRowContext(ctx, query,
		in.TableName, in.Requirement, in.TechnicalSummary,
		joinColumns(in.RequiredColumns), joinColumns(in.MissingColumns), joinColumns(in.AvailableColumns),
		in.Reason, in.RequestedBy, requests.StatusPending,
	).Scan(&request.ID, &request.CreatedAt); err != nil {
		return requests.Request{}, fmt.Errorf("create request: %w", err)
	}
	return request, nil
}

func (r *Repository) List(ctx context.Context, status string) ([]requests.Request, error) {
	query := `
SELECT id, table_name, requirement, technical_summary, required_columns, missing_columns, available_columns, reason, requested_by, status, review_note, created_at, reviewed_at
FROM admin_report_request`
	args := []any{}
	if status != "" {
		if !requests.ValidStatus(status) {
			return nil, fmt.Errorf("%w: %s", requests.ErrInvalidStatus, status)
		}
		query += `
WHERE status = $1`
		args = append(args, status)
	}
	query += `
ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]requests.Request, 0)
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request rows: %w", err)
	}
	return result, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (requests.Request, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, table_name, requirement, technical_summary, required_columns, missing_columns, available_columns, reason, requested_by, status, review_note, created_at, reviewed_at
FROM admin_report_request
WHERE id = $1`, id)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return requests.Request{}, requests.ErrNotFound
		}
		return requests.Request{}, err
	}
	return request, nil
}

func (r *Repository) Review(ctx context.Context, id int64, in requests.ReviewInput) (requests.Request, error) {
	if !requests.ValidStatus(in.Status) || in.Status == requests.StatusPending {
		return requests.Request{}, fmt.Errorf("%w: %s", requests.ErrInvalidStatus, in.Status)
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE admin_report_request
SET status = $2, review_note = $3, reviewed_at = NOW()
WHERE id = $1
RETURNING id, table_name, requirement, technical_summary, required_columns, missing_columns, available_columns, reason, requested_by, status, review_note, created_at, reviewed_at`,
		id, in.Status, in.ReviewNote)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return requests.Request{}, requests.ErrNotFound
		}
		return requests.Request{}, err
	}
	return request, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (requests.Request, error) {
	var (
		request          requests.Request
		technicalSummary sql.NullString
		requiredColumns  sql.NullString
		missingColumns   sql.NullString
		availableColumns sql.NullString
		reason           sql.NullString
		reviewNote       sql.NullString
		reviewedAt       sql.NullTime
	)
	if err := row.Scan(
		&request.ID,
		&request.TableName,
		&request.Requirement,
		&technicalSummary,
		&requiredColumns,
		&missingColumns,
		&availableColumns,
		&reason,
		&request.RequestedBy,
		&request.Status,
		&reviewNote,
		&request.CreatedAt,
		&reviewedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return requests.Request{}, err
		}
		return requests.Request{}, fmt.Errorf("scan request row: %w", err)
	}
	request.TechnicalSummary = technicalSummary.String
	request.RequiredColumns = splitColumns(requiredColumns.String)
	request.MissingColumns = splitColumns(missingColumns.String)
	request.AvailableColumns = splitColumns(availableColumns.String)
	request.Reason = reason.String
	request.ReviewNote = reviewNote.String
	if reviewedAt.Valid {
		at := reviewedAt.Time
		request.ReviewedAt = &at
	}
	return request, nil
}

// Column lists are stored flattened; identifiers never contain commas.
func joinColumns(columns []string) string {
	return strings.Join(columns, ",")
}

func splitColumns(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			columns = append(columns, part)
		}
	}
	return columns
}
