// Package report runs parameterized SELECT reports against the source
// database, bounded by a hard row cap. Column and table names are validated
// against the schema index before any SQL is built; filter values are always
// bound as placeholders.
package report

import (
	"errors"
	"time"
)

var (
	// ErrUnknownColumn marks a requested or filtered column absent from the table.
	ErrUnknownColumn = errors.New("report: unknown column")

	// ErrUnsupportedOperator marks a filter operator outside the allowed set.
	ErrUnsupportedOperator = errors.New("report: unsupported filter operator")
)

// Request describes one report run. Columns empty means every table column.
// Filters use the planner's shape: a literal for equality, or a one-entry
// map from operator to literal. RowLimit zero applies the configured default.
type Request struct {
	TableName string         `json:"table_name"`
	Columns   []string       `json:"columns"`
	Filters   map[string]any `json:"filters"`
	RowLimit  int            `json:"row_limit"`
}

type Result struct {
	TableName string        `json:"table_name"`
	Columns   []string      `json:"columns"`
	Rows      [][]any       `json:"rows"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated"`
	Duration  time.Duration `json:"-"`
}
