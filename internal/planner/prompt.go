package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colplan/colplan/internal/schema"
)

const promptTemplate = `You are a data analyst planning an analysis of a database table.

Table: %s
Columns:
%s

User requirement: %s

Identify the columns the analysis needs. Respond with a single JSON object and nothing else:

{
  "technical_summary": "one or two sentences describing the analysis in technical terms",
  "required_columns": ["columns the analysis cannot proceed without"],
  "optional_columns": ["columns that would enrich the analysis but are not essential"],
  "sql_filters": {"column": "value"} or {"column": {">": 100}} or null,
  "assumptions": "assumptions you made, or an empty string"
}

Rules:
- Use exact column names from the list above where they fit. If the requirement
  needs a column that is not in the list, still include its most likely name in
  required_columns so the gap can be reported.
- sql_filters holds equality as a plain value and comparisons as a one-entry
  object keyed by one of: > < >= <= != =. Multiple entries combine with AND.
  Use null when the requirement implies no filters.
- Express monetary and shorthand amounts as plain numbers: $100k means 100000,
  2M means 2000000, 5%% means 5.
- technical_summary and required_columns are mandatory.`

// BuildPrompt renders the planning prompt for a table and requirement. The
// requirement is quote-escaped so free text cannot break the prompt structure.
func BuildPrompt(tableName string, columns schema.TableSchema, requirement string) (string, error) {
	if strings.TrimSpace(requirement) == "" {
		return "", ErrInvalidRequirement
	}
	if len(columns.Columns) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptySchema, tableName)
	}

	lines := make([]string, 0, len(columns.Columns))
	for _, column := range columns.Columns {
		lines = append(lines, "- "+formatColumn(column))
	}
	return fmt.Sprintf(promptTemplate, tableName, strings.Join(lines, "\n"), strconv.Quote(strings.TrimSpace(requirement))), nil
}

func formatColumn(column schema.ColumnDescriptor) string {
	attrs := []string{column.DeclaredType}
	if column.PrimaryKey {
		attrs = append(attrs, "PRIMARY KEY")
	}
	if !column.Nullable {
		attrs = append(attrs, "NOT NULL")
	}
	return fmt.Sprintf("%s (%s)", column.Name, strings.Join(attrs, ", "))
}
