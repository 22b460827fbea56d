// Package planner turns a natural-language analytics requirement into a
// column plan: the model's technical interpretation, the columns it needs,
// which of those exist in the target table, derived filter conditions, and
// recommendations when data is missing.
package planner

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidRequirement marks an empty or whitespace-only requirement.
	ErrInvalidRequirement = errors.New("planner: requirement is required")

	// ErrEmptySchema marks a table that exists but has no columns.
	ErrEmptySchema = errors.New("planner: table has no columns")

	// ErrPlanInference marks generation output that stayed unparseable
	// after the retry, or a failed generation backend.
	ErrPlanInference = errors.New("planner: plan inference failed")
)

type AnalysisRequest struct {
	TableName   string `json:"table_name"`
	Requirement string `json:"requirement"`
}

// Plan is the model's raw structured interpretation, pre-reconciliation.
// Filters map a column name to either a literal (equality) or a one-entry
// map from a comparison operator to a literal; entries are AND-ed.
type Plan struct {
	TechnicalSummary string
	RequiredColumns  []string
	OptionalColumns  []string
	Filters          map[string]any
	Assumptions      string
}

// PlanResult is the final reconciled answer returned to the caller.
type PlanResult struct {
	TechnicalSummary string         `json:"technical_summary"`
	RequiredColumns  []string       `json:"required_columns"`
	AvailableColumns []string       `json:"available_columns"`
	MissingColumns   []string       `json:"missing_columns"`
	OptionalColumns  []string       `json:"optional_columns"`
	Filters          map[string]any `json:"filters"`
	Assumptions      string         `json:"assumptions,omitempty"`
	Recommendations  []string       `json:"recommendations"`
	AnalysisComplete bool           `json:"analysis_complete"`
}

// normalizePlan dedupes column lists case-insensitively, preserving first
// spelling and order, and removes required columns from the optional list.
// Required wins when the model lists a column in both.
func normalizePlan(plan Plan) Plan {
	plan.RequiredColumns = dedupeColumns(plan.RequiredColumns, nil)

	requiredSet := make(map[string]struct{}, len(plan.RequiredColumns))
	for _, column := range plan.RequiredColumns {
		requiredSet[strings.ToLower(column)] = struct{}{}
	}
	plan.OptionalColumns = dedupeColumns(plan.OptionalColumns, requiredSet)
	return plan
}

func dedupeColumns(columns []string, exclude map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(columns))
	result := make([]string, 0, len(columns))
	for _, column := range columns {
		column = strings.TrimSpace(column)
		if column == "" {
			continue
		}
		key := strings.ToLower(column)
		if _, ok := seen[key]; ok {
			continue
		}
		if exclude != nil {
			if _, ok := exclude[key]; ok {
				continue
			}
		}
		seen[key] = struct{}{}
		result = append(result, column)
	}
	return result
}
