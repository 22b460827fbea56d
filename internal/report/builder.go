package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/colplan/colplan/internal/schema"
)

var filterOperators = map[string]string{
	">": ">", "<": "<", ">=": ">=", "<=": "<=", "!=": "<>", "=": "=",
}

// buildQuery renders a parameterized SELECT for the validated request.
// Every identifier is resolved against the table schema and quoted; every
// filter value becomes a numbered placeholder. Filters are rendered in
// sorted column order so identical requests produce identical SQL.
func buildQuery(table schema.TableSchema, req Request, limit int) (string, []any, error) {
	selected := table.ColumnNames()
	if len(req.Columns) > 0 {
		selected = make([]string, 0, len(req.Columns))
		for _, column := range req.Columns {
			resolved, ok := table.HasColumn(column)
			if !ok {
				return "", nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
			}
			selected = append(selected, resolved)
		}
	}

	quoted := make([]string, len(selected))
	for i, column := range selected {
		quoted[i] = quoteIdent(column)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "SELECT %s FROM %s", strings.Join(quoted, ", "), quoteIdent(table.TableName))

	filterColumns := make([]string, 0, len(req.Filters))
	for column := range req.Filters {
		filterColumns = append(filterColumns, column)
	}
	sort.Strings(filterColumns)

	args := make([]any, 0, len(filterColumns))
	for i, column := range filterColumns {
		resolved, ok := table.HasColumn(column)
		if !ok {
			return "", nil, fmt.Errorf("%w: filter on %s", ErrUnknownColumn, column)
		}

		operator := "="
		value := req.Filters[column]
		if condition, isMap := value.(map[string]any); isMap {
			if len(condition) != 1 {
				return "", nil, fmt.Errorf("%w: filter on %s must have exactly one operator", ErrUnsupportedOperator, column)
			}
			for op, literal := range condition {
				mapped, known := filterOperators[op]
				if !known {
					return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
				}
				operator = mapped
				value = literal
			}
		}

		if i == 0 {
			builder.WriteString(" WHERE ")
		} else {
			builder.WriteString(" AND ")
		}
		args = append(args, value)
		fmt.Fprintf(&builder, "%s %s $%d", quoteIdent(resolved), operator, len(args))
	}

	// One extra row beyond the limit signals truncation to the executor.
	fmt.Fprintf(&builder, " LIMIT %d", limit+1)
	return builder.String(), args, nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
