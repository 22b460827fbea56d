package planner

import (
	"strings"

	"github.com/colplan/colplan/internal/schema"
)

// Reconciliation maps a plan onto an actual table schema. Available and
// Optional carry the schema's spelling in schema column order; Missing
// carries the plan's spelling in plan order.
type Reconciliation struct {
	Available []string
	Missing   []string
	Optional  []string
}

func Reconcile(plan Plan, table schema.TableSchema) Reconciliation {
	requested := make(map[string]struct{}, len(plan.RequiredColumns)+len(plan.OptionalColumns))
	for _, column := range plan.RequiredColumns {
		requested[strings.ToLower(column)] = struct{}{}
	}
	optionalSet := make(map[string]struct{}, len(plan.OptionalColumns))
	for _, column := range plan.OptionalColumns {
		key := strings.ToLower(column)
		requested[key] = struct{}{}
		optionalSet[key] = struct{}{}
	}

	rec := Reconciliation{
		Available: []string{},
		Missing:   []string{},
		Optional:  []string{},
	}
	for _, column := range table.Columns {
		key := strings.ToLower(column.Name)
		if _, ok := requested[key]; ok {
			rec.Available = append(rec.Available, column.Name)
		}
		if _, ok := optionalSet[key]; ok {
			rec.Optional = append(rec.Optional, column.Name)
		}
	}
	for _, column := range plan.RequiredColumns {
		if _, ok := table.HasColumn(column); !ok {
			rec.Missing = append(rec.Missing, column)
		}
	}
	return rec
}
