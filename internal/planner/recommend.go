package planner

import (
	"fmt"
	"strings"
)

const maxSimilarHints = 3

// Synthesize turns a reconciliation into human-readable guidance. The total
// mismatch case yields exactly one recommendation so callers can surface it
// as a single actionable message.
func Synthesize(rec Reconciliation, schemaColumns []string) []string {
	if len(rec.Missing) == 0 {
		recommendations := []string{"All required columns are available. The analysis can proceed."}
		if len(rec.Optional) > 0 {
			recommendations = append(recommendations,
				fmt.Sprintf("Optional columns available to enrich the analysis: %s.", strings.Join(rec.Optional, ", ")))
		}
		return recommendations
	}

	if len(rec.Available) == 0 {
		return []string{"None of the required columns exist in this table. " +
			"Rephrase the requirement against the table's actual columns, or submit a data request for review."}
	}

	recommendations := make([]string, 0, len(rec.Missing)+2)
	for _, column := range rec.Missing {
		message := fmt.Sprintf("Required column %q is not available in this table.", column)
		if similar := similarColumns(column, schemaColumns); len(similar) > 0 {
			message += fmt.Sprintf(" Columns with similar names: %s.", strings.Join(similar, ", "))
		}
		recommendations = append(recommendations, message)
	}
	recommendations = append(recommendations,
		fmt.Sprintf("A partial analysis is possible with: %s.", strings.Join(rec.Available, ", ")))
	if len(rec.Optional) > 0 {
		recommendations = append(recommendations,
			fmt.Sprintf("Optional columns available to enrich the analysis: %s.", strings.Join(rec.Optional, ", ")))
	}
	return recommendations
}

// similarColumns finds schema columns sharing a meaningful name token with
// the missing column, as a hint that the model guessed a near-miss name.
func similarColumns(missing string, schemaColumns []string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(missing), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})

	var similar []string
	for _, column := range schemaColumns {
		lower := strings.ToLower(column)
		if lower == strings.ToLower(missing) {
			continue
		}
		for _, token := range tokens {
			if len(token) <= 2 {
				continue
			}
			if strings.Contains(lower, token) {
				similar = append(similar, column)
				break
			}
		}
		if len(similar) == maxSimilarHints {
			break
		}
	}
	return similar
}
