package planner

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/colplan/colplan/internal/observability"
	"github.com/colplan/colplan/internal/schema"
)

// SchemaIndex is the slice of the schema cache the planner needs.
type SchemaIndex interface {
	ColumnsOf(tableName string) (schema.TableSchema, error)
}

// Service runs the full analysis pipeline: prompt, inference, reconciliation
// against the live schema, and recommendation synthesis.
type Service struct {
	schemas   SchemaIndex
	inference *Inference
	logger    *slog.Logger
}

func NewService(schemas SchemaIndex, inference *Inference, logger *slog.Logger) *Service {
	return &Service{schemas: schemas, inference: inference, logger: logger}
}

func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (PlanResult, error) {
	if strings.TrimSpace(req.Requirement) == "" {
		return PlanResult{}, ErrInvalidRequirement
	}

	table, err := s.schemas.ColumnsOf(req.TableName)
	if err != nil {
		return PlanResult{}, err
	}

	prompt, err := BuildPrompt(req.TableName, table, req.Requirement)
	if err != nil {
		return PlanResult{}, err
	}

	plan, err := s.inference.Infer(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrPlanInference) {
			observability.ObservePlan(observability.PlanOutcomeError)
		}
		return PlanResult{}, err
	}

	rec := Reconcile(plan, table)
	result := PlanResult{
		TechnicalSummary: plan.TechnicalSummary,
		RequiredColumns:  plan.RequiredColumns,
		AvailableColumns: rec.Available,
		MissingColumns:   rec.Missing,
		OptionalColumns:  rec.Optional,
		Filters:          plan.Filters,
		Assumptions:      plan.Assumptions,
		Recommendations:  Synthesize(rec, table.ColumnNames()),
		AnalysisComplete: len(rec.Missing) == 0,
	}

	observability.ObservePlan(planOutcome(result))
	s.logger.Info("column plan built",
		slog.String("table", req.TableName),
		slog.Int("available", len(result.AvailableColumns)),
		slog.Int("missing", len(result.MissingColumns)),
		slog.Bool("complete", result.AnalysisComplete))
	return result, nil
}

func planOutcome(result PlanResult) string {
	switch {
	case result.AnalysisComplete:
		return observability.PlanOutcomeComplete
	case len(result.AvailableColumns) > 0:
		return observability.PlanOutcomePartial
	default:
		return observability.PlanOutcomeNoMatch
	}
}
