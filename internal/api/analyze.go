package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/colplan/colplan/internal/auth"
	"github.com/colplan/colplan/internal/planner"
	"github.com/colplan/colplan/internal/schema"
)

func handleAnalyzeColumns(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Planner == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PLANNER_NOT_CONFIGURED", "planner dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAnalyst); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request planner.AnalysisRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid analysis request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Planner.Analyze(r.Context(), request)
	if err != nil {
		switch {
		case errors.Is(err, planner.ErrInvalidRequirement):
			writeError(r.Context(), w, http.StatusBadRequest, "REQUIREMENT_REQUIRED", "requirement is required", false, nil)
		case errors.Is(err, schema.ErrUnknownTable):
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table is not in the schema index", false, map[string]any{"table": request.TableName})
		case errors.Is(err, planner.ErrEmptySchema):
			writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_EMPTY", "table has no columns to analyze", false, map[string]any{"table": request.TableName})
		case errors.Is(err, planner.ErrPlanInference):
			writeError(r.Context(), w, http.StatusBadGateway, "PLAN_INFERENCE_FAILED", "plan inference did not produce a usable result", true, nil)
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "ANALYZE_FAILED", err.Error(), true, nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
