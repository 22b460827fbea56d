package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/colplan/colplan/internal/auth"
	"github.com/colplan/colplan/internal/requests"
)

// createRequestBody mirrors the PlanResult fields a client forwards when the
// analysis came back incomplete, so the reviewer sees the full plan context.
type createRequestBody struct {
	TableName        string   `json:"table_name"`
	Requirement      string   `json:"requirement"`
	TechnicalSummary string   `json:"technical_summary"`
	RequiredColumns  []string `json:"required_columns"`
	MissingColumns   []string `json:"missing_columns"`
	AvailableColumns []string `json:"available_columns"`
	Reason           string   `json:"reason"`
}

func handleCreateRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Requests == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REQUESTS_NOT_CONFIGURED", "request registry is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAnalyst); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var body createRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return
	}

	created, err := deps.Requests.Create(r.Context(), requests.CreateInput{
		TableName:        body.TableName,
		Requirement:      body.Requirement,
		TechnicalSummary: body.TechnicalSummary,
		RequiredColumns:  body.RequiredColumns,
		MissingColumns:   body.MissingColumns,
		AvailableColumns: body.AvailableColumns,
		Reason:           body.Reason,
		RequestedBy:      subjectFromRequest(r),
	})
	if err != nil {
		if strings.Contains(err.Error(), "required") {
			writeError(r.Context(), w, http.StatusBadRequest, "REQUEST_INVALID", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "REQUEST_CREATE_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func handleListRequests(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Requests == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REQUESTS_NOT_CONFIGURED", "request registry is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	listed, err := deps.Requests.List(r.Context(), status)
	if err != nil {
		if errors.Is(err, requests.ErrInvalidStatus) {
			writeError(r.Context(), w, http.StatusBadRequest, "STATUS_INVALID", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "REQUEST_LIST_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": listed})
}

func handleGetRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Requests == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REQUESTS_NOT_CONFIGURED", "request registry is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	id, ok := requestIDFromPath(w, r)
	if !ok {
		return
	}
	found, err := deps.Requests.Get(r.Context(), id)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

type reviewRequestBody struct {
	Status     string `json:"status"`
	ReviewNote string `json:"review_note"`
}

func handleReviewRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Requests == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REQUESTS_NOT_CONFIGURED", "request registry is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	id, ok := requestIDFromPath(w, r)
	if !ok {
		return
	}

	var body reviewRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid review body", false, map[string]any{"details": err.Error()})
		return
	}

	reviewed, err := deps.Requests.Review(r.Context(), id, requests.ReviewInput{
		Status:     body.Status,
		ReviewNote: body.ReviewNote,
	})
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewed)
}

func requestIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "REQUEST_ID_INVALID", "request id must be a positive integer", false, nil)
		return 0, false
	}
	return id, true
}

func writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, requests.ErrNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "REQUEST_NOT_FOUND", "request does not exist", false, nil)
	case errors.Is(err, requests.ErrInvalidStatus):
		writeError(r.Context(), w, http.StatusBadRequest, "STATUS_INVALID", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "REQUEST_FAILED", err.Error(), true, nil)
	}
}
