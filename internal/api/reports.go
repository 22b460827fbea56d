package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/colplan/colplan/internal/auth"
	"github.com/colplan/colplan/internal/export"
	"github.com/colplan/colplan/internal/report"
	"github.com/colplan/colplan/internal/schema"
	"github.com/colplan/colplan/internal/storage"
)

type exportRequest struct {
	report.Request
	Format  string `json:"format"`
	Archive bool   `json:"archive"`
}

func handleRunReport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Reports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REPORTS_NOT_CONFIGURED", "report dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAnalyst); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request, ok := decodeReportRequest(w, r)
	if !ok {
		return
	}

	result, err := deps.Reports.Run(r.Context(), request)
	if err != nil {
		writeReportError(w, r, request, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleExportReport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Reports == nil || deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REPORTS_NOT_CONFIGURED", "report dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAnalyst); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request exportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}

	format, err := export.ParseFormat(request.Format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "FORMAT_UNSUPPORTED", err.Error(), false, nil)
		return
	}
	if request.Archive && !deps.ArchiveEnabled {
		writeError(r.Context(), w, http.StatusBadRequest, "ARCHIVE_DISABLED", "export archiving is not enabled", false, nil)
		return
	}

	result, err := deps.Reports.Run(r.Context(), request.Request)
	if err != nil {
		writeReportError(w, r, request.Request, err)
		return
	}

	exported, err := deps.Exports.Export(r.Context(), result, format, request.Archive)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", err.Error(), true, nil)
		return
	}

	w.Header().Set("Content-Type", exported.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s.%s", result.TableName, format)))
	if exported.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", exported.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exported.Data)
}

func handleGetArchivedExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exports == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "REPORTS_NOT_CONFIGURED", "report dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAnalyst); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	if !deps.ArchiveEnabled {
		writeError(r.Context(), w, http.StatusBadRequest, "ARCHIVE_DISABLED", "export archiving is not enabled", false, nil)
		return
	}

	key := r.PathValue("key")
	body, info, err := deps.Exports.Archived(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "ARCHIVE_NOT_FOUND", "no archived export under that key", false, map[string]any{"key": key})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_FETCH_FAILED", err.Error(), true, nil)
		return
	}
	defer func() { _ = body.Close() }()

	contentType := "application/octet-stream"
	if ext := strings.TrimPrefix(path.Ext(key), "."); ext != "" {
		if format, err := export.ParseFormat(ext); err == nil {
			contentType = format.ContentType()
		}
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func decodeReportRequest(w http.ResponseWriter, r *http.Request) (report.Request, bool) {
	var request report.Request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid report request body", false, map[string]any{"details": err.Error()})
		return report.Request{}, false
	}
	return request, true
}

func writeReportError(w http.ResponseWriter, r *http.Request, request report.Request, err error) {
	switch {
	case errors.Is(err, schema.ErrUnknownTable):
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table is not in the schema index", false, map[string]any{"table": request.TableName})
	case errors.Is(err, report.ErrUnknownColumn), errors.Is(err, report.ErrUnsupportedOperator):
		writeError(r.Context(), w, http.StatusBadRequest, "REPORT_INVALID", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "REPORT_FAILED", err.Error(), true, nil)
	}
}
