package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/colplan/colplan/internal/auth"
	"github.com/colplan/colplan/internal/schema"
)

type tableListResponse struct {
	Tables   []tableInfoPayload `json:"tables"`
	LoadedAt time.Time          `json:"loaded_at"`
}

type tableInfoPayload struct {
	TableName   string `json:"table_name"`
	ColumnCount int    `json:"column_count"`
}

type columnPayload struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema index is not configured", false, nil)
		return
	}

	infos := deps.Schemas.ListTables()
	tables := make([]tableInfoPayload, 0, len(infos))
	for _, info := range infos {
		tables = append(tables, tableInfoPayload{TableName: info.TableName, ColumnCount: info.ColumnCount})
	}
	writeJSON(w, http.StatusOK, tableListResponse{Tables: tables, LoadedAt: deps.Schemas.LoadedAt()})
}

func handleTableSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schemas == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema index is not configured", false, nil)
		return
	}

	tableName := r.PathValue("table")
	table, err := deps.Schemas.ColumnsOf(tableName)
	if err != nil {
		if errors.Is(err, schema.ErrUnknownTable) {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table is not in the schema index", false, map[string]any{"table": tableName})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_LOOKUP_FAILED", err.Error(), true, nil)
		return
	}

	columns := make([]columnPayload, 0, len(table.Columns))
	for _, column := range table.Columns {
		columns = append(columns, columnPayload{
			Name:       column.Name,
			Type:       column.DeclaredType,
			Nullable:   column.Nullable,
			PrimaryKey: column.PrimaryKey,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table_name": table.TableName,
		"columns":    columns,
	})
}

func handleSchemaRefresh(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.SchemaRefresh == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema refresh is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	if err := deps.SchemaRefresh(r.Context()); err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "SCHEMA_REFRESH_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "refreshed",
		"table_count": len(deps.Schemas.ListTables()),
		"loaded_at":   deps.Schemas.LoadedAt(),
	})
}
