package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
)

type joinsRequest struct {
	Tables []string `json:"tables"`
}

func schemaSnapshot(deps Dependencies, w http.ResponseWriter, r *http.Request) (*schema.Snapshot, bool) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return nil, false
	}
	if err := auth.RequireAnyRole(r, auth.RoleQueryReader, auth.RoleSchemaAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil, false
	}
	snapshot := deps.Schema.Snapshot()
	if snapshot == nil {
		writePipelineError(w, r, session.ErrNotConnected, http.StatusServiceUnavailable, "NOT_CONNECTED")
		return nil, false
	}
	return snapshot, true
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	snapshot, ok := schemaSnapshot(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func handleSchemaRefresh(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r, auth.RoleSchemaAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	snapshot, err := deps.Schema.Refresh(r.Context())
	if err != nil {
		writePipelineError(w, r, err, http.StatusInternalServerError, "SCHEMA_REFRESH_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "refreshed",
		"database_name": snapshot.DatabaseName,
		"tables":        len(snapshot.Tables),
		"captured_at":   snapshot.CapturedAt,
	})
}

func handleSchemaContext(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r, auth.RoleQueryReader, auth.RoleSchemaAdmin); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	opts := schema.SummaryOptions{Tables: splitList(r.URL.Query().Get("tables"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("tokens")); raw != "" {
		tokens, err := strconv.Atoi(raw)
		if err != nil || tokens <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TOKENS", "tokens must be a positive integer", false, nil)
			return
		}
		opts.TokenBudget = tokens
	}

	text, err := deps.Assistant.Context(opts)
	if err != nil {
		writePipelineError(w, r, err, http.StatusInternalServerError, "CONTEXT_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context": text, "tables": opts.Tables})
}

func handleRelatedTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	snapshot, ok := schemaSnapshot(deps, w, r)
	if !ok {
		return
	}
	table := strings.TrimSpace(r.PathValue("table"))
	if _, exists := snapshot.Table(table); !exists {
		writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table was not found", false, map[string]any{"table": table})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "related": snapshot.RelatedTables(table)})
}

func handleSuggestJoins(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	snapshot, ok := schemaSnapshot(deps, w, r)
	if !ok {
		return
	}
	var request joinsRequest
	if !decodeJSON(w, r, &request, "joins") {
		return
	}
	if len(request.Tables) < 2 {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLES_REQUIRED", "at least two tables are required", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"joins": snapshot.SuggestJoins(request.Tables)})
}

func handleSchemaSearch(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	snapshot, ok := schemaSnapshot(deps, w, r)
	if !ok {
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_REQUIRED", "q is required", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, snapshot.Search(term))
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
