package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/safety"
)

type questionRequest struct {
	Question string `json:"question"`
	Preview  bool   `json:"preview"`
}

type sqlRequest struct {
	SQL      string `json:"sql"`
	Question string `json:"question"`
	Force    bool   `json:"force_refresh"`
	RowLimit int    `json:"row_limit"`
}

type validateResponse struct {
	safety.Report
	IsReadOnly bool `json:"is_read_only"`
}

func assistant(deps Dependencies, w http.ResponseWriter, r *http.Request) (Assistant, bool) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return nil, false
	}
	if err := auth.RequireAnyRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil, false
	}
	return deps.Assistant, true
}

func handleIntent(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	a, ok := assistant(deps, w, r)
	if !ok {
		return
	}
	var request questionRequest
	if !decodeJSON(w, r, &request, "intent") {
		return
	}
	in, err := a.Intent(request.Question)
	if err != nil {
		writePipelineError(w, r, err, http.StatusInternalServerError, "INTENT_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	a, ok := assistant(deps, w, r)
	if !ok {
		return
	}
	var request questionRequest
	if !decodeJSON(w, r, &request, "ask") {
		return
	}
	answer, err := a.Ask(r.Context(), request.Question, pipeline.AskOptions{Preview: request.Preview})
	if err != nil {
		writePipelineError(w, r, err, http.StatusInternalServerError, "ASK_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func handleValidate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	a, ok := assistant(deps, w, r)
	if !ok {
		return
	}
	var request sqlRequest
	if !decodeJSON(w, r, &request, "validate") {
		return
	}
	report, err := a.Validate(request.SQL)
	if err != nil {
		writePipelineError(w, r, err, http.StatusInternalServerError, "VALIDATE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Report: report, IsReadOnly: report.SafetyCheck})
}

func handlePreview(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	a, ok := assistant(deps, w, r)
	if !ok {
		return
	}
	var request sqlRequest
	if !decodeJSON(w, r, &request, "preview") {
		return
	}
	result, err := a.Preview(r.Context(), request.SQL, request.Force)
	if err != nil {
		writePipelineError(w, r, err, http.StatusInternalServerError, "PREVIEW_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	a, ok := assistant(deps, w, r)
	if !ok {
		return
	}
	var request sqlRequest
	if !decodeJSON(w, r, &request, "query") {
		return
	}
	if request.RowLimit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ROW_LIMIT", "row_limit must not be negative", false, nil)
		return
	}

	start := time.Now()
	result, err := a.Execute(r.Context(), pipeline.ExecuteRequest{
		Question: strings.TrimSpace(request.Question),
		SQL:      request.SQL,
		RowLimit: request.RowLimit,
	})
	if err != nil {
		writePipelineError(w, r, err, http.StatusUnprocessableEntity, "QUERY_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"columns":   result.Columns,
		"rows":      result.Rows,
		"truncated": result.Truncated,
		"stats": map[string]any{
			"row_count":   len(result.Rows),
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
}
