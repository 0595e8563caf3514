package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/auth"
)

type archiveQueryRequest struct {
	SQL string `json:"sql"`
	// Day limits the scan to one archive partition, formatted YYYY-MM-DD.
	Day string `json:"day"`
}

func handleArchiveQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_NOT_CONFIGURED", "history archive is not configured", false, nil)
		return
	}
	if err := auth.RequireAnyRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request archiveQueryRequest
	if !decodeJSON(w, r, &request, "archive query") {
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	var day time.Time
	if strings.TrimSpace(request.Day) != "" {
		parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(request.Day))
		if err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DAY", "day must be formatted YYYY-MM-DD", false, nil)
			return
		}
		day = parsed
	}

	result, err := deps.Archive.Query(r.Context(), request.SQL, day)
	switch {
	case errors.Is(err, archive.ErrWriteNotAllowed):
		writeError(r.Context(), w, http.StatusBadRequest, "UNSAFE_QUERY", "only read-only queries can run against the archive", false, nil)
		return
	case errors.Is(err, archive.ErrNoArchive):
		writeError(r.Context(), w, http.StatusNotFound, "ARCHIVE_EMPTY", err.Error(), false, nil)
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusInternalServerError, "ARCHIVE_QUERY_FAILED", "archive query failed", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"view":    archive.ViewName,
		"columns": result.Columns,
		"rows":    result.Rows,
		"stats": map[string]any{
			"row_count":     len(result.Rows),
			"truncated":     result.Truncated,
			"scanned_files": result.ScannedFiles,
			"scanned_bytes": result.ScannedBytes,
		},
	})
}
