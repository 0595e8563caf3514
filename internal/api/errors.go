package api

import (
	"errors"
	"net/http"

	"github.com/askdb/askdb/internal/pipeline"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
)

// writePipelineError maps pipeline and session failures to API error codes.
// Anything unrecognized is reported under fallbackCode.
func writePipelineError(w http.ResponseWriter, r *http.Request, err error, fallbackStatus int, fallbackCode string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, session.ErrNotConnected):
		writeError(ctx, w, http.StatusServiceUnavailable, "NOT_CONNECTED", "no database connection", true, nil)
	case errors.Is(err, pipeline.ErrUnsafeQuery):
		writeError(ctx, w, http.StatusBadRequest, "UNSAFE_QUERY", "only read-only queries can be previewed or executed", false, nil)
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		writeError(ctx, w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, nil)
	case errors.Is(err, pipeline.ErrEmptySQL):
		writeError(ctx, w, http.StatusBadRequest, "SQL_REQUIRED", err.Error(), false, nil)
	case errors.Is(err, schema.ErrConnection):
		writeError(ctx, w, http.StatusBadGateway, "CONNECTION_FAILED", err.Error(), true, nil)
	default:
		writeError(ctx, w, fallbackStatus, fallbackCode, err.Error(), fallbackStatus >= http.StatusInternalServerError, nil)
	}
}
