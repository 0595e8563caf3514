package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/history"
)

type favoriteRequest struct {
	Question string   `json:"question"`
	SQL      string   `json:"sql"`
	Tags     []string `json:"tags"`
}

func historyStore(deps Dependencies, w http.ResponseWriter, r *http.Request) (history.Store, bool) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "history store is not configured", false, nil)
		return nil, false
	}
	if err := auth.RequireAnyRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil, false
	}
	return deps.History, true
}

func handleListHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	store, ok := historyStore(deps, w, r)
	if !ok {
		return
	}
	limit := deps.HistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}
	entries, err := store.ListEntries(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FETCH_FAILED", "failed to list history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func handleClearHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	store, ok := historyStore(deps, w, r)
	if !ok {
		return
	}
	if err := store.ClearEntries(r.Context()); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_CLEAR_FAILED", "failed to clear history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func handleListFavorites(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	store, ok := historyStore(deps, w, r)
	if !ok {
		return
	}
	favorites, err := store.ListFavorites(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "FAVORITES_FETCH_FAILED", "failed to list favorites", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favorites})
}

func handleAddFavorite(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	store, ok := historyStore(deps, w, r)
	if !ok {
		return
	}
	var request favoriteRequest
	if !decodeJSON(w, r, &request, "favorite") {
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	favorite, err := store.AddFavorite(r.Context(), history.Favorite{
		Question: strings.TrimSpace(request.Question),
		SQL:      request.SQL,
		Tags:     request.Tags,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "FAVORITE_SAVE_FAILED", "failed to save favorite", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, favorite)
}

func handleDeleteFavorite(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	store, ok := historyStore(deps, w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ID", "favorite id must be a positive integer", false, nil)
		return
	}
	if err := store.DeleteFavorite(r.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "FAVORITE_NOT_FOUND", "favorite was not found", false, map[string]any{"id": id})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "FAVORITE_DELETE_FAILED", "failed to delete favorite", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}
