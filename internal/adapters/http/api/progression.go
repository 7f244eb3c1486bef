package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/quizarena/progression/internal/domain/model"
)

// ProgressionDependencies defines the interface for progression reads.
type ProgressionDependencies interface {
	Snapshot(ctx context.Context, userID string) (*model.StatsSnapshot, error)
}

// ProgressionHandler handles progression read requests.
type ProgressionHandler struct {
	deps ProgressionDependencies
}

// NewProgressionHandler creates a new progression handler.
func NewProgressionHandler(deps ProgressionDependencies) *ProgressionHandler {
	return &ProgressionHandler{deps: deps}
}

// HandleGetProgression handles GET /progression/{user_id} requests.
func (h *ProgressionHandler) HandleGetProgression(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/progression/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	snap, err := h.deps.Snapshot(r.Context(), userID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
