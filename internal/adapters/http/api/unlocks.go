package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/quizarena/progression/internal/domain/rules"
)

// UnlockDependencies defines the interface for unlock status reads.
type UnlockDependencies interface {
	Statuses(ctx context.Context, userID string) (map[string]rules.Status, error)
	Rules() *rules.Set
}

// UnlocksHandler handles unlock status requests.
type UnlocksHandler struct {
	deps UnlockDependencies
}

// NewUnlocksHandler creates a new unlocks handler.
func NewUnlocksHandler(deps UnlockDependencies) *UnlocksHandler {
	return &UnlocksHandler{deps: deps}
}

// unlockEntry is the read shape for one catalog rule and its status.
type unlockEntry struct {
	RuleID      string  `json:"rule_id"`
	Name        string  `json:"name"`
	Criterion   string  `json:"criterion"`
	Threshold   float64 `json:"threshold"`
	Unlocked    bool    `json:"unlocked"`
	ProgressPct float64 `json:"progress_pct"`
}

// HandleGetUnlocks handles GET /unlocks/{user_id} requests. Entries are
// returned in catalog order so repeated reads are stable.
func (h *UnlocksHandler) HandleGetUnlocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/unlocks/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	statuses, err := h.deps.Statuses(r.Context(), userID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	catalog := h.deps.Rules()
	out := make([]unlockEntry, 0, catalog.Len())
	for _, rule := range catalog.All() {
		st := statuses[rule.ID]
		out = append(out, unlockEntry{
			RuleID:      rule.ID,
			Name:        rule.Name,
			Criterion:   rule.Criterion.String(),
			Threshold:   rule.Threshold,
			Unlocked:    st.Unlocked,
			ProgressPct: st.ProgressPct,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
