// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/internal/ingress"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// AcceptWire runs one wire event through normalization, dedupe and the
	// serialized store path, returning its disposition.
	AcceptWire(ctx context.Context, w ingress.WireEvent, source model.Source) (ingress.Disposition, error)

	// Snapshot returns a user's current progression state.
	Snapshot(ctx context.Context, userID string) (*model.StatsSnapshot, error)

	// Statuses evaluates the unlock catalog against a user's state.
	Statuses(ctx context.Context, userID string) (map[string]rules.Status, error)

	// Rules exposes the active unlock catalog.
	Rules() *rules.Set

	// GetStats exposes service counters for GET /stats.
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	progressionHandler *ProgressionHandler
	unlocksHandler     *UnlocksHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		eventsHandler:      NewEventsHandler(deps),
		progressionHandler: NewProgressionHandler(deps),
		unlocksHandler:     NewUnlocksHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/progression/", MetricsMiddleware(s.progressionHandler.HandleGetProgression, "progression"))
	mux.HandleFunc("/unlocks/", MetricsMiddleware(s.unlocksHandler.HandleGetUnlocks, "unlocks"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates store-level not-found errors to 404 responses.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
