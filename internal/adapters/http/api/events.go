package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/ingress"
)

// EventDependencies defines the interface for event submission.
type EventDependencies interface {
	AcceptWire(ctx context.Context, w ingress.WireEvent, source model.Source) (ingress.Disposition, error)
}

// EventsHandler handles event submission requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests. Events are applied
// synchronously through the serialized store path; the ack carries the
// disposition so callers can distinguish duplicates and stale redeliveries.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req ingress.WireEvent
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing type")))
		return
	}

	disp, err := h.deps.AcceptWire(r.Context(), req, model.SourcePush)
	if err != nil {
		if errors.Is(err, ingress.ErrUnknownEventType) || errors.Is(err, model.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	status := http.StatusAccepted
	if disp != ingress.Accepted {
		status = http.StatusOK
	}
	writeJSON(w, status, ackResponse{Status: string(disp), Duplicate: disp == ingress.Duplicate})
}
