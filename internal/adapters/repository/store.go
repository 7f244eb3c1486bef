// Package repository owns per-user progression state and its serialized
// mutation path.
package repository

import (
	"context"

	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/domain/rules"
)

// Outcome is the result of applying one event to a user's progression state.
type Outcome struct {
	// Snapshot is the state after the event was applied (a copy).
	Snapshot *model.StatsSnapshot

	// Changed is false for stale or duplicate events.
	Changed bool

	// FirstObservation is true when this event established the baseline
	// for a previously unknown user.
	FirstObservation bool

	// LeveledUp is set when the derived level increased.
	LeveledUp bool
	NewLevel  int

	// Transitions are the genuinely new unlocks caused by this event, in
	// deterministic catalog order. Always empty on first observation.
	Transitions []model.Transition
}

// Store provides serialized access to progression state.
type Store interface {
	// Apply runs an event through the per-user serialized update path.
	// Events whose sequence is not newer than the stored sequence are
	// no-ops returning Changed=false.
	Apply(ctx context.Context, ev model.Event) (Outcome, error)

	// Snapshot returns the current snapshot for a user.
	// Returns ErrNotFound for unknown users.
	Snapshot(ctx context.Context, userID string) (*model.StatsSnapshot, error)

	// Statuses evaluates the rule catalog against the user's current
	// snapshot. Returns ErrNotFound for unknown users.
	Statuses(ctx context.Context, userID string) (map[string]rules.Status, error)

	// Count returns the number of users with in-memory state.
	Count(ctx context.Context) int
}

// SnapshotStore is the external document store the progression state is
// written through to. Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Get returns the stored snapshot, or ErrNotFound.
	Get(ctx context.Context, userID string) (*model.StatsSnapshot, error)

	// Upsert stores the snapshot, replacing any previous document.
	Upsert(ctx context.Context, snap *model.StatsSnapshot) error
}

// TransitionHook is invoked inside the per-user critical section for every
// outcome with transitions or a level-up, so downstream dispatch observes
// outcomes in exactly the accepted-sequence order.
type TransitionHook func(ctx context.Context, out Outcome)
