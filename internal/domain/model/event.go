// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Type identifies the kind of progression event arriving over a transport.
type Type string

// Progression event types. These mirror the push-channel message names.
const (
	TypeStatsUpdated        Type = "stats_updated"
	TypeAchievementUnlocked Type = "achievement_unlocked"
	TypeStreakUpdated       Type = "streak_updated"
	TypeProgressUpdated     Type = "progress_updated"
)

// Source identifies which transport delivered an event.
type Source string

// Event sources.
const (
	SourcePush Source = "push"
	SourcePoll Source = "poll"
)

// LevelUp describes a level change carried on a stats update.
type LevelUp struct {
	NewLevel int `json:"new_level"`
}

// Event is the normalized form of a progression update after ingress.
// Both the push channel and the poll fallback produce Events; the
// progression store is the only consumer.
type Event struct {
	ID     string // deterministic identity for deduplication
	Type   Type
	UserID string
	Seq    uint64
	Source Source

	// Stats carries a full snapshot when the transport provided one
	// (stats updates and poll fetches). Nil for partial events.
	Stats *StatsSnapshot

	// Optional fields depending on Type.
	XPGained      int64
	LevelUp       *LevelUp
	Reason        string
	AchievementID string
	CurrentStreak int
	Progress      float64

	OccurredAt time.Time
}

// DeriveID returns the deterministic event identity used for transport-level
// deduplication. A push delivery and a poll fetch of the same update collapse
// to the same ID.
func DeriveID(userID string, t Type, seq uint64) string {
	return fmt.Sprintf("%s:%s:%d", userID, t, seq)
}

// Validate reports whether the event carries the minimum required fields.
func (e *Event) Validate() error {
	switch {
	case e.UserID == "":
		return fmt.Errorf("%w: missing user id", ErrInvalidEvent)
	case e.Type == "":
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	case e.Seq == 0:
		return fmt.Errorf("%w: missing sequence", ErrInvalidEvent)
	}
	switch e.Type {
	case TypeStatsUpdated:
		if e.Stats == nil {
			return fmt.Errorf("%w: stats update missing snapshot", ErrInvalidEvent)
		}
	case TypeAchievementUnlocked:
		if e.AchievementID == "" {
			return fmt.Errorf("%w: achievement event missing achievement id", ErrInvalidEvent)
		}
	case TypeStreakUpdated, TypeProgressUpdated:
		// partial events carry their own scalar fields
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}
