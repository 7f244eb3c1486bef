// Package ingress normalizes and deduplicates progression events from the
// push channel and the poll fallback before they reach the store.
package ingress

import (
	"fmt"
	"time"

	"github.com/quizarena/progression/internal/domain/model"
)

// Push-channel message names.
const (
	WireStatsUpdated        = "stats:updated"
	WireAchievementUnlocked = "achievement:unlocked"
	WireStreakUpdated       = "streak:updated"
	WireProgressUpdated     = "progress:updated"
)

// WireAchievement is the achievement body carried on achievement:unlocked.
type WireAchievement struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Rarity string `json:"rarity"`
}

// WireEvent is the transport form of a progression event, shared by the
// push channel and POST /events.
type WireEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Seq    uint64 `json:"seq"`

	Stats       *model.StatsSnapshot `json:"stats,omitempty"`
	XPGained    int64                `json:"xp_gained,omitempty"`
	LevelUp     *model.LevelUp       `json:"level_up,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	Achievement *WireAchievement     `json:"achievement,omitempty"`
	UserStats   *model.StatsSnapshot `json:"user_stats,omitempty"`

	CurrentStreak int     `json:"current_streak,omitempty"`
	AchievementID string  `json:"achievement_id,omitempty"`
	Progress      float64 `json:"progress,omitempty"`

	TS string `json:"ts,omitempty"` // RFC3339, optional
}

// Normalize converts a wire event into the internal event form.
func Normalize(w WireEvent, source model.Source) (model.Event, error) {
	var t model.Type
	switch w.Type {
	case WireStatsUpdated:
		t = model.TypeStatsUpdated
	case WireAchievementUnlocked:
		t = model.TypeAchievementUnlocked
	case WireStreakUpdated:
		t = model.TypeStreakUpdated
	case WireProgressUpdated:
		t = model.TypeProgressUpdated
	default:
		return model.Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, w.Type)
	}

	userID := w.UserID
	if userID == "" && w.Stats != nil {
		userID = w.Stats.UserID
	}

	seq := w.Seq
	if seq == 0 {
		switch {
		case w.Stats != nil:
			seq = w.Stats.UpdatedAtSeq
		case w.UserStats != nil:
			seq = w.UserStats.UpdatedAtSeq
		}
	}

	ev := model.Event{
		ID:            model.DeriveID(userID, t, seq),
		Type:          t,
		UserID:        userID,
		Seq:           seq,
		Source:        source,
		Stats:         w.Stats,
		XPGained:      w.XPGained,
		LevelUp:       w.LevelUp,
		Reason:        w.Reason,
		CurrentStreak: w.CurrentStreak,
		Progress:      w.Progress,
	}
	if w.Achievement != nil {
		ev.AchievementID = w.Achievement.ID
	} else if w.AchievementID != "" {
		ev.AchievementID = w.AchievementID
	}
	if ev.Stats == nil && w.UserStats != nil {
		ev.Stats = w.UserStats
	}
	if w.TS != "" {
		if ts, err := time.Parse(time.RFC3339, w.TS); err == nil {
			ev.OccurredAt = ts
		}
	}

	if err := ev.Validate(); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}
