package simulate

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/ingress"
)

// XP gain ranges per simulated quiz result.
const (
	xpGainMin   = 10
	xpGainRange = 40

	scoreMin   = 40.0
	scoreRange = 60.0

	duelWinChance = 0.4
)

// timeline is one user's ordered update history plus the expected end state.
type timeline struct {
	UserID   string
	Events   []ingress.WireEvent
	Expected model.StatsSnapshot
}

// generateTimelines builds a monotonic event timeline per user. Each event
// carries the full snapshot as of that sequence, so redelivery and reordering
// during submission cannot change the expected end state.
func generateTimelines(_ context.Context, cfg *Config, rng *rand.Rand) []timeline {
	out := make([]timeline, cfg.NumUsers)
	for i := range out {
		out[i] = generateTimeline(cfg, rng, uuid.New().String())
	}
	return out
}

func generateTimeline(cfg *Config, rng *rand.Rand, userID string) timeline {
	snap := model.StatsSnapshot{UserID: userID}
	events := make([]ingress.WireEvent, 0, cfg.EventsPerUser)

	for seq := uint64(1); seq <= uint64(cfg.EventsPerUser); seq++ {
		gained := int64(xpGainMin + rng.Intn(xpGainRange))
		snap.Experience += gained
		snap.QuizzesCompleted++
		if rng.Float64() < duelWinChance {
			snap.DuelsWon++
		}
		score := scoreMin + rng.Float64()*scoreRange
		// Running average over completed quizzes.
		n := float64(snap.QuizzesCompleted)
		snap.AverageScore += (score - snap.AverageScore) / n
		snap.Level = model.LevelForExperience(snap.Experience)
		snap.UpdatedAtSeq = seq

		copied := snap
		copied.UnlockedAchievementIDs = append([]string(nil), snap.UnlockedAchievementIDs...)
		events = append(events, ingress.WireEvent{
			Type:     ingress.WireStatsUpdated,
			UserID:   userID,
			Seq:      seq,
			Stats:    &copied,
			XPGained: gained,
			Reason:   fmt.Sprintf("quiz_completed_%d", seq),
		})
	}

	return timeline{UserID: userID, Events: events, Expected: snap}
}

// buildSubmission flattens timelines into one submission order, injecting
// duplicates and bounded reordering per the configuration.
func buildSubmission(cfg *Config, rng *rand.Rand, timelines []timeline) []ingress.WireEvent {
	var all []ingress.WireEvent
	for _, tl := range timelines {
		events := append([]ingress.WireEvent(nil), tl.Events...)
		if cfg.ShuffleWindow > 0 {
			shuffleWithin(rng, events, cfg.ShuffleWindow)
		}
		for _, ev := range events {
			all = append(all, ev)
			if rng.Float64() < cfg.DuplicateRate {
				all = append(all, ev)
			}
		}
	}
	// Interleave users so per-user ordering pressure meets cross-user load.
	rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return all
}

// shuffleWithin swaps each element with another at most window positions
// away, modelling transport-level reordering without unbounded skew.
func shuffleWithin(rng *rand.Rand, events []ingress.WireEvent, window int) {
	for i := range events {
		j := i + rng.Intn(window+1)
		if j >= len(events) {
			j = len(events) - 1
		}
		events[i], events[j] = events[j], events[i]
	}
}
