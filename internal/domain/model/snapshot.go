package model

import "math"

// XP curve constant: xpForLevel(n) = xpCurveBase * (n-1)^2.
const xpCurveBase = 25

// StatsSnapshot is the full progression state for one user. It is the
// document form stored in the snapshot store and the payload shape served
// over HTTP.
type StatsSnapshot struct {
	UserID                 string   `json:"user_id"`
	Level                  int      `json:"level"`
	Experience             int64    `json:"experience"`
	CurrentStreak          int      `json:"current_streak"`
	LongestStreak          int      `json:"longest_streak"`
	QuizzesCompleted       int      `json:"quizzes_completed"`
	DuelsWon               int      `json:"duels_won"`
	AverageScore           float64  `json:"average_score"`
	UnlockedAchievementIDs []string `json:"unlocked_achievement_ids"`
	UpdatedAtSeq           uint64   `json:"updated_at_seq"`
}

// LevelForExperience derives the level from cumulative experience.
// Level is never stored independently; it is always recomputed from
// experience so the two cannot drift apart.
func LevelForExperience(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(float64(xp)/xpCurveBase))) + 1
}

// XPForLevel is the inverse of LevelForExperience: the minimum cumulative
// experience required to reach level n.
func XPForLevel(n int) int64 {
	if n < 1 {
		n = 1
	}
	d := int64(n - 1)
	return xpCurveBase * d * d
}

// HasAchievement reports whether id is in the unlocked set.
func (s *StatsSnapshot) HasAchievement(id string) bool {
	for _, a := range s.UnlockedAchievementIDs {
		if a == id {
			return true
		}
	}
	return false
}

// AddAchievement appends id to the unlocked set if not already present.
// Returns true if the set changed.
func (s *StatsSnapshot) AddAchievement(id string) bool {
	if s.HasAchievement(id) {
		return false
	}
	s.UnlockedAchievementIDs = append(s.UnlockedAchievementIDs, id)
	return true
}

// Clone returns a deep copy of the snapshot.
func (s *StatsSnapshot) Clone() *StatsSnapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.UnlockedAchievementIDs = append([]string(nil), s.UnlockedAchievementIDs...)
	return &cp
}
