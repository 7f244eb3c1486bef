package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quizarena/progression/internal/domain/diff"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/internal/domain/streak"
	"github.com/quizarena/progression/pkg/logger"
	"github.com/quizarena/progression/pkg/metrics"
)

// maxActivityLog bounds the per-user activity history kept for streak
// derivation. 60 days of daily play is far beyond the longest streak rule.
const maxActivityLog = 64

// userState is everything the store tracks for a single user. The mutex
// serializes Apply for this user; cross-user operations never contend.
type userState struct {
	mu        sync.Mutex
	snap      *model.StatsSnapshot
	unlocked  map[string]struct{}
	baselined bool
	activity  []time.Time // accepted XP-gaining activity, for streak derivation
}

// MemStore implements Store with in-memory per-user state, optional
// write-through to a SnapshotStore, and transition detection inside the
// per-user critical section.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]*userState

	ruleSet   *rules.Set
	persister SnapshotStore
	hook      TransitionHook
	now       func() time.Time
	log       logger.Logger
}

// NewMemStore creates a progression store with the given options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		users:   make(map[string]*userState),
		ruleSet: rules.Default(),
		now:     time.Now,
		log:     logger.Get().Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply implements Store.
func (s *MemStore) Apply(ctx context.Context, ev model.Event) (Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordApplyLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ev.Validate(); err != nil {
		return Outcome{}, err
	}

	st := s.state(ctx, ev.UserID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.snap == nil {
		s.restore(ctx, st, ev.UserID)
	}
	if st.snap == nil {
		return s.baseline(ctx, st, ev)
	}

	if ev.Seq <= st.snap.UpdatedAtSeq {
		metrics.RecordEventStale()
		s.log.Debug(ctx, "stale event dropped",
			logger.String("userID", ev.UserID),
			logger.Uint64("seq", ev.Seq),
			logger.Uint64("storedSeq", st.snap.UpdatedAtSeq),
		)
		return Outcome{Snapshot: st.snap.Clone(), Changed: false}, nil
	}

	prevLevel := st.snap.Level
	prevUnlocked := st.unlocked

	next := st.snap.Clone()
	s.mutate(ctx, st, next, ev)
	next.UpdatedAtSeq = ev.Seq
	st.snap = next

	statuses := rules.Evaluate(s.ruleSet, next)
	currUnlocked := rules.UnlockedSet(statuses)
	transitions := diff.Detect(s.ruleSet, prevUnlocked, currUnlocked, ev.UserID, ev.Seq, false)
	st.unlocked = currUnlocked

	out := Outcome{
		Snapshot:    next.Clone(),
		Changed:     true,
		Transitions: transitions,
	}
	if next.Level > prevLevel {
		out.LeveledUp = true
		out.NewLevel = next.Level
		metrics.RecordLevelUp()
	}
	metrics.RecordEventAccepted(string(ev.Source))
	if len(transitions) > 0 {
		metrics.RecordTransitions(len(transitions))
	}

	s.persist(ctx, next)
	s.notify(ctx, out)

	return out, nil
}

// restore loads prior state for a user from the document store, if any, so
// a process restart does not re-announce already-held unlocks and does not
// suppress genuinely new ones. Must hold st.mu.
func (s *MemStore) restore(ctx context.Context, st *userState, userID string) {
	if s.persister == nil {
		return
	}
	stored, err := s.persister.Get(ctx, userID)
	switch {
	case err == nil && stored != nil:
		st.snap = stored
		st.unlocked = rules.UnlockedSet(rules.Evaluate(s.ruleSet, stored))
		st.baselined = true
		s.log.Debug(ctx, "restored user from snapshot store",
			logger.String("userID", userID),
			logger.Uint64("seq", stored.UpdatedAtSeq),
		)
	case err != nil && !errors.Is(err, ErrNotFound):
		s.log.Warn(ctx, "snapshot store read failed; treating as first observation",
			logger.String("userID", userID),
			logger.Error(err),
		)
	}
}

// baseline establishes first-observation state for a previously unknown
// user. Must hold st.mu.
func (s *MemStore) baseline(ctx context.Context, st *userState, ev model.Event) (Outcome, error) {
	snap := snapshotFromEvent(ev)
	snap.Level = model.LevelForExperience(snap.Experience)
	st.snap = snap
	st.unlocked = rules.UnlockedSet(rules.Evaluate(s.ruleSet, snap))
	st.baselined = true
	if ev.XPGained > 0 || ev.Type == model.TypeStatsUpdated {
		st.activity = append(st.activity, s.eventTime(ev))
	}

	metrics.RecordBaseline()
	metrics.RecordEventAccepted(string(ev.Source))
	s.log.Info(ctx, "baselined user",
		logger.String("userID", ev.UserID),
		logger.Uint64("seq", snap.UpdatedAtSeq),
		logger.Int("alreadyUnlocked", len(st.unlocked)),
	)

	s.persist(ctx, snap)

	// A fresh baseline never reports transitions.
	return Outcome{
		Snapshot:         snap.Clone(),
		Changed:          true,
		FirstObservation: true,
	}, nil
}

// mutate applies the event's effect to next. Must hold st.mu.
func (s *MemStore) mutate(ctx context.Context, st *userState, next *model.StatsSnapshot, ev model.Event) {
	switch ev.Type {
	case model.TypeStatsUpdated:
		incoming := ev.Stats
		// Experience is non-decreasing; a newer-seq event with lower XP is
		// a producer defect, clamp rather than regress.
		if incoming.Experience > next.Experience {
			next.Experience = incoming.Experience
		} else if incoming.Experience < next.Experience {
			s.log.Warn(ctx, "stats update carried regressed experience; clamping",
				logger.String("userID", ev.UserID),
				logger.Int64("stored", next.Experience),
				logger.Int64("incoming", incoming.Experience),
			)
		}
		next.QuizzesCompleted = maxInt(next.QuizzesCompleted, incoming.QuizzesCompleted)
		next.DuelsWon = maxInt(next.DuelsWon, incoming.DuelsWon)
		next.AverageScore = incoming.AverageScore
		for _, id := range incoming.UnlockedAchievementIDs {
			next.AddAchievement(id)
		}
		next.CurrentStreak = incoming.CurrentStreak
		if ev.XPGained > 0 || ev.Reason != "" {
			st.activity = appendActivity(st.activity, s.eventTime(ev))
			// Local activity history can only extend a streak the
			// producer has not caught up on yet.
			if derived := streak.Compute(st.activity, s.now()); derived > next.CurrentStreak {
				next.CurrentStreak = derived
			}
		}

	case model.TypeAchievementUnlocked:
		next.AddAchievement(ev.AchievementID)
		if ev.Stats != nil {
			if ev.Stats.Experience > next.Experience {
				next.Experience = ev.Stats.Experience
			}
			next.QuizzesCompleted = maxInt(next.QuizzesCompleted, ev.Stats.QuizzesCompleted)
			next.DuelsWon = maxInt(next.DuelsWon, ev.Stats.DuelsWon)
		}

	case model.TypeStreakUpdated:
		next.CurrentStreak = ev.CurrentStreak

	case model.TypeProgressUpdated:
		// Progress toward a rule is derived state; only the sequence
		// advances.
	}

	// Level is always derived, never taken from the event.
	next.Level = model.LevelForExperience(next.Experience)
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
}

// Snapshot implements Store.
func (s *MemStore) Snapshot(_ context.Context, userID string) (*model.StatsSnapshot, error) {
	s.mu.RLock()
	st, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.snap == nil {
		return nil, ErrNotFound
	}
	return st.snap.Clone(), nil
}

// Statuses implements Store.
func (s *MemStore) Statuses(ctx context.Context, userID string) (map[string]rules.Status, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rules.Evaluate(s.ruleSet, snap), nil
}

// Count implements Store.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// state returns the state holder for userID, creating it if needed.
func (s *MemStore) state(_ context.Context, userID string) *userState {
	s.mu.RLock()
	st, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.users[userID]; ok {
		return st
	}
	st = &userState{}
	s.users[userID] = st
	metrics.UpdateActiveUsers(len(s.users))
	return st
}

// persist writes the snapshot through to the document store. Failures are
// logged, not returned: the in-process copy stays authoritative and a later
// apply retries the write.
func (s *MemStore) persist(ctx context.Context, snap *model.StatsSnapshot) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Upsert(ctx, snap.Clone()); err != nil {
		s.log.Warn(ctx, "snapshot write-through failed",
			logger.String("userID", snap.UserID),
			logger.Uint64("seq", snap.UpdatedAtSeq),
			logger.Error(err),
		)
	}
}

// notify invokes the transition hook while still inside the per-user
// critical section, preserving accepted-sequence order downstream.
func (s *MemStore) notify(ctx context.Context, out Outcome) {
	if s.hook == nil {
		return
	}
	if len(out.Transitions) == 0 && !out.LeveledUp {
		return
	}
	s.hook(ctx, out)
}

func (s *MemStore) eventTime(ev model.Event) time.Time {
	if !ev.OccurredAt.IsZero() {
		return ev.OccurredAt
	}
	return s.now()
}

func snapshotFromEvent(ev model.Event) *model.StatsSnapshot {
	var snap *model.StatsSnapshot
	if ev.Stats != nil {
		snap = ev.Stats.Clone()
	} else {
		snap = &model.StatsSnapshot{}
	}
	snap.UserID = ev.UserID
	snap.UpdatedAtSeq = ev.Seq
	if ev.Type == model.TypeAchievementUnlocked {
		snap.AddAchievement(ev.AchievementID)
	}
	if ev.Type == model.TypeStreakUpdated {
		snap.CurrentStreak = ev.CurrentStreak
	}
	if snap.CurrentStreak > snap.LongestStreak {
		snap.LongestStreak = snap.CurrentStreak
	}
	return snap
}

func appendActivity(activity []time.Time, t time.Time) []time.Time {
	activity = append(activity, t)
	if len(activity) > maxActivityLog {
		activity = activity[len(activity)-maxActivityLog:]
	}
	return activity
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
