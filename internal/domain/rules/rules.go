// Package rules holds the declarative unlock rule catalog and its evaluator.
package rules

import (
	"fmt"
	"sort"

	"github.com/quizarena/progression/internal/domain/model"
)

// Kind is the closed set of unlock criterion types.
type Kind int

// Criterion kinds. KindUnknown is reserved for catalog entries whose
// criterion string could not be parsed from configuration; it evaluates
// fail-open (see Evaluate).
const (
	KindUnknown Kind = iota
	KindLevel
	KindCount
	KindStreak
	KindScore
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLevel:
		return "level"
	case KindCount:
		return "count"
	case KindStreak:
		return "streak"
	case KindScore:
		return "score"
	default:
		return "unknown"
	}
}

// ParseKind maps a criterion string from configuration to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "level":
		return KindLevel, nil
	case "count":
		return KindCount, nil
	case "streak":
		return KindStreak, nil
	case "score":
		return KindScore, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownCriterion, s)
	}
}

// priority orders criterion kinds for deterministic multi-unlock bursts.
// Level-ups present first, then counters, streaks, scores.
func (k Kind) priority() int {
	switch k {
	case KindLevel:
		return 0
	case KindCount:
		return 1
	case KindStreak:
		return 2
	case KindScore:
		return 3
	default:
		return 4
	}
}

// JobKind maps a criterion kind to the outbound notification kind.
func (k Kind) JobKind() model.JobKind {
	switch k {
	case KindLevel:
		return model.KindLevelUp
	case KindStreak:
		return model.KindStreakMilestone
	default:
		return model.KindAchievement
	}
}

// Counter field names accepted for count criteria.
const (
	FieldQuizzesCompleted = "quizzes_completed"
	FieldDuelsWon         = "duels_won"
)

// Rule is one immutable unlock rule: a single typed criterion against a
// threshold. Rules are loaded once at startup and never mutated.
type Rule struct {
	ID           string
	Name         string
	Criterion    Kind
	CounterField string // only meaningful for KindCount
	Threshold    float64
}

// Set is an immutable rule catalog with a deterministic iteration order.
type Set struct {
	rules []Rule
	byID  map[string]Rule
}

// NewSet builds a catalog from rules. Duplicate ids are rejected; rules with
// non-positive thresholds are rejected. Ordering follows criterion priority,
// then threshold, then id, which is also the order transitions are reported.
func NewSet(rules []Rule) (*Set, error) {
	byID := make(map[string]Rule, len(rules))
	ordered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: rule without id", ErrInvalidRule)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRule, r.ID)
		}
		if r.Criterion != KindUnknown && r.Threshold <= 0 {
			return nil, fmt.Errorf("%w: rule %q has non-positive threshold", ErrInvalidRule, r.ID)
		}
		if r.Criterion == KindCount && r.CounterField == "" {
			return nil, fmt.Errorf("%w: count rule %q missing counter field", ErrInvalidRule, r.ID)
		}
		byID[r.ID] = r
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Criterion.priority() != b.Criterion.priority() {
			return a.Criterion.priority() < b.Criterion.priority()
		}
		if a.Threshold != b.Threshold {
			return a.Threshold < b.Threshold
		}
		return a.ID < b.ID
	})
	return &Set{rules: ordered, byID: byID}, nil
}

// All returns the rules in catalog order. The returned slice must not be
// mutated.
func (s *Set) All() []Rule {
	return s.rules
}

// Lookup returns the rule with the given id.
func (s *Set) Lookup(id string) (Rule, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Len returns the number of rules in the catalog.
func (s *Set) Len() int {
	return len(s.rules)
}

// Default returns the built-in achievement catalog. It is overridable from
// configuration; the ids are stable identifiers shared with downstream
// consumers.
func Default() *Set {
	set, err := NewSet([]Rule{
		{ID: "level_5", Name: "Scholar", Criterion: KindLevel, Threshold: 5},
		{ID: "level_10", Name: "Professor", Criterion: KindLevel, Threshold: 10},
		{ID: "first_quiz", Name: "First Steps", Criterion: KindCount, CounterField: FieldQuizzesCompleted, Threshold: 1},
		{ID: "quiz_8", Name: "Getting Serious", Criterion: KindCount, CounterField: FieldQuizzesCompleted, Threshold: 8},
		{ID: "quiz_50", Name: "Quiz Machine", Criterion: KindCount, CounterField: FieldQuizzesCompleted, Threshold: 50},
		{ID: "first_duel", Name: "Challenger", Criterion: KindCount, CounterField: FieldDuelsWon, Threshold: 1},
		{ID: "duel_10", Name: "Duelist", Criterion: KindCount, CounterField: FieldDuelsWon, Threshold: 10},
		{ID: "streak_3", Name: "Warming Up", Criterion: KindStreak, Threshold: 3},
		{ID: "streak_7", Name: "Week Streak", Criterion: KindStreak, Threshold: 7},
		{ID: "streak_30", Name: "Unstoppable", Criterion: KindStreak, Threshold: 30},
		{ID: "score_90", Name: "Perfectionist", Criterion: KindScore, Threshold: 90},
	})
	if err != nil {
		// The built-in catalog is validated by tests; reaching this is a bug.
		panic(err)
	}
	return set
}
