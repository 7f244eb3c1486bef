package rules

import (
	"github.com/quizarena/progression/internal/domain/model"
)

const maxProgressPct = 100

// Status is the derived unlock state of one rule against one snapshot.
// Never persisted.
type Status struct {
	RuleID      string  `json:"rule_id"`
	Unlocked    bool    `json:"unlocked"`
	ProgressPct float64 `json:"progress_pct"`
}

// Evaluate computes the unlock status of every rule in the catalog against
// a snapshot. Pure and deterministic: safe to call redundantly on every
// snapshot change.
//
// Rules with an unparseable criterion evaluate fail-open (unlocked, 100%).
// That is a permissive default carried over deliberately: a broken catalog
// entry must not lock a user out of a capability. Such entries are reported
// loudly at catalog load time, not here.
func Evaluate(set *Set, snap *model.StatsSnapshot) map[string]Status {
	out := make(map[string]Status, set.Len())
	for _, r := range set.All() {
		out[r.ID] = evaluateRule(r, snap)
	}
	return out
}

// UnlockedSet returns only the ids of unlocked rules.
func UnlockedSet(statuses map[string]Status) map[string]struct{} {
	out := make(map[string]struct{}, len(statuses))
	for id, st := range statuses {
		if st.Unlocked {
			out[id] = struct{}{}
		}
	}
	return out
}

func evaluateRule(r Rule, snap *model.StatsSnapshot) Status {
	cur, known := currentValue(r, snap)
	if !known {
		// Fail-open for unknown criteria.
		return Status{RuleID: r.ID, Unlocked: true, ProgressPct: maxProgressPct}
	}
	pct := maxProgressPct * cur / r.Threshold
	if pct > maxProgressPct {
		pct = maxProgressPct
	}
	if pct < 0 {
		pct = 0
	}
	return Status{
		RuleID:      r.ID,
		Unlocked:    cur >= r.Threshold,
		ProgressPct: pct,
	}
}

// currentValue reads the snapshot field named by the rule's criterion.
func currentValue(r Rule, snap *model.StatsSnapshot) (float64, bool) {
	switch r.Criterion {
	case KindLevel:
		return float64(snap.Level), true
	case KindStreak:
		return float64(snap.CurrentStreak), true
	case KindScore:
		return snap.AverageScore, true
	case KindCount:
		switch r.CounterField {
		case FieldQuizzesCompleted:
			return float64(snap.QuizzesCompleted), true
		case FieldDuelsWon:
			return float64(snap.DuelsWon), true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}
