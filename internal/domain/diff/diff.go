// Package diff detects genuinely new unlock transitions between evaluations.
package diff

import (
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/domain/rules"
)

// Detect computes the ordered list of new transitions between two unlocked
// sets for one user.
//
// firstObservation must be true when prev is not a real prior state (first
// snapshot after process start or store reset). A fresh baseline yields no
// transitions: rules already satisfied by the first snapshot must never be
// re-announced as N simultaneous unlocks.
//
// Transition order is the catalog order of set (criterion priority, then
// threshold, then id), so multi-unlock bursts present in a stable sequence
// rather than map-iteration order.
func Detect(set *rules.Set, prev, curr map[string]struct{}, userID string, seq uint64, firstObservation bool) []model.Transition {
	if firstObservation {
		return nil
	}

	var out []model.Transition
	for _, r := range set.All() {
		if _, now := curr[r.ID]; !now {
			continue
		}
		if _, before := prev[r.ID]; before {
			continue
		}
		out = append(out, model.Transition{
			RuleID:        r.ID,
			UserID:        userID,
			OccurredAtSeq: seq,
			Kind:          r.Criterion.JobKind(),
		})
	}
	return out
}
