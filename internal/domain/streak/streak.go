// Package streak computes consecutive-day activity streaks.
package streak

import (
	"sort"
	"time"
)

// Compute returns the consecutive-day streak ending at now.
//
// Timestamps are bucketed into calendar days in UTC. UTC is the canonical
// timezone on every replica: bucketing in a client-local zone would make the
// same activity history produce different streaks on different devices.
//
// The most recent active day is accepted if it is today or yesterday (a user
// who has not played yet today keeps their streak), after that each accepted
// day must be exactly one day before the previous one. The walk stops at the
// first gap.
func Compute(activity []time.Time, now time.Time) int {
	if len(activity) == 0 {
		return 0
	}

	days := uniqueDaysDesc(activity)

	today := dayOf(now)
	yesterday := today.AddDate(0, 0, -1)

	// Grace period: the streak anchors on today or yesterday.
	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		return 0
	}

	count := 1
	prev := days[0]
	for _, d := range days[1:] {
		if !d.Equal(prev.AddDate(0, 0, -1)) {
			break
		}
		count++
		prev = d
	}
	return count
}

// dayOf truncates t to midnight UTC.
func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// uniqueDaysDesc buckets timestamps into unique UTC days, newest first.
func uniqueDaysDesc(activity []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(activity))
	days := make([]time.Time, 0, len(activity))
	for _, t := range activity {
		d := dayOf(t)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}
