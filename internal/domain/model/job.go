package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// JobKind classifies outbound notification jobs.
type JobKind string

// Notification job kinds.
const (
	KindAchievement     JobKind = "achievement"
	KindLevelUp         JobKind = "level_up"
	KindStreakMilestone JobKind = "streak_milestone"
)

// JobStatus is the delivery state of a notification job.
type JobStatus string

// Notification job statuses.
const (
	StatusPending   JobStatus = "pending"
	StatusDelivered JobStatus = "delivered"
	StatusFailed    JobStatus = "failed"
)

// Transition is a detected 0->1 edge of a single unlock rule for one user.
// Transitions are ephemeral: produced by the change detector and consumed
// immediately by the dispatcher.
type Transition struct {
	RuleID        string
	UserID        string
	OccurredAtSeq uint64
	Kind          JobKind
}

// NotificationJob is the outbound unit of work handed to the dispatch queue.
// JobID is the idempotency key: a downstream consumer must treat redelivery
// of the same JobID as a no-op.
type NotificationJob struct {
	JobID    string            `json:"job_id"`
	UserID   string            `json:"user_id"`
	Kind     JobKind           `json:"kind"`
	Payload  map[string]string `json:"payload"`
	Attempts int               `json:"attempts"`
	Status   JobStatus         `json:"status"`
}

// JobID computes the deterministic idempotency key for a transition.
func JobID(userID, ruleID string, occurredAtSeq uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", userID, ruleID, occurredAtSeq)))
	return hex.EncodeToString(sum[:16])
}
