package notify

import (
	"sync"

	"github.com/quizarena/progression/internal/domain/model"
)

// Tracker records the delivery state of dispatched jobs. It satisfies the
// dispatch worker's Recorder interface and backs the service stats surface.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]model.JobStatus
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]model.JobStatus)}
}

// Track registers a job as pending.
func (t *Tracker) Track(j model.NotificationJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[j.JobID] = model.StatusPending
}

// MarkDelivered records a successful delivery.
func (t *Tracker) MarkDelivered(jobID string) {
	t.setStatus(jobID, model.StatusDelivered)
}

// MarkFailed records a job that exhausted its delivery attempts.
func (t *Tracker) MarkFailed(jobID string) {
	t.setStatus(jobID, model.StatusFailed)
}

func (t *Tracker) setStatus(jobID string, st model.JobStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[jobID] = st
}

// Status returns the recorded state of a job.
func (t *Tracker) Status(jobID string) (model.JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.jobs[jobID]
	return st, ok
}

// Counts returns the number of jobs per status.
func (t *Tracker) Counts() map[model.JobStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[model.JobStatus]int, 3)
	for _, st := range t.jobs {
		out[st]++
	}
	return out
}
