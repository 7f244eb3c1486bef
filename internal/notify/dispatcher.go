// Package notify turns detected transitions into notification jobs.
package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quizarena/progression/internal/adapters/mq/queue"
	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/internal/push"
	"github.com/quizarena/progression/pkg/logger"
	"github.com/quizarena/progression/pkg/metrics"
)

// UI event kinds published on the hub for immediate in-app feedback.
const (
	UIUnlockCelebration = "unlock:celebration"
	UILevelUp           = "level:up"
)

// Bounded enqueue retry: three quick attempts, then degrade to logging the
// job for replay. The dispatcher runs inside the per-user critical section,
// so it must never wait long.
const (
	enqueueMaxRetries      = 2
	enqueueInitialInterval = 10 * time.Millisecond
)

// Dispatcher fans each transition out to the local UI (via the push hub)
// and to the outbound job queue. Jobs are independent: one failing to
// enqueue never blocks the others.
type Dispatcher struct {
	queue   queue.Queue
	hub     *push.Hub
	ruleSet *rules.Set
	tracker *Tracker
	log     logger.Logger
}

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDispatcher creates a dispatcher over the given queue and hub.
func NewDispatcher(q queue.Queue, hub *push.Hub, set *rules.Set, tracker *Tracker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:   q,
		hub:     hub,
		ruleSet: set,
		tracker: tracker,
		log:     logger.Get().Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one apply outcome. It satisfies repository.TransitionHook
// so it runs while the user's apply is still serialized: transitions reach
// the queue in exactly the accepted-sequence order.
func (d *Dispatcher) Dispatch(ctx context.Context, out repository.Outcome) {
	if out.LeveledUp {
		d.hub.Publish(ctx, push.Message{
			UserID: out.Snapshot.UserID,
			Kind:   UILevelUp,
			Payload: map[string]string{
				"new_level": strconv.Itoa(out.NewLevel),
			},
		})
	}

	for _, tr := range out.Transitions {
		d.dispatchOne(ctx, tr)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, tr model.Transition) {
	job := d.buildJob(tr)

	// Local feedback first: the user sees the celebration without waiting
	// on the queue round-trip.
	d.hub.Publish(ctx, push.Message{
		UserID:  tr.UserID,
		Kind:    UIUnlockCelebration,
		Payload: job.Payload,
	})

	if d.tracker != nil {
		d.tracker.Track(job)
	}

	if !d.enqueue(ctx, job) {
		// Degraded mode: UI event already fired, job is logged for
		// operator replay. Progression state is unaffected.
		metrics.RecordJobDropped()
		if d.tracker != nil {
			d.tracker.MarkFailed(job.JobID)
		}
		raw, _ := json.Marshal(job)
		d.log.Error(ctx, "job enqueue failed after retries; logged for replay",
			logger.String("jobID", job.JobID),
			logger.String("job", string(raw)),
		)
		return
	}
	metrics.RecordJobEnqueued()
}

// enqueue tries the non-blocking enqueue with a short bounded backoff.
func (d *Dispatcher) enqueue(ctx context.Context, job model.NotificationJob) bool {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = enqueueInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, enqueueMaxRetries), ctx)

	err := backoff.Retry(func() error {
		if d.queue.Enqueue(ctx, job) {
			return nil
		}
		return queue.ErrClosed
	}, policy)
	return err == nil
}

func (d *Dispatcher) buildJob(tr model.Transition) model.NotificationJob {
	payload := map[string]string{
		"rule_id": tr.RuleID,
		"seq":     strconv.FormatUint(tr.OccurredAtSeq, 10),
	}
	if r, ok := d.ruleSet.Lookup(tr.RuleID); ok {
		payload["name"] = r.Name
		payload["criterion"] = r.Criterion.String()
	}
	return model.NotificationJob{
		JobID:   model.JobID(tr.UserID, tr.RuleID, tr.OccurredAtSeq),
		UserID:  tr.UserID,
		Kind:    tr.Kind,
		Payload: payload,
		Status:  model.StatusPending,
	}
}
