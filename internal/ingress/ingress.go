package ingress

import (
	"context"

	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/dedupe"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/pkg/logger"
	"github.com/quizarena/progression/pkg/metrics"
)

// Disposition reports what happened to an accepted event.
type Disposition string

// Dispositions.
const (
	Accepted  Disposition = "accepted"
	Duplicate Disposition = "duplicate"
	Stale     Disposition = "stale"
)

// Applier is the serialized store entry point the ingress funnels into.
type Applier interface {
	Apply(ctx context.Context, ev model.Event) (repository.Outcome, error)
}

// Ingress is the single funnel for events from every transport. It resolves
// transport-level duplicates via the dedupe cache; ordering races between
// transports (push redelivery vs poll re-fetch) are resolved by the store's
// stale-sequence check, never by transport priority.
type Ingress struct {
	deduper dedupe.Deduper
	store   Applier
	log     logger.Logger
}

// Option applies a configuration option to the Ingress.
type Option func(*Ingress)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Ingress) {
		if l != nil {
			i.log = l
		}
	}
}

// New creates an ingress over the given deduper and store.
func New(deduper dedupe.Deduper, store Applier, opts ...Option) *Ingress {
	in := &Ingress{
		deduper: deduper,
		store:   store,
		log:     logger.Get().Named("ingress"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Accept runs one normalized event through dedupe and apply.
func (i *Ingress) Accept(ctx context.Context, ev model.Event) (Disposition, repository.Outcome, error) {
	if err := ev.Validate(); err != nil {
		metrics.RecordEventRejected()
		return "", repository.Outcome{}, err
	}

	if i.deduper.SeenAndRecord(ctx, ev.ID) {
		metrics.RecordEventDuplicate()
		i.log.Debug(ctx, "duplicate event suppressed",
			logger.String("eventID", ev.ID),
			logger.String("source", string(ev.Source)),
		)
		return Duplicate, repository.Outcome{}, nil
	}

	out, err := i.store.Apply(ctx, ev)
	if err != nil {
		// The event never took effect; let a redelivery retry it.
		i.deduper.Unrecord(ctx, ev.ID)
		return "", repository.Outcome{}, err
	}
	if !out.Changed {
		return Stale, out, nil
	}
	return Accepted, out, nil
}
