package ingress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quizarena/progression/internal/adapters/http/client"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/pkg/logger"
)

const defaultPollInterval = 15 * time.Second

// Fetcher is the upstream read surface the poller re-fetches full snapshots
// from while the push transport is down.
type Fetcher interface {
	FetchStats(ctx context.Context, userID string) (*model.StatsSnapshot, error)
	FetchAchievements(ctx context.Context, userID string) ([]string, uint64, error)
}

// Poller is the HTTP fallback for the push channel. It only polls while the
// transport reports disconnected, and it only ever submits full snapshots:
// partial state is never fabricated. A poll fetch racing a late push
// redelivery of the same update is harmless, the stale-sequence check in
// the store accepts whichever arrives first and drops the other.
type Poller struct {
	fetcher   Fetcher
	transport Transport
	ingress   *Ingress
	interval  time.Duration
	log       logger.Logger

	mu    sync.RWMutex
	users map[string]struct{}

	done chan struct{}
}

// PollerOption applies a configuration option to the Poller.
type PollerOption func(*Poller)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPollerLogger sets a custom logger.
func WithPollerLogger(l logger.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPoller creates a poller over the given fetcher and transport.
func NewPoller(fetcher Fetcher, transport Transport, in *Ingress, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		transport: transport,
		ingress:   in,
		interval:  defaultPollInterval,
		log:       logger.Get().Named("poller"),
		users:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Track adds a user to the poll set. Users are tracked from their first
// observed event so the fallback knows who to re-fetch.
func (p *Poller) Track(userID string) {
	if userID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userID] = struct{}{}
}

// Untrack removes a user from the poll set.
func (p *Poller) Untrack(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.users, userID)
}

// Run polls at a fixed interval until ctx is canceled. Ticks are skipped
// entirely while the push transport is connected.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.transport.Connected() {
				continue
			}
			p.pollAll(ctx)
		}
	}
}

// Done is closed when the poll loop exits.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) tracked() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.users))
	for u := range p.users {
		out = append(out, u)
	}
	return out
}

func (p *Poller) pollAll(ctx context.Context) {
	for _, userID := range p.tracked() {
		if ctx.Err() != nil {
			return
		}
		p.PollUser(ctx, userID)
	}
}

// PollUser re-fetches one user's full snapshot and runs it through the
// ingress as a poll-sourced stats update.
func (p *Poller) PollUser(ctx context.Context, userID string) {
	snap, err := p.fetcher.FetchStats(ctx, userID)
	if err != nil {
		if !errors.Is(err, client.ErrNotFound) {
			p.log.Warn(ctx, "poll fetch failed",
				logger.String("userID", userID),
				logger.Error(err),
			)
		}
		return
	}

	// The achievements endpoint may run ahead of the stats endpoint; merge
	// whichever view is newer so the submitted snapshot is self-consistent.
	if ids, seq, err := p.fetcher.FetchAchievements(ctx, userID); err == nil {
		for _, id := range ids {
			snap.AddAchievement(id)
		}
		if seq > snap.UpdatedAtSeq {
			snap.UpdatedAtSeq = seq
		}
	}

	ev := model.Event{
		ID:     model.DeriveID(userID, model.TypeStatsUpdated, snap.UpdatedAtSeq),
		Type:   model.TypeStatsUpdated,
		UserID: userID,
		Seq:    snap.UpdatedAtSeq,
		Source: model.SourcePoll,
		Stats:  snap,
	}
	if _, _, err := p.ingress.Accept(ctx, ev); err != nil {
		p.log.Error(ctx, "poll event apply failed",
			logger.String("userID", userID),
			logger.Error(err),
		)
	}
}
