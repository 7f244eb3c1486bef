// Package client fetches snapshots from the upstream stats service, used
// by the poll fallback when the push channel is down.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultTimeout     = 5 * time.Second
	defaultMaxRetries  = 3
	defaultInitialWait = 100 * time.Millisecond
)

// StatsClient reads the upstream read-only endpoints:
//
//	GET {base}/stats/{userId}
//	GET {base}/achievements/{userId}
//
// Both return full, self-consistent payloads including the monotonic
// sequence used as updated_at_seq.
type StatsClient struct {
	base       string
	http       *http.Client
	maxRetries uint64
}

// Option applies a configuration option to the StatsClient.
type Option func(*StatsClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *StatsClient) {
		if c != nil {
			s.http = c
		}
	}
}

// WithMaxRetries bounds fetch retries.
func WithMaxRetries(n int) Option {
	return func(s *StatsClient) {
		if n >= 0 {
			s.maxRetries = uint64(n)
		}
	}
}

// New creates a client for the stats service at base.
func New(base string, opts ...Option) *StatsClient {
	c := &StatsClient{
		base:       base,
		http:       &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// achievementsPayload mirrors GET /achievements/{userId}.
type achievementsPayload struct {
	UserID                 string   `json:"user_id"`
	UnlockedAchievementIDs []string `json:"unlocked_achievement_ids"`
	UpdatedAtSeq           uint64   `json:"updated_at_seq"`
}

// FetchStats retrieves the full snapshot for a user.
func (c *StatsClient) FetchStats(ctx context.Context, userID string) (*model.StatsSnapshot, error) {
	var snap model.StatsSnapshot
	err := c.getJSON(ctx, fmt.Sprintf("%s/stats/%s", c.base, userID), &snap)
	if err != nil {
		return nil, err
	}
	if snap.UserID == "" {
		snap.UserID = userID
	}
	return &snap, nil
}

// FetchAchievements retrieves the unlocked achievement ids for a user.
func (c *StatsClient) FetchAchievements(ctx context.Context, userID string) ([]string, uint64, error) {
	var payload achievementsPayload
	err := c.getJSON(ctx, fmt.Sprintf("%s/achievements/%s", c.base, userID), &payload)
	if err != nil {
		return nil, 0, err
	}
	return payload.UnlockedAchievementIDs, payload.UpdatedAtSeq, nil
}

// getJSON performs a GET with bounded exponential backoff.
func (c *StatsClient) getJSON(ctx context.Context, url string, out any) error {
	operation := func() error {
		metrics.RecordPollFetch()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.RecordPollFetchError()
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.RecordPollFetchError()
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", url, err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialWait
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
	return backoff.Retry(operation, policy)
}
