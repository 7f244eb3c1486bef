package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/quizarena/progression/internal/domain/model"
)

// MemorySink is an in-process sink that records delivered jobs. Redelivery
// of an already-seen JobID is a no-op, which is exactly the contract a real
// downstream consumer must honor. Used as the default sink and in tests.
type MemorySink struct {
	mu        sync.Mutex
	delivered map[string]model.NotificationJob
	order     []string

	// FailFirst makes the first n delivery attempts of every job fail,
	// for exercising the retry path in tests.
	FailFirst int
	attempts  map[string]int
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		delivered: make(map[string]model.NotificationJob),
		attempts:  make(map[string]int),
	}
}

// Deliver implements the dispatch worker's Sink interface.
func (s *MemorySink) Deliver(_ context.Context, j model.NotificationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[j.JobID]++
	if s.attempts[j.JobID] <= s.FailFirst {
		return fmt.Errorf("simulated delivery failure (attempt %d)", s.attempts[j.JobID])
	}

	if _, seen := s.delivered[j.JobID]; seen {
		// Duplicate delivery collapses to one effect.
		return nil
	}
	s.delivered[j.JobID] = j
	s.order = append(s.order, j.JobID)
	return nil
}

// Delivered returns delivered jobs in delivery order.
func (s *MemorySink) Delivered() []model.NotificationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NotificationJob, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.delivered[id])
	}
	return out
}

// DeliveredCount returns the number of distinct delivered jobs.
func (s *MemorySink) DeliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

// WebhookSink posts jobs as JSON to a downstream service (e.g. the social
// feed). The JobID travels in an idempotency header so the receiver can
// collapse redeliveries.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for url.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver implements the dispatch worker's Sink interface.
func (s *WebhookSink) Deliver(ctx context.Context, j model.NotificationJob) error {
	body, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", j.JobID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request for job %s: %w", j.JobID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", j.JobID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver job %s: %w", j.JobID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver job %s: unexpected status %d", j.JobID, resp.StatusCode)
	}
	return nil
}
