package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quizarena/progression/internal/ingress"
	"github.com/quizarena/progression/pkg/logger"
)

type httpClient struct {
	client *http.Client
	base   string
}

func newHTTPClient(base string, timeout time.Duration) *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: timeout},
		base:   base,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// postEvent submits one wire event and returns the service disposition.
func (c *httpClient) postEvent(ctx context.Context, ev ingress.WireEvent) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	var ack ackResponse
	if err := json.Unmarshal(raw, &ack); err != nil {
		return "", fmt.Errorf("decode ack: %w", err)
	}
	return ack.Status, nil
}

// getJSON fetches a read endpoint into out.
func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// submitAll drives the submission order through a worker pool and tallies
// dispositions.
func submitAll(ctx context.Context, cfg *Config, client *httpClient, events []ingress.WireEvent, stats *Stats) error {
	log := logger.Get().Named("simulate")

	var accepted, duplicates, stale, failures int64
	eventCh := make(chan ingress.WireEvent, cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range eventCh {
				status, err := client.postEvent(ctx, ev)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					if cfg.Verbose {
						log.Warn(ctx, "submit failed",
							logger.String("userID", ev.UserID),
							logger.Uint64("seq", ev.Seq),
							logger.Error(err),
						)
					}
					continue
				}
				switch status {
				case "accepted":
					atomic.AddInt64(&accepted, 1)
				case "duplicate":
					atomic.AddInt64(&duplicates, 1)
				case "stale":
					atomic.AddInt64(&stale, 1)
				}
			}
		}()
	}

	for _, ev := range events {
		select {
		case <-ctx.Done():
			close(eventCh)
			wg.Wait()
			return ctx.Err()
		case eventCh <- ev:
		}
	}
	close(eventCh)
	wg.Wait()

	stats.Submitted = len(events)
	stats.Accepted = int(accepted)
	stats.Duplicates = int(duplicates)
	stats.Stale = int(stale)
	stats.Errors = int(failures)
	return nil
}
