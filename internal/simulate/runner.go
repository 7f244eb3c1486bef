package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/pkg/logger"
)

const settleDelay = 2 * time.Second

// Run executes one full simulation: generate, submit, verify.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("simulate")
	rng := rand.New(rand.NewSource(cfg.Seed))

	log.Info(ctx, "starting progression simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.NumUsers),
		logger.Int("eventsPerUser", cfg.EventsPerUser),
		logger.Float64("duplicateRate", cfg.DuplicateRate),
		logger.Int("shuffleWindow", cfg.ShuffleWindow),
		logger.Int("workers", cfg.Workers),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	timelines := generateTimelines(ctx, cfg, rng)
	submission := buildSubmission(cfg, rng, timelines)

	stats := &Stats{}
	start := time.Now()
	if err := submitAll(ctx, cfg, client, submission, stats); err != nil {
		return fmt.Errorf("event submission failed: %w", err)
	}
	elapsed := time.Since(start)

	log.Info(ctx, "submission finished",
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("stale", stats.Stale),
		logger.Int("errors", stats.Errors),
		logger.String("elapsed", elapsed.String()),
	)

	log.Info(ctx, "waiting for dispatch to settle")
	time.Sleep(settleDelay)

	if err := verify(ctx, client, timelines); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	log.Info(ctx, "simulation passed",
		logger.Int("usersVerified", len(timelines)),
	)
	return nil
}

func checkHealth(ctx context.Context, client *httpClient) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := client.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz status %d", resp.StatusCode)
	}
	return nil
}

// verify reads every user's final snapshot back and compares it against the
// expected end state. Duplicates and reordering must not have changed it.
func verify(ctx context.Context, client *httpClient, timelines []timeline) error {
	log := logger.Get().Named("simulate")

	var mismatches int
	for _, tl := range timelines {
		var got model.StatsSnapshot
		if err := client.getJSON(ctx, "/progression/"+tl.UserID, &got); err != nil {
			return fmt.Errorf("read back %s: %w", tl.UserID, err)
		}
		want := tl.Expected
		switch {
		case got.Experience != want.Experience,
			got.Level != want.Level,
			got.QuizzesCompleted != want.QuizzesCompleted,
			got.DuelsWon != want.DuelsWon,
			got.UpdatedAtSeq != want.UpdatedAtSeq:
			mismatches++
			log.Warn(ctx, "end state mismatch",
				logger.String("userID", tl.UserID),
				logger.Int64("wantXP", want.Experience),
				logger.Int64("gotXP", got.Experience),
				logger.Uint64("wantSeq", want.UpdatedAtSeq),
				logger.Uint64("gotSeq", got.UpdatedAtSeq),
			)
		}
	}
	if mismatches > 0 {
		return fmt.Errorf("%d of %d users diverged from expected state", mismatches, len(timelines))
	}
	return nil
}
