package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/quizarena/progression/internal/simulate"
	"github.com/quizarena/progression/pkg/logger"
)

// Default simulation parameters.
const (
	defaultUsers         = 100
	defaultEventsPerUser = 50
	defaultDuplicateRate = 0.2
	defaultShuffleWindow = 3
	defaultTimeout       = 10 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL       = flag.String("url", "http://localhost:9090", "Base URL of the service")
		users         = flag.Int("users", defaultUsers, "Number of synthetic users")
		eventsPerUser = flag.Int("events", defaultEventsPerUser, "Events per user timeline")
		duplicateRate = flag.Float64("dup", defaultDuplicateRate, "Fraction of events submitted twice")
		shuffleWindow = flag.Int("shuffle", defaultShuffleWindow, "Max reorder distance within a timeline (0 = in order)")
		workers       = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent submitters")
		timeout       = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed          = flag.Int64("seed", time.Now().UnixNano(), "Random seed (set for reproducible runs)")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:       *baseURL,
		NumUsers:      *users,
		EventsPerUser: *eventsPerUser,
		DuplicateRate: *duplicateRate,
		ShuffleWindow: *shuffleWindow,
		Workers:       *workers,
		Timeout:       *timeout,
		Seed:          *seed,
		Verbose:       *verbose,
	}

	if err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
