package service

import (
	"time"

	workerpool "github.com/quizarena/progression/internal/adapters/mq/worker"
	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of dispatch worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the notification job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the ingress idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxAttempts bounds delivery attempts per notification job.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithPollInterval sets the poll fallback interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithStatsBaseURL enables the poll fallback against the given upstream.
func WithStatsBaseURL(url string) Option {
	return func(s *Service) {
		s.statsBaseURL = url
	}
}

// WithWebhookURL delivers notification jobs to a downstream webhook instead
// of the in-process sink.
func WithWebhookURL(url string) Option {
	return func(s *Service) {
		s.webhookURL = url
	}
}

// WithRedis enables write-through snapshot persistence.
func WithRedis(addr, password string, ttl time.Duration) Option {
	return func(s *Service) {
		s.redisAddr = addr
		s.redisPass = password
		if ttl > 0 {
			s.snapshotTTL = ttl
		}
	}
}

// WithRules replaces the built-in unlock catalog.
func WithRules(set *rules.Set) Option {
	return func(s *Service) {
		if set != nil {
			s.ruleSet = set
		}
	}
}

// WithSink overrides the delivery sink. Mostly useful in tests.
func WithSink(sink workerpool.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
