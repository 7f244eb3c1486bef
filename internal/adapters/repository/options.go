package repository

import (
	"time"

	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/pkg/logger"
)

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithRules sets the unlock rule catalog.
func WithRules(set *rules.Set) Option {
	return func(s *MemStore) {
		if set != nil {
			s.ruleSet = set
		}
	}
}

// WithSnapshotStore sets the document store snapshots are written through
// to and restored from.
func WithSnapshotStore(p SnapshotStore) Option {
	return func(s *MemStore) {
		s.persister = p
	}
}

// WithTransitionHook sets the hook invoked inside the per-user critical
// section for outcomes carrying transitions or a level-up.
func WithTransitionHook(h TransitionHook) Option {
	return func(s *MemStore) {
		s.hook = h
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *MemStore) {
		if l != nil {
			s.log = l
		}
	}
}
