// Package service provides the core progression service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/quizarena/progression/internal/adapters/http/client"
	jobqueue "github.com/quizarena/progression/internal/adapters/mq/queue"
	workerpool "github.com/quizarena/progression/internal/adapters/mq/worker"
	redisstore "github.com/quizarena/progression/internal/adapters/redis"
	"github.com/quizarena/progression/internal/adapters/repository"
	"github.com/quizarena/progression/internal/domain/dedupe"
	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/internal/ingress"
	"github.com/quizarena/progression/internal/notify"
	"github.com/quizarena/progression/internal/push"
	"github.com/quizarena/progression/pkg/logger"
	"github.com/quizarena/progression/pkg/metrics"
)

// Service wires the full pipeline: transport -> ingress -> serialized store
// -> dispatcher -> job queue -> delivery workers, plus the read surface the
// HTTP API consumes.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.MemStore
	deduper    dedupe.Deduper
	jobQueue   *jobqueue.InMemoryQueue
	workerPool *workerpool.Pool
	hub        *push.Hub
	tracker    *notify.Tracker
	dispatcher *notify.Dispatcher
	ingress    *ingress.Ingress
	transport  *ingress.ChannelTransport
	consumer   *ingress.Consumer
	poller     *ingress.Poller
	sink       workerpool.Sink
	persister  *redisstore.SnapshotStore

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	maxAttempts  int
	pollInterval time.Duration
	statsBaseURL string
	webhookURL   string
	redisAddr    string
	redisPass    string
	snapshotTTL  time.Duration
	ruleSet      *rules.Set

	// State
	started      bool
	cancel       context.CancelFunc
	workerCancel context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    10_000,
		dedupeSize:   100_000,
		maxAttempts:  5,
		pollInterval: 15 * time.Second,
		snapshotTTL:  90 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.ruleSet == nil {
		s.ruleSet = rules.Default()
	}

	s.logger.Info(ctx, "starting progression service...")

	s.hub = push.NewHub()
	s.tracker = notify.NewTracker()
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.dispatcher = notify.NewDispatcher(s.jobQueue, s.hub, s.ruleSet, s.tracker)

	if s.sink == nil {
		if s.webhookURL != "" {
			s.sink = notify.NewWebhookSink(s.webhookURL)
			s.logger.Info(ctx, "delivering jobs to webhook", logger.String("url", s.webhookURL))
		} else {
			s.sink = notify.NewMemorySink()
			s.logger.Info(ctx, "delivering jobs to in-process sink")
		}
	}

	storeOpts := []repository.Option{
		repository.WithRules(s.ruleSet),
		repository.WithTransitionHook(s.dispatcher.Dispatch),
	}
	if s.redisAddr != "" {
		rc, err := redisstore.NewClient(ctx, s.redisAddr, s.redisPass)
		if err != nil {
			return err
		}
		s.persister = redisstore.NewSnapshotStore(rc, redisstore.WithTTL(s.snapshotTTL))
		storeOpts = append(storeOpts, repository.WithSnapshotStore(s.persister))
		s.logger.Info(ctx, "snapshot persistence enabled", logger.String("addr", s.redisAddr))
	}
	s.store = repository.NewMemStore(storeOpts...)

	s.ingress = ingress.New(s.deduper, s.store)
	s.transport = ingress.NewChannelTransport(s.queueSize)
	s.consumer = ingress.NewConsumer(s.transport, s.ingress)

	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.sink, s.tracker,
		workerpool.WithMaxAttempts(s.maxAttempts),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.consumer.Run(runCtx)
	if s.statsBaseURL != "" {
		fetcher := client.New(s.statsBaseURL)
		s.poller = ingress.NewPoller(fetcher, s.transport, s.ingress,
			ingress.WithInterval(s.pollInterval),
		)
		go s.poller.Run(runCtx)
		s.logger.Info(ctx, "poll fallback enabled",
			logger.String("baseURL", s.statsBaseURL),
			logger.Any("interval", s.pollInterval),
		)
	}
	// Workers run on their own context so shutdown can drain the job queue
	// after the producers stop.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	s.workerCancel = workerCancel
	s.workerPool.Start(workerCtx)

	metrics.UpdateQueueCapacity(s.queueSize)
	metrics.UpdateWorkerCount(s.workerCount)

	s.started = true
	s.logger.Info(ctx, "progression service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("rules", s.ruleSet.Len()),
	)
	return nil
}

// Stop gracefully shuts down the service. In-flight jobs are drained by the
// worker pool before it returns.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping progression service...")

	// Stop producing first, then drain.
	if s.transport != nil {
		s.transport.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.consumer != nil {
		<-s.consumer.Done()
	}
	if s.poller != nil {
		<-s.poller.Done()
	}
	// Closing the queue lets workers drain buffered jobs before stopping.
	if s.jobQueue != nil {
		_ = s.jobQueue.Close()
	}
	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.workerCancel != nil {
		s.workerCancel()
	}
	if s.persister != nil {
		_ = s.persister.Close()
	}

	s.started = false
	s.logger.Info(ctx, "progression service stopped")
}

// AcceptWire normalizes one wire event and runs it through dedupe and the
// serialized store path. Users become poll-tracked on their first event so
// the fallback knows who to re-fetch during outages.
func (s *Service) AcceptWire(ctx context.Context, w ingress.WireEvent, source model.Source) (ingress.Disposition, error) {
	ev, err := ingress.Normalize(w, source)
	if err != nil {
		metrics.RecordEventRejected()
		return "", err
	}
	disp, _, err := s.ingress.Accept(ctx, ev)
	if err != nil {
		return "", err
	}
	if s.poller != nil {
		s.poller.Track(ev.UserID)
	}
	return disp, nil
}

// InjectPush feeds a frame into the push transport, as a socket client
// would. Returns false when the frame was dropped.
func (s *Service) InjectPush(w ingress.WireEvent) bool {
	return s.transport.Inject(w)
}

// Transport exposes the push transport for connection lifecycle control.
func (s *Service) Transport() *ingress.ChannelTransport { return s.transport }

// Hub exposes the UI push hub for subscriptions.
func (s *Service) Hub() *push.Hub { return s.hub }

// Tracker exposes terminal job state for inspection.
func (s *Service) Tracker() *notify.Tracker { return s.tracker }

// Snapshot returns a user's current progression state.
func (s *Service) Snapshot(ctx context.Context, userID string) (*model.StatsSnapshot, error) {
	return s.store.Snapshot(ctx, userID)
}

// Statuses evaluates the unlock catalog against a user's current state.
func (s *Service) Statuses(ctx context.Context, userID string) (map[string]rules.Status, error) {
	return s.store.Statuses(ctx, userID)
}

// Rules exposes the active unlock catalog.
func (s *Service) Rules() *rules.Set { return s.ruleSet }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.jobQueue.Len(ctx)
	users := s.store.Count(ctx)
	counts := s.tracker.Counts()

	stats["queueLength"] = queueLen
	stats["trackedUsers"] = users
	stats["subscribers"] = s.hub.SubscriberCount()
	stats["jobsDelivered"] = counts[model.StatusDelivered]
	stats["jobsFailed"] = counts[model.StatusFailed]
	stats["jobsPending"] = counts[model.StatusPending]
	stats["dedupeEntries"] = s.deduper.Size()

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateActiveUsers(users)
	if s.queueSize > 0 {
		metrics.UpdateQueueUtilization(float64(queueLen) / float64(s.queueSize))
	}
	return stats
}
