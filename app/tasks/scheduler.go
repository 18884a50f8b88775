package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/patch-comb/app/feed"
	"github.com/lysyi3m/patch-comb/app/ingest"
)

const (
	queueSize   = 16
	taskTimeout = 5 * time.Minute
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type SchedulerOptions struct {
	Interval  time.Duration // how often feeds are checked for being due
	UserAgent string
}

// Scheduler runs ingestion tasks on a single worker so that only one cycle
// touches the store at a time.
type Scheduler struct {
	configCache      *feed.ConfigCache
	ingestor         *ingest.Ingestor
	httpClient       *http.Client
	parser           *feed.Parser
	filterer         *feed.Filterer
	contentExtractor *feed.ContentExtractor
	userAgent        string
	interval         time.Duration
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface

	mu        sync.Mutex
	nextFetch map[string]time.Time
	pending   map[string]bool
}

func NewScheduler(configCache *feed.ConfigCache, ingestor *ingest.Ingestor, httpClient *http.Client,
	parser *feed.Parser, filterer *feed.Filterer, contentExtractor *feed.ContentExtractor, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache:      configCache,
		ingestor:         ingestor,
		httpClient:       httpClient,
		parser:           parser,
		filterer:         filterer,
		contentExtractor: contentExtractor,
		userAgent:        opts.UserAgent,
		interval:         opts.Interval,
		ctx:              ctx,
		cancel:           cancel,
		taskQueue:        make(chan TaskInterface, queueSize),
		nextFetch:        make(map[string]time.Time),
		pending:          make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueDueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) NewIngestFeedTask(feedConfig *feed.Config) *IngestFeedTask {
	return NewIngestFeedTask(feedConfig, s.httpClient, s.parser, s.filterer, s.contentExtractor, s.ingestor, s.userAgent)
}

// NextFetchAt reports when the feed is next due. ok is false for feeds that
// have not been fetched yet.
func (s *Scheduler) NextFetchAt(feedName string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.nextFetch[feedName]
	return next, ok
}

func (s *Scheduler) enqueueDueTasks() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed configurations found")
		return
	}

	now := time.Now().UTC()
	for _, feedConfig := range feedConfigs {
		if !s.markPending(feedConfig.Name, now) {
			continue
		}

		if err := s.EnqueueTask(s.NewIngestFeedTask(feedConfig)); err != nil {
			slog.Warn("Failed to enqueue IngestFeedTask", "feed", feedConfig.Name, "error", err)
			s.clearPending(feedConfig.Name)
		}
	}
}

// markPending claims a due feed for the queue. It returns false when the
// feed is not due yet or already queued.
func (s *Scheduler) markPending(feedName string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[feedName] {
		return false
	}
	if next, ok := s.nextFetch[feedName]; ok && next.After(now) {
		slog.Debug("Feed not due for refresh yet", "feed", feedName, "next_fetch_at", next)
		return false
	}

	s.pending[feedName] = true
	return true
}

func (s *Scheduler) clearPending(feedName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, feedName)
}

func (s *Scheduler) markFetched(task TaskInterface) {
	interval := time.Duration(feed.DefaultRefreshInterval) * time.Second
	if t, ok := task.(*IngestFeedTask); ok {
		interval = time.Duration(t.FeedConfig.Settings.RefreshInterval) * time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFetch[task.GetFeedName()] = time.Now().UTC().Add(interval)
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	s.markFetched(task)

	if err == nil {
		s.clearPending(task.GetFeedName())
		return
	}

	slog.Error("Worker task execution failed", "type", string(task.GetType()), "id", task.GetID(), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.clearPending(task.GetFeedName())
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		case <-time.After(delay):
		}

		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			s.clearPending(task.GetFeedName())
		}
	}()
}

// RunOnce ingests every enabled feed synchronously and returns the first
// error encountered.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, feedConfig := range s.configCache.GetEnabledConfigs() {
		task := s.NewIngestFeedTask(feedConfig)
		task.Start()
		if err := task.Execute(ctx); err != nil {
			slog.Error("Failed to ingest feed", "feed", feedConfig.Name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("feed %s: %w", feedConfig.Name, err)
			}
		}
	}
	return firstErr
}
