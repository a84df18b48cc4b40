package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"limitedtracker/internal/domain"
	"limitedtracker/internal/logger"
	"limitedtracker/internal/metrics"
	"limitedtracker/internal/snapshot"
)

type Scanner interface {
	Scan(ctx context.Context, user *domain.User) (*snapshot.ScanResult, error)
}

// Notifier is told about rescans that wrote a snapshot.
type Notifier interface {
	SnapshotUpdated(robloxUserID int64, res *snapshot.ScanResult) error
}

type rescanJob struct {
	user  domain.User
	enqAt time.Time
}

// RescanQueue runs fire-and-forget rescans on a fixed pool of workers. Jobs
// are dropped when the queue is full, and a user already waiting in the
// queue is not queued twice.
type RescanQueue struct {
	scanner    Scanner
	notifier   Notifier
	ch         chan rescanJob
	jobTimeout time.Duration
	log        *zap.Logger

	mu     sync.Mutex
	queued map[uuid.UUID]struct{}
}

func NewRescanQueue(scanner Scanner, notifier Notifier, queueSize int, jobTimeout time.Duration, log *zap.Logger) *RescanQueue {
	if queueSize <= 0 {
		queueSize = 256
	}
	if jobTimeout <= 0 {
		jobTimeout = 3 * time.Minute
	}
	if log == nil {
		log = logger.L()
	}
	return &RescanQueue{
		scanner:    scanner,
		notifier:   notifier,
		ch:         make(chan rescanJob, queueSize),
		jobTimeout: jobTimeout,
		log:        log.With(zap.String("component", "rescan")),
		queued:     make(map[uuid.UUID]struct{}),
	}
}

// Start launches the workers and returns a stop function. Stop lets the
// workers finish what is already queued and returns early with the
// context's error if that takes too long.
func (q *RescanQueue) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}

	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-q.ch:
					q.run(job)
				case <-stopCh:
					q.drain()
					return
				}
			}
		}()
	}

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stopCh) })

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Enqueue schedules a rescan and reports whether it was accepted.
func (q *RescanQueue) Enqueue(user domain.User) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queued[user.ID]; ok {
		return true
	}

	select {
	case q.ch <- rescanJob{user: user, enqAt: time.Now()}:
		q.queued[user.ID] = struct{}{}
		metrics.RescanQueueDepth.Set(float64(q.QueueLen()))
		return true
	default:
		metrics.RescanDroppedTotal.Inc()
		q.log.Warn("rescan queue full, drop",
			zap.String("user_id", user.ID.String()),
			zap.Int64("roblox_user_id", user.RobloxUserID),
		)
		return false
	}
}

// QueueLen reports how many rescans are waiting for a worker.
func (q *RescanQueue) QueueLen() int { return len(q.ch) }

func (q *RescanQueue) drain() {
	for {
		select {
		case job := <-q.ch:
			q.run(job)
		default:
			return
		}
	}
}

func (q *RescanQueue) run(job rescanJob) {
	q.mu.Lock()
	delete(q.queued, job.user.ID)
	metrics.RescanQueueDepth.Set(float64(q.QueueLen()))
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.jobTimeout)
	defer cancel()

	user := job.user
	res, err := q.scanner.Scan(ctx, &user)
	if err != nil {
		if errors.Is(err, snapshot.ErrScanInProgress) {
			q.log.Debug("rescan skipped, scan already running",
				zap.Int64("roblox_user_id", user.RobloxUserID))
			return
		}
		q.log.Warn("background rescan failed",
			zap.String("user_id", user.ID.String()),
			zap.Int64("roblox_user_id", user.RobloxUserID),
			zap.Duration("queued_for", time.Since(job.enqAt)),
			zap.Error(err),
		)
		return
	}

	if res.Action == snapshot.ActionNone || q.notifier == nil {
		return
	}
	if err := q.notifier.SnapshotUpdated(user.RobloxUserID, res); err != nil {
		q.log.Warn("snapshot update notification failed",
			zap.Int64("roblox_user_id", user.RobloxUserID),
			zap.Error(err),
		)
	}
}
