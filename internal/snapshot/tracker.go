package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"limitedtracker/internal/domain"
	"limitedtracker/internal/metrics"
	"limitedtracker/internal/roblox"
)

var tracer = otel.Tracer("limitedtracker/internal/snapshot")

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
	DefaultScanTimeout  = 3 * time.Minute
)

type InventorySource interface {
	FetchInventory(ctx context.Context, robloxUserID int64) (*roblox.Inventory, error)
}

// ScanLocker provides a lock shared between processes. TryLock reports
// acquired=false when another holder owns key.
type ScanLocker interface {
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

type SummaryCache interface {
	Get(ctx context.Context, key string) (*Summary, error)
	Set(ctx context.Context, key string, v *Summary) error
	Delete(ctx context.Context, keys ...string) error
}

// ScanResult describes what a scan did.
type ScanResult struct {
	Snapshot       *domain.Snapshot `json:"snapshot"`
	Action         Action           `json:"action"`
	Complete       bool             `json:"complete"`
	NewUAIDs       []int64          `json:"newUaids"`
	UnchangedUAIDs []int64          `json:"unchangedUaids"`
	RemovedUAIDs   []int64          `json:"removedUaids"`
}

type Tracker struct {
	store  Store
	source InventorySource
	locker ScanLocker
	cache  SummaryCache

	loc          *time.Location
	now          func() time.Time
	historyLimit int
	maxHistory   int
	scanTimeout  time.Duration

	group singleflight.Group
	log   *zap.Logger
}

type Option func(*Tracker)

func WithLocker(l ScanLocker) Option {
	return func(t *Tracker) { t.locker = l }
}

func WithSummaryCache(c SummaryCache) Option {
	return func(t *Tracker) { t.cache = c }
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithScanTimeout bounds a shared scan, which outlives the caller that
// started it.
func WithScanTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.scanTimeout = d
		}
	}
}

func WithHistoryLimits(def, max int) Option {
	return func(t *Tracker) {
		if def > 0 {
			t.historyLimit = def
		}
		if max > 0 {
			t.maxHistory = max
		}
	}
}

func NewTracker(store Store, source InventorySource, opts ...Option) *Tracker {
	t := &Tracker{
		store:        store,
		source:       source,
		loc:          time.UTC,
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		maxHistory:   MaxHistoryLimit,
		scanTimeout:  DefaultScanTimeout,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(zap.String("component", "tracker"))
	return t
}

// Scan fetches the user's inventory and reconciles it into the snapshot
// store. Concurrent scans of the same user inside this process share one
// execution, which is detached from any single caller's cancellation and
// bounded by the scan timeout. A scan already running in another process
// yields ErrScanInProgress.
func (t *Tracker) Scan(ctx context.Context, user *domain.User) (*ScanResult, error) {
	ch := t.group.DoChan(user.ID.String(), func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.scanTimeout)
		defer cancel()
		return t.scan(sctx, user)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ScanResult), nil
	}
}

func (t *Tracker) scan(ctx context.Context, user *domain.User) (res *ScanResult, err error) {
	ctx, span := tracer.Start(ctx, "Tracker.Scan", trace.WithAttributes(
		attribute.String("user.id", user.ID.String()),
		attribute.Int64("roblox.user_id", user.RobloxUserID),
	))
	started := time.Now()
	outcome := "error"
	defer func() {
		metrics.ObserveScan(outcome, time.Since(started))
		span.SetAttributes(attribute.String("scan.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if t.locker != nil {
		release, acquired, lockErr := t.locker.TryLock(ctx, "scan:"+user.ID.String())
		switch {
		case lockErr != nil:
			t.log.Warn("scan lock unavailable, relying on database lock",
				zap.String("user_id", user.ID.String()),
				zap.Error(lockErr),
			)
		case !acquired:
			outcome = "locked"
			return nil, ErrScanInProgress
		default:
			defer release()
		}
	}

	inv, err := t.source.FetchInventory(ctx, user.RobloxUserID)
	if err != nil {
		outcome = "fetch_error"
		return nil, err
	}
	if !inv.Complete && len(inv.Units) == 0 {
		outcome = "incomplete"
		return nil, ErrInventoryIncomplete
	}

	now := t.now()
	dayStart, dayEnd := domain.DayBounds(now, t.loc)

	var plan Plan
	err = t.store.RunInTx(ctx, user.ID, func(tx Tx) error {
		latest, err := tx.LatestSnapshot(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("load latest snapshot: %w", err)
		}
		today, err := tx.SnapshotForDay(ctx, user.ID, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("load today's snapshot: %w", err)
		}

		plan = Reconcile(latest, today, inv.Units, now, PlanOptions{Partial: !inv.Complete})

		switch plan.Action {
		case ActionNone:
			return nil
		case ActionCreate:
			if err := tx.EnsureItems(ctx, plan.Items); err != nil {
				return fmt.Errorf("ensure items: %w", err)
			}
			created, err := tx.CreateSnapshot(ctx, user.ID, now, plan.Records)
			if err != nil {
				return fmt.Errorf("create snapshot: %w", err)
			}
			plan.Target = created
		case ActionReplace:
			if err := tx.EnsureItems(ctx, plan.Items); err != nil {
				return fmt.Errorf("ensure items: %w", err)
			}
			updated, err := tx.ReplaceRecords(ctx, plan.Target.ID, now, plan.Records)
			if err != nil {
				return fmt.Errorf("replace records: %w", err)
			}
			plan.Target = updated
		}
		return nil
	})
	if err != nil {
		outcome = "store_error"
		return nil, err
	}

	outcome = string(plan.Action)
	if plan.Action == ActionReplace {
		t.invalidateSummary(ctx, plan.Target.ID)
	}
	if plan.Changed() {
		owned := len(plan.Target.OwnedRecords())
		metrics.SetSnapshotRecords(owned, len(plan.Target.Records)-owned)
	}

	t.log.Info("scan finished",
		zap.String("user_id", user.ID.String()),
		zap.Int64("roblox_user_id", user.RobloxUserID),
		zap.String("action", string(plan.Action)),
		zap.String("snapshot_id", plan.Target.ID.String()),
		zap.Bool("complete", inv.Complete),
		zap.Int("new", len(plan.NewUAIDs)),
		zap.Int("removed", len(plan.RemovedUAIDs)),
	)

	return &ScanResult{
		Snapshot:       plan.Target,
		Action:         plan.Action,
		Complete:       inv.Complete,
		NewUAIDs:       plan.NewUAIDs,
		UnchangedUAIDs: plan.UnchangedUAIDs,
		RemovedUAIDs:   plan.RemovedUAIDs,
	}, nil
}

// LatestSnapshot returns the user's most recent snapshot or
// ErrSnapshotNotFound when the user has never been scanned.
func (t *Tracker) LatestSnapshot(ctx context.Context, userID uuid.UUID) (*domain.Snapshot, error) {
	s, err := t.store.LatestSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSnapshotNotFound
	}
	return s, nil
}

// SnapshotHistory lists the user's snapshots newest first.
func (t *Tracker) SnapshotHistory(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		limit = t.historyLimit
	}
	if limit > t.maxHistory {
		limit = t.maxHistory
	}
	return t.store.ListSnapshots(ctx, userID, limit)
}

func (t *Tracker) GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	return t.store.GetSnapshot(ctx, id)
}

func (t *Tracker) SnapshotSummary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	key := summaryKey(id)
	if t.cache != nil {
		cached, err := t.cache.Get(ctx, key)
		if err != nil {
			t.log.Warn("summary cache read failed", zap.String("snapshot_id", id.String()), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	s, err := t.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	catalog, err := t.store.ItemsByAssetIDs(ctx, assetIDs(s.Records))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	sum := Summarize(s, catalog)
	if t.cache != nil {
		t.storeSummary(ctx, key, sum)
	}
	return sum, nil
}

// storeSummary caches sum and then drops it again if the snapshot was
// replaced after sum was computed. A replace that commits before the check
// is seen here; one that commits after it invalidates the key itself.
func (t *Tracker) storeSummary(ctx context.Context, key string, sum *Summary) {
	if err := t.cache.Set(ctx, key, sum); err != nil {
		t.log.Warn("summary cache write failed", zap.String("snapshot_id", sum.SnapshotID.String()), zap.Error(err))
		return
	}
	cur, err := t.store.GetSnapshot(ctx, sum.SnapshotID)
	if err != nil || !cur.UpdatedAt.Equal(sum.UpdatedAt) {
		t.invalidateSummary(ctx, sum.SnapshotID)
	}
}

func (t *Tracker) CompareSnapshots(ctx context.Context, fromID, toID uuid.UUID) (*Diff, error) {
	from, err := t.store.GetSnapshot(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", fromID, err)
	}
	to, err := t.store.GetSnapshot(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", toID, err)
	}
	d := Compare(from, to)
	return &d, nil
}

func (t *Tracker) History(ctx context.Context, uaid int64) (*History, error) {
	sightings, err := t.store.SightingsByUAID(ctx, uaid)
	if err != nil {
		return nil, err
	}
	return BuildHistory(uaid, sightings)
}

func (t *Tracker) invalidateSummary(ctx context.Context, id uuid.UUID) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Delete(ctx, summaryKey(id)); err != nil {
		t.log.Warn("summary cache invalidation failed", zap.String("snapshot_id", id.String()), zap.Error(err))
	}
}

func summaryKey(id uuid.UUID) string {
	return "snapshot:summary:" + id.String()
}

// IsNotFound reports whether err means the requested snapshot or UAID does
// not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound) || errors.Is(err, ErrUAIDNotFound)
}
