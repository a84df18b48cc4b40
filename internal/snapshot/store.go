package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"limitedtracker/internal/domain"
)

// Reader looks up the snapshots reconciliation decides against. Both methods
// return nil and no error when there is no matching snapshot.
type Reader interface {
	LatestSnapshot(ctx context.Context, userID uuid.UUID) (*domain.Snapshot, error)
	SnapshotForDay(ctx context.Context, userID uuid.UUID, start, end time.Time) (*domain.Snapshot, error)
}

// Tx is the write side of a single reconciliation. All calls made through
// one Tx commit or roll back together.
type Tx interface {
	Reader
	// EnsureItems inserts catalog rows for unknown asset ids and leaves
	// existing rows alone, except that a placeholder gains a name when one
	// is supplied.
	EnsureItems(ctx context.Context, items []domain.Item) error
	CreateSnapshot(ctx context.Context, userID uuid.UUID, createdAt time.Time, records []domain.InventoryRecord) (*domain.Snapshot, error)
	ReplaceRecords(ctx context.Context, snapshotID uuid.UUID, updatedAt time.Time, records []domain.InventoryRecord) (*domain.Snapshot, error)
}

type Store interface {
	Reader
	GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error)
	ListSnapshots(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Snapshot, error)
	// SightingsByUAID returns every stored record of uaid, newest snapshot first.
	SightingsByUAID(ctx context.Context, uaid int64) ([]Sighting, error)
	ItemsByAssetIDs(ctx context.Context, assetIDs []int64) (map[int64]domain.Item, error)
	// RunInTx runs fn in a transaction that holds the per-user write lock.
	RunInTx(ctx context.Context, userID uuid.UUID, fn func(tx Tx) error) error
}
