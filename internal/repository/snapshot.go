package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"limitedtracker/internal/domain"
	"limitedtracker/internal/snapshot"
)

var (
	ErrSnapshotNotFound = snapshot.ErrSnapshotNotFound
	ErrDuplicateRecord  = errors.New("duplicate user asset id in snapshot")
)

const (
	snapshotColumns = `id, user_id, created_at, updated_at`
	recordColumns   = `id, snapshot_id, asset_id, user_asset_id, serial_number, scanned_at, removed_at`

	// keeps each insert well under the 65535 bind parameter limit
	recordBatchSize = 1000
)

// SnapshotRepository is the Postgres implementation of snapshot.Store.
type SnapshotRepository struct {
	db    *sqlx.DB
	items *ItemRepository
}

var _ snapshot.Store = (*SnapshotRepository)(nil)

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db, items: NewItemRepository(db)}
}

func (r *SnapshotRepository) LatestSnapshot(ctx context.Context, userID uuid.UUID) (*domain.Snapshot, error) {
	return latestSnapshot(ctx, r.db, userID)
}

func (r *SnapshotRepository) SnapshotForDay(ctx context.Context, userID uuid.UUID, start, end time.Time) (*domain.Snapshot, error) {
	return snapshotForDay(ctx, r.db, userID, start, end)
}

func (r *SnapshotRepository) GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM inventory_snapshots WHERE id = $1`

	s := &domain.Snapshot{}
	if err := r.db.GetContext(ctx, s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if err := loadRecords(ctx, r.db, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SnapshotRepository) ListSnapshots(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM inventory_snapshots
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = snapshot.MaxHistoryLimit
	}

	var snaps []domain.Snapshot
	if err := r.db.SelectContext(ctx, &snaps, query, userID, limit); err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return snaps, nil
	}

	ids := make([]string, 0, len(snaps))
	index := make(map[uuid.UUID]int, len(snaps))
	for i, s := range snaps {
		ids = append(ids, s.ID.String())
		index[s.ID] = i
	}

	var records []domain.InventoryRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+recordColumns+`
		FROM inventory_records
		WHERE snapshot_id = ANY($1::uuid[])
		ORDER BY scanned_at, user_asset_id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		i := index[rec.SnapshotID]
		snaps[i].Records = append(snaps[i].Records, rec)
	}
	return snaps, nil
}

type sightingRow struct {
	SnapshotID        uuid.UUID  `db:"snapshot_id"`
	SnapshotCreatedAt time.Time  `db:"snapshot_created_at"`
	UserID            uuid.UUID  `db:"user_id"`
	RobloxUserID      int64      `db:"roblox_user_id"`
	Username          string     `db:"username"`
	RecordID          int64      `db:"record_id"`
	AssetID           int64      `db:"asset_id"`
	UserAssetID       int64      `db:"user_asset_id"`
	SerialNumber      *int64     `db:"serial_number"`
	ScannedAt         time.Time  `db:"scanned_at"`
	RemovedAt         *time.Time `db:"removed_at"`
}

func (r *SnapshotRepository) SightingsByUAID(ctx context.Context, uaid int64) ([]snapshot.Sighting, error) {
	query := `
		SELECT s.id AS snapshot_id,
		       s.created_at AS snapshot_created_at,
		       s.user_id,
		       u.roblox_user_id,
		       u.username,
		       r.id AS record_id,
		       r.asset_id,
		       r.user_asset_id,
		       r.serial_number,
		       r.scanned_at,
		       r.removed_at
		FROM inventory_records r
		JOIN inventory_snapshots s ON s.id = r.snapshot_id
		JOIN users u ON u.id = s.user_id
		WHERE r.user_asset_id = $1
		ORDER BY s.created_at DESC
	`

	var rows []sightingRow
	if err := r.db.SelectContext(ctx, &rows, query, uaid); err != nil {
		return nil, err
	}

	out := make([]snapshot.Sighting, 0, len(rows))
	for _, row := range rows {
		out = append(out, snapshot.Sighting{
			SnapshotID:        row.SnapshotID,
			SnapshotCreatedAt: row.SnapshotCreatedAt,
			UserID:            row.UserID,
			RobloxUserID:      row.RobloxUserID,
			Username:          row.Username,
			Record: domain.InventoryRecord{
				ID:           row.RecordID,
				SnapshotID:   row.SnapshotID,
				AssetID:      row.AssetID,
				UserAssetID:  row.UserAssetID,
				SerialNumber: row.SerialNumber,
				ScannedAt:    row.ScannedAt,
				RemovedAt:    row.RemovedAt,
			},
		})
	}
	return out, nil
}

func (r *SnapshotRepository) ItemsByAssetIDs(ctx context.Context, assetIDs []int64) (map[int64]domain.Item, error) {
	return r.items.FindByAssetIDs(ctx, assetIDs)
}

// RunInTx opens a transaction and takes a transaction scoped advisory lock
// on the user before calling fn, so reconciliations of one user never
// interleave even across processes.
func (r *SnapshotRepository) RunInTx(ctx context.Context, userID uuid.UUID, fn func(tx snapshot.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID.String()); err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}

	if err := fn(&snapshotTx{tx: tx, items: NewItemRepository(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type snapshotTx struct {
	tx    *sqlx.Tx
	items *ItemRepository
}

func (t *snapshotTx) LatestSnapshot(ctx context.Context, userID uuid.UUID) (*domain.Snapshot, error) {
	return latestSnapshot(ctx, t.tx, userID)
}

func (t *snapshotTx) SnapshotForDay(ctx context.Context, userID uuid.UUID, start, end time.Time) (*domain.Snapshot, error) {
	return snapshotForDay(ctx, t.tx, userID, start, end)
}

func (t *snapshotTx) EnsureItems(ctx context.Context, items []domain.Item) error {
	return t.items.EnsureItems(ctx, items)
}

func (t *snapshotTx) CreateSnapshot(ctx context.Context, userID uuid.UUID, createdAt time.Time, records []domain.InventoryRecord) (*domain.Snapshot, error) {
	query := `
		INSERT INTO inventory_snapshots (user_id, created_at, updated_at)
		VALUES ($1, $2, $2)
		RETURNING ` + snapshotColumns

	s := &domain.Snapshot{}
	if err := t.tx.GetContext(ctx, s, query, userID, createdAt); err != nil {
		return nil, err
	}
	if err := insertRecords(ctx, t.tx, s.ID, records); err != nil {
		return nil, err
	}
	if err := loadRecords(ctx, t.tx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *snapshotTx) ReplaceRecords(ctx context.Context, snapshotID uuid.UUID, updatedAt time.Time, records []domain.InventoryRecord) (*domain.Snapshot, error) {
	query := `
		UPDATE inventory_snapshots
		SET updated_at = $2
		WHERE id = $1
		RETURNING ` + snapshotColumns

	s := &domain.Snapshot{}
	if err := t.tx.GetContext(ctx, s, query, snapshotID, updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM inventory_records WHERE snapshot_id = $1`, snapshotID); err != nil {
		return nil, fmt.Errorf("clear records: %w", err)
	}
	if err := insertRecords(ctx, t.tx, snapshotID, records); err != nil {
		return nil, err
	}
	if err := loadRecords(ctx, t.tx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func latestSnapshot(ctx context.Context, db ExtHandle, userID uuid.UUID) (*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM inventory_snapshots
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return getSnapshot(ctx, db, query, userID)
}

func snapshotForDay(ctx context.Context, db ExtHandle, userID uuid.UUID, start, end time.Time) (*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM inventory_snapshots
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	return getSnapshot(ctx, db, query, userID, start, end)
}

// getSnapshot returns nil without error when the query matches nothing.
func getSnapshot(ctx context.Context, db ExtHandle, query string, args ...any) (*domain.Snapshot, error) {
	s := &domain.Snapshot{}
	if err := db.GetContext(ctx, s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := loadRecords(ctx, db, s); err != nil {
		return nil, err
	}
	return s, nil
}

func loadRecords(ctx context.Context, db ExtHandle, s *domain.Snapshot) error {
	query := `
		SELECT ` + recordColumns + `
		FROM inventory_records
		WHERE snapshot_id = $1
		ORDER BY scanned_at, user_asset_id
	`

	var records []domain.InventoryRecord
	if err := db.SelectContext(ctx, &records, query, s.ID); err != nil {
		return fmt.Errorf("load records of snapshot %s: %w", s.ID, err)
	}
	s.Records = records
	return nil
}

func insertRecords(ctx context.Context, db ExtHandle, snapshotID uuid.UUID, records []domain.InventoryRecord) error {
	query := `
		INSERT INTO inventory_records (snapshot_id, asset_id, user_asset_id, serial_number, scanned_at, removed_at)
		VALUES (:snapshot_id, :asset_id, :user_asset_id, :serial_number, :scanned_at, :removed_at)
	`

	for start := 0; start < len(records); start += recordBatchSize {
		end := min(start+recordBatchSize, len(records))

		batch := make([]domain.InventoryRecord, 0, end-start)
		for _, rec := range records[start:end] {
			rec.SnapshotID = snapshotID
			batch = append(batch, rec)
		}

		if _, err := sqlx.NamedExecContext(ctx, db, query, batch); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %v", ErrDuplicateRecord, err)
			}
			return fmt.Errorf("insert records: %w", err)
		}
	}
	return nil
}
