package domain

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord is one unit inside a snapshot. ScannedAt is the first time
// the unit was observed in its current unbroken lineage. A non-nil RemovedAt
// marks a unit that is no longer owned but is still tracked.
type InventoryRecord struct {
	ID           int64      `json:"-" db:"id"`
	SnapshotID   uuid.UUID  `json:"snapshot_id" db:"snapshot_id"`
	AssetID      int64      `json:"asset_id" db:"asset_id"`
	UserAssetID  int64      `json:"user_asset_id" db:"user_asset_id"`
	SerialNumber *int64     `json:"serial_number,omitempty" db:"serial_number"`
	ScannedAt    time.Time  `json:"scanned_at" db:"scanned_at"`
	RemovedAt    *time.Time `json:"removed_at,omitempty" db:"removed_at"`
}

func (r InventoryRecord) Owned() bool {
	return r.RemovedAt == nil
}
