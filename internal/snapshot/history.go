package snapshot

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"limitedtracker/internal/domain"
)

// Sighting is one record of a UAID together with the snapshot and owner it
// was stored under.
type Sighting struct {
	SnapshotID        uuid.UUID
	SnapshotCreatedAt time.Time
	UserID            uuid.UUID
	RobloxUserID      int64
	Username          string
	Record            domain.InventoryRecord
}

type Owner struct {
	UserID       uuid.UUID `json:"userId"`
	RobloxUserID int64     `json:"robloxUserId"`
	Username     string    `json:"username,omitempty"`
}

type OwnershipEntry struct {
	Owner        Owner      `json:"owner"`
	SnapshotID   uuid.UUID  `json:"snapshotId"`
	SnapshotAt   time.Time  `json:"snapshotAt"`
	AssetID      int64      `json:"assetId"`
	SerialNumber *int64     `json:"serialNumber,omitempty"`
	ScannedAt    time.Time  `json:"scannedAt"`
	RemovedAt    *time.Time `json:"removedAt,omitempty"`
}

// OwnershipEra is a run of snapshots in which one owner held the unit under
// a single first-seen timestamp. A unit that leaves and later returns to the
// same owner starts a new era.
type OwnershipEra struct {
	Owner        Owner      `json:"owner"`
	AssetID      int64      `json:"assetId"`
	SerialNumber *int64     `json:"serialNumber,omitempty"`
	OwnedSince   time.Time  `json:"ownedSince"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	Released     *time.Time `json:"released,omitempty"`
	Snapshots    int        `json:"snapshots"`
}

type History struct {
	UAID    int64            `json:"uaid"`
	Current []OwnershipEntry `json:"current"`
	Eras    []OwnershipEra   `json:"eras"`
}

type eraKey struct {
	user      uuid.UUID
	scannedAt int64
}

// BuildHistory derives the ownership history of uaid from every stored
// sighting of it.
func BuildHistory(uaid int64, sightings []Sighting) (*History, error) {
	if len(sightings) == 0 {
		return nil, ErrUAIDNotFound
	}

	sorted := append([]Sighting(nil), sightings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SnapshotCreatedAt.Before(sorted[j].SnapshotCreatedAt)
	})

	h := &History{UAID: uaid}

	latest := sorted[len(sorted)-1].SnapshotID
	for _, s := range sorted {
		if s.SnapshotID == latest {
			h.Current = append(h.Current, entryFrom(s))
		}
	}

	index := make(map[eraKey]int)
	for _, s := range sorted {
		key := eraKey{user: s.UserID, scannedAt: s.Record.ScannedAt.UnixNano()}
		i, ok := index[key]
		if !ok {
			h.Eras = append(h.Eras, OwnershipEra{
				Owner:        ownerFrom(s),
				AssetID:      s.Record.AssetID,
				SerialNumber: s.Record.SerialNumber,
				OwnedSince:   s.Record.ScannedAt,
			})
			i = len(h.Eras) - 1
			index[key] = i
		}

		era := &h.Eras[i]
		era.Snapshots++
		if s.Record.Owned() {
			seen := s.SnapshotCreatedAt
			if era.LastSeen == nil || seen.After(*era.LastSeen) {
				era.LastSeen = &seen
			}
			continue
		}
		if era.Released == nil || s.Record.RemovedAt.After(*era.Released) {
			released := *s.Record.RemovedAt
			era.Released = &released
		}
	}

	sort.SliceStable(h.Eras, func(i, j int) bool {
		return h.Eras[i].OwnedSince.Before(h.Eras[j].OwnedSince)
	})
	return h, nil
}

func ownerFrom(s Sighting) Owner {
	return Owner{UserID: s.UserID, RobloxUserID: s.RobloxUserID, Username: s.Username}
}

func entryFrom(s Sighting) OwnershipEntry {
	return OwnershipEntry{
		Owner:        ownerFrom(s),
		SnapshotID:   s.SnapshotID,
		SnapshotAt:   s.SnapshotCreatedAt,
		AssetID:      s.Record.AssetID,
		SerialNumber: s.Record.SerialNumber,
		ScannedAt:    s.Record.ScannedAt,
		RemovedAt:    s.Record.RemovedAt,
	}
}
