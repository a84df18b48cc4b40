package snapshot

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"limitedtracker/internal/domain"
)

type SummaryUnit struct {
	UserAssetID  int64     `json:"userAssetId"`
	SerialNumber *int64    `json:"serialNumber,omitempty"`
	ScannedAt    time.Time `json:"scannedAt"`
}

type SummaryItem struct {
	AssetID int64         `json:"assetId"`
	Name    string        `json:"name"`
	Count   int           `json:"count"`
	Units   []SummaryUnit `json:"units"`
}

// Summary is a snapshot grouped by asset id for display.
type Summary struct {
	SnapshotID  uuid.UUID                `json:"snapshotId"`
	UserID      uuid.UUID                `json:"userId"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
	TotalUnits  int                      `json:"totalUnits"`
	UniqueItems int                      `json:"uniqueItems"`
	Items       []SummaryItem            `json:"items"`
	Removed     []domain.InventoryRecord `json:"removed"`
}

func Summarize(s *domain.Snapshot, catalog map[int64]domain.Item) *Summary {
	sum := &Summary{
		SnapshotID: s.ID,
		UserID:     s.UserID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
		Items:      []SummaryItem{},
		Removed:    []domain.InventoryRecord{},
	}

	byAsset := make(map[int64]int)
	for _, r := range s.Records {
		if !r.Owned() {
			sum.Removed = append(sum.Removed, r)
			continue
		}
		i, ok := byAsset[r.AssetID]
		if !ok {
			name := domain.UnknownItemName
			if item, found := catalog[r.AssetID]; found {
				name = item.DisplayName()
			}
			sum.Items = append(sum.Items, SummaryItem{AssetID: r.AssetID, Name: name})
			i = len(sum.Items) - 1
			byAsset[r.AssetID] = i
		}
		sum.Items[i].Count++
		sum.Items[i].Units = append(sum.Items[i].Units, SummaryUnit{
			UserAssetID:  r.UserAssetID,
			SerialNumber: r.SerialNumber,
			ScannedAt:    r.ScannedAt,
		})
		sum.TotalUnits++
	}
	sum.UniqueItems = len(sum.Items)

	sort.SliceStable(sum.Items, func(i, j int) bool {
		if sum.Items[i].Count != sum.Items[j].Count {
			return sum.Items[i].Count > sum.Items[j].Count
		}
		return sum.Items[i].AssetID < sum.Items[j].AssetID
	})
	return sum
}

func assetIDs(records []domain.InventoryRecord) []int64 {
	seen := make(map[int64]struct{}, len(records))
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.AssetID]; ok {
			continue
		}
		seen[r.AssetID] = struct{}{}
		ids = append(ids, r.AssetID)
	}
	return ids
}
