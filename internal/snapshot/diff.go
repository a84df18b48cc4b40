package snapshot

import (
	"sort"

	"limitedtracker/internal/domain"
)

type QuantityChange struct {
	AssetID int64 `json:"assetId"`
	From    int   `json:"from"`
	To      int   `json:"to"`
}

// Diff describes asset-level changes between two snapshots.
type Diff struct {
	Added           []int64          `json:"added"`
	Removed         []int64          `json:"removed"`
	QuantityChanged []QuantityChange `json:"quantityChanged"`
}

// Compare counts owned units per asset id in a and b and reports which
// assets appeared, disappeared or changed count going from a to b.
func Compare(a, b *domain.Snapshot) Diff {
	from := assetCounts(a)
	to := assetCounts(b)

	d := Diff{
		Added:           []int64{},
		Removed:         []int64{},
		QuantityChanged: []QuantityChange{},
	}

	for assetID, n := range to {
		prev, ok := from[assetID]
		switch {
		case !ok:
			d.Added = append(d.Added, assetID)
		case prev != n:
			d.QuantityChanged = append(d.QuantityChanged, QuantityChange{AssetID: assetID, From: prev, To: n})
		}
	}
	for assetID := range from {
		if _, ok := to[assetID]; !ok {
			d.Removed = append(d.Removed, assetID)
		}
	}

	sort.Slice(d.Added, func(i, j int) bool { return d.Added[i] < d.Added[j] })
	sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i] < d.Removed[j] })
	sort.Slice(d.QuantityChanged, func(i, j int) bool {
		return d.QuantityChanged[i].AssetID < d.QuantityChanged[j].AssetID
	})
	return d
}

func assetCounts(s *domain.Snapshot) map[int64]int {
	counts := make(map[int64]int)
	for _, r := range s.OwnedRecords() {
		counts[r.AssetID]++
	}
	return counts
}
