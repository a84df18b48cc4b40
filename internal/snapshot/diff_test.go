package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"limitedtracker/internal/domain"
)

func TestCompare(t *testing.T) {
	const (
		itemX = int64(100)
		itemY = int64(200)
		itemZ = int64(300)
	)

	a := snap(day1, rec(itemX, 1, day1), rec(itemX, 2, day1), rec(itemY, 3, day1))
	b := snap(day1.Add(24*time.Hour), rec(itemX, 1, day1), rec(itemZ, 4, day1), rec(itemZ, 5, day1), rec(itemZ, 6, day1))

	d := Compare(a, b)

	assert.Equal(t, []int64{itemZ}, d.Added)
	assert.Equal(t, []int64{itemY}, d.Removed)
	assert.Equal(t, []QuantityChange{{AssetID: itemX, From: 2, To: 1}}, d.QuantityChanged)
}

func TestCompare_IgnoresRemovedRecords(t *testing.T) {
	removedAt := day1
	a := snap(day1, rec(1, 10, day1))
	b := snap(day1, rec(1, 10, day1), domain.InventoryRecord{AssetID: 2, UserAssetID: 20, ScannedAt: day1, RemovedAt: &removedAt})

	d := Compare(a, b)

	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.QuantityChanged)
}

func TestCompare_IdenticalSnapshots(t *testing.T) {
	a := snap(day1, rec(1, 10, day1), rec(2, 20, day1))

	d := Compare(a, a)

	assert.NotNil(t, d.Added)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
	assert.Empty(t, d.QuantityChanged)
}

func TestCompare_SortedByAssetID(t *testing.T) {
	a := snap(day1)
	b := snap(day1, rec(30, 1, day1), rec(10, 2, day1), rec(20, 3, day1))

	assert.Equal(t, []int64{10, 20, 30}, Compare(a, b).Added)
	assert.Equal(t, []int64{10, 20, 30}, Compare(b, a).Removed)
}
