package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestDedupeUnits(t *testing.T) {
	tests := []struct {
		name     string
		units    []InventoryUnit
		expected []int64
	}{
		{
			name:     "empty",
			units:    nil,
			expected: []int64{},
		},
		{
			name: "no duplicates keeps order",
			units: []InventoryUnit{
				{AssetID: 1, UserAssetID: 30},
				{AssetID: 1, UserAssetID: 10},
				{AssetID: 2, UserAssetID: 20},
			},
			expected: []int64{30, 10, 20},
		},
		{
			name: "first occurrence wins",
			units: []InventoryUnit{
				{AssetID: 1, UserAssetID: 10, SerialNumber: ptr(int64(5))},
				{AssetID: 9, UserAssetID: 10},
				{AssetID: 2, UserAssetID: 20},
			},
			expected: []int64{10, 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeUnits(tt.units)
			uaids := make([]int64, 0, len(got))
			for _, u := range got {
				uaids = append(uaids, u.UserAssetID)
			}
			assert.Equal(t, tt.expected, uaids)
		})
	}

	t.Run("duplicate keeps first asset and serial", func(t *testing.T) {
		got := DedupeUnits([]InventoryUnit{
			{AssetID: 1, UserAssetID: 10, SerialNumber: ptr(int64(5))},
			{AssetID: 9, UserAssetID: 10},
		})
		assert.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].AssetID)
		assert.Equal(t, int64(5), *got[0].SerialNumber)
	})
}

func TestDayBounds(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	t.Run("utc", func(t *testing.T) {
		now := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
		start, end := DayBounds(now, time.UTC)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, start.Add(24*time.Hour), end)
	})

	t.Run("configured zone shifts the day", func(t *testing.T) {
		now := time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC)
		start, _ := DayBounds(now, ny)
		assert.Equal(t, 1, start.Day())
		assert.True(t, start.Before(now))
	})

	t.Run("nil location means utc", func(t *testing.T) {
		now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
		start, _ := DayBounds(now, nil)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), start)
	})
}

func TestSnapshot_OwnedRecords(t *testing.T) {
	removed := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := &Snapshot{Records: []InventoryRecord{
		{UserAssetID: 1},
		{UserAssetID: 2, RemovedAt: &removed},
		{UserAssetID: 3},
	}}

	owned := s.OwnedRecords()
	assert.Len(t, owned, 2)

	byUAID := s.OwnedByUAID()
	assert.Contains(t, byUAID, int64(1))
	assert.NotContains(t, byUAID, int64(2))

	rec, ok := s.Record(2)
	assert.True(t, ok)
	assert.False(t, rec.Owned())

	var nilSnap *Snapshot
	assert.Empty(t, nilSnap.OwnedRecords())
	assert.Empty(t, nilSnap.OwnedByUAID())
}

func TestSnapshot_WithinDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	assert.True(t, (&Snapshot{Model: Model{CreatedAt: start}}).WithinDay(start, end))
	assert.False(t, (&Snapshot{Model: Model{CreatedAt: end}}).WithinDay(start, end))
	assert.False(t, (&Snapshot{Model: Model{CreatedAt: start.Add(-time.Second)}}).WithinDay(start, end))
}

func TestItem_DisplayName(t *testing.T) {
	assert.Equal(t, UnknownItemName, Item{AssetID: 1, Placeholder: true}.DisplayName())
	assert.Equal(t, UnknownItemName, Item{AssetID: 1}.DisplayName())
	assert.Equal(t, "Dominus Frigidus", Item{AssetID: 1, Name: "Dominus Frigidus"}.DisplayName())
}
