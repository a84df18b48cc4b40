package snapshot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitedtracker/internal/domain"
)

func serial(n int64) *int64 { return &n }

func unit(assetID, uaid int64) domain.InventoryUnit {
	return domain.InventoryUnit{AssetID: assetID, UserAssetID: uaid}
}

func snap(createdAt time.Time, records ...domain.InventoryRecord) *domain.Snapshot {
	return &domain.Snapshot{
		Model:   domain.Model{ID: uuid.New(), CreatedAt: createdAt},
		Records: records,
	}
}

func rec(assetID, uaid int64, scannedAt time.Time) domain.InventoryRecord {
	return domain.InventoryRecord{AssetID: assetID, UserAssetID: uaid, ScannedAt: scannedAt}
}

func byUAID(records []domain.InventoryRecord) map[int64]domain.InventoryRecord {
	m := make(map[int64]domain.InventoryRecord, len(records))
	for _, r := range records {
		m[r.UserAssetID] = r
	}
	return m
}

var day1 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestReconcile_FirstScanStampsEverything(t *testing.T) {
	plan := Reconcile(nil, nil, []domain.InventoryUnit{unit(1, 10), unit(1, 11), unit(2, 20)}, day1, PlanOptions{})

	assert.Equal(t, ActionCreate, plan.Action)
	require.Len(t, plan.Records, 3)
	for _, r := range plan.Records {
		assert.Equal(t, day1, r.ScannedAt)
		assert.Nil(t, r.RemovedAt)
	}
	assert.Equal(t, []int64{10, 11, 20}, plan.NewUAIDs)
	assert.Equal(t, []domain.Item{
		{AssetID: 1, Placeholder: true},
		{AssetID: 2, Placeholder: true},
	}, plan.Items)
}

func TestReconcile_FirstScanWithNoUnits(t *testing.T) {
	plan := Reconcile(nil, nil, nil, day1, PlanOptions{})
	assert.Equal(t, ActionCreate, plan.Action)
	assert.Empty(t, plan.Records)
}

func TestReconcile_NoChangeIsNoop(t *testing.T) {
	latest := snap(day1, rec(1, 10, day1), rec(2, 20, day1))

	plan := Reconcile(latest, nil, []domain.InventoryUnit{unit(2, 20), unit(1, 10)}, day1.Add(48*time.Hour), PlanOptions{})

	assert.Equal(t, ActionNone, plan.Action)
	assert.False(t, plan.Changed())
	assert.Same(t, latest, plan.Target)
	assert.Equal(t, []int64{10, 20}, plan.UnchangedUAIDs)
}

func TestReconcile_PreservesFirstSeen(t *testing.T) {
	latest := snap(day1, rec(1, 10, day1))
	now := day1.Add(24 * time.Hour)

	plan := Reconcile(latest, nil, []domain.InventoryUnit{unit(1, 10), unit(2, 20)}, now, PlanOptions{})

	require.Equal(t, ActionCreate, plan.Action)
	got := byUAID(plan.Records)
	assert.Equal(t, day1, got[10].ScannedAt)
	assert.Equal(t, now, got[20].ScannedAt)
	assert.Equal(t, []int64{20}, plan.NewUAIDs)
	assert.Equal(t, []int64{10}, plan.UnchangedUAIDs)
}

func TestReconcile_RetainsRemovedUnits(t *testing.T) {
	latest := snap(day1,
		domain.InventoryRecord{AssetID: 1, UserAssetID: 10, SerialNumber: serial(7), ScannedAt: day1},
		rec(2, 20, day1),
	)
	now := day1.Add(24 * time.Hour)

	plan := Reconcile(latest, nil, []domain.InventoryUnit{unit(2, 20)}, now, PlanOptions{})

	require.Equal(t, ActionCreate, plan.Action)
	require.Len(t, plan.Records, 2)
	removed := byUAID(plan.Records)[10]
	assert.Equal(t, int64(1), removed.AssetID)
	require.NotNil(t, removed.SerialNumber)
	assert.Equal(t, int64(7), *removed.SerialNumber)
	assert.Equal(t, day1, removed.ScannedAt)
	require.NotNil(t, removed.RemovedAt)
	assert.Equal(t, now, *removed.RemovedAt)
	assert.Equal(t, []int64{10}, plan.RemovedUAIDs)
}

func TestReconcile_SameDayReplacesToday(t *testing.T) {
	latest := snap(day1, rec(1, 10, day1))

	plan := Reconcile(latest, latest, []domain.InventoryUnit{unit(1, 10), unit(1, 11)}, day1.Add(time.Hour), PlanOptions{})

	assert.Equal(t, ActionReplace, plan.Action)
	assert.Equal(t, latest.ID, plan.Target.ID)
	assert.Len(t, plan.Records, 2)
}

func TestReconcile_SameDayKeepsExistingTombstones(t *testing.T) {
	removedAt := day1.Add(time.Hour)
	today := snap(day1,
		rec(1, 10, day1.Add(-24*time.Hour)),
		domain.InventoryRecord{AssetID: 2, UserAssetID: 20, ScannedAt: day1.Add(-24 * time.Hour), RemovedAt: &removedAt},
	)

	plan := Reconcile(today, today, []domain.InventoryUnit{unit(1, 10), unit(3, 30)}, day1.Add(2*time.Hour), PlanOptions{})

	require.Equal(t, ActionReplace, plan.Action)
	got := byUAID(plan.Records)
	require.Len(t, got, 3)
	require.NotNil(t, got[20].RemovedAt)
	assert.Equal(t, removedAt, *got[20].RemovedAt)
	assert.Empty(t, plan.RemovedUAIDs)
}

func TestReconcile_DuplicateUnitsCollapse(t *testing.T) {
	plan := Reconcile(nil, nil, []domain.InventoryUnit{
		{AssetID: 1, UserAssetID: 10, SerialNumber: serial(3)},
		{AssetID: 1, UserAssetID: 10, SerialNumber: serial(4)},
		unit(2, 20),
	}, day1, PlanOptions{})

	require.Len(t, plan.Records, 2)
	assert.Equal(t, int64(3), *byUAID(plan.Records)[10].SerialNumber)
}

// A unit that leaves and comes back is not linked to its earlier record.
// This is a known characteristic of the lineage model.
func TestReconcile_ReappearingUnitIsNew(t *testing.T) {
	removedAt := day1
	latest := snap(day1,
		rec(1, 10, day1.Add(-48*time.Hour)),
		domain.InventoryRecord{AssetID: 2, UserAssetID: 20, ScannedAt: day1.Add(-48 * time.Hour), RemovedAt: &removedAt},
	)
	now := day1.Add(24 * time.Hour)

	plan := Reconcile(latest, nil, []domain.InventoryUnit{unit(1, 10), unit(2, 20)}, now, PlanOptions{})

	require.Equal(t, ActionCreate, plan.Action)
	back := byUAID(plan.Records)[20]
	assert.Equal(t, now, back.ScannedAt)
	assert.Nil(t, back.RemovedAt)
	assert.Equal(t, []int64{20}, plan.NewUAIDs)
}

func TestReconcile_PartialFetchIsAdditive(t *testing.T) {
	latest := snap(day1, rec(1, 10, day1), rec(2, 20, day1), rec(3, 30, day1))
	now := day1.Add(24 * time.Hour)

	t.Run("missing units stay owned", func(t *testing.T) {
		plan := Reconcile(latest, nil, []domain.InventoryUnit{unit(1, 10), unit(4, 40)}, now, PlanOptions{Partial: true})

		require.Equal(t, ActionCreate, plan.Action)
		got := byUAID(plan.Records)
		require.Len(t, got, 4)
		for _, uaid := range []int64{10, 20, 30} {
			assert.Nil(t, got[uaid].RemovedAt)
			assert.Equal(t, day1, got[uaid].ScannedAt)
		}
		assert.Equal(t, now, got[40].ScannedAt)
		assert.Empty(t, plan.RemovedUAIDs)
	})

	t.Run("subset without new units is a noop", func(t *testing.T) {
		plan := Reconcile(latest, nil, []domain.InventoryUnit{unit(1, 10)}, now, PlanOptions{Partial: true})
		assert.Equal(t, ActionNone, plan.Action)
	})
}

func TestReconcile_RecordsOrderedByScannedAtThenUAID(t *testing.T) {
	latest := snap(day1, rec(1, 50, day1))
	now := day1.Add(time.Hour)

	plan := Reconcile(latest, nil, []domain.InventoryUnit{unit(1, 30), unit(1, 50), unit(1, 20)}, now, PlanOptions{})

	var order []int64
	for _, r := range plan.Records {
		order = append(order, r.UserAssetID)
	}
	assert.Equal(t, []int64{50, 20, 30}, order)
}

func TestReconcile_ItemsCarryFetchedNames(t *testing.T) {
	latest := snap(day1, rec(9, 90, day1))
	units := []domain.InventoryUnit{
		{AssetID: 1, UserAssetID: 10, Name: "Valkyrie Helm"},
		{AssetID: 1, UserAssetID: 11},
	}

	plan := Reconcile(latest, nil, units, day1.Add(24*time.Hour), PlanOptions{})

	assert.Equal(t, []domain.Item{
		{AssetID: 1, Name: "Valkyrie Helm"},
		{AssetID: 9, Placeholder: true},
	}, plan.Items)
}
