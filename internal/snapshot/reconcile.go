package snapshot

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"limitedtracker/internal/domain"
)

type Action string

const (
	ActionNone    Action = "unchanged"
	ActionCreate  Action = "created"
	ActionReplace Action = "updated"
)

type PlanOptions struct {
	// Partial marks an incomplete fetch. Owned units missing from it are kept
	// as owned instead of being classified as removed.
	Partial bool
}

// Plan is the outcome of reconciling a fetched inventory against stored state.
type Plan struct {
	Action Action
	// Target is latest for ActionNone and today's snapshot for ActionReplace.
	Target  *domain.Snapshot
	Records []domain.InventoryRecord
	Items   []domain.Item

	NewUAIDs       []int64
	UnchangedUAIDs []int64
	RemovedUAIDs   []int64
}

// Reconcile computes what a scan taken at now should write. latest is the
// user's most recent snapshot and today is the snapshot created inside the
// current calendar day, either may be nil. Reconcile does not touch storage.
func Reconcile(latest, today *domain.Snapshot, units []domain.InventoryUnit, now time.Time, opts PlanOptions) Plan {
	units = domain.DedupeUnits(units)

	if latest == nil {
		plan := Plan{Action: ActionCreate, Target: today}
		if today != nil {
			plan.Action = ActionReplace
		}
		for _, u := range units {
			plan.Records = append(plan.Records, recordFromUnit(u, now))
			plan.NewUAIDs = append(plan.NewUAIDs, u.UserAssetID)
		}
		plan.finish(units)
		return plan
	}

	owned := latest.OwnedByUAID()
	inSet := make(map[int64]struct{}, len(units)+len(owned))

	var plan Plan
	for _, u := range units {
		inSet[u.UserAssetID] = struct{}{}
		if prev, ok := owned[u.UserAssetID]; ok {
			plan.Records = append(plan.Records, recordFromUnit(u, prev.ScannedAt))
			plan.UnchangedUAIDs = append(plan.UnchangedUAIDs, u.UserAssetID)
			continue
		}
		plan.Records = append(plan.Records, recordFromUnit(u, now))
		plan.NewUAIDs = append(plan.NewUAIDs, u.UserAssetID)
	}

	for _, prev := range latest.Records {
		if !prev.Owned() {
			continue
		}
		if _, ok := inSet[prev.UserAssetID]; ok {
			continue
		}
		inSet[prev.UserAssetID] = struct{}{}

		kept := carry(prev)
		if opts.Partial {
			plan.Records = append(plan.Records, kept)
			plan.UnchangedUAIDs = append(plan.UnchangedUAIDs, prev.UserAssetID)
			continue
		}
		removedAt := now
		kept.RemovedAt = &removedAt
		plan.Records = append(plan.Records, kept)
		plan.RemovedUAIDs = append(plan.RemovedUAIDs, prev.UserAssetID)
	}

	if len(plan.NewUAIDs) == 0 && len(plan.RemovedUAIDs) == 0 {
		return Plan{
			Action:         ActionNone,
			Target:         latest,
			Records:        latest.Records,
			UnchangedUAIDs: sortedCopy(plan.UnchangedUAIDs),
		}
	}

	if today != nil {
		// Rewriting today's snapshot must not drop units it already marked
		// as removed.
		for _, r := range today.Records {
			if r.Owned() {
				continue
			}
			if _, ok := inSet[r.UserAssetID]; ok {
				continue
			}
			inSet[r.UserAssetID] = struct{}{}
			plan.Records = append(plan.Records, carry(r))
		}
		plan.Action = ActionReplace
		plan.Target = today
	} else {
		plan.Action = ActionCreate
	}

	plan.finish(units)
	return plan
}

func (p *Plan) finish(units []domain.InventoryUnit) {
	sortRecords(p.Records)
	p.Items = catalogItems(units, p.Records)
	sort.Slice(p.NewUAIDs, func(i, j int) bool { return p.NewUAIDs[i] < p.NewUAIDs[j] })
	sort.Slice(p.UnchangedUAIDs, func(i, j int) bool { return p.UnchangedUAIDs[i] < p.UnchangedUAIDs[j] })
	sort.Slice(p.RemovedUAIDs, func(i, j int) bool { return p.RemovedUAIDs[i] < p.RemovedUAIDs[j] })
}

// Changed reports whether the plan writes anything.
func (p Plan) Changed() bool {
	return p.Action != ActionNone
}

func recordFromUnit(u domain.InventoryUnit, scannedAt time.Time) domain.InventoryRecord {
	return domain.InventoryRecord{
		AssetID:      u.AssetID,
		UserAssetID:  u.UserAssetID,
		SerialNumber: u.SerialNumber,
		ScannedAt:    scannedAt,
	}
}

// carry copies a record for writing into another snapshot.
func carry(r domain.InventoryRecord) domain.InventoryRecord {
	r.ID = 0
	r.SnapshotID = uuid.Nil
	return r
}

func sortRecords(records []domain.InventoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].ScannedAt.Equal(records[j].ScannedAt) {
			return records[i].ScannedAt.Before(records[j].ScannedAt)
		}
		return records[i].UserAssetID < records[j].UserAssetID
	})
}

// catalogItems lists every asset id referenced by records, named from the
// fetched units where the source reported a name.
func catalogItems(units []domain.InventoryUnit, records []domain.InventoryRecord) []domain.Item {
	names := make(map[int64]string, len(units))
	for _, u := range units {
		if names[u.AssetID] == "" {
			names[u.AssetID] = u.Name
		}
	}

	seen := make(map[int64]struct{}, len(records))
	items := make([]domain.Item, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.AssetID]; ok {
			continue
		}
		seen[r.AssetID] = struct{}{}
		name := names[r.AssetID]
		items = append(items, domain.Item{AssetID: r.AssetID, Name: name, Placeholder: name == ""})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].AssetID < items[j].AssetID })
	return items
}

func sortedCopy(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
