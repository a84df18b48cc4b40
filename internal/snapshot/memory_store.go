package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"limitedtracker/internal/domain"
)

// MemoryStore is an in-memory Store. Transactions are serialized and work on
// a copy of the state that replaces the live state only when fn succeeds.
type MemoryStore struct {
	writeMu sync.Mutex

	mu        sync.RWMutex
	state     *memState
	nextRecID int64
}

type memState struct {
	users     map[uuid.UUID]domain.User
	snapshots map[uuid.UUID]*domain.Snapshot
	items     map[int64]domain.Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users:     make(map[uuid.UUID]domain.User),
			snapshots: make(map[uuid.UUID]*domain.Snapshot),
			items:     make(map[int64]domain.Item),
		},
	}
}

// PutUser registers an owner so sightings can report it.
func (s *MemoryStore) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[u.ID] = u
}

// Items returns a copy of the catalog.
func (s *MemoryStore) Items() map[int64]domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]domain.Item, len(s.state.items))
	for k, v := range s.state.items {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) LatestSnapshot(ctx context.Context, userID uuid.UUID) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.latest(userID), nil
}

func (s *MemoryStore) SnapshotForDay(ctx context.Context, userID uuid.UUID, start, end time.Time) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.forDay(userID, start, end), nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.state.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return cloneSnapshot(snap), nil
}

func (s *MemoryStore) ListSnapshots(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.state.byUser(userID)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]domain.Snapshot, 0, len(all))
	for _, snap := range all {
		out = append(out, *cloneSnapshot(snap))
	}
	return out, nil
}

func (s *MemoryStore) SightingsByUAID(ctx context.Context, uaid int64) ([]Sighting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Sighting
	for _, snap := range s.state.snapshots {
		rec, ok := snap.Record(uaid)
		if !ok {
			continue
		}
		owner := s.state.users[snap.UserID]
		out = append(out, Sighting{
			SnapshotID:        snap.ID,
			SnapshotCreatedAt: snap.CreatedAt,
			UserID:            snap.UserID,
			RobloxUserID:      owner.RobloxUserID,
			Username:          owner.Username,
			Record:            rec,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SnapshotCreatedAt.After(out[j].SnapshotCreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) ItemsByAssetIDs(ctx context.Context, assetIDs []int64) (map[int64]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]domain.Item, len(assetIDs))
	for _, id := range assetIDs {
		if item, ok := s.state.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (s *MemoryStore) RunInTx(ctx context.Context, userID uuid.UUID, fn func(tx Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	tx := &memTx{state: s.state.clone(), nextRecID: s.nextRecID}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = tx.state
	s.nextRecID = tx.nextRecID
	s.mu.Unlock()
	return nil
}

type memTx struct {
	state     *memState
	nextRecID int64
}

func (tx *memTx) LatestSnapshot(ctx context.Context, userID uuid.UUID) (*domain.Snapshot, error) {
	return tx.state.latest(userID), ctx.Err()
}

func (tx *memTx) SnapshotForDay(ctx context.Context, userID uuid.UUID, start, end time.Time) (*domain.Snapshot, error) {
	return tx.state.forDay(userID, start, end), ctx.Err()
}

func (tx *memTx) EnsureItems(ctx context.Context, items []domain.Item) error {
	for _, it := range items {
		existing, ok := tx.state.items[it.AssetID]
		switch {
		case !ok:
			it.Placeholder = it.Name == ""
			if it.CreatedAt.IsZero() {
				it.CreatedAt = time.Now()
			}
			tx.state.items[it.AssetID] = it
		case existing.Placeholder && it.Name != "":
			existing.Name = it.Name
			existing.Placeholder = false
			tx.state.items[it.AssetID] = existing
		}
	}
	return ctx.Err()
}

func (tx *memTx) CreateSnapshot(ctx context.Context, userID uuid.UUID, createdAt time.Time, records []domain.InventoryRecord) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := &domain.Snapshot{
		Model:     domain.Model{ID: uuid.New(), CreatedAt: createdAt},
		UserID:    userID,
		UpdatedAt: createdAt,
	}
	if err := tx.setRecords(snap, records); err != nil {
		return nil, err
	}
	tx.state.snapshots[snap.ID] = snap
	return cloneSnapshot(snap), nil
}

func (tx *memTx) ReplaceRecords(ctx context.Context, snapshotID uuid.UUID, updatedAt time.Time, records []domain.InventoryRecord) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := tx.state.snapshots[snapshotID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	snap.UpdatedAt = updatedAt
	if err := tx.setRecords(snap, records); err != nil {
		return nil, err
	}
	return cloneSnapshot(snap), nil
}

func (tx *memTx) setRecords(snap *domain.Snapshot, records []domain.InventoryRecord) error {
	seen := make(map[int64]struct{}, len(records))
	out := make([]domain.InventoryRecord, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.UserAssetID]; dup {
			return fmt.Errorf("duplicate user asset id %d in snapshot %s", r.UserAssetID, snap.ID)
		}
		seen[r.UserAssetID] = struct{}{}
		if _, ok := tx.state.items[r.AssetID]; !ok {
			return fmt.Errorf("asset %d missing from catalog", r.AssetID)
		}
		tx.nextRecID++
		r.ID = tx.nextRecID
		r.SnapshotID = snap.ID
		out = append(out, r)
	}
	sortRecords(out)
	snap.Records = out
	return nil
}

func (st *memState) clone() *memState {
	c := &memState{
		users:     make(map[uuid.UUID]domain.User, len(st.users)),
		snapshots: make(map[uuid.UUID]*domain.Snapshot, len(st.snapshots)),
		items:     make(map[int64]domain.Item, len(st.items)),
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.snapshots {
		c.snapshots[k] = cloneSnapshot(v)
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	return c
}

// byUser returns the user's snapshots newest first.
func (st *memState) byUser(userID uuid.UUID) []*domain.Snapshot {
	var out []*domain.Snapshot
	for _, snap := range st.snapshots {
		if snap.UserID == userID {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (st *memState) latest(userID uuid.UUID) *domain.Snapshot {
	all := st.byUser(userID)
	if len(all) == 0 {
		return nil
	}
	return cloneSnapshot(all[0])
}

func (st *memState) forDay(userID uuid.UUID, start, end time.Time) *domain.Snapshot {
	for _, snap := range st.byUser(userID) {
		if snap.WithinDay(start, end) {
			return cloneSnapshot(snap)
		}
	}
	return nil
}

func cloneSnapshot(s *domain.Snapshot) *domain.Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Records = append([]domain.InventoryRecord(nil), s.Records...)
	return &c
}
