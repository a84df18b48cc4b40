package domain

import (
	"time"

	"github.com/google/uuid"
)

type Snapshot struct {
	Model
	UserID    uuid.UUID         `json:"user_id" db:"user_id"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
	Records   []InventoryRecord `json:"records" db:"-"`
}

// OwnedRecords returns the records that are currently held, skipping
// tombstones.
func (s *Snapshot) OwnedRecords() []InventoryRecord {
	if s == nil {
		return nil
	}
	out := make([]InventoryRecord, 0, len(s.Records))
	for _, r := range s.Records {
		if r.Owned() {
			out = append(out, r)
		}
	}
	return out
}

func (s *Snapshot) OwnedByUAID() map[int64]InventoryRecord {
	if s == nil {
		return map[int64]InventoryRecord{}
	}
	m := make(map[int64]InventoryRecord, len(s.Records))
	for _, r := range s.Records {
		if r.Owned() {
			m[r.UserAssetID] = r
		}
	}
	return m
}

func (s *Snapshot) Record(uaid int64) (InventoryRecord, bool) {
	if s == nil {
		return InventoryRecord{}, false
	}
	for _, r := range s.Records {
		if r.UserAssetID == uaid {
			return r, true
		}
	}
	return InventoryRecord{}, false
}

// WithinDay reports whether the snapshot was created inside [start, end).
func (s *Snapshot) WithinDay(start, end time.Time) bool {
	return s != nil && !s.CreatedAt.Before(start) && s.CreatedAt.Before(end)
}

// DayBounds returns the calendar day containing t in loc as [start, start+24h).
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour)
}
