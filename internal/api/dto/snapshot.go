package dto

import (
	"time"

	"limitedtracker/internal/domain"
	"limitedtracker/internal/snapshot"
)

type Player struct {
	User       *User             `json:"user"`
	Snapshot   *snapshot.Summary `json:"snapshot"`
	Scan       *Scan             `json:"scan,omitempty"`
	Refreshing bool              `json:"refreshing"`
}

type Scan struct {
	SnapshotID string          `json:"snapshotId"`
	Action     snapshot.Action `json:"action"`
	Complete   bool            `json:"complete"`
	Added      []int64         `json:"added"`
	Unchanged  int             `json:"unchanged"`
	Removed    []int64         `json:"removed"`
}

type SnapshotHeader struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	OwnedUnits   int       `json:"ownedUnits"`
	RemovedUnits int       `json:"removedUnits"`
	UniqueItems  int       `json:"uniqueItems"`
}

type SnapshotList struct {
	User      *User            `json:"user"`
	Snapshots []SnapshotHeader `json:"snapshots"`
}

func ScanFromResult(res *snapshot.ScanResult) *Scan {
	if res == nil {
		return nil
	}

	out := &Scan{
		Action:    res.Action,
		Complete:  res.Complete,
		Added:     nonNil(res.NewUAIDs),
		Unchanged: len(res.UnchangedUAIDs),
		Removed:   nonNil(res.RemovedUAIDs),
	}
	if res.Snapshot != nil {
		out.SnapshotID = res.Snapshot.ID.String()
	}
	return out
}

func SnapshotHeaderFromDomain(s domain.Snapshot) SnapshotHeader {
	owned := s.OwnedRecords()
	assets := make(map[int64]struct{}, len(owned))
	for _, r := range owned {
		assets[r.AssetID] = struct{}{}
	}

	return SnapshotHeader{
		ID:           s.ID.String(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		OwnedUnits:   len(owned),
		RemovedUnits: len(s.Records) - len(owned),
		UniqueItems:  len(assets),
	}
}

func SnapshotHeadersFromDomain(snaps []domain.Snapshot) []SnapshotHeader {
	out := make([]SnapshotHeader, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, SnapshotHeaderFromDomain(s))
	}
	return out
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
