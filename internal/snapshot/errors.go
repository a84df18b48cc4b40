package snapshot

import "errors"

var (
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrUAIDNotFound        = errors.New("uaid not found in any snapshot")
	ErrInventoryIncomplete = errors.New("inventory fetch returned no units before failing")
	ErrScanInProgress      = errors.New("scan already in progress for user")
)
