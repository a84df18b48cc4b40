package domain

import "time"

const UnknownItemName = "Unknown Item"

// Item is a catalog row keyed by Roblox asset id. Placeholder rows are
// inserted for asset ids the catalog has not seen yet.
type Item struct {
	AssetID     int64     `json:"asset_id" db:"asset_id"`
	Name        string    `json:"name" db:"name"`
	Placeholder bool      `json:"placeholder" db:"placeholder"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

func (i Item) DisplayName() string {
	if i.Placeholder || i.Name == "" {
		return UnknownItemName
	}
	return i.Name
}
