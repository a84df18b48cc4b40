package domain

// InventoryUnit is one owned copy of a limited item as reported by the
// inventory source. It is never persisted directly.
type InventoryUnit struct {
	AssetID      int64  `json:"assetId"`
	UserAssetID  int64  `json:"userAssetId"`
	SerialNumber *int64 `json:"serialNumber,omitempty"`
	Name         string `json:"name,omitempty"`
}

// DedupeUnits drops repeated UAIDs, keeping the first occurrence and the
// original order.
func DedupeUnits(units []InventoryUnit) []InventoryUnit {
	seen := make(map[int64]struct{}, len(units))
	out := make([]InventoryUnit, 0, len(units))
	for _, u := range units {
		if _, ok := seen[u.UserAssetID]; ok {
			continue
		}
		seen[u.UserAssetID] = struct{}{}
		out = append(out, u)
	}
	return out
}
