package repository

import (
	"context"

	"github.com/lib/pq"

	"limitedtracker/internal/domain"
)

type ItemRepository struct {
	db ExtHandle
}

func NewItemRepository(db ExtHandle) *ItemRepository {
	return &ItemRepository{db: db}
}

// EnsureItems inserts missing catalog rows. Rows without a name become
// placeholders; an existing placeholder is named when a name is supplied.
func (r *ItemRepository) EnsureItems(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(items))
	names := make([]string, 0, len(items))
	placeholders := make([]bool, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.AssetID)
		names = append(names, it.Name)
		placeholders = append(placeholders, it.Name == "")
	}

	query := `
		INSERT INTO items (asset_id, name, placeholder)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::boolean[])
		ON CONFLICT (asset_id) DO UPDATE
		SET name = EXCLUDED.name,
		    placeholder = FALSE
		WHERE items.placeholder AND EXCLUDED.name <> ''
	`

	_, err := r.db.ExecContext(ctx, query, pq.Array(ids), pq.Array(names), pq.Array(placeholders))
	return err
}

func (r *ItemRepository) FindByAssetIDs(ctx context.Context, assetIDs []int64) (map[int64]domain.Item, error) {
	out := make(map[int64]domain.Item, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT asset_id, name, placeholder, created_at
		FROM items
		WHERE asset_id = ANY($1)
	`

	var items []domain.Item
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(assetIDs)); err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.AssetID] = it
	}
	return out, nil
}
