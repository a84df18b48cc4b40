package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"limitedtracker/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, created_at, updated_at, roblox_user_id, username, display_name, description`

type UserRepository struct {
	db ExtHandle
}

func NewUserRepository(db ExtHandle) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts the user or refreshes the profile fields of the existing
// row with the same Roblox id. ID and timestamps are written back to user.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (roblox_user_id, username, display_name, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (roblox_user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    display_name = EXCLUDED.display_name,
		    description = EXCLUDED.description,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		user.RobloxUserID, user.Username, user.DisplayName, user.Description,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *UserRepository) FindByRobloxID(ctx context.Context, robloxUserID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE roblox_user_id = $1`

	user := &domain.User{}
	err := r.db.GetContext(ctx, user, query, robloxUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "23505") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "duplicate key")
}
