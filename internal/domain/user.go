package domain

import "time"

// User is a tracked Roblox account.
type User struct {
	Model
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	RobloxUserID int64     `json:"roblox_user_id" db:"roblox_user_id"`
	Username     string    `json:"username" db:"username"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	Description  string    `json:"description" db:"description"`
}
