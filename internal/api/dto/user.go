package dto

import (
	"time"

	"limitedtracker/internal/domain"
)

type User struct {
	ID           string    `json:"id"`
	RobloxUserID int64     `json:"robloxUserId"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func UserFromDomain(user *domain.User) *User {
	if user == nil {
		return nil
	}

	return &User{
		ID:           user.ID.String(),
		RobloxUserID: user.RobloxUserID,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		Description:  user.Description,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}
