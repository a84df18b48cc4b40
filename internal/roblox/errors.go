package roblox

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound     = errors.New("roblox user not found")
	ErrInventoryPrivate = errors.New("roblox inventory is private")
	ErrInvalidRequest   = errors.New("roblox rejected the request")

	errRateLimited      = errors.New("rate limited")
	errRetriesExhausted = errors.New("rate limit retries exhausted")
)

// APIError is a non-success response that is not mapped to a sentinel.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("roblox api: status %d: %s", e.StatusCode, e.Body)
}

// IsPermanent reports whether err means the target can never be fetched,
// so retrying or falling back to partial data makes no sense.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrInventoryPrivate) ||
		errors.Is(err, ErrInvalidRequest)
}

type errorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}
