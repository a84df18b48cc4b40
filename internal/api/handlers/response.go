package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/asaskevich/govalidator"
	"github.com/labstack/echo/v4"

	"limitedtracker/internal/repository"
	"limitedtracker/internal/roblox"
	"limitedtracker/internal/snapshot"
)

func ErrUnauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

func ErrNotFound(c echo.Context, message string) error {
	if message == "" {
		message = "not found"
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func ErrBadRequest(c echo.Context, message string) error {
	if message == "" {
		message = "invalid request"
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func ErrForbidden(c echo.Context, message string) error {
	if message == "" {
		message = "forbidden"
	}
	return c.JSON(http.StatusForbidden, map[string]string{"error": message})
}

func ErrInternalServerError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func ErrConflict(c echo.Context, message string) error {
	if message == "" {
		message = "conflict"
	}
	return c.JSON(http.StatusConflict, map[string]string{"error": message})
}

func ErrBadGateway(c echo.Context, message string) error {
	if message == "" {
		message = "upstream failure"
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": message})
}

// errScan maps a failed blocking scan to a response. Anything not
// recognised is treated as an upstream failure.
func errScan(c echo.Context, err error) error {
	switch {
	case errors.Is(err, roblox.ErrUserNotFound), errors.Is(err, repository.ErrUserNotFound):
		return ErrNotFound(c, "player not found")
	case errors.Is(err, roblox.ErrInventoryPrivate):
		return ErrForbidden(c, "inventory is private")
	case errors.Is(err, roblox.ErrInvalidRequest):
		return ErrBadRequest(c, "roblox rejected the request")
	case errors.Is(err, snapshot.ErrScanInProgress):
		return ErrConflict(c, "scan already in progress")
	case errors.Is(err, snapshot.ErrInventoryIncomplete):
		return ErrBadGateway(c, "inventory could not be fetched completely")
	case errors.Is(err, context.Canceled):
		return ErrBadGateway(c, "request cancelled")
	default:
		return ErrBadGateway(c, "inventory fetch failed")
	}
}

func parseID(raw string) (int64, bool) {
	if !govalidator.IsInt(raw) {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
