package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"limitedtracker/internal/api/dto"
	"limitedtracker/internal/api/middleware"
	"limitedtracker/internal/api/services"
	"limitedtracker/internal/logger"
	"limitedtracker/internal/repository"
)

type PlayerHandler struct {
	players *services.PlayerService
	log     *zap.Logger
}

func NewPlayerHandler(players *services.PlayerService, log *zap.Logger) *PlayerHandler {
	if log == nil {
		log = logger.L()
	}
	return &PlayerHandler{players: players, log: log.With(zap.String("component", "player_handler"))}
}

type snapshotListQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// GetPlayer returns the player's latest snapshot, scanning first if the
// player has never been scanned.
func (h *PlayerHandler) GetPlayer(c echo.Context) error {
	robloxUserID, ok := parseID(c.Param("robloxUserId"))
	if !ok {
		return ErrBadRequest(c, "invalid roblox user id")
	}

	view, err := h.players.GetPlayer(c.Request().Context(), robloxUserID)
	if err != nil {
		h.log.Warn("load player failed", zap.Int64("roblox_user_id", robloxUserID), zap.Error(err))
		return errScan(c, err)
	}

	return c.JSON(http.StatusOK, dto.Player{
		User:       dto.UserFromDomain(view.User),
		Snapshot:   view.Summary,
		Scan:       dto.ScanFromResult(view.Scan),
		Refreshing: view.Refreshing,
	})
}

func (h *PlayerHandler) ListSnapshots(c echo.Context) error {
	robloxUserID, ok := parseID(c.Param("robloxUserId"))
	if !ok {
		return ErrBadRequest(c, "invalid roblox user id")
	}

	var q snapshotListQuery
	if err := c.Bind(&q); err != nil {
		return ErrBadRequest(c, "invalid limit")
	}
	if err := c.Validate(&q); err != nil {
		return ErrBadRequest(c, "limit must be between 1 and 100")
	}

	user, snaps, err := h.players.ListSnapshots(c.Request().Context(), robloxUserID, q.Limit)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound(c, "player not found")
		}
		h.log.Error("list snapshots failed", zap.Int64("roblox_user_id", robloxUserID), zap.Error(err))
		return ErrInternalServerError(c)
	}

	return c.JSON(http.StatusOK, dto.SnapshotList{
		User:      dto.UserFromDomain(user),
		Snapshots: dto.SnapshotHeadersFromDomain(snaps),
	})
}

// Scan runs a blocking scan on behalf of an operator.
func (h *PlayerHandler) Scan(c echo.Context) error {
	operatorID, err := middleware.GetOperatorIDFromContext(c.Request().Context())
	if err != nil {
		return ErrUnauthorized(c)
	}

	robloxUserID, ok := parseID(c.Param("robloxUserId"))
	if !ok {
		return ErrBadRequest(c, "invalid roblox user id")
	}

	user, res, err := h.players.ScanNow(c.Request().Context(), robloxUserID)
	if err != nil {
		h.log.Warn("manual scan failed",
			zap.String("operator_id", operatorID.String()),
			zap.Int64("roblox_user_id", robloxUserID),
			zap.Error(err),
		)
		return errScan(c, err)
	}

	h.log.Info("manual scan",
		zap.String("operator_id", operatorID.String()),
		zap.Int64("roblox_user_id", robloxUserID),
		zap.String("action", string(res.Action)),
	)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user": dto.UserFromDomain(user),
		"scan": dto.ScanFromResult(res),
	})
}
