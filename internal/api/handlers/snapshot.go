package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"limitedtracker/internal/api/services"
	"limitedtracker/internal/logger"
	"limitedtracker/internal/snapshot"
)

type SnapshotHandler struct {
	tracker services.Tracker
	log     *zap.Logger
}

func NewSnapshotHandler(tracker services.Tracker, log *zap.Logger) *SnapshotHandler {
	if log == nil {
		log = logger.L()
	}
	return &SnapshotHandler{tracker: tracker, log: log.With(zap.String("component", "snapshot_handler"))}
}

type compareQuery struct {
	From string `query:"from" validate:"required,uuid"`
	To   string `query:"to" validate:"required,uuid"`
}

func (h *SnapshotHandler) GetSnapshot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ErrBadRequest(c, "invalid snapshot id")
	}

	sum, err := h.tracker.SnapshotSummary(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			return ErrNotFound(c, "snapshot not found")
		}
		h.log.Error("load snapshot summary failed", zap.String("snapshot_id", id.String()), zap.Error(err))
		return ErrInternalServerError(c)
	}

	return c.JSON(http.StatusOK, sum)
}

func (h *SnapshotHandler) Compare(c echo.Context) error {
	var q compareQuery
	if err := c.Bind(&q); err != nil {
		return ErrBadRequest(c, "")
	}
	if err := c.Validate(&q); err != nil {
		return ErrBadRequest(c, "from and to must be snapshot ids")
	}

	from, err := uuid.Parse(q.From)
	if err != nil {
		return ErrBadRequest(c, "invalid from snapshot id")
	}
	to, err := uuid.Parse(q.To)
	if err != nil {
		return ErrBadRequest(c, "invalid to snapshot id")
	}

	diff, err := h.tracker.CompareSnapshots(c.Request().Context(), from, to)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			return ErrNotFound(c, "snapshot not found")
		}
		h.log.Error("compare snapshots failed", zap.Error(err))
		return ErrInternalServerError(c)
	}

	return c.JSON(http.StatusOK, diff)
}

func (h *SnapshotHandler) GetUAIDHistory(c echo.Context) error {
	uaid, ok := parseID(c.Param("uaid"))
	if !ok {
		return ErrBadRequest(c, "invalid uaid")
	}

	history, err := h.tracker.History(c.Request().Context(), uaid)
	if err != nil {
		if errors.Is(err, snapshot.ErrUAIDNotFound) {
			return ErrNotFound(c, "uaid has never been seen")
		}
		h.log.Error("load uaid history failed", zap.Int64("uaid", uaid), zap.Error(err))
		return ErrInternalServerError(c)
	}

	return c.JSON(http.StatusOK, history)
}
