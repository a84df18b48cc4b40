package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"limitedtracker/internal/domain"
	"limitedtracker/internal/logger"
	"limitedtracker/internal/repository"
	"limitedtracker/internal/roblox"
	"limitedtracker/internal/snapshot"
)

type UserStore interface {
	FindByRobloxID(ctx context.Context, robloxUserID int64) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
}

type ProfileSource interface {
	FetchUser(ctx context.Context, robloxUserID int64) (*roblox.UserInfo, error)
}

type UserCache interface {
	Get(ctx context.Context, key string) (*domain.User, error)
	Set(ctx context.Context, key string, v *domain.User) error
}

type Rescheduler interface {
	Enqueue(user domain.User) bool
}

// Tracker is the part of snapshot.Tracker the HTTP surface drives.
type Tracker interface {
	Scan(ctx context.Context, user *domain.User) (*snapshot.ScanResult, error)
	LatestSnapshot(ctx context.Context, userID uuid.UUID) (*domain.Snapshot, error)
	SnapshotHistory(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Snapshot, error)
	SnapshotSummary(ctx context.Context, id uuid.UUID) (*snapshot.Summary, error)
	CompareSnapshots(ctx context.Context, fromID, toID uuid.UUID) (*snapshot.Diff, error)
	History(ctx context.Context, uaid int64) (*snapshot.History, error)
}

type PlayerView struct {
	User       *domain.User
	Summary    *snapshot.Summary
	Scan       *snapshot.ScanResult
	Refreshing bool
}

type PlayerService struct {
	users    UserStore
	profiles ProfileSource
	tracker  Tracker
	rescans  Rescheduler
	cache    UserCache
	log      *zap.Logger
}

func NewPlayerService(users UserStore, profiles ProfileSource, tracker Tracker, rescans Rescheduler, cache UserCache, log *zap.Logger) *PlayerService {
	if log == nil {
		log = logger.L()
	}
	return &PlayerService{
		users:    users,
		profiles: profiles,
		tracker:  tracker,
		rescans:  rescans,
		cache:    cache,
		log:      log.With(zap.String("component", "player_service")),
	}
}

// EnsureUser returns the stored user for a Roblox id, creating it from the
// Roblox profile the first time the player is seen.
func (s *PlayerService) EnsureUser(ctx context.Context, robloxUserID int64) (*domain.User, error) {
	user, err := s.FindUser(ctx, robloxUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	info, err := s.profiles.FetchUser(ctx, robloxUserID)
	if err != nil {
		return nil, err
	}

	user = &domain.User{
		RobloxUserID: robloxUserID,
		Username:     info.Name,
		DisplayName:  info.DisplayName,
		Description:  info.Description,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("save user %d: %w", robloxUserID, err)
	}
	s.remember(ctx, user)

	return user, nil
}

// FindUser looks the player up without calling Roblox.
func (s *PlayerService) FindUser(ctx context.Context, robloxUserID int64) (*domain.User, error) {
	key := strconv.FormatInt(robloxUserID, 10)
	if s.cache != nil {
		user, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("user cache get failed", zap.Error(err))
		}
		if user != nil {
			return user, nil
		}
	}

	user, err := s.users.FindByRobloxID(ctx, robloxUserID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, user)
	return user, nil
}

// GetPlayer loads the player's latest snapshot. The first visit scans in
// the foreground. Later visits return what is stored and queue a rescan.
func (s *PlayerService) GetPlayer(ctx context.Context, robloxUserID int64) (*PlayerView, error) {
	user, err := s.EnsureUser(ctx, robloxUserID)
	if err != nil {
		return nil, err
	}

	view := &PlayerView{User: user}

	latest, err := s.tracker.LatestSnapshot(ctx, user.ID)
	switch {
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		res, err := s.tracker.Scan(ctx, user)
		if err != nil {
			return nil, err
		}
		view.Scan = res
		latest = res.Snapshot
	case err != nil:
		return nil, err
	default:
		if s.rescans != nil {
			view.Refreshing = s.rescans.Enqueue(*user)
		}
	}

	view.Summary, err = s.tracker.SnapshotSummary(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *PlayerService) ListSnapshots(ctx context.Context, robloxUserID int64, limit int) (*domain.User, []domain.Snapshot, error) {
	user, err := s.FindUser(ctx, robloxUserID)
	if err != nil {
		return nil, nil, err
	}

	snaps, err := s.tracker.SnapshotHistory(ctx, user.ID, limit)
	if err != nil {
		return nil, nil, err
	}
	return user, snaps, nil
}

// ScanNow runs a blocking scan for the player.
func (s *PlayerService) ScanNow(ctx context.Context, robloxUserID int64) (*domain.User, *snapshot.ScanResult, error) {
	user, err := s.EnsureUser(ctx, robloxUserID)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	res, err := s.tracker.Scan(ctx, user)
	if err != nil {
		return user, nil, err
	}
	s.log.Info("manual scan finished",
		zap.Int64("roblox_user_id", robloxUserID),
		zap.String("action", string(res.Action)),
		zap.Duration("took", time.Since(start)),
	)
	return user, res, nil
}

func (s *PlayerService) remember(ctx context.Context, user *domain.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, strconv.FormatInt(user.RobloxUserID, 10), user); err != nil {
		s.log.Warn("user cache set failed", zap.Error(err))
	}
}
