// Package apitest holds in-memory collaborators for exercising the HTTP
// surface without Postgres or the Roblox API.
package apitest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"limitedtracker/internal/domain"
	"limitedtracker/internal/repository"
	"limitedtracker/internal/roblox"
	"limitedtracker/internal/snapshot"
)

type Users struct {
	mu       sync.Mutex
	byID     map[int64]*domain.User
	Upserts  int
	OnUpsert func(domain.User)
}

func NewUsers() *Users {
	return &Users{byID: make(map[int64]*domain.User)}
}

func (u *Users) FindByRobloxID(ctx context.Context, robloxUserID int64) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[robloxUserID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *Users) Upsert(ctx context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Upserts++
	if existing, ok := u.byID[user.RobloxUserID]; ok {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
	} else {
		user.ID = uuid.New()
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = time.Now()
	cp := *user
	u.byID[user.RobloxUserID] = &cp
	if u.OnUpsert != nil {
		u.OnUpsert(cp)
	}
	return nil
}

type Profiles struct {
	mu    sync.Mutex
	users map[int64]roblox.UserInfo
	Err   error
	Calls int
}

func NewProfiles(users ...roblox.UserInfo) *Profiles {
	p := &Profiles{users: make(map[int64]roblox.UserInfo)}
	for _, u := range users {
		p.users[u.ID] = u
	}
	return p
}

func (p *Profiles) FetchUser(ctx context.Context, robloxUserID int64) (*roblox.UserInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	if p.Err != nil {
		return nil, p.Err
	}
	info, ok := p.users[robloxUserID]
	if !ok {
		return nil, roblox.ErrUserNotFound
	}
	return &info, nil
}

// Inventories serves a fixed inventory per Roblox user id.
type Inventories struct {
	mu    sync.Mutex
	units map[int64][]domain.InventoryUnit
	errs  map[int64]error
}

func NewInventories() *Inventories {
	return &Inventories{
		units: make(map[int64][]domain.InventoryUnit),
		errs:  make(map[int64]error),
	}
}

func (s *Inventories) Set(robloxUserID int64, units ...domain.InventoryUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs, robloxUserID)
	s.units[robloxUserID] = units
}

func (s *Inventories) Fail(robloxUserID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[robloxUserID] = err
}

func (s *Inventories) FetchInventory(ctx context.Context, robloxUserID int64) (*roblox.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[robloxUserID]; err != nil {
		return nil, err
	}
	units := append([]domain.InventoryUnit(nil), s.units[robloxUserID]...)
	return &roblox.Inventory{Units: units, Complete: true, Pages: 1}, nil
}

// Rescans records enqueued users instead of scanning them.
type Rescans struct {
	mu     sync.Mutex
	Queued []domain.User
	Reject bool
}

func (r *Rescans) Enqueue(user domain.User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Reject {
		return false
	}
	r.Queued = append(r.Queued, user)
	return true
}

func (r *Rescans) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Queued)
}

type Env struct {
	Users       *Users
	Profiles    *Profiles
	Inventories *Inventories
	Rescans     *Rescans
	Store       *snapshot.MemoryStore
	Tracker     *snapshot.Tracker
}

func NewEnv(opts ...snapshot.Option) *Env {
	env := &Env{
		Users:       NewUsers(),
		Profiles:    NewProfiles(),
		Inventories: NewInventories(),
		Rescans:     &Rescans{},
		Store:       snapshot.NewMemoryStore(),
	}
	env.Users.OnUpsert = env.Store.PutUser
	env.Tracker = snapshot.NewTracker(env.Store, env.Inventories, opts...)
	return env
}

// AddPlayer makes a player resolvable through the Roblox profile lookup.
func (e *Env) AddPlayer(robloxUserID int64, name string) {
	e.Profiles.mu.Lock()
	defer e.Profiles.mu.Unlock()
	e.Profiles.users[robloxUserID] = roblox.UserInfo{ID: robloxUserID, Name: name, DisplayName: name}
}

func Unit(assetID, uaid int64, name string) domain.InventoryUnit {
	return domain.InventoryUnit{AssetID: assetID, UserAssetID: uaid, Name: name}
}
