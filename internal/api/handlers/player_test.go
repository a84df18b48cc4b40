package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitedtracker/internal/api/apitest"
	"limitedtracker/internal/api/dto"
	"limitedtracker/internal/api/middleware"
	"limitedtracker/internal/roblox"
	"limitedtracker/internal/snapshot"
)

func newUUID() uuid.UUID { return uuid.New() }

func setupPlayerHandlerTest(t *testing.T, opts ...snapshot.Option) (*PlayerHandler, *apitest.Env) {
	t.Helper()
	env := apitest.NewEnv(opts...)
	env.AddPlayer(1, "builderman")
	env.Inventories.Set(1,
		apitest.Unit(10, 100, "Dominus"),
		apitest.Unit(10, 101, "Dominus"),
		apitest.Unit(20, 200, "Valkyrie"),
	)
	return NewPlayerHandler(newPlayerService(env), nil), env
}

func TestPlayerHandler_GetPlayer(t *testing.T) {
	handler, env := setupPlayerHandlerTest(t)
	e := newEcho()

	t.Run("invalid id returns 400", func(t *testing.T) {
		c, rec := newContext(e, http.MethodGet, "/api/players/abc", "robloxUserId", "abc")
		require.NoError(t, handler.GetPlayer(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown player returns 404", func(t *testing.T) {
		c, rec := newContext(e, http.MethodGet, "/api/players/7", "robloxUserId", "7")
		require.NoError(t, handler.GetPlayer(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("first visit scans and returns the snapshot", func(t *testing.T) {
		c, rec := newContext(e, http.MethodGet, "/api/players/1", "robloxUserId", "1")
		require.NoError(t, handler.GetPlayer(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var body dto.Player
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "builderman", body.User.Username)
		assert.False(t, body.Refreshing)
		require.NotNil(t, body.Scan)
		assert.Equal(t, snapshot.ActionCreate, body.Scan.Action)
		assert.ElementsMatch(t, []int64{100, 101, 200}, body.Scan.Added)
		require.NotNil(t, body.Snapshot)
		assert.Equal(t, 3, body.Snapshot.TotalUnits)
		require.Len(t, body.Snapshot.Items, 2)
		assert.Equal(t, "Dominus", body.Snapshot.Items[0].Name)
		assert.Equal(t, 2, body.Snapshot.Items[0].Count)
	})

	t.Run("later visit returns stored data and refreshes", func(t *testing.T) {
		c, rec := newContext(e, http.MethodGet, "/api/players/1", "robloxUserId", "1")
		require.NoError(t, handler.GetPlayer(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var body dto.Player
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Refreshing)
		assert.Nil(t, body.Scan)
		assert.Equal(t, 1, env.Rescans.Len())
	})
}

func TestPlayerHandler_GetPlayerScanErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"private inventory", roblox.ErrInventoryPrivate, http.StatusForbidden},
		{"roblox user gone", roblox.ErrUserNotFound, http.StatusNotFound},
		{"upstream failure", &roblox.APIError{StatusCode: 503, Body: "down"}, http.StatusBadGateway},
		{"transport failure", errors.New("connection reset"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, env := setupPlayerHandlerTest(t)
			env.Inventories.Fail(1, tt.err)

			c, rec := newContext(newEcho(), http.MethodGet, "/api/players/1", "robloxUserId", "1")
			require.NoError(t, handler.GetPlayer(c))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestPlayerHandler_ListSnapshots(t *testing.T) {
	handler, _ := setupPlayerHandlerTest(t)
	e := newEcho()

	t.Run("unknown player returns 404", func(t *testing.T) {
		c, rec := newContext(e, http.MethodGet, "/api/players/1/snapshots", "robloxUserId", "1")
		require.NoError(t, handler.ListSnapshots(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	c, rec := newContext(e, http.MethodGet, "/api/players/1", "robloxUserId", "1")
	require.NoError(t, handler.GetPlayer(c))
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("limit out of range returns 400", func(t *testing.T) {
		c, rec := newContext(e, http.MethodGet, "/api/players/1/snapshots?limit=500", "robloxUserId", "1")
		require.NoError(t, handler.ListSnapshots(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("lists snapshots", func(t *testing.T) {
		c, rec := newContext(e, http.MethodGet, "/api/players/1/snapshots?limit=5", "robloxUserId", "1")
		require.NoError(t, handler.ListSnapshots(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var body dto.SnapshotList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Snapshots, 1)
		assert.Equal(t, 3, body.Snapshots[0].OwnedUnits)
		assert.Equal(t, 2, body.Snapshots[0].UniqueItems)
		assert.Equal(t, 0, body.Snapshots[0].RemovedUnits)
	})
}

func TestPlayerHandler_Scan(t *testing.T) {
	handler, _ := setupPlayerHandlerTest(t)
	e := newEcho()

	t.Run("unauthorized without operator", func(t *testing.T) {
		c, rec := newContext(e, http.MethodPost, "/api/players/1/scan", "robloxUserId", "1")
		require.NoError(t, handler.Scan(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("operator scan succeeds", func(t *testing.T) {
		c, rec := newContext(e, http.MethodPost, "/api/players/1/scan", "robloxUserId", "1")
		c.SetRequest(c.Request().WithContext(middleware.ContextWithOperatorID(c.Request().Context(), uuid.New())))
		require.NoError(t, handler.Scan(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Scan dto.Scan `json:"scan"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, snapshot.ActionCreate, body.Scan.Action)
		assert.True(t, body.Scan.Complete)
	})
}

func TestPlayerHandler_ScanInProgress(t *testing.T) {
	handler, _ := setupPlayerHandlerTest(t, snapshot.WithLocker(heldLocker{}))

	c, rec := newContext(newEcho(), http.MethodPost, "/api/players/1/scan", "robloxUserId", "1")
	c.SetRequest(c.Request().WithContext(middleware.ContextWithOperatorID(c.Request().Context(), uuid.New())))
	require.NoError(t, handler.Scan(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
