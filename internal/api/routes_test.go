package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitedtracker/internal/api/apitest"
	"limitedtracker/internal/api/services"
	"limitedtracker/internal/api/ws"
)

const testJWTKey = "test-secret"

func setupRouter(t *testing.T, health func(context.Context) error) (*echo.Echo, *apitest.Env) {
	t.Helper()
	env := apitest.NewEnv()
	env.AddPlayer(1, "builderman")
	env.Inventories.Set(1, apitest.Unit(10, 100, "Dominus"))

	e := echo.New()
	SetupRoutes(e, Dependencies{
		Players: services.NewPlayerService(env.Users, env.Profiles, env.Tracker, env.Rescans, nil, nil),
		Tracker: env.Tracker,
		Hub:     ws.NewHub(nil),
		JWTKey:  testJWTKey,
		Health:  health,
	})
	return e, env
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Health(t *testing.T) {
	e, _ := setupRouter(t, nil)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health", "").Code)

	e, _ = setupRouter(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, serve(e, http.MethodGet, "/health", "").Code)
}

func TestRoutes_HealthReportsRescanBacklog(t *testing.T) {
	e := echo.New()
	SetupRoutes(e, Dependencies{
		Hub:           ws.NewHub(nil),
		JWTKey:        testJWTKey,
		RescanBacklog: func() int { return 3 },
	})

	rec := serve(e, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 3, body.RescanQueue)
}

func TestRoutes_PublicReads(t *testing.T) {
	e, _ := setupRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/players/1", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/players/1/snapshots", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/api/uaid/100", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(e, http.MethodGet, "/api/snapshots/compare", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/api/snapshots/"+uuid.NewString(), "").Code)
}

func TestRoutes_ManualScanRequiresToken(t *testing.T) {
	e, _ := setupRouter(t, nil)

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/api/players/1/scan", "").Code)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		token, err := services.IssueOperatorToken("other-key", uuid.New(), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/api/players/1/scan", token).Code)
	})

	t.Run("valid operator token", func(t *testing.T) {
		token, err := services.IssueOperatorToken(testJWTKey, uuid.New(), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/api/players/1/scan", token).Code)
	})
}
