package api

import (
	"context"
	"net/http"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"limitedtracker/internal/api/handlers"
	jwtMiddleware "limitedtracker/internal/api/middleware"
	"limitedtracker/internal/api/services"
	"limitedtracker/internal/api/ws"
)

type Dependencies struct {
	Players *services.PlayerService
	Tracker services.Tracker
	Hub     *ws.Hub
	JWTKey  string
	Log     *zap.Logger
	// Health reports whether backing services are reachable.
	Health func(ctx context.Context) error
	// RescanBacklog reports the number of queued background rescans.
	RescanBacklog func() int
}

func SetupRoutes(e *echo.Echo, deps Dependencies) {
	e.GET("/health", healthCheck(deps.Health, deps.RescanBacklog))

	e.Validator = NewValidator()

	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.Log)
	e.GET("/api/ws", wsHandler.HandleConnection)

	apiGroup := e.Group("/api")

	playerHandler := handlers.NewPlayerHandler(deps.Players, deps.Log)
	apiGroup.GET("/players/:robloxUserId", playerHandler.GetPlayer)
	apiGroup.GET("/players/:robloxUserId/snapshots", playerHandler.ListSnapshots)

	snapshotHandler := handlers.NewSnapshotHandler(deps.Tracker, deps.Log)
	apiGroup.GET("/snapshots/compare", snapshotHandler.Compare)
	apiGroup.GET("/snapshots/:id", snapshotHandler.GetSnapshot)
	apiGroup.GET("/uaid/:uaid", snapshotHandler.GetUAIDHistory)

	jwtConfig := echojwt.Config{
		SigningKey: []byte(deps.JWTKey),
		ContextKey: "user",
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		},
	}

	apiGroup.POST("/players/:robloxUserId/scan", playerHandler.Scan,
		echojwt.WithConfig(jwtConfig),
		jwtMiddleware.ExtractOperatorIDFromJWT(),
		jwtMiddleware.RequireOperator(),
	)
}

type healthResponse struct {
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	RescanQueue int    `json:"rescanQueue"`
}

func healthCheck(check func(ctx context.Context) error, backlog func() int) echo.HandlerFunc {
	return func(c echo.Context) error {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
			}
		}
		resp := healthResponse{Status: "ok"}
		if backlog != nil {
			resp.RescanQueue = backlog()
		}
		return c.JSON(http.StatusOK, resp)
	}
}
