package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"limitedtracker/internal/api"
	"limitedtracker/internal/api/services"
	"limitedtracker/internal/api/ws"
	"limitedtracker/internal/config"
	"limitedtracker/internal/domain"
	"limitedtracker/internal/logger"
	"limitedtracker/internal/metrics"
	"limitedtracker/internal/redis"
	"limitedtracker/internal/repository"
	"limitedtracker/internal/roblox"
	"limitedtracker/internal/snapshot"
	"limitedtracker/internal/telemetry"
	"limitedtracker/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded, relying on environment")
	}

	cfg := config.Load()

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()
	logger.SetGlobal(zl)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		zl.Fatal("failed to init tracing", zap.Error(err))
	}

	db, err := repository.New(cfg)
	if err != nil {
		zl.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	rdb := redis.New(cfg)
	if err := redis.Ping(ctx, rdb); err != nil {
		zl.Fatal("failed to connect to redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	robloxClient := roblox.NewClient(cfg.Roblox, roblox.WithLogger(zl))

	trackerOpts := []snapshot.Option{
		snapshot.WithLocation(cfg.Scan.Location()),
		snapshot.WithLogger(zl),
		snapshot.WithHistoryLimits(cfg.Scan.HistoryLimit, cfg.Scan.MaxHistoryPage),
		snapshot.WithScanTimeout(cfg.Scan.JobTimeout),
	}
	var userCache services.UserCache
	if rdb != nil {
		trackerOpts = append(trackerOpts,
			snapshot.WithLocker(redis.NewScanLock(rdb, "limitedtracker:lock", cfg.Scan.LockTTL, zl)),
			snapshot.WithSummaryCache(redis.NewJSONCache[snapshot.Summary](rdb, "limitedtracker", cfg.Scan.SummaryTTL)),
		)
		userCache = redis.NewJSONCache[domain.User](rdb, "limitedtracker:user", 5*time.Minute)
	}

	snapshots := repository.NewSnapshotRepository(db.DB())
	tracker := snapshot.NewTracker(snapshots, robloxClient, trackerOpts...)

	hub := ws.NewHub(zl)
	rescans := worker.NewRescanQueue(tracker, hub, cfg.Scan.RescanQueue, cfg.Scan.JobTimeout, zl)
	stopRescans := rescans.Start(cfg.Scan.RescanWorkers)

	players := services.NewPlayerService(
		repository.NewUserRepository(db.DB()),
		robloxClient,
		tracker,
		rescans,
		userCache,
		zl,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogMethod:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zl.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(metrics.PrometheusMiddleware())
	if cfg.Telemetry.Enabled {
		e.Use(otelecho.Middleware(cfg.Telemetry.ServiceName))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api.SetupRoutes(e, api.Dependencies{
		Players: players,
		Tracker: tracker,
		Hub:     hub,
		JWTKey:  cfg.JWTKey,
		Log:     zl,
		Health: func(ctx context.Context) error {
			if err := db.DB().PingContext(ctx); err != nil {
				return err
			}
			return redis.Ping(ctx, rdb)
		},
		RescanBacklog: rescans.QueueLen,
	})

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	if err := stopRescans(shutdownCtx); err != nil {
		zl.Warn("rescan queue did not drain", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zl.Warn("tracing shutdown failed", zap.Error(err))
	}
}
