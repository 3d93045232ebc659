package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/api"
	"github.com/jengzang/traffic-backend-go/internal/config"
	"github.com/jengzang/traffic-backend-go/internal/database"
	"github.com/jengzang/traffic-backend-go/internal/events"
	"github.com/jengzang/traffic-backend-go/internal/handler"
	"github.com/jengzang/traffic-backend-go/internal/maintenance"
	"github.com/jengzang/traffic-backend-go/internal/middleware"
	"github.com/jengzang/traffic-backend-go/internal/repository"
	"github.com/jengzang/traffic-backend-go/internal/router"
	"github.com/jengzang/traffic-backend-go/internal/server"
	"github.com/jengzang/traffic-backend-go/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	store := repository.NewStore(db)

	publisher, closePublisher, err := newPublisher(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer closePublisher()

	svc := service.New(store, router.New(cfg.RouterURL, cfg.RouterTimeout), publisher, service.Options{
		SnapRadius:           cfg.SnapRadius,
		CongestionSnapRadius: cfg.CongestionSnapRadius,
		LeaseDuration:        cfg.LeaseDuration,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	defer limiter.Close()

	scheduler := newScheduler(store, svc, cfg)

	registry := server.NewRegistry(handler.Entries(svc)...)
	devices := server.New(registry, svc.Sessions, limiter, cfg.SocketTimeout)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}

	admin := &http.Server{
		Addr: cfg.AdminAddr,
		Handler: api.SetupRouter(api.Deps{
			Store:     store,
			Problems:  svc.Problems,
			Scheduler: scheduler,
			Limiter:   limiter,
			JWTSecret: []byte(cfg.JWTSecret),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET is empty, operator endpoints are disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	slog.Info("device handlers registered", "count", registry.Len())
	g.Go(func() error {
		return devices.Serve(gctx, ln)
	})

	g.Go(func() error {
		slog.Info("operator API started", "addr", cfg.AdminAddr)
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return admin.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}

func newPublisher(ctx context.Context, url string) (events.Publisher, func(), error) {
	if url == "" {
		slog.Info("REDIS_URL is empty, events are disabled")
		return events.NopPublisher{}, func() {}, nil
	}

	pub, err := events.NewRedisPublisher(url)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pub.Ping(pingCtx); err != nil {
		// publishing is best effort; the server keeps running without a broker
		slog.Warn("redis unreachable, events will be dropped", "error", err)
	}
	return pub, func() { _ = pub.Close() }, nil
}

func newScheduler(store *repository.Store, svc *service.Services, cfg *config.Config) *maintenance.Scheduler {
	deps := maintenance.Deps{
		Store:            store,
		Routes:           svc.Routes,
		CongestionMaxAge: cfg.CongestionMaxAge,
	}
	intervals := map[string]time.Duration{
		maintenance.TaskCleanUp:           cfg.Intervals.CleanUp,
		maintenance.TaskSetDirection:      cfg.Intervals.SetDirection,
		maintenance.TaskRefreshRoutes:     cfg.Intervals.RefreshRoutes,
		maintenance.TaskPriceUserData:     cfg.Intervals.PriceUserData,
		maintenance.TaskUpdateSpeed:       cfg.Intervals.UpdateSpeed,
		maintenance.TaskAggregateSpeed:    cfg.Intervals.AggregateSpeed,
		maintenance.TaskRecurringProblems: cfg.Intervals.RecurringProblems,
	}

	scheduler := maintenance.NewScheduler(store)
	for _, name := range maintenance.TaskNames() {
		scheduler.Add(maintenance.GetTask(name, deps), intervals[name])
	}
	return scheduler
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
