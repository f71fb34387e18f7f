package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go-charity-backoffice/internal/config"
	"go-charity-backoffice/internal/database"
	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/event"
	"go-charity-backoffice/internal/handler"
	"go-charity-backoffice/internal/metrics"
	"go-charity-backoffice/internal/middleware"
	"go-charity-backoffice/internal/repository"
	"go-charity-backoffice/internal/router"
	"go-charity-backoffice/internal/scheduler"
	"go-charity-backoffice/internal/service"
	"go-charity-backoffice/internal/websocket"
)

type App struct {
	cfg          *config.Config
	server       *http.Server
	hub          *websocket.Hub
	retention    *scheduler.RetentionScheduler
	cleanupFuncs []func()
}

type services struct {
	activity *service.ActivityService
	config   *service.ConfigService
	recycle  *service.RecycleService
	finance  *service.FinanceService
	members  *service.MemberService
	projects *service.ProjectService
}

func newServices(cfg *config.Config, store docstore.Store, bus event.Bus) services {
	activity := service.NewActivityService(repository.NewActivityRepository(store))
	configService := service.NewConfigService(store, bus)
	recycle := service.NewRecycleService(store, configService, activity, bus, service.RecycleOptions{
		RetentionDays: cfg.RetentionDays,
		DefaultActor:  cfg.DefaultActor,
	})

	return services{
		activity: activity,
		config:   configService,
		recycle:  recycle,
		finance:  service.NewFinanceService(store, configService, recycle, activity, bus),
		members:  service.NewMemberService(store, recycle, activity, bus),
		projects: service.NewProjectService(store, recycle, activity, bus),
	}
}

type openedStore struct {
	docstore.Store
	health func(ctx context.Context) error
	close  func()
}

// openStore returns the configured document store with its health check and
// a func releasing it.
func openStore(ctx context.Context, cfg *config.Config) (openedStore, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory document store, data is lost on restart")
		return openedStore{Store: docstore.NewMemory(), close: func() {}}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	})
	if err != nil {
		return openedStore{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return openedStore{}, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	slog.Info("database ready")
	return openedStore{Store: docstore.NewPostgres(db.Pool), health: db.Health, close: db.Close}, nil
}

func New(cfg *config.Config) (*App, error) {
	store, err := openStore(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	closeStore := store.close

	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	registry := metrics.NewRegistry()
	recorder, err := metrics.New(registry)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	bus := event.NewBus()
	hub := websocket.NewHub(bus, websocket.DefaultConfig())

	svc := newServices(cfg, store.Store, bus)
	svc.recycle.SetMetrics(recorder)

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Recycle:  handler.NewRecycleHandler(svc.recycle, hub),
		Finance:  handler.NewFinanceHandler(svc.finance),
		Members:  handler.NewMemberHandler(svc.members),
		Projects: handler.NewProjectHandler(svc.projects),
		Settings: handler.NewSettingsHandler(svc.config, svc.finance),
		Activity: handler.NewActivityHandler(svc.activity),
		Events:   hub.ServeWS,
		Metrics:  metrics.Handler(registry),
		Health:   store.health,
	})

	var retention *scheduler.RetentionScheduler
	if cfg.RetentionSweepSchedule != "" {
		retention = scheduler.NewRetentionScheduler(svc.recycle, cfg.RetentionSweepSchedule, cfg.RequestTimeout, slog.Default())
	} else {
		slog.Warn("retention sweep schedule is empty, held records are only swept on access")
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		cfg:          cfg,
		server:       server,
		hub:          hub,
		retention:    retention,
		cleanupFuncs: []func(){closeStore},
	}, nil
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	if a.retention != nil {
		if err := a.retention.Start(); err != nil {
			return fmt.Errorf("start retention scheduler: %w", err)
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr, "store", a.cfg.StoreDriver)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if a.retention != nil {
		select {
		case <-a.retention.Stop().Done():
		case <-shutdownCtx.Done():
			slog.Warn("retention sweep still running at shutdown")
		}
	}

	stopHub()
	shutdownErr := a.server.Shutdown(shutdownCtx)
	a.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, fn := range a.cleanupFuncs {
		fn()
	}
}

// Sweep runs the retention sweep once against the configured store.
func Sweep(ctx context.Context, cfg *config.Config) (int, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer store.close()

	svc := newServices(cfg, store.Store, event.NewBus())
	return svc.recycle.CleanupOldItems(ctx)
}

// ExitOnError logs err and exits with status 1.
func ExitOnError(msg string, err error) {
	if err == nil {
		return
	}
	slog.Error(msg, "error", err)
	os.Exit(1)
}
