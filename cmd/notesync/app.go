package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/config"
	"github.com/xxxsen/notesync/internal/db"
	"github.com/xxxsen/notesync/internal/handler"
	"github.com/xxxsen/notesync/internal/job"
	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/middleware"
	"github.com/xxxsen/notesync/internal/native"
	"github.com/xxxsen/notesync/internal/notify"
	"github.com/xxxsen/notesync/internal/schedule"
	"github.com/xxxsen/notesync/internal/service"
	"github.com/xxxsen/notesync/internal/toolbox"
	"github.com/xxxsen/notesync/internal/wiki"
)

type app struct {
	db          *sql.DB
	scheduler   *schedule.CronScheduler
	tracker     *service.ProgressTracker
	settings    *service.SettingsService
	coordinator *service.Coordinator
	transfer    *service.TransferService
	sync        *service.SyncService
	install     *service.InstallService
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{}
	if cfg.Database.Enabled() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
	}

	var kv kvstore.Store
	switch cfg.KVStore.Type {
	case "memory":
		kv = kvstore.NewMemory()
	default:
		kv = kvstore.NewPostgres(a.db)
	}
	pages, err := wiki.New(cfg.Wiki, a.db)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init wiki store: %w", err)
	}
	notifier, err := notify.New(cfg.Notifier)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init notifier: %w", err)
	}
	location, err := time.LoadLocation(cfg.Transfer.Timezone)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	legacy := toolbox.NewClient(pages, cfg.Cache.Size, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	api := native.NewClient(cfg.Native)

	a.scheduler = schedule.NewCronScheduler()
	queue := service.NewWorkQueue(kv)
	a.tracker = service.NewProgressTracker(kv, pages, cfg.Community)
	mapping := service.NewMappingStore(kv)
	phases := service.NewPhaseStore(kv)
	a.settings = service.NewSettingsService(kv, a.tracker)
	reconciler := service.NewReconciler(api, a.tracker, location)
	a.coordinator = service.NewCoordinator(service.CoordinatorConfig{
		Community: cfg.Community,
		BatchSize: cfg.Transfer.BatchSize,
		Cron:      cfg.Transfer.Cron,
	}, queue, a.tracker, mapping, phases, legacy, reconciler, a.scheduler, notifier, a.settings)
	a.transfer = service.NewTransferService(cfg.Community, queue, a.tracker, mapping, phases, legacy, a.coordinator, a.settings)
	a.sync = service.NewSyncService(service.SyncConfig{
		Community:   cfg.Community,
		AppUsername: cfg.AppUsername,
		Staleness:   time.Duration(cfg.Transfer.StalenessSeconds) * time.Second,
		DedupTTL:    time.Duration(cfg.Transfer.DedupTTLHours) * time.Hour,
	}, kv, api, legacy, a.tracker, mapping, a.settings, reconciler)
	a.install = service.NewInstallService(cfg.Community, cfg.Transfer.WikiFlushCron, queue, a.tracker, mapping, legacy,
		a.scheduler, a.coordinator)

	a.scheduler.Register(job.NewTransferUsersJob(a.coordinator))
	a.scheduler.Register(job.NewUpdateWikiPageJob(a.install))
	a.scheduler.Register(job.NewKVCleanupJob(a.db))
	return a, nil
}

func runServer(cfg *config.Config) error {
	logger := logutil.GetLogger(context.Background())
	logger.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("community", cfg.Community),
		zap.String("kv_store", cfg.KVStore.Type),
		zap.String("wiki_store", cfg.Wiki.Type),
	)
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// jobs do not survive a restart; rebuild them from persisted state
	if err := a.install.HandleInstallOrUpgrade(ctx); err != nil {
		return fmt.Errorf("restore jobs: %w", err)
	}
	if a.db != nil && cfg.KVStore.Type == "postgres" {
		if _, err := a.scheduler.RunJob(ctx, schedule.JobRequest{Name: job.JobKVCleanup, Cron: "*/15 * * * *"}); err != nil {
			return fmt.Errorf("schedule kv cleanup: %w", err)
		}
	}
	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	deps := handler.RouterDeps{
		Transfer:   handler.NewTransferHandler(a.transfer),
		Settings:   handler.NewSettingsHandler(a.settings),
		Events:     handler.NewEventHandler(a.install, a.sync),
		Community:  cfg.Community,
		JWTSecret:  []byte(cfg.JWTSecret),
		RateWindow: 2 * time.Second,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}
