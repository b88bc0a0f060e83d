// Package main is the entrypoint for the eventinvite-go server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/eventinvite/eventinvite-go/internal/config"
	"github.com/eventinvite/eventinvite-go/internal/events"
	"github.com/eventinvite/eventinvite-go/internal/invitations"
	"github.com/eventinvite/eventinvite-go/internal/notify"
	"github.com/eventinvite/eventinvite-go/internal/platform/cache"
	"github.com/eventinvite/eventinvite-go/internal/qr"
	"github.com/eventinvite/eventinvite-go/internal/ratelimit"
	"github.com/eventinvite/eventinvite-go/internal/rsvp"
	"github.com/eventinvite/eventinvite-go/internal/server"
	"github.com/eventinvite/eventinvite-go/internal/store"

	// Register cache drivers
	_ "github.com/eventinvite/eventinvite-go/internal/platform/cache/loader"

	// Register store drivers
	_ "github.com/eventinvite/eventinvite-go/internal/store/memory"
	_ "github.com/eventinvite/eventinvite-go/internal/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	publicOrigin := flag.String("public-origin", "", "Public origin for invitation URLs (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: sqlite or memory (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the sqlite driver (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or valkey (overrides config)")
	adminUsername := flag.String("admin-username", "", "Admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Admin password (overrides config)")
	expiryDays := flag.String("expiry-days", "", "Invitation expiry in days (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:    listenAddr,
			PublicOrigin:  publicOrigin,
			StoreDriver:   storeDriver,
			DataDir:       dataDir,
			CacheDriver:   cacheDriver,
			AdminUsername: adminUsername,
			AdminPassword: adminPassword,
			ExpiryDays:    expiryDays,
			LoggingLevel:  loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("instance_id", uuid.NewString())
	slog.SetDefault(logger)

	logger.Info("starting",
		"mode", cfg.Mode,
		"store_driver", cfg.Store.Driver,
		"cache_driver", cfg.Cache.Driver,
		"available_store_drivers", store.AvailableDrivers(),
	)

	stores, err := store.New(&cfg.Store)
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	if err := stores.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	cacheInstance, err := cache.New(cfg.Cache.Driver, cfg.Cache.Options(), logger)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	defer cacheInstance.Close()

	transport := notify.NewSMTPTransport(cfg.Mail)
	dispatcher := notify.NewEmailDispatcher(transport, cfg.Mail, cfg.PublicOrigin, logger)

	eventMgr := events.New(stores, cacheInstance, logger)
	invMgr := invitations.New(stores, dispatcher, cacheInstance, cfg.Invitations.ExpiryDays, logger)
	rsvpMgr := rsvp.New(stores, invMgr, cacheInstance, logger)

	limiter := ratelimit.New(cacheInstance, &ratelimit.Config{
		RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit:public:",
	})

	srv, err := server.New(cfg, server.Deps{
		Events:      eventMgr,
		Invitations: invMgr,
		RSVPs:       rsvpMgr,
		QR:          qr.New(cfg.QR, logger),
		Limiter:     limiter,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background expiry sweeper. Interval 0 leaves sweeping to the admin
	// endpoint.
	if cfg.Invitations.SweepIntervalMinutes > 0 {
		interval := time.Duration(cfg.Invitations.SweepIntervalMinutes) * time.Minute
		go runSweeper(ctx, invMgr, interval, logger)
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// runSweeper expires overdue invitations on a fixed interval until ctx ends.
func runSweeper(ctx context.Context, mgr *invitations.Manager, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := mgr.SweepExpired(ctx); err != nil {
				logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}
