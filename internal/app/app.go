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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"guild-overlay/internal/config"
	"guild-overlay/internal/database"
	"guild-overlay/internal/discord"
	"guild-overlay/internal/handler"
	"guild-overlay/internal/metrics"
	"guild-overlay/internal/middleware"
	"guild-overlay/internal/notify"
	"guild-overlay/internal/policy"
	"guild-overlay/internal/repository"
	"guild-overlay/internal/revocation"
	"guild-overlay/internal/router"
	"guild-overlay/internal/service"
	"guild-overlay/internal/websocket"
)

const (
	oauthStateTTL   = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	var cleanups []func()
	fail := func(err error) (*App, error) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, err
	}

	if cfg.MigrateOnStart {
		slog.Info("running database migrations")
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanups = append(cleanups, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return fail(fmt.Errorf("failed to ensure database schema: %w", err))
	}

	craftingRepo := repository.NewCraftingRepository(db.Pool)
	eventRepo := repository.NewEventRepository(db.Pool)
	rosterRepo := repository.NewRosterRepository(db.Pool)
	slog.Info("database ready")

	var denylist service.Denylist
	if cfg.RedisURL != "" {
		client, err := revocation.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		cleanups = append(cleanups, func() { closeRedis(client) })
		denylist = revocation.NewStore(client, "")
		slog.Info("credential revocation enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:          cfg.JWTSecret,
		Algorithm:       cfg.JWTAlgorithm,
		Issuer:          cfg.JWTIssuer,
		Lifetime:        cfg.JWTExpire,
		AllowedGuildIDs: cfg.DiscordAllowedGuildIDs,
	}, denylist)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize token service: %w", err))
	}

	states, err := service.NewStateSigner(cfg.JWTSecret, oauthStateTTL, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize state signer: %w", err))
	}

	discordClient := discord.NewClient(discord.Config{
		ClientID:        cfg.DiscordClientID,
		ClientSecret:    cfg.DiscordClientSecret,
		RedirectURI:     cfg.DiscordRedirectURI,
		AllowedGuildIDs: cfg.DiscordAllowedGuildIDs,
		APIBase:         cfg.DiscordAPIBase,
		Timeout:         cfg.DiscordTimeout,
	})

	bus := notify.NewBus()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := websocket.NewHub(bus, cfg.CORSOrigins)
	go hub.Run(hubCtx)
	cleanups = append(cleanups, hubCancel)

	authService := service.NewAuthService(discordClient, policy.NewTable(cfg.DiscordEventRoleIDs), tokens, states, collector, cfg.AlertLeadMinutes())
	craftingService := service.NewCraftingService(craftingRepo, bus, collector)
	eventService := service.NewEventService(eventRepo, bus, collector, cfg.DiscordEventRoleIDs)
	alertService := service.NewAlertService(eventRepo, cfg.AlertLead)
	overlayService := service.NewOverlayService(rosterRepo, eventRepo)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(tokens), router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Crafting: handler.NewCraftingHandler(craftingService),
		Events:   handler.NewEventHandler(eventService, alertService),
		Overlay:  handler.NewOverlayHandler(overlayService),
		Health:   handler.NewHealthHandler(db),
		Stream:   hub,
		Metrics:  metrics.Handler(registry),
	}, collector)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		cleanupFuncs: cleanups,
	}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

// cleanup releases resources in reverse order of acquisition.
func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Warn("failed to close redis client", "error", err)
	}
}
