package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/justbri/moviepicker/config"
	"github.com/justbri/moviepicker/database"
	"github.com/justbri/moviepicker/handlers"
	"github.com/justbri/moviepicker/httpclient"
	"github.com/justbri/moviepicker/httpserver"
	"github.com/justbri/moviepicker/logger"
	"github.com/justbri/moviepicker/services"
	"github.com/justbri/moviepicker/store"
)

func main() {
	if err := run(); err != nil {
		logger.Error("MoviePicker stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Server.Environment, cfg.Server.Debug)
	logger.Info("Initializing MoviePicker components...",
		"environment", cfg.Server.Environment,
		"debug", cfg.Server.Debug,
		"store_driver", cfg.Database.Driver)
	if cfg.OMDb.APIKey == "" {
		logger.Warn("OMDB_API_KEY is not set, adding movies will fail")
	}
	if cfg.YouTube.APIKey == "" {
		logger.Warn("YOUTUBE_API_KEY is not set, trailer search will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := database.SeedAdminUser(ctx, cfg.Admin, users); err != nil {
		return err
	}

	client := httpclient.DefaultClient
	commands := services.NewCommands(
		services.NewOMDbClient(cfg.OMDb, client),
		services.NewYouTubeClient(cfg.YouTube, client),
		st,
	)
	h := handlers.New(cfg, st, commands, users, services.NewSessionManager(cfg))

	serverCfg := httpserver.DefaultConfig(":" + cfg.Server.Port)
	// Live sessions outlive a single write; each websocket write sets its own deadline.
	serverCfg.WriteTimeout = 0
	logger.Debug("HTTP server configured",
		"read_timeout", serverCfg.ReadTimeout,
		"idle_timeout", serverCfg.IdleTimeout,
		"page_size", cfg.View.PageSize)

	hook := (&sutureslog.Handler{Logger: logger.Default()}).MustHook()
	sup := suture.New("moviepicker", suture.Spec{
		EventHook: hook,
		Timeout:   serverCfg.ShutdownTimeout + 5*time.Second,
	})
	sup.Add(httpserver.NewService(serverCfg, h.Routes()))

	logger.Info("MoviePicker is starting", "addr", serverCfg.Addr)
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}
	logger.Info("MoviePicker stopped cleanly")
	return nil
}

// openStore picks the collection store and account store for the configured driver.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, services.Users, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(), services.NewMemoryUsers(), func() {}, nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return store.NewPostgresStore(pool), services.NewPostgresUsers(pool), pool.Close, nil
}
