package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/player-console/internal/boards"
	"github.com/player-console/internal/config"
	"github.com/player-console/internal/console"
	"github.com/player-console/internal/credentials"
	"github.com/player-console/internal/directory"
	"github.com/player-console/internal/handler"
	"github.com/player-console/internal/history"
	"github.com/player-console/internal/kafka"
	"github.com/player-console/internal/notify"
	"github.com/player-console/internal/postgres"
	"github.com/player-console/internal/profile"
	"github.com/player-console/internal/quiz"
	"github.com/player-console/internal/redis"
	"github.com/player-console/internal/upstream"
	"github.com/player-console/internal/websocket"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credential persistence
	var backend credentials.Backend
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory credential store; credentials will not survive a restart")
		backend = credentials.NewMemoryBackend(nil)
	default:
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		settings, err := redis.NewSettingsStore(&cfg.Redis, cfg.Store.Namespace, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer settings.Close()
		logger.Info("connected to Redis")
		backend = settings
	}

	store, err := credentials.Open(ctx, backend, logger)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	// Action journal
	var (
		sinks   console.Sinks
		journal handler.Journal
	)
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		pg, err := postgres.NewJournal(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := pg.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, pg)
		journal = pg
	}

	// Activity stream
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka publisher", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		publisher, err := kafka.NewPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, continuing without activity stream", "error", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	}

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("websocket hub initialized")

	notifier := notify.Multi{notify.NewLogNotifier(logger), wsHub}
	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.RequestTimeout, logger)

	session := console.New(console.Deps{
		Client:       client,
		Store:        store,
		Directory:    directory.New(client, store, notifier, logger),
		Profiles:     profile.NewAggregator(client, logger),
		History:      history.NewAggregator(client, notifier, logger),
		Boards:       boards.NewSet(client, &cfg.Upstream, notifier, logger),
		Quiz:         quiz.NewEngine(client, notifier, logger),
		Notifier:     notifier,
		Sink:         sinks,
		OnProfile:    wsHub.BroadcastProfile,
		PollInterval: cfg.Upstream.PollInterval,
	}, logger)
	defer session.Close()
	wsHub.SetPlayers(session)

	// Resume where the operator left off
	if store.Get().Complete() {
		session.LoadDirectory(ctx)
		if err := session.Restore(ctx); err != nil {
			logger.Warn("failed to restore last player", "player_ref", store.LastPlayer(), "error", err)
		}
	}

	httpHandler := handler.NewHandler(session, journal, wsHub, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "upstream", cfg.Upstream.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}
	wsHub.Stop()

	logger.Info("server stopped")
}
