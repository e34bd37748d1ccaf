// Package main is the entry point for the Tripwit API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/tripwit/internal/assist"
	"github.com/pkordes/tripwit/internal/cloudsync"
	"github.com/pkordes/tripwit/internal/config"
	"github.com/pkordes/tripwit/internal/domain"
	"github.com/pkordes/tripwit/internal/events"
	"github.com/pkordes/tripwit/internal/geo"
	"github.com/pkordes/tripwit/internal/graph"
	"github.com/pkordes/tripwit/internal/handler"
	"github.com/pkordes/tripwit/internal/itinerary"
	"github.com/pkordes/tripwit/internal/middleware"
	"github.com/pkordes/tripwit/internal/mq"
	"github.com/pkordes/tripwit/internal/repo"
	"github.com/pkordes/tripwit/internal/service"
	"github.com/pkordes/tripwit/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("device", cfg.DeviceID)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if err := migrate(ctx, pool); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	// --- Sync -------------------------------------------------------------
	// The Manager commits through history; when a broker is configured every
	// commit is also announced so other devices reconcile right away.
	history := repo.NewHistoryStore(pool)
	var committer service.Committer = history
	var notifications <-chan struct{}
	if cfg.AMQPURL != "" {
		conn, err := mq.Dial(cfg.AMQPURL)
		if err != nil {
			slog.Error("failed to connect to message broker", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		committer = mq.NewNotifyingCommitter(history, mq.NewPublisher(conn.Channel()), logger)
		notifications, err = mq.NewConsumer(conn.Channel(), cfg.DeviceID, logger).Notifications(ctx)
		if err != nil {
			slog.Error("failed to subscribe to change notifications", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("AMQP_URL not set; reconciling on the poll interval only")
	}

	bus := events.NewBus()
	bus.Subscribe(func(ev domain.ChangeEvent) {
		if ev.Remote {
			logger.Debug("remote change applied", "trip_id", ev.TripID, "kind", ev.Ref.Kind, "op", ev.Op)
		}
	})

	g := graph.New(domain.PrivateStore(cfg.PrivateStore, cfg.UserID))
	controller := cloudsync.NewController(g, cloudsync.Stores{
		History:   history,
		Cursors:   repo.NewCursorStore(pool),
		Shares:    repo.NewShareStore(pool),
		Snapshots: repo.NewRecordStore(pool),
	}, cloudsync.Config{
		DeviceID:     cfg.DeviceID,
		UserID:       cfg.UserID,
		PrivateStore: cfg.PrivateStore,
		SharedStore:  cfg.SharedStore,
		Retention:    cfg.HistoryRetention,
		PollInterval: cfg.SyncPollInterval,
		Events:       bus,
		Logger:       logger,
	})
	manager := service.NewManager(g, committer, cfg.DeviceID, service.Options{
		Guard:  controller,
		Events: bus,
		Logger: logger,
	})
	controller.SetRelocator(manager)

	if err := controller.Load(ctx); err != nil {
		slog.Error("failed to load trips", "error", err)
		os.Exit(1)
	}
	slog.Info("trips loaded", "count", len(manager.Trips()))

	go func() {
		if err := controller.Run(ctx, notifications); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("sync loop stopped", "error", err)
		}
	}()

	// --- Assist and geocoding ----------------------------------------------
	var suggester itinerary.Suggester
	var locator service.Locator
	if cfg.GeminiAPIKey != "" {
		gemini, err := assist.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		client := assist.NewClient(gemini, logger)
		suggester = client

		var geocoder geo.Geocoder = client
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()
			geocoder = geo.NewCachedGeocoder(client, rdb, geo.DefaultCacheTTL, logger)
		}
		locator = geo.NewBatchResolver(geocoder, cfg.GeocodeInterval, logger)
	} else {
		slog.Info("GEMINI_API_KEY not set; using heuristic parsing and no geocoding")
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body limit.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	server := handler.NewServer(handler.Deps{
		Trips:     manager,
		Stops:     manager,
		Plans:     manager,
		Transfer:  manager,
		Sharing:   controller,
		Itinerary: itinerary.NewParser(suggester, logger),
		Locator:   locator,
	})
	server.Mount(r)

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	// Geocoding a large trip is rate limited, so writes get more headroom.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	// Changes whose save failed are retried once more before exit.
	if err := manager.Save(shutdownCtx); err != nil {
		slog.Error("unsaved changes lost on shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// migrate applies every pending migration from the embedded FS.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	results, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	for _, res := range results {
		slog.Info("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	return nil
}
