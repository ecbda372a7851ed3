package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/fitness-sync/internal/api"
	"alcyxob/fitness-sync/internal/config"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/store/sqlite"
	syncengine "alcyxob/fitness-sync/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("could not load config")
	}
	logger := newLogger(cfg.Log)
	logger.Info().Str("remote", cfg.Remote.BaseURL).Msg("starting fitness sync daemon")

	// --- Local record store ---
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("could not open local database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close local database")
		}
	}()
	stores := syncengine.Stores{
		Exercises: sqlite.NewExerciseStore(db),
		Workouts:  sqlite.NewWorkoutStore(db),
		Links:     sqlite.NewLinkStore(db),
		Sessions:  sqlite.NewSessionStore(db),
		Sets:      sqlite.NewSessionSetStore(db),
	}

	// --- Remote entity clients ---
	tokens := remote.NewBearerToken(cfg.Auth.Token)
	httpClient := &http.Client{Timeout: cfg.Remote.Timeout}
	clients := syncengine.Clients{
		Exercises: remote.NewClient[remote.Exercise](httpClient, cfg.Remote.BaseURL, "exercises", tokens, logger),
		Workouts:  remote.NewClient[remote.Workout](httpClient, cfg.Remote.BaseURL, "workouts", tokens, logger),
		Links:     remote.NewClient[remote.WorkoutExercise](httpClient, cfg.Remote.BaseURL, "workout-exercises", tokens, logger),
		Sessions:  remote.NewClient[remote.Session](httpClient, cfg.Remote.BaseURL, "sessions", tokens, logger),
		Sets:      remote.NewClient[remote.SessionSet](httpClient, cfg.Remote.BaseURL, "session-sets", tokens, logger),
	}

	// --- Sync engine, reconciler, scheduler ---
	engine := syncengine.NewEngine(stores, clients, logger)
	reconciler := syncengine.NewLinkReconciler(stores.Links, logger)
	scheduler := syncengine.NewScheduler(engine, tokens, syncengine.SchedulerConfig{
		Debounce:    cfg.Sync.Debounce,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffCap:  cfg.Sync.BackoffCap,
		MaxRetries:  cfg.Sync.MaxRetries,
	}, logger)
	defer scheduler.Close()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitor := syncengine.NewMonitor(cfg.Remote.BaseURL+"/healthz", cfg.Remote.ProbeInterval, cfg.Remote.Timeout, scheduler.NetworkChanged, logger)
	go monitor.Run(monitorCtx)

	// One immediate pass at application start, never debounced.
	scheduler.SyncNow()

	// --- Loopback API ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := api.NewHandler(stores, reconciler, scheduler, engine, logger)
	api.SetupRoutes(router, handler)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("loopback API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("loopback API failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	stopMonitor()
	scheduler.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced API shutdown")
	}
	logger.Info().Msg("sync daemon exiting")
}
