package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportify/worker/internal/bootstrap"
	"sportify/worker/internal/cache"
	"sportify/worker/internal/config"
	"sportify/worker/internal/metrics"
	"sportify/worker/internal/models"
	"sportify/worker/internal/notify"
	"sportify/worker/internal/scheduler"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting Sportify prediction worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	// Initialize football-data.org client
	feed := bootstrap.NewFeed(cfg)
	log.Info().Str("base_url", cfg.FootballDataBaseURL).Msg("Fixture feed client initialized")

	// Initialize database connection
	db, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize Redis team cache; nil when Redis is down
	redisCache := bootstrap.OpenTeamCache(cfg)
	if redisCache != nil {
		defer redisCache.Close()
	}

	// Start metrics HTTP server
	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort, db, redisCache)
	}

	// Update system uptime and pool metrics
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
				db.ReportPoolStats()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Register tracked tournaments
	if err := seedTournaments(ctx, cfg.TournamentsFile, db.Tournaments); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed tournaments")
	}

	reconciler := bootstrap.NewReconciler(cfg, feed, db, redisCache)
	scorer := bootstrap.NewScorer(cfg, db)

	var dispatcher *notify.Dispatcher
	if cfg.TelegramEnabled {
		sender, err := notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram notifier")
		}
		dispatcher = notify.NewDispatcher(db.Matches, sender)
	} else {
		log.Info().Msg("Notifications disabled, finished matches stay pending")
	}

	// Create and start scheduler
	sched := scheduler.NewScheduler(cfg, db.Tournaments, reconciler, scorer, dispatcher)
	if redisCache != nil {
		sched.SetTeamCache(redisCache)
	}

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Run initial sync if enabled
	if cfg.InitialSyncEnabled {
		log.Info().Msg("Running initial sync...")
		if err := runInitialSync(ctx, sched); err != nil {
			log.Error().Err(err).Msg("Initial sync failed, continuing anyway...")
		} else {
			log.Info().Msg("Initial sync completed successfully")
		}
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	log.Info().Msg("Shutting down scheduler...")
	sched.Stop()

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

type tournamentUpserter interface {
	UpsertByRemoteID(ctx context.Context, t *models.Tournament) error
}

// seedTournaments registers the tournaments listed in the seeds file
func seedTournaments(ctx context.Context, path string, tournaments tournamentUpserter) error {
	seeds, err := config.LoadTournamentSeeds(path)
	if err != nil {
		return err
	}

	for _, seed := range seeds {
		t := &models.Tournament{
			Name:     seed.Name,
			RemoteID: sql.NullInt64{Int64: int64(seed.RemoteID), Valid: true},
		}
		if err := tournaments.UpsertByRemoteID(ctx, t); err != nil {
			return fmt.Errorf("tournament %q: %w", seed.Name, err)
		}
		log.Info().
			Int("tournament_id", t.ID).
			Int("remote_id", seed.RemoteID).
			Str("name", seed.Name).
			Msg("Tournament tracked")
	}

	return nil
}

// runInitialSync refreshes teams once, then runs a full fixture cycle
func runInitialSync(ctx context.Context, sched *scheduler.Scheduler) error {
	if err := sched.RefreshTeams(ctx); err != nil {
		log.Warn().Err(err).Msg("Team refresh failed, fixtures will create missing teams")
	}
	return sched.RunCycle(ctx)
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port int, db healthChecker, redisCache *cache.RedisCache) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "database": "ok"}
		code := http.StatusOK

		if err := db.Health(ctx); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}

		// The worker runs without Redis, so it only degrades
		switch {
		case redisCache == nil:
			status["cache"] = "disabled"
		case redisCache.Health(ctx) != nil:
			status["cache"] = "unavailable"
		default:
			status["cache"] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})

	addr := fmt.Sprintf(":%d", port)
	log.Info().Int("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
