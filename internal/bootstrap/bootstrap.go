// Package bootstrap builds the components shared by the worker and manualsync
// commands from the loaded configuration.
package bootstrap

import (
	"context"
	"fmt"
	"strconv"

	"sportify/worker/internal/cache"
	"sportify/worker/internal/client"
	"sportify/worker/internal/config"
	"sportify/worker/internal/reconcile"
	"sportify/worker/internal/repository"
	"sportify/worker/internal/scoring"

	"github.com/rs/zerolog/log"
)

// DatabaseConfig maps the database settings
func DatabaseConfig(cfg *config.Config) repository.Config {
	return repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}
}

// CacheConfig maps the Redis settings
func CacheConfig(cfg *config.Config) cache.Config {
	return cache.Config{
		Host:     cfg.RedisHost,
		Port:     strconv.Itoa(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TeamCacheTTL(),
	}
}

func ClientOptions(cfg *config.Config) client.Options {
	return client.Options{
		MaxConcurrent: cfg.APIBurstLimit,
		MaxRetries:    cfg.APIMaxRetries,
	}
}

func ReconcileOptions(cfg *config.Config) reconcile.Options {
	return reconcile.Options{
		Concurrency:      cfg.ReconcileConcurrency,
		MaxFetchFailures: cfg.MaxFetchFailures,
	}
}

func ScoringPoints(cfg *config.Config) scoring.Points {
	return scoring.Points{
		Exact:   cfg.PointsExact,
		Outcome: cfg.PointsOutcome,
		Miss:    cfg.PointsMiss,
	}
}

// NewFeed creates the football-data.org client
func NewFeed(cfg *config.Config) *client.Client {
	return client.NewClient(cfg.FootballDataBaseURL, cfg.FootballDataAPIKey, cfg.FootballDataTimeout, ClientOptions(cfg))
}

// OpenDatabase connects to Postgres and checks the connection
func OpenDatabase(ctx context.Context, cfg *config.Config) (*repository.Database, error) {
	db, err := repository.NewDatabase(ctx, DatabaseConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := db.Health(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}
	return db, nil
}

// OpenTeamCache connects to Redis. It returns nil when Redis is unreachable;
// callers run without a team cache then.
func OpenTeamCache(cfg *config.Config) *cache.RedisCache {
	rc, err := cache.NewRedisCache(CacheConfig(cfg))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		return nil
	}
	log.Info().Msg("Redis cache connected")
	return rc
}

// NewReconciler wires the reconciler to the database and the optional team cache
func NewReconciler(cfg *config.Config, feed reconcile.FixtureFeed, db *repository.Database, rc *cache.RedisCache) *reconcile.Reconciler {
	var teamCache reconcile.TeamCache
	if rc != nil {
		teamCache = rc
	}
	return reconcile.New(feed, db.Matches, db.Teams, teamCache, ReconcileOptions(cfg))
}

func NewScorer(cfg *config.Config, db *repository.Database) *scoring.Service {
	return scoring.NewService(scoring.NewEngine(ScoringPoints(cfg)), db.Matches, db.Predictions)
}
