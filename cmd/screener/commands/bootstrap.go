package commands

import (
	"context"
	"fmt"

	"github.com/wonny/screener/internal/commentary"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/external/llm"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/database"
	"github.com/wonny/screener/pkg/httputil"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/redis"
)

// loadConfig loads env config and applies global flags
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

// loadReference reads the reference store from Postgres when DATABASE_URL is
// set, otherwise from the configured CSV files
func loadReference(ctx context.Context, cfg *config.Config, log *logger.Logger) (*refdata.Store, func(), error) {
	var source contracts.ReferenceSource
	cleanup := func() {}

	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect to database: %w", err)
		}
		cleanup = db.Close
		source = refdata.NewRepository(db.Pool, cfg.Data.ReturnsMetric, cfg.Data.UniverseName)
		log.Info("Loading reference data from database")
	} else {
		source = &refdata.FileSource{
			ReturnsPath:     cfg.Data.ReturnsPath,
			UniversePath:    cfg.Data.UniversePath,
			UniverseName:    cfg.Data.UniverseName,
			FundamentalsDir: cfg.Data.FundamentalsDir,
		}
		log.WithField("returns", cfg.Data.ReturnsPath).Info("Loading reference data from files")
	}

	store, err := refdata.Load(ctx, source, log)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return store, cleanup, nil
}

// newAnalyzer wires the completion client: httputil (retry) → optional Redis
// rate limit → llm client (rate + breaker) → optional Redis response cache.
// Returns a nil analyzer when no API key is configured.
func newAnalyzer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*commentary.Analyzer, func(), error) {
	cleanup := func() {}
	if !cfg.LLM.Enabled() {
		log.Info("LLM_API_KEY not set, commentary disabled")
		return nil, cleanup, nil
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connect to redis: %w", err)
	}
	cleanup = func() { _ = rdb.Close() }

	httpClient := httputil.New(cfg.LLM.Timeout, log)
	if rdb.Enabled() {
		httpClient.WithRateLimiter(redis.NewRateLimiter(rdb, "screener"), redis.LLMRateLimit(cfg.LLM.RequestsPerSec))
	}

	client := llm.NewClient(cfg.LLM, httpClient, log)

	var completer contracts.Completer = client
	if rdb.Enabled() {
		completer = commentary.NewCachedCompleter(client, redis.NewCache(rdb, "screener"), client.Model(), cfg.LLM.CacheTTL, log)
	}

	log.WithFields(map[string]interface{}{
		"model": client.Model(),
		"redis": rdb.Enabled(),
	}).Info("Commentary enabled")

	return commentary.NewAnalyzer(completer, log), cleanup, nil
}
