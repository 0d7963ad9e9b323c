package di

import (
	"fmt"
	"strings"

	"ArbPull/internal/domain/repository"
	"ArbPull/internal/handler/api"
	"ArbPull/internal/handler/ws"
	"ArbPull/internal/service/normalize"
	"ArbPull/internal/service/oddsapi"
	"ArbPull/internal/service/priority"
	"ArbPull/internal/service/quota"
	"ArbPull/internal/services/arbitrage"
	"ArbPull/internal/usecase"
	pkgcache "ArbPull/pkg/cache"
	"ArbPull/pkg/config"
	pkgkafka "ArbPull/pkg/kafka"
	applogger "ArbPull/pkg/logger"
	"ArbPull/pkg/metrics"
	"ArbPull/pkg/server"
)

// ProvideLogger creates the application logger. Production gets JSON,
// everything else console.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	level := "debug"
	if cfg.Environment == "production" {
		format = "json"
		level = "info"
	}
	return applogger.New(&applogger.Config{
		Level:  level,
		Format: format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache creates the cache service. With Redis enabled it layers
// memory over Redis, otherwise memory only.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}

	redisCache, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
		pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}

	return pkgcache.NewLayeredCache(redisCache), nil
}

// ProvideCacheClasses maps configured TTLs to cache tiers.
func ProvideCacheClasses(cfg *config.Config) pkgcache.Classes {
	return pkgcache.Classes{
		Metadata: cfg.Cache.MetadataTTL,
		GameList: cfg.Cache.GameListTTL,
		LiveOdds: cfg.Cache.LiveOddsTTL,
	}
}

// ProvideOddsProvider creates the odds API client.
func ProvideOddsProvider(cfg *config.Config, logger *applogger.Logger) (repository.OddsProvider, error) {
	return oddsapi.NewClient(
		cfg.OddsAPI.APIKey,
		logger,
		oddsapi.WithBaseURL(cfg.OddsAPI.BaseURL),
		oddsapi.WithRegions(strings.Join(cfg.OddsAPI.Regions, ",")),
		oddsapi.WithMarkets(strings.Join(cfg.OddsAPI.Markets, ",")),
		oddsapi.WithTimeout(cfg.OddsAPI.RequestTimeout),
		oddsapi.WithRetry(cfg.OddsAPI.MaxRetries, cfg.OddsAPI.RetryDelay),
	)
}

// ProvideGovernor creates the quota governor.
func ProvideGovernor(cfg *config.Config, logger *applogger.Logger, m repository.Metrics) *quota.Governor {
	return quota.NewGovernor(cfg.Quota.MaxRequests, cfg.Quota.Window, logger, m)
}

// ProvideNormalizer creates the odds normalizer.
func ProvideNormalizer(logger *applogger.Logger) *normalize.Normalizer {
	return normalize.New(logger)
}

// ProvideCoordinator creates the request coordinator.
func ProvideCoordinator(
	provider repository.OddsProvider,
	cacheSvc pkgcache.Service,
	classes pkgcache.Classes,
	governor *quota.Governor,
	normalizer *normalize.Normalizer,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.Coordinator {
	return usecase.NewCoordinator(
		provider, cacheSvc, classes, governor, normalizer, m, logger,
		strings.Join(cfg.OddsAPI.Regions, ","),
		strings.Join(cfg.OddsAPI.Markets, ","),
	)
}

// ProvideEngine creates the arbitrage engine.
func ProvideEngine(cfg *config.Config) *arbitrage.Engine {
	return arbitrage.NewEngine(cfg.Scan.TotalStake, cfg.Scan.MinProfitMargin)
}

// ProvideDispatcher creates the calculation worker pool.
func ProvideDispatcher(engine *arbitrage.Engine, m repository.Metrics, logger *applogger.Logger, cfg *config.Config) *usecase.Dispatcher {
	return usecase.NewDispatcher(engine, m, logger,
		usecase.WithWorkers(cfg.Pool.Workers),
		usecase.WithQueueSize(cfg.Pool.QueueSize),
		usecase.WithUnitTimeout(cfg.Pool.UnitTimeout),
	)
}

// ProvideRanker creates the sports priority ranker.
func ProvideRanker(cfg *config.Config) *priority.Ranker {
	return priority.NewRanker(cfg.Priority.Window, cfg.Priority.Base)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher wraps the producer, or passes nil through when Kafka
// publishing is disabled.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config, logger *applogger.Logger) repository.Publisher {
	if producer == nil {
		return nil
	}
	return usecase.NewKafkaPublisher(producer, cfg.Kafka.Topic, logger)
}

// ProvideHub creates the WebSocket broadcast hub.
func ProvideHub(logger *applogger.Logger) *ws.Hub {
	return ws.NewHub(logger)
}

// ProvideScanner creates the scan orchestrator.
func ProvideScanner(
	coordinator *usecase.Coordinator,
	dispatcher *usecase.Dispatcher,
	ranker *priority.Ranker,
	publisher repository.Publisher,
	hub *ws.Hub,
	cacheSvc pkgcache.Service,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.Scanner {
	return usecase.NewScanner(coordinator, dispatcher, ranker, publisher, hub, cacheSvc, m, logger, usecase.ScanConfig{
		Sports:             cfg.Sports,
		Interval:           cfg.Scan.Interval,
		MaxConcurrency:     cfg.Scan.MaxConcurrency,
		EarlyExitThreshold: cfg.Scan.EarlyExitThreshold,
		TotalStake:         cfg.Scan.TotalStake,
		MinProfitMargin:    cfg.Scan.MinProfitMargin,
		FetchTimeout:       cfg.Scan.FetchTimeout,
		BatchTimeout:       cfg.Pool.BatchTimeout,
	})
}

// ProvideAPIHandler creates the REST handler.
func ProvideAPIHandler(logger *applogger.Logger, scanner *usecase.Scanner, coordinator *usecase.Coordinator, cacheSvc pkgcache.Service) *api.ArbitrageHandler {
	return api.NewArbitrageHandler(logger, scanner, coordinator, cacheSvc)
}

// ProvideWSHandler creates the WebSocket handler.
func ProvideWSHandler(hub *ws.Hub, logger *applogger.Logger) *ws.Handler {
	return ws.NewHandler(hub, logger)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	cacheSvc pkgcache.Service,
	dispatcher *usecase.Dispatcher,
	scanner *usecase.Scanner,
	hub *ws.Hub,
	publisher repository.Publisher,
	apiHandler *api.ArbitrageHandler,
	wsHandler *ws.Handler,
) *server.App {
	return server.New(cfg, logger, cacheSvc, dispatcher, scanner, hub, publisher, apiHandler, wsHandler)
}
