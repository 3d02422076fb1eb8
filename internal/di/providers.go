package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"LevelWatch/internal/domain/repository"
	"LevelWatch/internal/engine"
	"LevelWatch/internal/handler/api"
	mid "LevelWatch/internal/middleware"
	internalrepo "LevelWatch/internal/repository"
	"LevelWatch/internal/service/alpaca"
	icache "LevelWatch/internal/service/cache"
	"LevelWatch/internal/service/ratelimit"
	"LevelWatch/internal/usecase"
	pkgcache "LevelWatch/pkg/cache"
	pkgch "LevelWatch/pkg/clickhouse"
	"LevelWatch/pkg/config"
	pkgkafka "LevelWatch/pkg/kafka"
	applogger "LevelWatch/pkg/logger"
	"LevelWatch/pkg/metrics"
	pkgqueue "LevelWatch/pkg/queue"
	"LevelWatch/pkg/server"
)

// ProvideLogger creates the application logger from the environment.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Environment == "production" {
		format = "json"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the minute-bar archive and ensures its schema.
func ProvideBarStore(chClient *pkgch.Client, l *applogger.Logger) (repository.BarStore, error) {
	store := internalrepo.NewCHBarStore(chClient)
	if cs, ok := store.(*internalrepo.CHBarStore); ok {
		cs.SetLogger(l)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("bar store schema: %w", err)
	}
	return store, nil
}

// ProvideRunStore creates the backtest run store and ensures its schema.
func ProvideRunStore(chClient *pkgch.Client, l *applogger.Logger) (repository.RunStore, error) {
	store := internalrepo.NewCHRunStore(chClient)
	if cs, ok := store.(*internalrepo.CHRunStore); ok {
		cs.SetLogger(l)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("run store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarPublisher creates the Kafka bar publisher.
func ProvideBarPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.Topic)
}

// ProvideEventPublisher creates the Kafka alert/outcome publisher.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.AlertTopic, cfg.Kafka.OutcomeTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaBarsHandler registers the handler for the bars topic.
func ProvideKafkaBarsHandler(store repository.BarStore, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideMarketStream creates the Alpaca WebSocket stream over the watch
// set plus benchmarks.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	return alpaca.NewStream(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.StreamURL,
		watchSet(cfg),
		cfg.Alpaca.ReconnectDelay,
		cfg.Alpaca.PingInterval,
		l,
	)
}

// ProvideHistory creates the Alpaca REST history client.
func ProvideHistory(cfg *config.Config, l *applogger.Logger) repository.HistoricalData {
	return alpaca.NewHistory(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataBaseURL,
		cfg.Alpaca.Feed,
		cfg.Alpaca.RateLimit,
		ratelimit.New(),
		l,
	)
}

// ProvideEngine creates the strategy engine from configured parameters.
func ProvideEngine(cfg *config.Config) *engine.Engine {
	p := engine.DefaultParams()
	if cfg.Strategy.TimeframeMin > 0 {
		p.TimeframeMin = cfg.Strategy.TimeframeMin
	}
	if cfg.Strategy.RetestTolerancePct > 0 {
		p.RetestTolerancePct = cfg.Strategy.RetestTolerancePct
	}
	if cfg.Strategy.RSWindowBars > 0 {
		p.RSWindowBars = cfg.Strategy.RSWindowBars
	}
	if cfg.Strategy.BreadthBullPct > 0 {
		p.BreadthBullPct = cfg.Strategy.BreadthBullPct
	}
	if cfg.Strategy.BreadthBearPct > 0 {
		p.BreadthBearPct = cfg.Strategy.BreadthBearPct
	}
	if len(cfg.Strategy.Benchmarks) > 0 {
		p.Benchmarks = cfg.Strategy.Benchmarks
	}
	p.WatchSet = cfg.Strategy.Symbols
	return engine.New(p)
}

// ProvideAlertHistory creates the in-memory alert ring buffer.
func ProvideAlertHistory(cfg *config.Config) *usecase.AlertHistory {
	return usecase.NewAlertHistory(cfg.Strategy.AlertHistory)
}

// ProvideBarProcessor creates the bar processor use case.
func ProvideBarProcessor(
	pub repository.Publisher,
	store repository.BarStore,
	events repository.EventPublisher,
	eng *engine.Engine,
	alerts *usecase.AlertHistory,
	metrics repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.BarProcessor {
	return usecase.NewBarProcessor(pub, store, events, eng, alerts, metrics, l, cfg.Backend.Type)
}

// ProvideBarCollector creates the bar collector use case.
func ProvideBarCollector(
	stream repository.MarketStream,
	processor *usecase.BarProcessor,
	metrics repository.Metrics,
) *usecase.BarCollector {
	pipe := mid.NewBarPipeline(processor, metrics, mid.WithBufferSize(2000))
	return usecase.NewBarCollector(stream, processor, metrics, pipe)
}

// ProvideRedisClient creates the Redis client backing the backtest queue.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Backtest.Redis.Addr,
		Password: cfg.Backtest.Redis.Password,
		DB:       cfg.Backtest.Redis.DB,
	})
}

// ProvideCoverageLocks creates the Redis-backed lock service the backtest
// workers use to serialize history backfills. A nil return degrades the
// runner to unlocked operation.
func ProvideCoverageLocks(cfg *config.Config, l *applogger.Logger) pkgcache.Service {
	host, port := splitHostPort(cfg.Backtest.Redis.Addr)
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Backtest.Redis.Password),
		pkgcache.WithRedisDB(cfg.Backtest.Redis.DB),
	)
	if err != nil {
		l.Warn("coverage lock cache unavailable", applogger.Error(err))
		return nil
	}
	return c
}

// ProvideQueuePublisher creates the publisher side of the backtest queue.
func ProvideQueuePublisher(l *applogger.Logger, rdb *redis.Client, cfg *config.Config) pkgqueue.QueueService {
	opts := []pkgqueue.RedisQueueOption{}
	if cfg.Backtest.QueueName != "" {
		opts = append(opts, pkgqueue.WithKeyPrefix(cfg.Backtest.QueueName))
	}
	return pkgqueue.NewRedisPublisher(l, rdb, opts...)
}

// ProvideBacktestRunner creates the run lifecycle use case.
func ProvideBacktestRunner(
	runs repository.RunStore,
	bars repository.BarStore,
	history repository.HistoricalData,
	queue pkgqueue.QueueService,
	locks pkgcache.Service,
	metrics repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.BacktestRunner {
	return usecase.NewBacktestRunner(runs, bars, history, queue, locks, metrics, l, usecase.BacktestConfig{
		RepeatLookback:     cfg.Backtest.RepeatLookback,
		RepeatTolerancePct: cfg.Backtest.RepeatTolerancePct,
		RepeatMinTouches:   cfg.Backtest.RepeatMinTouches,
		RepeatMaxLevels:    cfg.Backtest.RepeatMaxLevels,
		TolerancePct:       cfg.Strategy.RetestTolerancePct,
	})
}

// ProvideSnapshotUseCase creates the cached snapshot reader.
func ProvideSnapshotUseCase(eng *engine.Engine, cfg *config.Config) *usecase.SnapshotUseCase {
	return usecase.NewSnapshotUseCase(eng, responseCache(cfg), cfg.Cache.SnapshotTTL)
}

// ProvideCandlesUseCase creates the cached candle reader.
func ProvideCandlesUseCase(store repository.BarStore, cfg *config.Config) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store, responseCache(cfg), cfg.Cache.CandlesTTL)
}

// responseCache backs API response caching with Redis when configured so
// replicas share entries, and an in-process LRU cache otherwise.
func responseCache(cfg *config.Config) icache.BytesCache {
	if cfg.Backtest.Redis.Addr != "" {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Backtest.Redis.Addr,
			Password: cfg.Backtest.Redis.Password,
			DB:       cfg.Backtest.Redis.DB,
		})
	}
	return icache.NewMemoryCache()
}

// ProvideLiveHandler creates the live API handler.
func ProvideLiveHandler(
	l *applogger.Logger,
	snapshot *usecase.SnapshotUseCase,
	candles *usecase.CandlesUseCase,
	alerts *usecase.AlertHistory,
	barStore repository.BarStore,
	collector *usecase.BarCollector,
) *api.LiveEchoHandler {
	return api.NewLiveEchoHandler(l, snapshot, candles, alerts, barStore, collector.IsConnected)
}

// ProvideRunsHandler creates the backtest API handler.
func ProvideRunsHandler(l *applogger.Logger, runner *usecase.BacktestRunner) *api.RunsEchoHandler {
	return api.NewRunsEchoHandler(l, runner)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.BarCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	live *api.LiveEchoHandler,
	runs *api.RunsEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, collector, consumer, kh, chClient, live, runs)
}

// splitHostPort splits "host:port" with a default Redis port fallback.
func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// watchSet merges strategy symbols with benchmarks, skipping duplicates.
func watchSet(cfg *config.Config) []string {
	out := make([]string, 0, len(cfg.Strategy.Symbols)+len(cfg.Strategy.Benchmarks))
	seen := make(map[string]bool, cap(out))
	for _, s := range append(append([]string{}, cfg.Strategy.Symbols...), cfg.Strategy.Benchmarks...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
