package di

import (
	"context"
	"fmt"
	"time"

	"PulseScan/internal/domain/models"
	"PulseScan/internal/domain/repository"
	"PulseScan/internal/domain/service"
	"PulseScan/internal/handler/api"
	mid "PulseScan/internal/middleware"
	internalrepo "PulseScan/internal/repository"
	"PulseScan/internal/service/binance"
	"PulseScan/internal/service/ratelimit"
	"PulseScan/internal/services/analytics"
	"PulseScan/internal/services/anomaly"
	"PulseScan/internal/usecase"
	"PulseScan/pkg/cache"
	pkgch "PulseScan/pkg/clickhouse"
	"PulseScan/pkg/config"
	xhttp "PulseScan/pkg/http"
	pkgkafka "PulseScan/pkg/kafka"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/metrics"
	"PulseScan/pkg/postgres"
	"PulseScan/pkg/server"

	kafkago "github.com/segmentio/kafka-go"
)

const initTimeout = 10 * time.Second

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the process logger and attaches the error-log
// collector when a collector topic and a producer are available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.CollectorTopic != "" && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Logging.CollectorInterval,
			CountThreshold: cfg.Logging.CollectorThreshold,
			Topic:          cfg.Logging.CollectorTopic,
			Publisher:      internalrepo.NewLogPublisher(producer),
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvidePostgresClient connects and migrates, or returns nil when Postgres is disabled.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	pc := cfg.Postgres
	if !pc.Enabled {
		return nil, nil
	}
	opts := []postgres.ClientOption{
		postgres.WithHost(pc.Host, pc.Port),
		postgres.WithCredentials(pc.User, pc.Password),
		postgres.WithDatabase(pc.Database),
		postgres.WithSSLMode(pc.SSLMode),
		postgres.WithPool(pc.MaxOpenConns, pc.MaxOpenConns/2, time.Hour),
		postgres.WithSilentLogger(cfg.Environment == "production"),
	}
	if pc.DSN != "" {
		opts = append(opts, postgres.WithDSN(pc.DSN))
	}
	client, err := postgres.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	if pc.SkipMigrate {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := internalrepo.Migrate(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient connects and creates the audit tables, or returns
// nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	cc := cfg.ClickHouse
	if !cc.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cc.Host),
		pkgch.WithPort(cc.Port),
		pkgch.WithDatabase(cc.Database),
		pkgch.WithCredentials(cc.User, cc.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cc.UseHTTP),
		pkgch.WithAsyncInsert(!cc.SyncInsert, false),
		pkgch.WithTimeouts(cc.DialTimeout, cc.ReadTimeout),
		pkgch.WithMaxExecutionTime(cc.MaxExecution),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.AuditSchema(cc.Database)); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSettingsCache returns Redis when enabled, otherwise an in-process cache.
func ProvideSettingsCache(cfg *config.Config) (cache.Service, error) {
	rc := cfg.Redis
	if !rc.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(rc.Addr),
		cache.WithRedisPassword(rc.Password),
		cache.WithRedisDB(rc.DB),
		cache.WithRedisPool(rc.PoolSize, rc.PoolSize/4, 5*time.Second),
		cache.WithRedisPrefix(rc.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

// ProvideSettingsSource wraps the settings cache. The in-process cache is
// always seeded from the scanner section; Redis only fills missing keys and
// only when redis.seed is set.
func ProvideSettingsSource(cfg *config.Config, c cache.Service) (*internalrepo.CacheSettingsSource, error) {
	src := internalrepo.NewCacheSettingsSource(c)
	if cfg.Redis.Enabled && !cfg.Redis.Seed {
		return src, nil
	}

	pairs := cfg.Scanner.Pairs
	if pairs == nil {
		pairs = []string{}
	}
	seed := models.ScannerSettings{
		Status: models.ScannerStatus(cfg.Scanner.Status),
		Pairs:  pairs,
		Thresholds: models.Thresholds{
			VolumeRatio:  cfg.Scanner.VolumeRatio,
			PricePercent: cfg.Scanner.PricePercent,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	var err error
	if cfg.Redis.Enabled {
		err = src.SeedMissing(ctx, seed)
	} else {
		err = src.Save(ctx, seed)
	}
	if err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return src, nil
}

func ProvideTriggerStore(pg *postgres.Client) repository.TriggerStore {
	if pg == nil {
		return internalrepo.NewMemoryTriggerStore()
	}
	return internalrepo.NewPostgresTriggerStore(pg)
}

func ProvideStrategyStore(pg *postgres.Client) repository.StrategyStore {
	if pg == nil {
		return internalrepo.NewMemoryStrategyStore()
	}
	return internalrepo.NewPostgresStrategyStore(pg)
}

func ProvideAuditLog(ch *pkgch.Client, l *logger.Logger) repository.AuditLog {
	if ch == nil {
		return internalrepo.NewMemoryAuditLog()
	}
	return internalrepo.NewClickHouseAuditLog(ch, l)
}

// ProvideNotifier fans out to every configured backend.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics, l *logger.Logger) service.Notifier {
	var backends []internalrepo.NamedNotifier
	if !cfg.Notify.LogDisabled {
		backends = append(backends, internalrepo.NamedNotifier{Name: "log", Notifier: internalrepo.NewLogNotifier(l)})
	}
	if cfg.Notify.KafkaTopic != "" && producer != nil {
		backends = append(backends, internalrepo.NamedNotifier{
			Name:     "kafka",
			Notifier: internalrepo.NewKafkaNotifier(producer, cfg.Notify.KafkaTopic),
		})
	}
	if cfg.Notify.DiscordWebhook != "" {
		backends = append(backends, internalrepo.NamedNotifier{
			Name:     "discord",
			Notifier: internalrepo.NewDiscordNotifier(cfg.Notify.DiscordWebhook, cfg.Notify.Timeout),
		})
	}
	return internalrepo.NewMultiNotifier(m, backends...)
}

// ProvideAnalysisInvoker returns nil when analysis hand-off is disabled.
func ProvideAnalysisInvoker(cfg *config.Config) service.AnalysisInvoker {
	if !cfg.Analysis.Enabled {
		return nil
	}
	return analytics.NewHTTPAnalysisInvoker(cfg.Analysis.BaseURL, cfg.Analysis.Timeout)
}

func ProvideCircuitBreaker(
	cfg *config.Config,
	audit repository.AuditLog,
	notifier service.Notifier,
	m repository.Metrics,
	l *logger.Logger,
) *anomaly.CircuitBreaker {
	bc := cfg.Scanner.Breaker
	return anomaly.NewCircuitBreaker(l.With(logger.String("component", "circuit_breaker")),
		anomaly.WithBreakerWindow(bc.Window),
		anomaly.WithBreakerThreshold(bc.Threshold),
		anomaly.WithBreakerCooldown(bc.Cooldown),
		anomaly.WithBreakerSideEffectTimeout(cfg.Scanner.SideEffectTimeout),
		anomaly.WithBreakerAudit(audit),
		anomaly.WithBreakerNotifier(notifier),
		anomaly.WithBreakerMetrics(m),
	)
}

func ProvideTriggerDetector(
	cfg *config.Config,
	breaker *anomaly.CircuitBreaker,
	store repository.TriggerStore,
	invoker service.AnalysisInvoker,
	notifier service.Notifier,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.TriggerDetector {
	sc := cfg.Scanner
	opts := []usecase.DetectorOption{
		usecase.WithTriggerCooldown(sc.Cooldown),
		usecase.WithDetectorTimeout(sc.SideEffectTimeout),
		usecase.WithTriggerNotifier(notifier),
	}
	if invoker != nil {
		opts = append(opts, usecase.WithAnalysisInvoker(invoker))
	}
	return usecase.NewTriggerDetector(
		anomaly.NewBaselineTracker(anomaly.WithBaselineInterval(sc.BaselineInterval)),
		anomaly.NewPriceWindow(anomaly.WithWindow(sc.PriceWindow)),
		breaker,
		store,
		m,
		l.With(logger.String("component", "trigger_detector")),
		opts...,
	)
}

// ProvidePositionTracker returns nil when position tracking is disabled.
func ProvidePositionTracker(
	cfg *config.Config,
	store repository.StrategyStore,
	notifier service.Notifier,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.PositionTracker {
	pc := cfg.Positions
	if pc.Disabled {
		return nil
	}
	return usecase.NewPositionTracker(store, m, l.With(logger.String("component", "position_tracker")),
		usecase.WithEpsilon(pc.Epsilon),
		usecase.WithMinorMove(pc.MinorMove),
		usecase.WithWriteTimeout(pc.WriteTimeout),
		usecase.WithStrategyNotifier(notifier),
	)
}

func ProvideSettingsWatcher(cfg *config.Config, src service.SettingsSource, m repository.Metrics, l *logger.Logger) *usecase.SettingsWatcher {
	return usecase.NewSettingsWatcher(src, models.Thresholds{
		VolumeRatio:  cfg.Scanner.VolumeRatio,
		PricePercent: cfg.Scanner.PricePercent,
	}, m, l)
}

func ProvideScanner(
	cfg *config.Config,
	detector *usecase.TriggerDetector,
	positions *usecase.PositionTracker,
	settings *usecase.SettingsWatcher,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.Scanner {
	return usecase.NewScanner(detector, positions, settings, m, l,
		usecase.WithSettingsInterval(cfg.Scanner.SettingsInterval),
		usecase.WithReloadInterval(cfg.Positions.ReloadInterval),
		usecase.WithLoopBuffer(cfg.Scanner.LoopBuffer),
	)
}

// ProvidePipeline builds the parse/throttle/buffer stage in front of the scanner.
func ProvidePipeline(cfg *config.Config, scanner *usecase.Scanner, m repository.Metrics, l *logger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(scanner, m, l,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBufferSize(cfg.Feed.BufferSize),
	)
}

// ProvideTickSource selects the Binance stream or the Kafka ticks topic.
func ProvideTickSource(cfg *config.Config, pipe *mid.RealtimePipeline, m repository.Metrics, l *logger.Logger) (server.TickSource, error) {
	fc := cfg.Feed
	if fc.Source == "kafka" {
		consumer, err := pkgkafka.NewConsumer(
			pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
			pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
			pkgkafka.WithConsumerStartOffset(cfg.Kafka.StartOffset),
			pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, 100*time.Millisecond, 2*time.Second),
			pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
			pkgkafka.WithConsumerBufferSize(fc.BufferSize),
			pkgkafka.WithConsumerLogger(l),
			pkgkafka.WithConsumerHook(pkgkafka.HookFuncs{
				After: func(_ context.Context, _ string, _ kafkago.Message, err error) {
					if err != nil {
						m.RecordError("kafka_consume")
					}
				},
			}),
		)
		if err != nil {
			return server.TickSource{}, fmt.Errorf("kafka consumer: %w", err)
		}
		return server.TickSource{
			Consumer: consumer,
			Handler:  usecase.NewKafkaTicksHandler(fc.KafkaTopic, pipe, m),
		}, nil
	}

	stream := binance.New(fc.URL,
		binance.WithSymbols(fc.Symbols),
		binance.WithQuoteAsset(fc.QuoteAsset),
		binance.WithReconnectDelay(fc.ReconnectDelay),
		binance.WithPingInterval(fc.PingInterval),
		binance.WithLogger(l.With(logger.String("component", "binance"))),
	)
	return server.TickSource{Collector: usecase.NewTickCollector(stream, pipe, m, l)}, nil
}

// ProvideHTTPHandler builds the read API with health probes for each enabled backend.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *logger.Logger,
	triggers repository.TriggerStore,
	strategies repository.StrategyStore,
	audit repository.AuditLog,
	src *internalrepo.CacheSettingsSource,
	settingsCache cache.Service,
	pg *postgres.Client,
	ch *pkgch.Client,
) xhttp.Handler {
	opts := []api.Option{
		api.WithSettings(src, src, cfg.Server.AdminToken),
		api.WithRateLimit(ratelimit.New(), cfg.Server.RateLimitRPS),
	}
	if pg != nil {
		opts = append(opts, api.WithHealthCheck("postgres", pg.Health))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}
	if rc, ok := settingsCache.(*cache.RedisCache); ok {
		opts = append(opts, api.WithHealthCheck("redis", rc.Ping))
	}
	return api.NewScannerEchoHandler(l.With(logger.String("component", "api")), triggers, strategies, audit, opts...)
}

// ProvideClosers lists clients to close once the scanner has drained. The
// log collector goes first so its last batch still has a producer.
func ProvideClosers(
	l *logger.Logger,
	producer *pkgkafka.Producer,
	pg *postgres.Client,
	ch *pkgch.Client,
	settingsCache cache.Service,
) server.Closers {
	closers := server.Closers{{
		Name:  "log collector",
		Close: func() error { l.RemoveCollector(); return nil },
	}}
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka producer", Close: producer.Close})
	}
	if pg != nil {
		closers = append(closers, server.Closer{Name: "postgres", Close: pg.Close})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	if c, ok := settingsCache.(interface{ Close() error }); ok {
		closers = append(closers, server.Closer{Name: "settings cache", Close: c.Close})
	}
	return closers
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	scanner *usecase.Scanner,
	pipe *mid.RealtimePipeline,
	source server.TickSource,
	handler xhttp.Handler,
	closers server.Closers,
) *server.App {
	return server.New(cfg, l, scanner, pipe, source, handler, closers)
}
