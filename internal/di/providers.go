package di

import (
	"context"
	"fmt"
	"time"

	"PawnPrice/internal/domain/repository"
	"PawnPrice/internal/domain/service"
	"PawnPrice/internal/handler/api"
	"PawnPrice/internal/middleware"
	internalrepo "PawnPrice/internal/repository"
	"PawnPrice/internal/services/fraud"
	"PawnPrice/internal/services/marketplace"
	"PawnPrice/internal/services/pricing"
	"PawnPrice/internal/services/vision"
	"PawnPrice/internal/usecase"
	"PawnPrice/pkg/cache"
	pkgch "PawnPrice/pkg/clickhouse"
	"PawnPrice/pkg/config"
	xhttp "PawnPrice/pkg/http"
	pkgkafka "PawnPrice/pkg/kafka"
	"PawnPrice/pkg/logger"
	"PawnPrice/pkg/metrics"
	"PawnPrice/pkg/postgres"
	"PawnPrice/pkg/queue"
	"PawnPrice/pkg/server"
)

const initTimeout = 15 * time.Second

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:   cfg.Logger.Level,
		Format:  cfg.Logger.Format,
		Output:  cfg.Logger.Output,
		Service: "pawnprice",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache returns nil when redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-process L1 over redis, or runs memory-only.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc)
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher buffers events the broker rejects and retries
// them in the background.
func ProvideEventPublisher(p *pkgkafka.Producer, m repository.Metrics, log *logger.Logger) repository.EventPublisher {
	if p == nil {
		return nil
	}
	buffered := middleware.NewBufferedPublisher(p, m, log, middleware.WithBufferSize(1000))
	buffered.Start()
	return buffered
}

// ProvideKafkaConsumer returns nil when kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideClickHouseClient returns nil when clickhouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

func ProvideWarehouse(ch *pkgch.Client, log *logger.Logger) (repository.Warehouse, error) {
	if ch == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	w := internalrepo.NewCHWarehouse(ch, log)
	if err := w.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return w, nil
}

// ProvidePostgresClient returns nil when postgres is disabled.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	if !cfg.Postgres.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := postgres.NewClient(ctx, cfg.PostgresDSN(),
		postgres.WithPool(20, 5, 30*time.Minute),
		postgres.WithPingRetry(5, 2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideOfferStore falls back to an in-process store without postgres.
func ProvideOfferStore(pg *postgres.Client, log *logger.Logger) (repository.OfferStore, error) {
	if pg == nil {
		log.Warn("postgres disabled, offers are kept in memory")
		return internalrepo.NewMemoryOfferStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	store := internalrepo.NewPostgresOfferStore(pg, log)
	if err := store.Init(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return store, nil
}

func ProvideResearcher(cfg *config.Config, c cache.Service, m repository.Metrics, log *logger.Logger) service.Researcher {
	eb := cfg.Marketplace.Ebay
	var minInterval time.Duration
	if eb.RequestsPerSecond > 0 {
		minInterval = time.Duration(float64(time.Second) / eb.RequestsPerSecond)
	}
	ebay := marketplace.NewEbayClient(marketplace.EbayConfig{
		BaseURL:     eb.BaseURL,
		AuthURL:     eb.AuthURL,
		AppID:       eb.AppID,
		CertID:      eb.CertID,
		MinInterval: minInterval,
		MaxRetries:  eb.MaxRetries,
		BaseBackoff: eb.BaseBackoff,
		Timeout:     eb.Timeout,
	}, log)

	var facebook service.MarketplaceSource
	if fb := cfg.Marketplace.Facebook; fb.Enabled {
		facebook = marketplace.NewFacebookClient(marketplace.FacebookConfig{
			BaseURL:     fb.BaseURL,
			PageTimeout: fb.PageTimeout,
			Scrolls:     fb.Scrolls,
			MinInterval: fb.MinInterval,
			MaxRetries:  fb.MaxRetries,
			BaseBackoff: fb.BaseBackoff,
			ChromePath:  fb.ChromePath,
		}, nil, log)
	}

	ttl := cfg.Pricing.CacheTTL
	return marketplace.NewAggregator(ebay, facebook, log,
		marketplace.WithCache(c, marketplace.CacheTTL{Popular: ttl.Popular, Mid: ttl.Mid, Rare: ttl.Rare}),
		marketplace.WithMetrics(m),
	)
}

// ProvideIdentifier returns nil when no vision service is configured.
func ProvideIdentifier(cfg *config.Config, log *logger.Logger) service.Identifier {
	if cfg.Vision.BaseURL == "" {
		return nil
	}
	return vision.NewClient(cfg.Vision.BaseURL, cfg.Vision.Timeout, log,
		vision.WithRetry(cfg.Vision.MaxRetries, 500*time.Millisecond))
}

func ProvideFraudAnalyzer(
	cfg *config.Config,
	store repository.OfferStore,
	warehouse repository.Warehouse,
	publisher repository.EventPublisher,
	m repository.Metrics,
	log *logger.Logger,
) (*usecase.FraudAnalyzer, error) {
	detector, err := fraud.NewDetector(fraud.DefaultRules(), fraud.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("fraud detector: %w", err)
	}
	return usecase.NewFraudAnalyzer(usecase.FraudAnalyzerDeps{
		Enabled:   cfg.Fraud.Enabled,
		Detector:  detector,
		Offers:    store,
		Warehouse: warehouse,
		Publisher: publisher,
		Metrics:   m,
		Topic:     cfg.Kafka.Topics.FraudAssessed,
		Log:       log,
	}), nil
}

func ProvidePricingService(
	cfg *config.Config,
	identifier service.Identifier,
	researcher service.Researcher,
	analyzer *usecase.FraudAnalyzer,
	store repository.OfferStore,
	warehouse repository.Warehouse,
	publisher repository.EventPublisher,
	m repository.Metrics,
	log *logger.Logger,
) (*usecase.PricingService, error) {
	offerCfg := pricing.DefaultOfferConfig()
	offerCfg.MinOfferFloor = cfg.Pricing.MinOfferFloor
	if len(cfg.Pricing.CategoryCeilings) > 0 {
		offerCfg.CategoryCeilings = cfg.Pricing.CategoryCeilings
	}
	offers, err := pricing.NewOfferEngine(offerCfg, pricing.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("offer engine: %w", err)
	}

	return usecase.NewPricingService(usecase.PricingDeps{
		Identifier:    identifier,
		Researcher:    researcher,
		FMV:           pricing.NewFMVEngine(pricing.WithLogger(log)),
		Offers:        offers,
		Scorer:        pricing.NewConfidenceScorer(pricing.WithLogger(log)),
		Fraud:         analyzer,
		Store:         store,
		Warehouse:     warehouse,
		Publisher:     publisher,
		Metrics:       m,
		Topic:         cfg.Kafka.Topics.OffersPriced,
		Log:           log,
		SpendingLimit: cfg.Pricing.DailySpendingLimit,
	}), nil
}

func ProvidePriceOptimizer(cfg *config.Config, log *logger.Logger) *pricing.PriceOptimizer {
	return pricing.NewPriceOptimizer(cfg.Optimizer.Workers, pricing.WithLogger(log))
}

func ProvideOptimizerJob(
	cfg *config.Config,
	optimizer *pricing.PriceOptimizer,
	store repository.OfferStore,
	warehouse repository.Warehouse,
	c cache.Service,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.OptimizerJob {
	return usecase.NewOptimizerJob(usecase.OptimizerJobDeps{
		Config: usecase.OptimizerConfig{
			MinDaysActive: cfg.Optimizer.MinDaysActive,
			BatchSize:     cfg.Optimizer.BatchSize,
			DryRun:        cfg.Optimizer.DryRun,
		},
		Optimizer: optimizer,
		Offers:    store,
		Warehouse: warehouse,
		Locker:    c,
		Metrics:   m,
		Log:       log,
	})
}

// ProvideQueue uses redis when available so jobs survive restarts.
func ProvideQueue(rc *cache.RedisCache, job *usecase.OptimizerJob, cfg *config.Config, log *logger.Logger) queue.Queue {
	qcfg := &queue.QueueConfig{Workers: 1, RetryLimit: 3, RetryDelay: time.Minute}
	jobs := []queue.Job{job}
	if rc == nil {
		return queue.NewMemoryQueue(log, qcfg, jobs)
	}
	return queue.NewRedisQueue(log, qcfg, rc.Client(), jobs, queue.WithKeyPrefix(cfg.Redis.Prefix+":jobs"))
}

func ProvideOfferSubmittedHandler(cfg *config.Config, analyzer *usecase.FraudAnalyzer, log *logger.Logger) *usecase.OfferSubmittedHandler {
	return usecase.NewOfferSubmittedHandler(cfg.Kafka.Topics.OffersSubmitted, analyzer, log)
}

func ProvideHTTPHandler(
	cfg *config.Config,
	log *logger.Logger,
	svc *usecase.PricingService,
	optimizer *pricing.PriceOptimizer,
	analyzer *usecase.FraudAnalyzer,
	job *usecase.OptimizerJob,
	store repository.OfferStore,
	warehouse repository.Warehouse,
	rc *cache.RedisCache,
) xhttp.Handler {
	checks := map[string]api.HealthChecker{"offer_store": store}
	if warehouse != nil {
		checks["warehouse"] = warehouse
	}
	if rc != nil {
		checks["redis"] = rc
	}
	return xhttp.Handlers{
		api.NewHealthHandler(checks),
		api.NewPricingHandler(log, svc, optimizer),
		api.NewFraudHandler(log, analyzer),
		api.NewStreamHandler(log, svc),
		api.NewAdminHandler(log, cfg.Auth.JWTSecret, job, cfg.Optimizer.DryRun),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	q queue.Queue,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	offersHandler *usecase.OfferSubmittedHandler,
	c cache.Service,
	store repository.OfferStore,
	warehouse repository.Warehouse,
	publisher repository.EventPublisher,
) *server.App {
	opts := []server.Option{
		server.WithQueue(q),
		server.WithCloser("cache", c),
		server.WithCloser("offer_store", store),
	}
	if publisher != nil {
		opts = append(opts, server.WithCloser("event_buffer", publisher))
	}
	if warehouse != nil {
		opts = append(opts, server.WithCloser("warehouse", warehouse))
	}
	if producer != nil {
		opts = append(opts, server.WithProducer(producer))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, offersHandler))
	}
	return server.New(cfg, log, handler, opts...)
}
