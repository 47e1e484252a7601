package di

import (
	"context"
	"fmt"
	"time"

	"FinFuse/internal/domain/repository"
	domservice "FinFuse/internal/domain/service"
	"FinFuse/internal/handler/api"
	mid "FinFuse/internal/middleware"
	internalrepo "FinFuse/internal/repository"
	icache "FinFuse/internal/service/cache"
	"FinFuse/internal/service/feed"
	"FinFuse/internal/service/fusion"
	"FinFuse/internal/service/nlp"
	"FinFuse/internal/service/retrieval"
	"FinFuse/internal/usecase"
	pkgch "FinFuse/pkg/clickhouse"
	"FinFuse/pkg/config"
	xhttp "FinFuse/pkg/http"
	pkgkafka "FinFuse/pkg/kafka"
	applogger "FinFuse/pkg/logger"
	"FinFuse/pkg/metrics"
	"FinFuse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// Stores bundles the storage backend selected by config.
type Stores struct {
	Prices repository.PriceStore
	News   repository.NewsStore
	CH     *pkgch.Client // nil for the memory backend
}

// ProvideStores creates the configured backend and initializes schemas.
func ProvideStores(cfg *config.Config, l *applogger.Logger) (*Stores, error) {
	if cfg.Backend.Type == "memory" {
		return &Stores{
			Prices: internalrepo.NewMemPriceStore(),
			News:   internalrepo.NewMemNewsStore(),
		}, nil
	}

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

	prices := internalrepo.NewCHPriceStore(client, cfg.ClickHouse.Database)
	prices.SetLogger(l)
	news := internalrepo.NewCHNewsStore(client, cfg.ClickHouse.Database)
	news.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := prices.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("price schema: %w", err)
	}
	if err := news.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("news schema: %w", err)
	}

	return &Stores{Prices: prices, News: news, CH: client}, nil
}

// ProvideAnnotator selects the local or HTTP-backed annotator.
func ProvideAnnotator(cfg *config.Config, l *applogger.Logger) domservice.Annotator {
	if cfg.NLP.Mode == "http" {
		return nlp.NewHTTPAnnotator(cfg.NLP.ServiceURL, cfg.NLP.Timeout, cfg.EmbeddingDim(), l)
	}
	return nlp.NewLocalAnnotator(cfg.Instruments, cfg.EmbeddingDim())
}

// ProvideFusionStore creates the fusion join store.
func ProvideFusionStore(cfg *config.Config, stores *Stores, m repository.Metrics, l *applogger.Logger) *fusion.Store {
	opts := []fusion.Option{
		fusion.WithMetrics(m),
		fusion.WithLogger(l),
	}
	if cfg.Fusion.MaxDirty > 0 {
		opts = append(opts, fusion.WithMaxDirty(cfg.Fusion.MaxDirty))
	}
	return fusion.NewStore(stores.Prices, stores.News, cfg.BucketWidth(), cfg.LagTolerance(), opts...)
}

// ProvideRetrieval creates the retrieval service with the configured cache.
func ProvideRetrieval(cfg *config.Config, fs *fusion.Store, stores *Stores, annotator domservice.Annotator, m repository.Metrics, l *applogger.Logger) *retrieval.Service {
	opts := []retrieval.Option{
		retrieval.WithMetrics(m),
		retrieval.WithLogger(l),
	}
	if cfg.Retrieval.CacheTTL > 0 {
		var c icache.BytesCache
		if cfg.Retrieval.Redis.Enabled {
			c = icache.NewRedisCache(icache.RedisConfig{
				Addr:     cfg.Retrieval.Redis.Addr,
				Password: cfg.Retrieval.Redis.Password,
				DB:       cfg.Retrieval.Redis.DB,
			})
		} else {
			c = icache.NewTTLCache()
		}
		opts = append(opts, retrieval.WithCache(c, cfg.Retrieval.CacheTTL))
	}
	return retrieval.NewService(fs, stores.News, annotator, opts...)
}

// ProvidePriceIngestor creates the price ingest use case.
func ProvidePriceIngestor(stores *Stores, fs *fusion.Store, svc *retrieval.Service, m repository.Metrics, l *applogger.Logger) *usecase.PriceIngestor {
	ing := usecase.NewPriceIngestor(stores.Prices, fs, m, l)
	ing.SetInvalidator(svc)
	return ing
}

// ProvideNewsIngestor creates the news ingest use case.
func ProvideNewsIngestor(stores *Stores, annotator domservice.Annotator, fs *fusion.Store, svc *retrieval.Service, m repository.Metrics, l *applogger.Logger) *usecase.NewsIngestor {
	ing := usecase.NewNewsIngestor(stores.News, annotator, fs, m, l)
	ing.SetInvalidator(svc)
	return ing
}

// ProvideSessions creates the session manager.
func ProvideSessions() *usecase.SessionManager {
	return usecase.NewSessionManager()
}

// ProvideRegistry builds the closed tool registry.
func ProvideRegistry(r *retrieval.Service) *usecase.Registry {
	return usecase.NewRegistry(
		usecase.NewPriceRangeTool(r),
		usecase.NewNewsSimilarityTool(r),
		usecase.NewComputeIndicatorTool(r),
	)
}

// ProvideSelector creates the default tool-selection policy.
func ProvideSelector(cfg *config.Config) usecase.Selector {
	return usecase.NewHeuristicSelector(cfg.Instruments)
}

// ProvideAgentLoop creates the bounded tool-calling loop.
func ProvideAgentLoop(cfg *config.Config, registry *usecase.Registry, selector usecase.Selector, sessions *usecase.SessionManager, m repository.Metrics, l *applogger.Logger) *usecase.AgentLoop {
	return usecase.NewAgentLoop(registry, selector, sessions, cfg.MaxToolCalls(), cfg.ToolTimeout(), m, l)
}

// ProvideKafkaConsumer creates a Kafka consumer, nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
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

// ProvideKafkaBarsHandler registers the price-batch topic handler.
func ProvideKafkaBarsHandler(cfg *config.Config, ing *usecase.PriceIngestor, l *applogger.Logger) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, ing, l)
}

// ProvideKafkaNewsHandler registers the article-batch topic handler.
func ProvideKafkaNewsHandler(cfg *config.Config, ing *usecase.NewsIngestor, l *applogger.Logger) *usecase.KafkaNewsHandler {
	return usecase.NewKafkaNewsHandler(cfg.Kafka.NewsTopic, ing, l)
}

// kafkaErrLogger adapts the app logger to the consumer hook interface.
type kafkaErrLogger struct {
	l *applogger.Logger
}

func (k kafkaErrLogger) LogKafkaError(topic string, partition int, offset int64, err error) {
	k.l.Error("kafka message failed",
		applogger.String("topic", topic),
		applogger.Int("partition", partition),
		applogger.Int64("offset", offset),
		applogger.Error(err),
	)
}

// ProvideBarPublisher mirrors ingested bars onto Kafka, nil when disabled.
func ProvideBarPublisher(cfg *config.Config) (repository.BarPublisher, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.BarsTopic == "" {
		return nil, nil
	}
	opts := []pkgkafka.ProducerOption{
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	}
	if cfg.Kafka.Producer.Compression != "" {
		opts = append(opts, pkgkafka.WithCompression(cfg.Kafka.Producer.Compression))
	}
	if cfg.Kafka.Producer.RequiredAcks != 0 {
		opts = append(opts, pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks))
	}
	if cfg.Kafka.Producer.BatchSize > 0 {
		opts = append(opts, pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize))
	}
	if cfg.Kafka.Producer.BatchBytes > 0 {
		opts = append(opts, pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes))
	}
	if cfg.Kafka.Producer.Linger > 0 {
		opts = append(opts, pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger))
	}
	if cfg.Kafka.Producer.WriteTimeout > 0 && cfg.Kafka.Producer.ReadTimeout > 0 {
		opts = append(opts, pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout))
	}
	if cfg.Kafka.Producer.MaxAttempts > 0 {
		opts = append(opts, pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts))
	}
	producer, err := pkgkafka.NewProducer(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.BarsTopic), nil
}

// ProvideFeedCollector creates the streaming collector, nil when disabled.
func ProvideFeedCollector(cfg *config.Config, ing *usecase.PriceIngestor, pub repository.BarPublisher, m repository.Metrics, l *applogger.Logger) *usecase.FeedCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	symbols := make([]string, 0, len(cfg.Instruments))
	for _, in := range cfg.Instruments {
		symbols = append(symbols, in.Symbol)
	}
	stream := feed.New(cfg.Feed.APIKey, cfg.Feed.WebSocketURL, symbols,
		cfg.Feed.ReconnectDelay, cfg.Feed.PingInterval, l)

	pipeOpts := []mid.PipelineOption{}
	if cfg.Feed.BatchSize > 0 {
		pipeOpts = append(pipeOpts, mid.WithBatchSize(cfg.Feed.BatchSize))
	}
	if cfg.Feed.FlushInterval > 0 {
		pipeOpts = append(pipeOpts, mid.WithFlushInterval(cfg.Feed.FlushInterval))
	}
	if pub != nil {
		pipeOpts = append(pipeOpts, mid.WithPublisher(pub))
	}
	pipe := mid.NewIngestPipeline(ing, m, l, pipeOpts...)
	return usecase.NewFeedCollector(stream, pipe, m, l)
}

// ProvideHandlers assembles the HTTP surface.
func ProvideHandlers(l *applogger.Logger, loop *usecase.AgentLoop, sessions *usecase.SessionManager,
	prices *usecase.PriceIngestor, news *usecase.NewsIngestor, r *retrieval.Service,
	collector *usecase.FeedCollector) xhttp.Handler {
	return &api.Handlers{
		Ask:    api.NewAskEchoHandler(l, loop, sessions),
		Ingest: api.NewIngestEchoHandler(l, prices, news),
		Query:  api.NewQueryEchoHandler(l, r, collector),
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	fs *fusion.Store,
	collector *usecase.FeedCollector,
	consumer *pkgkafka.Consumer,
	barsHandler *usecase.KafkaBarsHandler,
	newsHandler *usecase.KafkaNewsHandler,
	publisher repository.BarPublisher,
	stores *Stores,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.LoggingHook{L: kafkaErrLogger{l}})
		consumer.RegisterHandler(barsHandler)
		consumer.RegisterHandler(newsHandler)
	}
	return server.New(cfg, l, handler, fs, collector, consumer, publisher, stores.CH)
}
