package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SigRelay/internal/domain/models"
	domrepo "SigRelay/internal/domain/repository"
	domsvc "SigRelay/internal/domain/service"
	"SigRelay/internal/handler/api"
	internalrepo "SigRelay/internal/repository"
	"SigRelay/internal/service/accountstream"
	"SigRelay/internal/service/executor"
	"SigRelay/internal/usecase"
	pkgch "SigRelay/pkg/clickhouse"
	"SigRelay/pkg/config"
	xhttp "SigRelay/pkg/http"
	pkgkafka "SigRelay/pkg/kafka"
	applogger "SigRelay/pkg/logger"
	"SigRelay/pkg/metrics"
	"SigRelay/pkg/server"
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
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRecordStore creates the keyed store: Redis when configured, memory
// otherwise.
func ProvideRecordStore(cfg *config.Config) (domrepo.RecordStore, error) {
	if cfg.Store.Type != "redis" {
		return internalrepo.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.Redis.Addr,
		Password: cfg.Store.Redis.Password,
		DB:       cfg.Store.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return internalrepo.NewRedisStore(client, cfg.Store.Prefix), nil
}

// ProvideJournal creates the append-only signal journal.
func ProvideJournal(cfg *config.Config) (domrepo.Journal, error) {
	return internalrepo.NewFileJournal(cfg.Journal.Path)
}

// ProvideKafkaProducer creates the producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
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

// ProvideAlerts publishes alerts through Kafka when available.
func ProvideAlerts(producer *pkgkafka.Producer, cfg *config.Config) domrepo.AlertPublisher {
	if producer == nil || cfg.Kafka.AlertsTopic == "" {
		return internalrepo.NopAlerts{}
	}
	return internalrepo.NewKafkaAlerts(producer, cfg.Kafka.AlertsTopic)
}

// ProvideKafkaConsumer creates the intake consumer, or nil when disabled.
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideClickHouseClient creates the archive client and ensures its schema,
// or nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ArchiveSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideExecutorBindings builds the profile and client for every configured
// executor, preserving configuration order.
func ProvideExecutorBindings(cfg *config.Config, lgr *applogger.Logger) []usecase.ExecutorBinding {
	bindings := make([]usecase.ExecutorBinding, 0, len(cfg.Executors))
	for _, ec := range cfg.Executors {
		profile := &models.ExecutorProfile{
			ID:              ec.ID,
			Family:          ec.Family,
			Endpoint:        ec.Endpoint,
			StreamURL:       ec.StreamURL,
			MinConfidence:   ec.MinConfidence,
			ExcludedRegimes: ec.ExcludedRegimes,
			Timeout:         ec.Timeout,
			Disabled:        ec.Disabled,
		}
		bindings = append(bindings, usecase.ExecutorBinding{
			Profile: profile,
			Client:  executor.NewClient(profile, lgr),
		})
	}
	return bindings
}

// ProvideLedger creates the signal ledger.
func ProvideLedger(store domrepo.RecordStore, journal domrepo.Journal, m domrepo.Metrics, lgr *applogger.Logger) *usecase.Ledger {
	return usecase.NewLedger(store, journal, m, lgr)
}

// ProvideRiskMonitor creates the risk and compliance monitor.
func ProvideRiskMonitor(cfg *config.Config, alerts domrepo.AlertPublisher, m domrepo.Metrics, lgr *applogger.Logger) *usecase.RiskMonitor {
	limits := usecase.RiskLimits{
		MaxDrawdownPct:         cfg.Risk.MaxDrawdownPct,
		DailyLossLimitPct:      cfg.Risk.DailyLossLimitPct,
		MaxPositionSizePct:     cfg.Risk.MaxPositionSizePct,
		MaxCorrelatedPositions: cfg.Risk.MaxCorrelatedPositions,
	}
	return usecase.NewRiskMonitor(limits, cfg.SymbolGroups(), alerts, m, lgr)
}

// ProvideQueueProcessor creates the retry queue loop.
func ProvideQueueProcessor(store domrepo.RecordStore, ledger *usecase.Ledger, risk *usecase.RiskMonitor, bindings []usecase.ExecutorBinding, cfg *config.Config, m domrepo.Metrics, lgr *applogger.Logger) *usecase.QueueProcessor {
	executors := make([]domsvc.Executor, 0, len(bindings))
	for _, b := range bindings {
		executors = append(executors, b.Client)
	}
	policy := usecase.RetryPolicy{
		MaxRetries:    cfg.Queue.MaxRetries,
		Interval:      cfg.Queue.Interval,
		BackoffFactor: cfg.Queue.Backoff,
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 5
	}
	if policy.Interval <= 0 {
		policy.Interval = 30 * time.Second
	}
	return usecase.NewQueueProcessor(store, ledger, executors, risk, policy, cfg.Queue.Interval, cfg.Queue.Batch, m, lgr)
}

// ProvideDistributor creates the signal distributor.
func ProvideDistributor(ledger *usecase.Ledger, risk *usecase.RiskMonitor, queue *usecase.QueueProcessor, bindings []usecase.ExecutorBinding, m domrepo.Metrics, lgr *applogger.Logger) *usecase.Distributor {
	return usecase.NewDistributor(ledger, risk, queue, bindings, m, lgr)
}

// ProvideIntegrityMonitor creates the ledger integrity monitor.
func ProvideIntegrityMonitor(store domrepo.RecordStore, journal domrepo.Journal, alerts domrepo.AlertPublisher, m domrepo.Metrics, lgr *applogger.Logger) *usecase.IntegrityMonitor {
	return usecase.NewIntegrityMonitor(store, journal, alerts, m, lgr)
}

// ProvideAccountStreams creates one stream per executor that exposes one.
func ProvideAccountStreams(cfg *config.Config, risk *usecase.RiskMonitor, lgr *applogger.Logger) []*accountstream.Stream {
	streams := make([]*accountstream.Stream, 0, len(cfg.Executors))
	for _, ec := range cfg.Executors {
		if ec.StreamURL == "" {
			continue
		}
		streams = append(streams, accountstream.New(ec.ID, ec.StreamURL, ec.ReconnectDelay, ec.PingInterval, risk, lgr))
	}
	return streams
}

// ProvideOpsHandler creates the operator HTTP surface.
func ProvideOpsHandler(lgr *applogger.Logger, ledger *usecase.Ledger, distributor *usecase.Distributor, risk *usecase.RiskMonitor, integrity *usecase.IntegrityMonitor, store domrepo.RecordStore) xhttp.Handler {
	return api.NewOpsHandler(lgr, ledger, distributor, risk, integrity, store)
}

// ProvideApp assembles the application and attaches the optional backends.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	handler xhttp.Handler,
	ledger *usecase.Ledger,
	distributor *usecase.Distributor,
	queue *usecase.QueueProcessor,
	integrity *usecase.IntegrityMonitor,
	streams []*accountstream.Stream,
	store domrepo.RecordStore,
	journal domrepo.Journal,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	chClient *pkgch.Client,
) *server.App {
	app := server.New(cfg, lgr, handler, queue, integrity, streams, store, journal)

	if chClient != nil {
		table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
		ledger.SetArchive(internalrepo.NewClickHouseArchive(chClient.DB(), table))
		app.SetClickHouse(chClient, ledger.DrainArchives)
	}
	if producer != nil {
		app.SetProducer(producer)
	}
	if consumer != nil {
		intake := usecase.NewSignalIntake(ledger, distributor, cfg.Kafka.SignalsTopic, lgr)
		app.SetConsumer(consumer, intake)
	}
	return app
}
