package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "SigRelay/internal/domain/repository"
	"SigRelay/internal/service/accountstream"
	"SigRelay/internal/usecase"
	pkgch "SigRelay/pkg/clickhouse"
	"SigRelay/pkg/config"
	xhttp "SigRelay/pkg/http"
	pkgkafka "SigRelay/pkg/kafka"
	applogger "SigRelay/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	logger    *applogger.Logger
	handler   xhttp.Handler
	queue     *usecase.QueueProcessor
	integrity *usecase.IntegrityMonitor
	streams   []*accountstream.Stream
	store     domrepo.RecordStore
	journal   domrepo.Journal

	consumer     *pkgkafka.Consumer
	intake       pkgkafka.MessageHandler
	producer     *pkgkafka.Producer
	chClient     *pkgch.Client
	archiveDrain func()

	httpServer *xhttp.Server
}

// New creates an App with its required dependencies. Kafka and ClickHouse
// attach through the setters when configured.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	handler xhttp.Handler,
	queue *usecase.QueueProcessor,
	integrity *usecase.IntegrityMonitor,
	streams []*accountstream.Stream,
	store domrepo.RecordStore,
	journal domrepo.Journal,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		handler:   handler,
		queue:     queue,
		integrity: integrity,
		streams:   streams,
		store:     store,
		journal:   journal,
	}
}

// SetConsumer attaches the Kafka signal intake.
func (a *App) SetConsumer(consumer *pkgkafka.Consumer, intake pkgkafka.MessageHandler) {
	a.consumer = consumer
	a.intake = intake
}

// SetProducer attaches the Kafka producer used for alerts and log batches.
func (a *App) SetProducer(p *pkgkafka.Producer) { a.producer = p }

// SetClickHouse attaches the archive client and the ledger's drain hook so
// shutdown waits for in-flight archive writes before closing the client.
func (a *App) SetClickHouse(ch *pkgch.Client, drain func()) {
	a.chClient = ch
	a.archiveDrain = drain
}

// kafkaLogPublisher adapts the producer to the log collector's sink.
type kafkaLogPublisher struct {
	p *pkgkafka.Producer
}

func (k kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.p.Publish(ctx, topic, nil, payload)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	if a.producer != nil && a.cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          a.cfg.Kafka.LogsTopic,
			Publisher:      kafkaLogPublisher{p: a.producer},
		})
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.logger),
	)

	if err := a.queue.Start(ctx); err != nil {
		l.Error("queue processor start error", applogger.Error(err))
		return err
	}

	a.integrity.Start(ctx,
		a.cfg.Integrity.SampleInterval,
		a.cfg.Integrity.SampleSize,
		a.cfg.Integrity.FullInterval)

	for _, s := range a.streams {
		go s.Run(ctx)
	}
	l.Info("account streams started", applogger.Int("count", len(a.streams)))

	if a.consumer != nil && a.intake != nil {
		a.consumer.RegisterHandler(a.intake)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.intake.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("sigrelay started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger

	a.queue.Stop()
	a.integrity.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if a.archiveDrain != nil {
			a.archiveDrain()
		}
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if err := a.journal.Close(); err != nil {
		l.Warn("journal close error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		l.Warn("store close error", applogger.Error(err))
	}

	l.Info("shutdown complete")
	return nil
}
