package main

import (
	"context"

	"github.com/septivank/safedrive-risk/internal/api"
	"github.com/septivank/safedrive-risk/internal/config"
	"github.com/septivank/safedrive-risk/internal/db"
	"github.com/septivank/safedrive-risk/internal/mq"
	"github.com/septivank/safedrive-risk/internal/repository"
	"github.com/septivank/safedrive-risk/internal/risk"
	"github.com/septivank/safedrive-risk/internal/service"
	"github.com/septivank/safedrive-risk/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startTelemetryConsumer(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.TelemetryProcessor,
) (*mq.Consumer, error) {
	// Cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Tag:           cfg.ServiceName,
		Queue:         cfg.RabbitMQ.TelemetryQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.TelemetryExchange,
		RoutingKey:    cfg.RabbitMQ.TelemetryRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting telemetry consumer",
				zap.String("queue", cfg.RabbitMQ.TelemetryQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("telemetry consumer stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideRiskEngine creates the scoring engine with the current model weights
func ProvideRiskEngine() *risk.Engine {
	return risk.NewEngine(risk.DefaultWeights())
}

// ProvideRiskService creates a new risk service backed by the repository
func ProvideRiskService(repo *repository.Repository, engine *risk.Engine, logger *zap.Logger) *service.RiskService {
	return service.NewRiskService(repo, repo, repo, engine, logger)
}

// ProvideValidator creates a new validator instance
func ProvideValidator(cfg *config.Config) *validator.Validator {
	return validator.NewValidator(cfg.Validation.EventTimeToleranceMinutes)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(publisher.Close))
	return publisher, nil
}

// ProvideTelemetryProcessor creates a new telemetry processor instance
func ProvideTelemetryProcessor(
	repo *repository.Repository,
	publisher *mq.Publisher,
	v *validator.Validator,
	cfg *config.Config,
	logger *zap.Logger,
) *service.TelemetryProcessor {
	return service.NewTelemetryProcessor(repo, publisher, v, cfg.RabbitMQ.EventsRoutingKey, logger)
}

// ProvideHandler creates the HTTP handler
func ProvideHandler(svc *service.RiskService, logger *zap.Logger) *api.Handler {
	return api.NewHandler(svc, logger)
}
