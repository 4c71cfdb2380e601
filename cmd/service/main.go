package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/septivank/safedrive-risk/internal/api"
	"github.com/septivank/safedrive-risk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const lifecycleTimeout = 30 * time.Second

func main() {
	loadDotEnv()

	app := fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			ProvideDBPool,
			ProvideRepository,
			ProvideRiskEngine,
			ProvideRiskService,
			ProvideValidator,
			ProvideMQConnection,
			ProvidePublisher,
			ProvideTelemetryProcessor,
			ProvideHandler,
			api.NewRouter,
			api.NewServer,
		),
		fx.Invoke(startTelemetryConsumer),
		fx.Invoke(func(*http.Server) {}),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logger for messages emitted before the fx graph is up
	bootLogger, err := newLogger(&config.Config{ServiceName: "safedrive-risk"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer bootLogger.Sync()

	if err := app.Err(); err != nil {
		bootLogger.Fatal("failed to build application", zap.Error(err))
	}

	bootLogger.Info("starting application...", zap.Duration("timeout", lifecycleTimeout))

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			bootLogger.Error("APPLICATION START TIMEOUT: Failed to start within 30 seconds. This usually means a dependency (Database or RabbitMQ) is not accessible.")
		}
		bootLogger.Fatal("failed to start application", zap.Error(err))
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		bootLogger.Error("error stopping app", zap.Error(err))
	}
}

// loadDotEnv loads the first .env found in the working directory or up to two parents
func loadDotEnv() {
	envPaths := []string{".env", "../../.env"}
	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		envPaths = append(envPaths,
			filepath.Join(workDir, ".env"),
			filepath.Join(parentDir, ".env"),
			filepath.Join(filepath.Dir(parentDir), ".env"),
		)
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			absPath, _ := filepath.Abs(envPath)
			fmt.Printf("Loaded environment from: %s\n", absPath)
			return
		}
	}

	fmt.Println("No .env file found, using system environment variables (OK for pods/containers)")
}
