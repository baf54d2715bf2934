package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"problem-map/auth"
	"problem-map/contract"
	"problem-map/errors"
	"problem-map/infrastructure/http/server"
	"problem-map/infrastructure/kafka"
	"problem-map/infrastructure/storage"
	"problem-map/internal"
	"problem-map/moderation"
	"problem-map/observability"
	"problem-map/projection"
	"problem-map/publisher"
	"problem-map/runtime"
	"problem-map/runtime/workers"
	"problem-map/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Master terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the servers lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every deferred close (log, bluge, badger) run.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env is fine, the environment may already be populated.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	policy, err := workers.ParseDecodePolicy(config.DecodePolicy)
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB) and search index (Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, LogRecordMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Log backend
	producer, reader, closeLog, err := openLog(config, logger, db)
	if err != nil {
		return exitRuntime, err
	}
	defer closeLog()

	// 4. Moderation dictionaries
	censored, err := moderation.NewCensoredLoader(nil).LoadAll("censored")
	if err != nil {
		return exitRuntime, fmt.Errorf("censored words loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator init failed: %w", err)
	}
	logger.Info("Censored dictionaries loaded", "languages", censored.Languages, "words", len(censored.Words))

	// 5. Setup Supervision & Orchestration
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	registry := runtime.NewRegistry()
	orchestrator := runtime.NewOrchestrator(logger, sup, registry, reader, policy, config.BufferSize, config.SinkTimeout)
	searchIndex := projection.NewSearchIndex(logger, blugeWriter)
	orchestrator.Add(searchIndex)
	orchestrator.AddWorkers(workers.NewProcessStatsWorker(logger, config.MetricInterval, orchestrator.Gauges()...))

	healthReporter := observability.NewHealth(logger)
	orchestrator.OnApplierStateChange(healthReporter.OnApplierState)

	// 6. Services & HTTP API
	logPublisher := publisher.NewPublisher(logger, producer)
	issuer := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	userRepository := storage.NewUserRepository(db)
	authService := services.NewAuthService(userRepository, issuer)
	userService := services.NewUserService(logger, userRepository)
	if config.AdminEmail != "" {
		if err := userService.EnsureAdmin(config.AdminEmail, config.AdminPassword); err != nil {
			return exitConfig, err
		}
	}
	problemService := services.NewProblemService(logger, orchestrator.Problems(), logPublisher, searchIndex, config.PublishTimeout)
	chatService := services.NewChatService(logger, orchestrator.Chats(), orchestrator.Problems(),
		logPublisher, moderator, orchestrator, config.PublishTimeout)
	httpServer := server.NewServer(logger, authService, userService, problemService, chatService, issuer, config.ConnectionBufferSize)

	// 7. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting orchestrator...", "backend", config.LogBackend, "decode_policy", config.DecodePolicy)
	if err := orchestrator.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator error: %w", err)
	}

	// Error (HTTP & health servers)
	errChan := make(chan error, 2)
	var servers sync.WaitGroup
	serve := func(listen func(context.Context, string) error, address string) {
		servers.Add(1)
		go func() {
			defer servers.Done()
			if err := listen(ctx, address); err != nil {
				errChan <- err
			}
		}()
	}
	serve(httpServer.ListenAndServe, fmt.Sprintf("0.0.0.0:%d", config.HTTPPort))
	serve(healthReporter.ListenAndServe, fmt.Sprintf("0.0.0.0:%d", config.HealthPort))

	// 8. Wait for Stop or Error
	// The execution blocks here until a signal is received, a server fails, or the applier exits.
	code, failure := exitOK, error(nil)
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-orchestrator.Failures():
		code, failure = exitRuntime, fmt.Errorf("%w: %w", errors.ErrApplierCrashed, err)
	case err := <-errChan:
		code, failure = exitRuntime, err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	stop()
	servers.Wait()
	orchestrator.Stop()
	logger.Info("Program stopped", "code", code)

	return code, failure
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// openLog returns both sides of the configured log and the function releasing it.
func openLog(config internal.Config, logger *slog.Logger, db *badger.DB) (contract.LogProducer, contract.LogReader, func(), error) {
	switch config.LogBackend {
	case internal.BackendKafka:
		groupID := kafka.GroupID(config.KafkaGroupPrefix, time.Now())
		client, err := kafka.NewClient(logger, config.Brokers(), groupID)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("Kafka log opened", "brokers", config.Brokers(), "group_id", groupID)
		return client, kafka.NewReader(logger, client), client.Close, nil
	case internal.BackendBadger:
		repository, err := storage.NewLogRepository(db, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("badger log opening failed: %w", err)
		}
		logger.Info("Badger log opened", "path", config.BadgerFilepath)
		return repository, repository.Reader(0), func() { _ = repository.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, config.LogBackend)
	}
}
