package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"talkinghead/internal/adapter/repo"
	"talkinghead/internal/generation"
	"talkinghead/internal/infra"
	"talkinghead/internal/providers/visionstory"
	"talkinghead/internal/queue/rabbitmq"
	"talkinghead/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Workers share job state with the API process, so the in-memory store is
	// not an option here.
	if cfg.JobStore != infra.JobStorePostgres {
		logger.Fatal().Msgf("worker requires JOB_STORE=%s", infra.JobStorePostgres)
	}
	if cfg.AMQPURL == "" {
		logger.Fatal().Msg("worker requires AMQP_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := infra.RunMigrations(cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	store := repo.NewJobRepository(dbpool)

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init file store")
	}

	provider, err := visionstory.NewClient(visionstory.Options{
		APIKey:  cfg.VisionStoryAPIKey,
		BaseURL: cfg.VisionStoryBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init provider client")
	}

	// Queue-driven work is not latency sensitive, so the poll budget stretches
	// far past the interactive one.
	runner := generation.NewRunner(store, provider, visionstory.DefaultVideoOptions(), generation.DeferredProfile, logger)

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer conn.Close()

	consumer, err := rabbitmq.NewConsumer(conn, cfg.TaskExchange, cfg.TaskRoutingKey, cfg.TaskQueue, runner, files, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init consumer")
	}

	logger.Info().Str("queue", cfg.TaskQueue).Msg("worker consuming")
	if err := consumer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("consumer failed")
	}
	logger.Info().Msg("worker stopped")
}
