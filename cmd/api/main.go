package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	"talkinghead/internal/adapter/repo"
	"talkinghead/internal/domain"
	"talkinghead/internal/generation"
	"talkinghead/internal/http/handlers"
	httpapi "talkinghead/internal/http/httpapi"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Job store: postgres for durable deployments, memory for local runs.
	var store domain.JobStore
	switch cfg.JobStore {
	case infra.JobStorePostgres:
		if err := infra.RunMigrations(cfg); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		store = repo.NewJobRepository(dbpool)
	default:
		store = repo.NewMemoryJobStore()
	}

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

	// Dispatch: inline runs jobs on tracked goroutines in this process; queue
	// publishes them for dedicated workers.
	var (
		dispatcher generation.Dispatcher
		inline     *generation.GoDispatcher
	)
	switch cfg.DispatchMode {
	case infra.DispatchQueue:
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to broker")
		}
		defer conn.Close()
		publisher, err := rabbitmq.NewPublisher(conn, cfg.TaskExchange, cfg.TaskRoutingKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init publisher")
		}
		defer publisher.Close()
		dispatcher = publisher
	default:
		runner := generation.NewRunner(store, provider, visionstory.DefaultVideoOptions(), generation.InteractiveProfile, logger)
		inline = generation.NewGoDispatcher(ctx, runner, files, logger)
		dispatcher = inline
	}

	app := &handlers.App{
		Store:          store,
		Files:          files,
		Dispatcher:     dispatcher,
		Provider:       provider,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if inline != nil {
		logger.Info().Msg("waiting for in-flight jobs")
		inline.Wait()
	}
	logger.Info().Msg("server stopped")
}
