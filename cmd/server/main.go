package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/windfall/fgl_practice/internal/capture"
	"github.com/windfall/fgl_practice/internal/client"
	"github.com/windfall/fgl_practice/internal/config"
	"github.com/windfall/fgl_practice/internal/handler/http"
	"github.com/windfall/fgl_practice/internal/handler/ws"
	"github.com/windfall/fgl_practice/internal/logger"
	"github.com/windfall/fgl_practice/internal/repository"
	"github.com/windfall/fgl_practice/internal/server"
	"github.com/windfall/fgl_practice/internal/service"
	"github.com/windfall/fgl_practice/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.Environment).Msg("Starting fgl_practice")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients
	var speechClient *client.AzureSpeechClient
	if cfg.SpeechServiceKey != "" && cfg.SpeechRegion != "" {
		speechClient = client.NewAzureSpeechClient(cfg.SpeechServiceKey, cfg.SpeechRegion, cfg.SpeechLanguage)
	} else {
		log.Warn().Msg("Speech credentials missing, rating will be unavailable")
	}

	var foundryClient *client.FoundryClient
	if cfg.FoundryEndpoint != "" && cfg.FoundryAPIKey != "" {
		foundryClient = client.NewFoundryClient(
			cfg.FoundryEndpoint,
			cfg.FoundryAPIKey,
			cfg.TranscribeModel,
			cfg.TtsModel,
			cfg.TtsVoice,
			cfg.FoundryAPIVersion,
		)
	} else {
		log.Warn().Msg("Foundry credentials missing, transcription and TTS will be unavailable")
	}

	var redisClient *client.RedisClient
	var ratingCache service.RatingCache
	if cfg.RedisURL != "" {
		redisClient, err = client.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize Redis client")
			redisClient = nil
		} else {
			ratingCache = redisClient
			log.Info().Msg("Redis client initialized")
		}
	}

	// Object storage backend
	var store service.ObjectStore
	switch cfg.StorageBackend {
	case "gcs":
		gcsClient, err := client.NewStorageClient(ctx, cfg.GCSBucketName)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize GCS client")
		}
		defer gcsClient.Close()
		store = gcsClient
		log.Info().Str("bucket", cfg.GCSBucketName).Msg("GCS storage initialized")
	default:
		r2Client, err := client.NewCloudflareClient(ctx,
			cfg.CloudflareAccessKeyID,
			cfg.CloudflareSecretKey,
			cfg.CloudflareR2Endpoint,
			cfg.CloudflareBucketName,
			cfg.CloudflarePublicURL,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Cloudflare R2 client")
		}
		store = r2Client
		log.Info().Str("bucket", cfg.CloudflareBucketName).Msg("Cloudflare R2 storage initialized")
	}

	// Postgres
	postgresClient, err := client.NewPostgresClient(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Postgres client")
	}
	defer postgresClient.Close()
	log.Info().Msg("Postgres client initialized")

	// Repositories
	wordRepo := repository.NewPostgresWordRepository(postgresClient)
	paragraphRepo := repository.NewPostgresParagraphRepository(postgresClient)
	reportRepo := repository.NewPostgresReportRepository(postgresClient)

	// Services
	contentService := service.NewContentService(wordRepo, paragraphRepo, log)
	uploadService := service.NewUploadService(store, wordRepo, paragraphRepo, ratingCache, log)
	scoringService := service.NewScoringService(speechClient, store, reportRepo, ratingCache, log)
	transcriptionService := service.NewTranscriptionService(foundryClient, store, wordRepo, log)
	ttsService := service.NewTtsService(foundryClient, store, paragraphRepo, log)

	// Microphone
	captureCtx, err := capture.NewContext()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize audio backend")
	}
	defer captureCtx.Close()
	recorder := capture.NewRecorder(captureCtx, capture.Config{
		SampleRate: cfg.CaptureSampleRate,
		Channels:   cfg.CaptureChannels,
	})

	// WebSocket hub doubles as the slot change notifier.
	hub := server.NewWebSocketHub(log)
	go hub.Run(ctx)

	// Session controller
	controller := session.NewController(
		log,
		recorder,
		contentService,
		uploadService,
		scoringService,
		transcriptionService,
		ttsService,
		hub,
	)

	// Handlers
	healthHandler := http.NewHealthHandler()
	practiceHandler := http.NewPracticeHandler(log, controller, contentService, scoringService)
	shadowingHandler := http.NewShadowingHandler(log, controller, contentService)
	mediaHandler := http.NewMediaHandler(log, store)
	wsHandler := ws.NewHandler(log, controller)

	// HTTP server
	httpServer := server.NewHTTPServer(cfg, log,
		healthHandler, practiceHandler, shadowingHandler, mediaHandler, hub, wsHandler)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server error")
			cancel()
		}
	}()

	log.Info().Str("http_addr", cfg.HTTPAddress()).Msg("Server started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if redisClient != nil {
		redisClient.Close()
	}

	log.Info().Msg("Server stopped")
}
