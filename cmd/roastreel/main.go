// @title RoastReel API
// @version 1.0
// @description Turns a LinkedIn profile into a captioned roast video.
// @BasePath /api
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
	fiberSwagger "github.com/swaggo/fiber-swagger"

	"roastreel/config"
	_ "roastreel/docs"
	"roastreel/handlers"
	"roastreel/internal/aiclient"
	"roastreel/internal/cache"
	"roastreel/internal/compositor"
	"roastreel/internal/db"
	"roastreel/internal/ffmpeg"
	"roastreel/internal/jobs"
	"roastreel/internal/pipeline"
	"roastreel/internal/profile"
	"roastreel/internal/storage"
	"roastreel/internal/worker"
	"roastreel/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := config.NewLogger(cfg.Logging.Level)

	store, closeStore, err := newCacheStore(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer closeStore()

	supabaseClient, err := config.NewSupabaseClient(cfg.Supabase)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase: %v", err)
	}

	recorder, err := newRecorder(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize run recorder: %v", err)
	}

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	downloadClient := &http.Client{Timeout: cfg.Timeouts.Render}

	speech := aiclient.NewSpeechClient(httpClient, aiclient.SpeechConfig{
		APIKey:  cfg.Speech.ElevenLabsAPIKey,
		BaseURL: cfg.Speech.ElevenLabsBaseURL,
		VoiceID: cfg.Speech.VoiceID,
		ModelID: cfg.Speech.ModelID,
	}, log)
	transcription := aiclient.NewTranscriptionClient(httpClient, aiclient.TranscriptionConfig{
		APIKey:  cfg.Speech.DeepgramAPIKey,
		BaseURL: cfg.Speech.DeepgramBaseURL,
		Model:   cfg.Speech.DeepgramModel,
	}, log)

	profiles := profile.NewFetcher(httpClient, store, profile.Config{
		BaseURL: cfg.Profile.BaseURL,
		APIKey:  cfg.Profile.APIKey,
		APIHost: cfg.Profile.APIHost,
	}, log)
	commentary := aiclient.NewCommentaryGenerator(aiclient.CommentaryConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	}, store, log)
	renderer := compositor.New(ffmpeg.New(cfg.Video.FFmpegPath, cfg.Video.FFprobePath, log), downloadClient, compositor.Config{
		BaseVideoURL: cfg.Video.BaseVideoURL,
		FontFile:     cfg.Paths.FontFile,
	}, log)

	dispatcher := worker.NewDispatcher(cfg.Video.RenderWorkers, cfg.Video.RenderQueueSize, log)
	dispatcher.Run()
	defer dispatcher.Stop()

	roaster := pipeline.NewRoaster(pipeline.Deps{
		Profiles:   profiles,
		Commentary: commentary,
		Speech:     aiclient.NewSynthesizer(speech, transcription, log),
		Renderer:   jobs.NewQueuedRenderer(renderer, dispatcher),
		Publisher:  storage.NewUploader(supabaseClient.Storage, cfg.Supabase.Bucket, log),
		Recorder:   recorder,
		HTTPClient: httpClient,
	}, pipeline.Config{
		ScratchDir:          cfg.Paths.ScratchDir,
		DefaultProfileImage: cfg.Paths.DefaultProfileImage,
		Timeouts: pipeline.Timeouts{
			Profile:    cfg.Timeouts.Profile,
			Commentary: cfg.Timeouts.Commentary,
			Speech:     cfg.Timeouts.Speech,
			Render:     cfg.Timeouts.Render,
			Upload:     cfg.Timeouts.Upload,
		},
	}, log)

	appHandler := handlers.NewApplicationHandler(roaster, log)

	app := fiber.New(fiber.Config{
		AppName:               "roastreel",
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestLogger(log))

	requestCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	app.Use(middleware.RequestContext(requestCtx))

	api := app.Group("/api")
	api.Post("/generate-roast", appHandler.GenerateRoast)
	api.Get("/health", appHandler.Health)

	app.Get("/swagger/*", fiberSwagger.WrapHandler)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down server")
		cancelRequests()
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.WithField("port", cfg.Server.Port).Info("Starting roastreel server")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

func newCacheStore(cfg *config.Config, log *logrus.Logger) (cache.Store, func(), error) {
	if cfg.Cache.Backend == config.CacheBackendRedis {
		store, err := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return cache.NewFileStore(cfg.Paths.CacheDir, log), func() {}, nil
}

func newRecorder(cfg *config.Config, log *logrus.Logger) (db.Recorder, error) {
	if cfg.Supabase.RunsTable == "" {
		return db.NopRecorder{}, nil
	}
	return db.NewPostgrestRecorder(cfg.Supabase.RestURL(), cfg.Supabase.ServiceKey, cfg.Supabase.RunsTable, log)
}
