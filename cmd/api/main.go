package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voice-transcribe-go/internal/api"
	"voice-transcribe-go/internal/audio"
	"voice-transcribe-go/internal/config"
	"voice-transcribe-go/internal/enrichment"
	"voice-transcribe-go/internal/logger"
	"voice-transcribe-go/internal/pipeline"
	"voice-transcribe-go/internal/storage"
	"voice-transcribe-go/internal/transcription"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		logger.New("", "").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.Log.Environment, cfg.Log.Level)
	log.WithField("service", "voice-transcribe-go").Info("starting service")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("configuration rejected")
	}

	store, err := storage.NewBlobStore(cfg.Storage.ConnectionString, cfg.Storage.Container, cfg.Storage.SASTTL, log)
	if err != nil {
		log.WithError(err).Fatal("blob store init failed")
	}

	stt := transcription.NewClient(
		cfg.Speech.Endpoint(), cfg.Speech.Key, cfg.Speech.Locale,
		transcription.PollPolicy{Interval: cfg.Pipeline.PollInterval, MaxAttempts: cfg.Pipeline.MaxPolls},
		cfg.Pipeline.CallTimeout, log)

	var enricher pipeline.Enricher
	if cfg.Language.Enabled() {
		enricher = enrichment.NewClient(cfg.Language.Endpoint, cfg.Language.Key,
			cfg.Language.SummarySentences, cfg.Pipeline.CallTimeout, log)
	} else {
		log.Info("enrichment disabled (no LANGUAGE_KEY/LANGUAGE_ENDPOINT), responses will be transcript-only")
	}

	pipe := pipeline.New(audio.NewNormalizer(), store, stt, enricher, log)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: api.NewRouter(pipe, log).Setup(),
		// Write timeout must cover the whole synchronous polling window.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Pipeline.PollWindow() + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.Addr()).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
