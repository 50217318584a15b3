package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"asr-worker-go/internal/api"
	"asr-worker-go/internal/config"
	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/modeldl"
	"asr-worker-go/internal/pipeline"
	"asr-worker-go/internal/s3util"
	"asr-worker-go/internal/tasks"
	"asr-worker-go/internal/transcode"
	"asr-worker-go/internal/whisper"
)

const drainPollInterval = 500 * time.Millisecond

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "asr-worker-go").Info("starting service")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	var store pipeline.ObjectStore
	if cfg.S3Configured() {
		s3, err := s3util.NewS3Store(cfg.S3EndpointURL, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			log.WithError(err).Fatal("could not set up the object store")
		}
		store = s3
	}

	// make sure the model checkpoint is on disk before accepting tasks
	modeldl.EnsureModel(context.Background(), store, cfg.ModelBaseDir, cfg.ModelS3URI)

	// the single shared model resource, held until shutdown
	log.WithField("device", cfg.Device).WithField("model", cfg.Model).Info("loading model")
	engine := whisper.LoadModel(cfg.WhisperServiceURL, whisper.Options{
		Model:          cfg.Model,
		Device:         cfg.Device,
		Language:       cfg.Language,
		BeamSize:       cfg.BeamSize,
		BestOf:         cfg.BestOf,
		Temperature:    cfg.Temperature,
		VAD:            cfg.VAD,
		WordTimestamps: cfg.WordTimestamps,
	})

	runner := pipeline.NewRunner(cfg, engine, store, transcode.FFmpeg{})
	mgr := tasks.NewManager(runner.Run)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewServer(mgr).Mux(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// drain the in-flight task to completion before releasing the model
	log.Info("shutdown requested, draining in-flight task")
	mgr.Drain(drainPollInterval)
	if err := engine.Close(); err != nil {
		log.WithError(err).Warn("error releasing the model")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http shutdown error")
	}
	log.Info("bye")
}
