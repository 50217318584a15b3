package modeldl

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"

	"asr-worker-go/internal/download"
	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/uri"
)

var log = logger.New().WithComponent("modeldl")

// EnsureModel makes sure the whisper model checkpoint is available under
// modelBaseDir before the worker starts accepting tasks. A missing
// checkpoint is fetched from modelS3URI with a few retries; when that fails
// the engine falls back to resolving the model by name, so this is never
// fatal.
func EnsureModel(ctx context.Context, store download.ObjectGetter, modelBaseDir, modelS3URI string) bool {
	if _, err := os.Stat(filepath.Join(modelBaseDir, "model.bin")); err == nil {
		log.Info("model found locally")
		return true
	}
	if modelS3URI == "" || store == nil {
		log.Info("no model S3 URI configured, engine will resolve the model by name")
		return false
	}
	bucket, key, err := uri.ParseS3URI(modelS3URI)
	if err != nil {
		log.WithField("uri", modelS3URI).Warn("invalid model S3 URI, engine will resolve the model by name")
		return false
	}

	log.WithField("uri", modelS3URI).Info("model not found locally, downloading from S3")
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err = backoff.Retry(func() error {
		_, err := store.DownloadFile(ctx, bucket, key, modelBaseDir)
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		log.WithField("error", err.Error()).Warn("model download failed, engine will resolve the model by name")
		return false
	}
	log.WithField("dir", modelBaseDir).Info("model downloaded")
	return true
}
