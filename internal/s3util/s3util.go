package s3util

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"asr-worker-go/internal/logger"
)

var log = logger.New().WithComponent("s3util")

// S3Store wraps the object-store client used for both input download and
// output transfer.
type S3Store struct {
	client *minio.Client
}

// NewS3Store connects to the configured S3-compatible endpoint. Anonymous
// access is used when no credentials are supplied (public buckets).
func NewS3Store(endpointURL, accessKey, secretKey string) (*S3Store, error) {
	u, err := url.Parse(endpointURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid S3 endpoint URL %q", endpointURL)
	}
	var creds *credentials.Credentials
	if accessKey != "" {
		creds = credentials.NewStaticV4(accessKey, secretKey, "")
	} else {
		creds = credentials.NewStaticV4("", "", "")
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:  creds,
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client init: %w", err)
	}
	return &S3Store{client: client}, nil
}

// DownloadFile fetches bucket/key into dir, keeping the object's base name.
// Returns the local file path.
func (s *S3Store) DownloadFile(ctx context.Context, bucket, key, dir string) (string, error) {
	target := filepath.Join(dir, filepath.Base(key))
	log.WithField("bucket", bucket).WithField("key", key).Info("downloading object")
	if err := s.client.FGetObject(ctx, bucket, key, target, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("s3 download of %s/%s: %w", bucket, key, err)
	}
	return target, nil
}

// TransferToS3 uploads the given files under bucket/prefix. The set is
// all-or-nothing: every file must exist locally before any upload starts.
func (s *S3Store) TransferToS3(ctx context.Context, bucket, prefix string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("refusing partial transfer, missing %s: %w", f, err)
		}
	}
	for _, f := range files {
		object := prefix + "/" + filepath.Base(f)
		log.WithField("bucket", bucket).WithField("object", object).Info("uploading artifact")
		if _, err := s.client.FPutObject(ctx, bucket, object, f, minio.PutObjectOptions{}); err != nil {
			return fmt.Errorf("s3 upload of %s: %w", f, err)
		}
	}
	return nil
}
