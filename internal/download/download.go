package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/provenance"
	"asr-worker-go/internal/uri"
)

var (
	log        = logger.New().WithComponent("download")
	httpClient = &http.Client{Timeout: 5 * time.Minute}
)

// MimeTypeUnknown is returned for extensions outside the lookup table.
const MimeTypeUnknown = "unknown"

var extensionToMime = map[string]string{
	".mov": "video/quicktime",
	".mp4": "video/mp4",
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
}

// MimeType maps a file extension to its MIME string. Unknown extensions map
// to the "unknown" sentinel, never an error.
func MimeType(extension string) string {
	if mt, ok := extensionToMime[extension]; ok {
		return mt
	}
	return MimeTypeUnknown
}

// ObjectGetter is the object-store side of input acquisition.
type ObjectGetter interface {
	DownloadFile(ctx context.Context, bucket, key, dir string) (string, error)
}

// Result is what acquisition hands to the rest of the pipeline.
type Result struct {
	Path     string
	MimeType string
	Prov     provenance.Step
}

// Download materializes a local copy of rawURI at inputDir/filename.
// Acquisition is idempotent by path existence: a file already at the target
// is treated as success and no bytes are fetched again.
func Download(ctx context.Context, store ObjectGetter, rawURI, inputDir, filename string) (Result, error) {
	start := time.Now()
	_, extension := uri.AssetInfo(filename)
	target := filepath.Join(inputDir, filename)
	step := provenance.Step{
		ActivityName:        "Download Input",
		ActivityDescription: "Downloads the input file to be transcribed",
		StartTimeUnix:       start.Unix(),
		InputData:           rawURI,
		Notes:               []string{},
		Steps:               []provenance.Step{},
	}

	if _, err := os.Stat(target); err == nil {
		log.WithField("path", target).Info("input already present, skipping download")
		step.OutputData = target
		step.Notes = append(step.Notes, "skipped: already present")
		return Result{Path: target, MimeType: MimeType(extension), Prov: step}, nil
	}

	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("could not create input dir %s: %w", inputDir, err)
	}

	switch uri.Classify(rawURI) {
	case uri.KindS3:
		bucket, key, err := uri.ParseS3URI(rawURI)
		if err != nil {
			return Result{}, err
		}
		log.WithField("uri", rawURI).Info("URI seems to be an S3 URI")
		if store == nil {
			return Result{}, fmt.Errorf("S3 input %s requires a configured object store", rawURI)
		}
		path, err := store.DownloadFile(ctx, bucket, key, inputDir)
		if err != nil {
			return Result{}, fmt.Errorf("could not download %s: %w", rawURI, err)
		}
		target = path
	case uri.KindHTTP:
		log.WithField("uri", rawURI).Info("URI seems to be an HTTP URI")
		if err := httpDownload(ctx, rawURI, target); err != nil {
			return Result{}, err
		}
	default:
		return Result{}, fmt.Errorf("input failure: URI is neither S3, nor HTTP: %s", rawURI)
	}

	step.ProcessingTimeMs = time.Since(start).Milliseconds()
	step.OutputData = target
	return Result{Path: target, MimeType: MimeType(extension), Prov: step}, nil
}

// httpDownload streams a GET response into a temp file next to target and
// renames it into place once the body is fully written. The target only
// ever exists complete: the skip check trusts its presence.
func httpDownload(ctx context.Context, rawURI, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURI, nil)
	if err != nil {
		return fmt.Errorf("could not build request for %s: %w", rawURI, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not download %s: %w", rawURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("could not download %s, response code: %d", rawURI, resp.StatusCode)
	}

	f, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temp file for %s: %w", target, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("write to %s failed: %w", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("write to %s failed: %w", target, err)
	}
	return os.Rename(f.Name(), target)
}
