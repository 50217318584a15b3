package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"asr-worker-go/internal/config"
	"asr-worker-go/internal/daan"
	"asr-worker-go/internal/download"
	"asr-worker-go/internal/export"
	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/provenance"
	"asr-worker-go/internal/transcode"
	"asr-worker-go/internal/uri"
	"asr-worker-go/internal/whisper"
)

var log = logger.New().WithComponent("pipeline")

// ObjectStore is the object-store collaborator: input download plus output
// transfer.
type ObjectStore interface {
	download.ObjectGetter
	TransferToS3(ctx context.Context, bucket, prefix string, files []string) error
}

// Runner sequences one full pipeline run: acquire input, normalize the
// format, run ASR, reformat the transcript, persist provenance and
// optionally ship the artifacts. Every stage is idempotent by artifact
// existence, so re-running a partially completed asset resumes from the
// first incomplete stage.
type Runner struct {
	cfg        config.Config
	engine     whisper.Engine
	store      ObjectStore
	transcoder transcode.Runner
}

func NewRunner(cfg config.Config, engine whisper.Engine, store ObjectStore, transcoder transcode.Runner) *Runner {
	return &Runner{cfg: cfg, engine: engine, store: store, transcoder: transcoder}
}

// InputDir returns the per-asset working directory for downloaded input.
func (r *Runner) InputDir(assetID string) string {
	return filepath.Join(r.cfg.DataBaseDir, "input", assetID)
}

// OutputDir returns the per-asset directory holding all artifacts.
func (r *Runner) OutputDir(assetID string) string {
	return filepath.Join(r.cfg.DataBaseDir, "output", assetID)
}

// Run executes the pipeline for one asset and returns the output
// reference: the S3 destination when artifacts were shipped there, the
// local output directory otherwise. Failures in the first four stages
// abort the run; provenance persistence, transfer and cleanup are
// best-effort and never fail an otherwise successful transcription.
func (r *Runner) Run(ctx context.Context, inputURI, outputURI string) (string, error) {
	log.WithField("input_uri", inputURI).WithField("output_uri", outputURI).Info("processing")
	start := time.Now()
	var steps []provenance.Step

	if uri.Classify(inputURI) == uri.KindInvalid {
		return "", fmt.Errorf("input failure: URI is neither S3, nor HTTP: %s", inputURI)
	}

	assetID, extension := uri.AssetInfo(inputURI)
	if assetID == "" {
		return "", fmt.Errorf("input failure: no file name in URI: %s", inputURI)
	}
	inputDir := r.InputDir(assetID)
	outputDir := r.OutputDir(assetID)
	filename := assetID + extension

	// 1. acquire input
	dl, err := download.Download(ctx, r.store, inputURI, inputDir, filename)
	if err != nil {
		r.cleanupPartialInput(inputDir)
		return "", fmt.Errorf("could not obtain input: %w", err)
	}
	log.WithField("path", dl.Path).WithField("mime_type", dl.MimeType).Info("input acquired")
	steps = append(steps, dl.Prov)

	// 2. ensure decodable audio
	tr, err := transcode.TryTranscode(ctx, r.transcoder, dl.Path, assetID, extension, outputDir)
	if err != nil {
		return "", fmt.Errorf("transcode failure: %w", err)
	}
	steps = append(steps, tr.Prov)

	// 3. run ASR
	asrStep, err := whisper.RunASR(ctx, r.engine, tr.AudioPath, outputDir, assetID)
	if err != nil {
		return "", err
	}
	steps = append(steps, asrStep)

	// 4. generate the indexing transcript
	daanStep, err := daan.Generate(outputDir)
	if err != nil {
		return "", err
	}
	steps = append(steps, daanStep)

	if r.cfg.ExportXLSX {
		if t, err := whisper.LoadTranscript(outputDir); err == nil {
			export.WriteReviewSheet(t, outputDir)
		} else {
			log.WithError(err).Warn("skipping review spreadsheet")
		}
	}

	// 5. persist provenance (non-fatal)
	transferRequested := r.cfg.TransferOnCompletion && outputURI != ""
	outputRef := outputDir
	if transferRequested {
		outputRef = outputURI
	}
	final := provenance.Compose(start, r.parameters(), inputURI, outputRef, steps)
	provenance.SaveOrWarn(final, outputDir)

	// 6. transfer output (non-fatal)
	if transferRequested {
		if err := r.transfer(ctx, outputDir, outputURI); err != nil {
			log.WithError(err).Warn("output transfer failed")
		}
	} else {
		log.Info("no output transfer requested, so all is done")
	}

	// 7. cleanup (non-fatal)
	r.cleanup(inputDir, outputDir)

	return outputRef, nil
}

// transfer ships the three well-known artifacts to the S3 destination.
// Partial sets are not supported; a misconfigured destination is a soft
// failure because transfer is a convenience, not a correctness requirement.
func (r *Runner) transfer(ctx context.Context, outputDir, outputURI string) error {
	if !r.cfg.S3Configured() || r.store == nil {
		return fmt.Errorf("transfer configured without all the necessary S3 settings")
	}
	bucket, prefix, err := uri.ParseS3URI(outputURI)
	if err != nil {
		return err
	}
	log.WithField("output_dir", outputDir).WithField("destination", outputURI).Info("transferring output")
	return r.store.TransferToS3(ctx, bucket, prefix, []string{
		filepath.Join(outputDir, daan.JSONFile),
		filepath.Join(outputDir, whisper.JSONFile),
		filepath.Join(outputDir, provenance.JSONFile),
	})
}

// cleanup deletes local input/output depending on configuration.
// Unconditionally best-effort: a cleanup failure must never mask a
// successful transcription.
func (r *Runner) cleanup(inputDir, outputDir string) {
	if r.cfg.DeleteInputOnCompletion {
		if err := os.RemoveAll(inputDir); err != nil {
			log.WithField("dir", inputDir).WithError(err).Warn("could not delete input")
		}
	}
	if r.cfg.DeleteOutputOnCompletion {
		if err := os.RemoveAll(outputDir); err != nil {
			log.WithField("dir", outputDir).WithError(err).Warn("could not delete output")
		}
	}
}

// cleanupPartialInput removes whatever a failed acquisition left behind so
// a later retry never trusts a half-written download.
func (r *Runner) cleanupPartialInput(inputDir string) {
	if err := os.RemoveAll(inputDir); err != nil {
		log.WithField("dir", inputDir).WithError(err).Warn("could not clean up partial input")
	}
}

// parameters snapshots the ASR configuration actually used for this run.
func (r *Runner) parameters() map[string]string {
	return map[string]string{
		"word_timestamps": strconv.FormatBool(r.cfg.WordTimestamps),
		"vad":             strconv.FormatBool(r.cfg.VAD),
		"device":          r.cfg.Device,
		"model":           r.cfg.Model,
		"beam_size":       strconv.Itoa(r.cfg.BeamSize),
		"best_of":         strconv.Itoa(r.cfg.BestOf),
		"temperature":     r.cfg.Temperature,
		"language":        r.cfg.Language,
	}
}
