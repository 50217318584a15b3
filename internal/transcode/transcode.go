package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/provenance"
)

var log = logger.New().WithComponent("transcode")

// ErrNotTranscodable marks inputs whose container format the worker cannot
// turn into decodable audio.
var ErrNotTranscodable = errors.New("input is not transcodable")

var audioExtensions = map[string]bool{".mp3": true, ".wav": true}
var transcodableExtensions = map[string]bool{".mov": true, ".mp4": true}

// Runner abstracts the external media tool so tests can stub the subprocess.
type Runner interface {
	// Run transcodes input into output, returning captured stderr on failure.
	Run(ctx context.Context, input, output string) error
	// Version returns the tool's version banner.
	Version(ctx context.Context) string
}

// FFmpeg shells out to the ffmpeg binary with fixed arguments.
type FFmpeg struct{}

func (FFmpeg) Run(ctx context.Context, input, output string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y", "-i", input, output)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (FFmpeg) Version(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// Result carries the path ASR should consume plus the stage's provenance.
type Result struct {
	AudioPath string
	Prov      provenance.Step
}

// TryTranscode ensures inputPath is decodable audio. Inputs that already are
// audio pass through untouched; video containers are transcoded to
// <assetID>.mp3 under outputDir unless that file already exists.
func TryTranscode(ctx context.Context, runner Runner, inputPath, assetID, extension, outputDir string) (Result, error) {
	start := time.Now()
	step := provenance.Step{
		ActivityName:        "Transcoding",
		ActivityDescription: "Checks if input needs transcoding, then transcodes if so",
		StartTimeUnix:       start.Unix(),
		InputData:           inputPath,
		Notes:               []string{},
		Steps:               []provenance.Step{},
	}

	if audioExtensions[extension] {
		log.WithField("input", inputPath).Info("no transcode required, input is audio")
		step.ProcessingTimeMs = time.Since(start).Milliseconds()
		step.OutputData = inputPath
		step.Notes = append(step.Notes, "no transcode required, input is audio")
		return Result{AudioPath: inputPath, Prov: step}, nil
	}

	if !transcodableExtensions[extension] {
		return Result{}, fmt.Errorf("%w: extension %s", ErrNotTranscodable, extension)
	}

	target := filepath.Join(outputDir, assetID+".mp3")
	if _, err := os.Stat(target); err == nil {
		log.WithField("target", target).Info("transcoded file is already available, no new transcode needed")
		step.ProcessingTimeMs = time.Since(start).Milliseconds()
		step.OutputData = target
		step.Notes = append(step.Notes, "transcoded file is already available, no new transcode needed")
		return Result{AudioPath: target, Prov: step}, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("could not create output dir %s: %w", outputDir, err)
	}
	// the tool writes a temp name so the target only ever exists complete;
	// the suffix stays .mp3 because ffmpeg picks the format from it
	tmp := filepath.Join(outputDir, assetID+".partial.mp3")
	if err := runner.Run(ctx, inputPath, tmp); err != nil {
		os.Remove(tmp)
		return Result{}, err
	}
	if err := os.Rename(tmp, target); err != nil {
		return Result{}, fmt.Errorf("could not finalize %s: %w", target, err)
	}

	log.WithField("extension", extension).WithField("target", target).Info("transcode successful")
	step.ProcessingTimeMs = time.Since(start).Milliseconds()
	step.SoftwareVersion = runner.Version(ctx)
	step.OutputData = target
	step.Notes = append(step.Notes, "transcode successful")
	return Result{AudioPath: target, Prov: step}, nil
}
