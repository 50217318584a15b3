package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/provenance"
)

// JSONFile is the raw transcript artifact name.
const JSONFile = "whisper-transcript.json"

var log = logger.New().WithComponent("whisper")

// AlreadyDone reports whether a raw transcript exists in outputDir.
func AlreadyDone(outputDir string) bool {
	_, err := os.Stat(filepath.Join(outputDir, JSONFile))
	return err == nil
}

// RunASR invokes the engine on audioPath and writes the raw transcript
// artifact. Idempotent by artifact existence: a present
// whisper-transcript.json skips the model entirely and yields an
// "already exists" step without timing data.
func RunASR(ctx context.Context, engine Engine, audioPath, outputDir, assetID string) (provenance.Step, error) {
	if AlreadyDone(outputDir) {
		log.WithField("output_dir", outputDir).Info("whisper transcript already present")
		return provenance.Skipped("Whisper transcript already exists"), nil
	}

	start := time.Now()
	log.WithField("input", audioPath).Info("starting ASR")
	segments, err := engine.Transcribe(ctx, audioPath)
	if err != nil {
		return provenance.Step{}, fmt.Errorf("whisper inference on %s failed: %w", audioPath, err)
	}

	transcript := Transcript{CarrierID: assetID, Segments: segments}
	target := filepath.Join(outputDir, JSONFile)
	if err := provenance.WriteJSONAtomic(target, transcript); err != nil {
		return provenance.Step{}, fmt.Errorf("could not write %s: %w", target, err)
	}

	return provenance.Step{
		ActivityName:        "Running whisper",
		ActivityDescription: "Runs whisper to transcribe the input audio file",
		StartTimeUnix:       start.Unix(),
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
		InputData:           audioPath,
		OutputData:          target,
		Notes:               []string{},
		Steps:               []provenance.Step{},
	}, nil
}

// LoadTranscript reads a previously written raw transcript artifact.
func LoadTranscript(outputDir string) (Transcript, error) {
	var t Transcript
	b, err := os.ReadFile(filepath.Join(outputDir, JSONFile))
	if err != nil {
		return t, fmt.Errorf("could not load raw transcript: %w", err)
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("could not parse raw transcript: %w", err)
	}
	return t, nil
}
