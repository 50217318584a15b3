package provenance

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"asr-worker-go/internal/logger"
)

// JSONFile is the provenance artifact written next to the transcripts.
const JSONFile = "provenance.json"

// versionFile is written by the build and carries the commit hash.
const versionFile = "git_commit"

// Step is one record in the provenance chain. Every pipeline stage produces
// exactly one, whether it ran or was skipped. Immutable once handed to the
// chain.
type Step struct {
	ActivityName        string            `json:"activity_name"`
	ActivityDescription string            `json:"activity_description"`
	StartTimeUnix       int64             `json:"start_time_unix"`
	ProcessingTimeMs    int64             `json:"processing_time_ms"`
	Parameters          map[string]string `json:"parameters,omitempty"`
	SoftwareVersion     string            `json:"software_version"`
	InputData           string            `json:"input_data"`
	OutputData          string            `json:"output_data"`
	Notes               []string          `json:"notes"`
	Steps               []Step            `json:"steps"`
}

// Skipped builds the no-op step emitted when a stage finds its output
// already present. No timing data is recorded.
func Skipped(name string, notes ...string) Step {
	if notes == nil {
		notes = []string{}
	}
	return Step{
		ActivityName: name,
		Notes:        notes,
		Steps:        []Step{},
	}
}

// Compose wraps the per-stage steps into the final composite record.
func Compose(start time.Time, params map[string]string, inputURI, outputRef string, steps []Step) Step {
	return Step{
		ActivityName:        "Whisper ASR Worker",
		ActivityDescription: "Worker that gets a video/audio file as input and outputs JSON transcripts in various formats",
		StartTimeUnix:       start.Unix(),
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
		Parameters:          params,
		SoftwareVersion:     Version(),
		InputData:           inputURI,
		OutputData:          outputRef,
		Notes:               []string{},
		Steps:               steps,
	}
}

// Save persists the composite record as pretty-printed UTF-8 JSON in dir.
// The write goes through a temp file and a rename so a crash mid-write can
// never leave a partial provenance.json behind.
func Save(record Step, dir string) error {
	return WriteJSONAtomic(filepath.Join(dir, JSONFile), record)
}

// WriteJSONAtomic is the shared temp-file-then-rename artifact writer.
func WriteJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Version returns the commit hash baked into the image, or "" when the
// git_commit file is absent.
func Version() string {
	b, err := os.ReadFile(versionFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

var log = logger.New().WithComponent("provenance")

// SaveOrWarn persists the record but never escalates a failure: transcripts
// remain valid even when the provenance write fails.
func SaveOrWarn(record Step, dir string) {
	if err := Save(record, dir); err != nil {
		log.WithField("dir", dir).WithError(err).Warn("could not save the provenance")
	}
}
