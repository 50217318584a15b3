package daan

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"asr-worker-go/internal/logger"
	"asr-worker-go/internal/provenance"
	"asr-worker-go/internal/whisper"
)

// JSONFile is the indexing-ready transcript artifact name.
const JSONFile = "daan-es-transcript.json"

var log = logger.New().WithComponent("daan")

// ParsedResult is one indexed transcript fragment. The field set and JSON
// keys are fixed by the downstream index schema.
type ParsedResult struct {
	Words      string  `json:"words"`
	WordTimes  []int   `json:"wordTimes"`
	Start      float64 `json:"start"`
	SequenceNr int     `json:"sequenceNr"`
	FragmentID string  `json:"fragmentId"`
	CarrierID  string  `json:"carrierId"`
}

// AlreadyDone reports whether the indexed transcript exists in outputDir.
func AlreadyDone(outputDir string) bool {
	_, err := os.Stat(filepath.Join(outputDir, JSONFile))
	return err == nil
}

// Parse deterministically maps the raw transcript into the index schema.
// Sequence numbers are recomputed from raw order, never trusted from
// upstream; the fragment text is the word-level texts joined with single
// spaces, since the segment-level text may diverge from the word timing.
func Parse(t whisper.Transcript) ([]ParsedResult, error) {
	results := make([]ParsedResult, 0, len(t.Segments))
	for i, segment := range t.Segments {
		if len(segment.Words) == 0 {
			return nil, fmt.Errorf("segment %d has no word-level data, cannot reconstruct word times", i)
		}
		wordTimes := make([]int, 0, len(segment.Words))
		texts := make([]string, 0, len(segment.Words))
		for _, word := range segment.Words {
			wordTimes = append(wordTimes, int(math.Round(word.Start*1000)))
			texts = append(texts, word.Text)
		}
		results = append(results, ParsedResult{
			Words:      strings.Join(texts, " "),
			WordTimes:  wordTimes,
			Start:      math.Round(segment.Start * 1000),
			SequenceNr: i,
			// 5-char zero-padded fragment id, kaldi-style
			FragmentID: fmt.Sprintf("%05d", i),
			CarrierID:  t.CarrierID,
		})
	}
	return results, nil
}

// Generate writes the indexed transcript next to the raw one. Idempotent by
// its own artifact existence.
func Generate(outputDir string) (provenance.Step, error) {
	if AlreadyDone(outputDir) {
		log.WithField("output_dir", outputDir).Info("daan transcript already present")
		return provenance.Skipped("DAAN transcript already exists"), nil
	}

	start := time.Now()
	transcript, err := whisper.LoadTranscript(outputDir)
	if err != nil {
		return provenance.Step{}, err
	}
	parsed, err := Parse(transcript)
	if err != nil {
		return provenance.Step{}, fmt.Errorf("malformed raw transcript: %w", err)
	}

	target := filepath.Join(outputDir, JSONFile)
	if err := provenance.WriteJSONAtomic(target, parsed); err != nil {
		return provenance.Step{}, fmt.Errorf("could not write %s: %w", target, err)
	}

	return provenance.Step{
		ActivityName:        "DAAN transcript generation",
		ActivityDescription: "Converts the raw transcript into the DAAN index format",
		StartTimeUnix:       start.Unix(),
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
		InputData:           filepath.Join(outputDir, whisper.JSONFile),
		OutputData:          target,
		Notes:               []string{},
		Steps:               []provenance.Step{},
	}, nil
}
