package daan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"asr-worker-go/internal/provenance"
	"asr-worker-go/internal/whisper"
)

func sampleTranscript() whisper.Transcript {
	return whisper.Transcript{
		CarrierID: "interview",
		Segments: []whisper.Segment{
			{
				Start: 0.0, End: 2.5, Text: " Hello there everyone.",
				Words: []whisper.Word{
					{Text: "Hello", Start: 0.0, End: 0.4, Confidence: 0.98},
					{Text: "there", Start: 0.5, End: 0.9, Confidence: 0.97},
					{Text: "everyone", Start: 1.0, End: 1.6, Confidence: 0.95},
				},
			},
			{
				Start: 2.5, End: 4.0, Text: " Welcome back.",
				Words: []whisper.Word{
					{Text: "Welcome", Start: 2.5, End: 2.9, Confidence: 0.99},
					{Text: "back", Start: 3.0, End: 3.3, Confidence: 0.99},
				},
			},
		},
	}
}

func TestParseSequenceAndFragmentIDs(t *testing.T) {
	results, err := Parse(sampleTranscript())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, r := range results {
		require.Equal(t, i, r.SequenceNr)
		require.Equal(t, "interview", r.CarrierID)
	}
	require.Equal(t, "00000", results[0].FragmentID)
	require.Equal(t, "00001", results[1].FragmentID)
}

func TestParseWordTimesAreRoundedMilliseconds(t *testing.T) {
	transcript := whisper.Transcript{
		CarrierID: "a",
		Segments: []whisper.Segment{
			{
				Start: 1.234,
				Words: []whisper.Word{
					{Text: "one", Start: 1.234},
					{Text: "two", Start: 1.5},
				},
			},
		},
	}
	results, err := Parse(transcript)
	require.NoError(t, err)
	require.Equal(t, []int{1234, 1500}, results[0].WordTimes)
	require.Equal(t, float64(1234), results[0].Start)
}

func TestParseJoinsWordLevelText(t *testing.T) {
	// the fragment text is rebuilt from the word entries, not taken from the
	// segment-level text, since the two can diverge
	results, err := Parse(sampleTranscript())
	require.NoError(t, err)
	require.Equal(t, "Hello there everyone", results[0].Words)
	require.Equal(t, "Welcome back", results[1].Words)
}

func TestParseRejectsMissingWords(t *testing.T) {
	transcript := whisper.Transcript{
		CarrierID: "a",
		Segments:  []whisper.Segment{{Start: 0, Text: "no words here"}},
	}
	_, err := Parse(transcript)
	require.Error(t, err)
}

func TestGenerateWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, provenance.WriteJSONAtomic(filepath.Join(dir, whisper.JSONFile), sampleTranscript()))

	step, err := Generate(dir)
	require.NoError(t, err)
	require.Equal(t, "DAAN transcript generation", step.ActivityName)
	require.FileExists(t, filepath.Join(dir, JSONFile))

	var parsed []ParsedResult
	b, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &parsed))
	require.Len(t, parsed, 2)
}

func TestGenerateIdempotent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, JSONFile), []byte("[]"), 0o644))

	step, err := Generate(dir)
	require.NoError(t, err)
	require.Equal(t, "DAAN transcript already exists", step.ActivityName)
	require.Zero(t, step.ProcessingTimeMs)
}
