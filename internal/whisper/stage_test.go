package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	segments []Segment
	err      error
	calls    int
}

func (f *fakeEngine) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	f.calls++
	return f.segments, f.err
}

func (f *fakeEngine) Close() error { return nil }

func TestRunASRWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{segments: []Segment{
		{ID: 0, Start: 0, End: 1.5, Text: "hello world", Words: []Word{{Text: "hello", Start: 0, End: 0.7}}},
	}}

	step, err := RunASR(context.Background(), engine, "/tmp/a.mp3", dir, "a")
	require.NoError(t, err)
	require.Equal(t, "Running whisper", step.ActivityName)
	require.Equal(t, 1, engine.calls)

	b, err := os.ReadFile(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	var transcript Transcript
	require.NoError(t, json.Unmarshal(b, &transcript))
	require.Equal(t, "a", transcript.CarrierID)
	require.Len(t, transcript.Segments, 1)
}

func TestRunASRSkipsWhenArtifactExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, JSONFile), []byte("{}"), 0o644))

	engine := &fakeEngine{}
	step, err := RunASR(context.Background(), engine, "/tmp/a.mp3", dir, "a")
	require.NoError(t, err)
	require.Zero(t, engine.calls, "existing transcript must skip the model")
	require.Equal(t, "Whisper transcript already exists", step.ActivityName)
	require.Zero(t, step.StartTimeUnix)
	require.Zero(t, step.ProcessingTimeMs)
}

func TestRunASRSurfacesEngineError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("inference blew up")}
	_, err := RunASR(context.Background(), engine, "/tmp/a.mp3", t.TempDir(), "a")
	require.Error(t, err)
	require.Contains(t, err.Error(), "inference blew up")
}

func TestLoadTranscript(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{segments: []Segment{{Text: "x", Words: []Word{{Text: "x"}}}}}
	_, err := RunASR(context.Background(), engine, "/tmp/a.mp3", dir, "carrier-1")
	require.NoError(t, err)

	transcript, err := LoadTranscript(dir)
	require.NoError(t, err)
	require.Equal(t, "carrier-1", transcript.CarrierID)

	_, err = LoadTranscript(t.TempDir())
	require.Error(t, err)
}
