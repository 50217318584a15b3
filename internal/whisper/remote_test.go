package whisper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func audioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("fake audio"), 0o644))
	return path
}

func TestRemoteEngineTranscribe(t *testing.T) {
	var gotModel, gotBeam string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotModel = r.FormValue("model")
		gotBeam = r.FormValue("beam_size")
		json.NewEncoder(w).Encode(transcribeResponse{Segments: []Segment{
			{Start: 0, End: 1, Text: "hi", Words: []Word{{Text: "hi", Start: 0, End: 0.5, Confidence: 0.9}}},
		}})
	}))
	defer srv.Close()

	engine := LoadModel(srv.URL, Options{Model: "large-v2", Device: "cpu", BeamSize: 5, BestOf: 5, Language: "nl"})
	segments, err := engine.Transcribe(context.Background(), audioFixture(t))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Equal(t, "hi", segments[0].Text)
	require.Equal(t, "large-v2", gotModel)
	require.Equal(t, "5", gotBeam)
}

func TestRemoteEngineRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(transcribeResponse{Segments: []Segment{{Text: "ok"}}})
	}))
	defer srv.Close()

	engine := LoadModel(srv.URL, Options{})
	segments, err := engine.Transcribe(context.Background(), audioFixture(t))
	require.NoError(t, err)
	require.Equal(t, "ok", segments[0].Text)
	require.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestRemoteEngineDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "unsupported media", http.StatusUnsupportedMediaType)
	}))
	defer srv.Close()

	engine := LoadModel(srv.URL, Options{})
	_, err := engine.Transcribe(context.Background(), audioFixture(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected request")
	require.Equal(t, int32(1), attempts.Load())
}
