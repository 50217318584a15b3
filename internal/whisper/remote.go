package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RemoteEngine talks to a whisper-service over HTTP. The service keeps the
// model in memory; this client is the worker's handle on that single shared
// model resource.
type RemoteEngine struct {
	baseURL string
	opts    Options
	client  *http.Client
}

// LoadModel constructs the engine handle with a fixed decoding
// configuration. The heavy model load happens service-side on first use.
func LoadModel(baseURL string, opts Options) *RemoteEngine {
	return &RemoteEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

// transcribeResponse mirrors the JSON shape returned by the service.
type transcribeResponse struct {
	Segments []Segment `json:"segments"`
}

// Transcribe uploads the audio file and decoding parameters, retrying
// transient (5xx / network) failures with exponential backoff. A 4xx is
// surfaced immediately.
func (e *RemoteEngine) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	var result transcribeResponse

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	op := func() error {
		req, err := e.buildRequest(ctx, audioPath)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := e.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("whisper service error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("whisper service rejected request (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return backoff.Permanent(fmt.Errorf("whisper service returned malformed JSON: %w", err))
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return result.Segments, nil
}

func (e *RemoteEngine) buildRequest(ctx context.Context, audioPath string) (*http.Request, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", audioPath, err)
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("could not read %s: %w", audioPath, err)
	}
	w.WriteField("model", e.opts.Model)
	w.WriteField("device", e.opts.Device)
	w.WriteField("language", e.opts.Language)
	w.WriteField("beam_size", strconv.Itoa(e.opts.BeamSize))
	w.WriteField("best_of", strconv.Itoa(e.opts.BestOf))
	w.WriteField("temperature", e.opts.Temperature)
	w.WriteField("vad_filter", strconv.FormatBool(e.opts.VAD))
	w.WriteField("word_timestamps", strconv.FormatBool(e.opts.WordTimestamps))
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/transcribe", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// Close releases the engine handle. Only called after the drain on
// shutdown, so no inference can be in flight.
func (e *RemoteEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
