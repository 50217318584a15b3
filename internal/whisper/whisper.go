package whisper

import "context"

// Word is a single word with timing, present when word timestamps are on.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Segment mirrors one entry of the raw whisper transcript artifact.
type Segment struct {
	ID               int     `json:"id"`
	Seek             int     `json:"seek"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	Text             string  `json:"text"`
	Tokens           []int   `json:"tokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	AvgLogprob       float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
	NoSpeechProb     float64 `json:"no_speech_prob"`
	Words            []Word  `json:"words"`
}

// Transcript is the canonical raw ASR artifact (whisper-transcript.json).
// CarrierID links the transcript to its asset for the indexing format.
type Transcript struct {
	CarrierID string    `json:"carrierId"`
	Segments  []Segment `json:"segments"`
}

// Options is the fixed decoding configuration handed to the engine once at
// startup. The transcription stage treats it as opaque.
type Options struct {
	Model          string
	Device         string
	Language       string
	BeamSize       int
	BestOf         int
	Temperature    string
	VAD            bool
	WordTimestamps bool
}

// Engine is the ASR model collaborator. Implementations are not safe for
// concurrent inference; admission control guarantees a single caller.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
	Close() error
}
