package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config collects every externally tunable setting of the worker.
// Values come from the environment (a .env file is loaded by main).
type Config struct {
	Port        string
	DataBaseDir string

	// object store
	S3EndpointURL    string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3FolderInBucket string

	// whisper decoding parameters, passed through to the engine untouched
	ModelBaseDir      string
	ModelS3URI        string
	WhisperServiceURL string
	Device            string
	Model             string
	BeamSize          int
	BestOf            int
	Temperature       string
	VAD               bool
	WordTimestamps    bool
	Language          string

	TransferOnCompletion     bool
	DeleteInputOnCompletion  bool
	DeleteOutputOnCompletion bool
	ExportXLSX               bool
}

var validModels = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true,
	"large": true, "large-v2": true, "large-v3": true,
}

// FromEnv reads the full configuration from environment variables.
func FromEnv() Config {
	return Config{
		Port:        envOr("PORT", "5333"),
		DataBaseDir: envOr("DATA_BASE_DIR", "/data"),

		S3EndpointURL:    os.Getenv("S3_ENDPOINT_URL"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3FolderInBucket: os.Getenv("S3_FOLDER_IN_BUCKET"),

		ModelBaseDir:      envOr("MODEL_BASE_DIR", "/model"),
		ModelS3URI:        os.Getenv("MODEL_S3_URI"),
		Device:            envOr("W_DEVICE", "cuda"),
		Model:             envOr("W_MODEL", "large-v2"),
		BeamSize:          envInt("W_BEAM_SIZE", 5),
		BestOf:            envInt("W_BEST_OF", 5),
		Temperature:       envOr("W_TEMPERATURE", "(0.0,0.2,0.4,0.6,0.8,1.0)"),
		VAD:               envBool("W_VAD"),
		WordTimestamps:    envBool("W_WORD_TIMESTAMPS"),
		Language:          envOr("W_LANGUAGE", "nl"),
		WhisperServiceURL: os.Getenv("WHISPER_SERVICE_URL"),

		TransferOnCompletion:     envBool("TRANSFER_ON_COMPLETION"),
		DeleteInputOnCompletion:  envBool("DELETE_INPUT_ON_COMPLETION"),
		DeleteOutputOnCompletion: envBool("DELETE_OUTPUT_ON_COMPLETION"),
		ExportXLSX:               envBool("EXPORT_XLSX"),
	}
}

// Validate rejects configurations the worker cannot safely start with.
func (c Config) Validate() error {
	if c.DataBaseDir == "" || c.DataBaseDir == "." || c.DataBaseDir == "/" {
		return fmt.Errorf("DATA_BASE_DIR must be an absolute, non-root path")
	}
	if c.Device != "cuda" && c.Device != "cpu" {
		return fmt.Errorf("W_DEVICE must be cuda or cpu, got %q", c.Device)
	}
	if !validModels[c.Model] {
		return fmt.Errorf("W_MODEL %q is not a known whisper model size", c.Model)
	}
	if c.BeamSize <= 0 {
		return fmt.Errorf("W_BEAM_SIZE must be positive, got %d", c.BeamSize)
	}
	if c.BestOf <= 0 {
		return fmt.Errorf("W_BEST_OF must be positive, got %d", c.BestOf)
	}
	// S3 settings are optional, but partial sets are a misconfiguration
	if c.S3EndpointURL != "" || c.S3Bucket != "" || c.S3FolderInBucket != "" {
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when S3 settings are supplied")
		}
		if _, err := url.ParseRequestURI(c.S3EndpointURL); err != nil {
			return fmt.Errorf("S3_ENDPOINT_URL is not a valid URL: %w", err)
		}
		if c.S3FolderInBucket == "" {
			return fmt.Errorf("S3_FOLDER_IN_BUCKET is required when S3 settings are supplied")
		}
	}
	return nil
}

// S3Configured reports whether a complete S3 configuration is present.
func (c Config) S3Configured() bool {
	return c.S3EndpointURL != "" && c.S3Bucket != "" && c.S3FolderInBucket != ""
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envBool follows the y/n convention of the original worker env files,
// accepting true/false as well.
func envBool(k string) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}
