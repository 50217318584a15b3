package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DataBaseDir: "/data",
		Device:      "cpu",
		Model:       "large-v2",
		BeamSize:    5,
		BestOf:      5,
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	require.Equal(t, "5333", cfg.Port)
	require.Equal(t, "cuda", cfg.Device)
	require.Equal(t, "large-v2", cfg.Model)
	require.Equal(t, 5, cfg.BeamSize)
	require.False(t, cfg.TransferOnCompletion)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("W_DEVICE", "cpu")
	t.Setenv("W_BEAM_SIZE", "3")
	t.Setenv("W_VAD", "y")
	t.Setenv("W_WORD_TIMESTAMPS", "true")
	t.Setenv("DELETE_INPUT_ON_COMPLETION", "n")

	cfg := FromEnv()
	require.Equal(t, "cpu", cfg.Device)
	require.Equal(t, 3, cfg.BeamSize)
	require.True(t, cfg.VAD)
	require.True(t, cfg.WordTimestamps)
	require.False(t, cfg.DeleteInputOnCompletion)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "root data dir", mutate: func(c *Config) { c.DataBaseDir = "/" }},
		{name: "bad device", mutate: func(c *Config) { c.Device = "tpu" }},
		{name: "unknown model", mutate: func(c *Config) { c.Model = "gigantic" }},
		{name: "zero beam size", mutate: func(c *Config) { c.BeamSize = 0 }},
		{name: "partial s3: bucket only", mutate: func(c *Config) { c.S3Bucket = "b" }},
		{name: "partial s3: endpoint only", mutate: func(c *Config) { c.S3EndpointURL = "http://s3:9000" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestS3Configured(t *testing.T) {
	cfg := validConfig()
	require.False(t, cfg.S3Configured())

	cfg.S3EndpointURL = "http://s3:9000"
	cfg.S3Bucket = "bucket"
	cfg.S3FolderInBucket = "assets"
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.S3Configured())
}
