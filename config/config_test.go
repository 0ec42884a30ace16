package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-tempo/algorithms/temporal"
	"github.com/RyanBlaney/sonido-tempo/logging"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Analysis != temporal.DefaultConfig() {
		t.Errorf("expected default analysis config, got %+v", cfg.Analysis)
	}
	if cfg.Decoder.Channel != -1 {
		t.Errorf("expected channel -1, got %d", cfg.Decoder.Channel)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("expected read error, got %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
analysis:
  min_bpm: 80
  max_bpm: 160
  autocorrelation: fft
decoder:
  channel: 0
  max_duration: 30s
batch:
  workers: 3
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Level() != logging.DebugLevel {
		t.Errorf("expected debug level, got %v", cfg.Level())
	}
	if cfg.Analysis.MinBPM != 80 || cfg.Analysis.MaxBPM != 160 || cfg.Analysis.Autocorrelation != "fft" {
		t.Errorf("analysis section not applied: %+v", cfg.Analysis)
	}
	// unset keys keep their defaults
	if cfg.Analysis.WindowSize != temporal.DefaultWindowSize || cfg.Analysis.PeakThresholdRatio != temporal.DefaultPeakThresholdRatio {
		t.Errorf("expected defaults for unset keys, got %+v", cfg.Analysis)
	}
	if cfg.Decoder.Channel != 0 || cfg.Decoder.MaxDuration != 30*time.Second {
		t.Errorf("decoder section not applied: %+v", cfg.Decoder)
	}
	if cfg.Batch.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Batch.Workers)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{"bad level", "log_level: loud\n"},
		{"inverted bpm", "analysis:\n  min_bpm: 200\n  max_bpm: 100\n"},
		{"bad strategy", "analysis:\n  peak_strategy: median\n"},
		{"bad channel", "decoder:\n  channel: -2\n"},
		{"negative workers", "batch:\n  workers: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadConfig(writeTempConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateWrapsAnalysisErrors(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Analysis.HopSize = 0
	if err := cfg.Validate(); !errors.Is(err, temporal.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvWorkers, "5")
	t.Setenv(EnvAutocorrelation, "FFT")

	path := writeTempConfig(t, "log_level: debug\nbatch:\n  workers: 2\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Level() != logging.WarnLevel {
		t.Errorf("expected warn level from env, got %v", cfg.Level())
	}
	if cfg.Batch.Workers != 5 {
		t.Errorf("expected 5 workers from env, got %d", cfg.Batch.Workers)
	}
	if cfg.Analysis.Autocorrelation != "fft" {
		t.Errorf("expected fft from env, got %q", cfg.Analysis.Autocorrelation)
	}
}

func TestLoadConfig_BadEnvWorkers(t *testing.T) {
	t.Setenv(EnvWorkers, "many")

	if _, err := LoadConfig(""); err == nil || !strings.Contains(err.Error(), EnvWorkers) {
		t.Errorf("expected env parse error, got %v", err)
	}
}
