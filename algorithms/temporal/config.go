package temporal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-tempo/algorithms/stats"
)

// PeakStrategy selects how the peak picker derives its threshold
type PeakStrategy string

const (
	// PeakMaxRatio thresholds at ratio * max(onsets)
	PeakMaxRatio PeakStrategy = "max_ratio"

	// PeakStdDev thresholds at mean + factor * stddev(onsets)
	PeakStdDev PeakStrategy = "stddev"
)

const (
	DefaultWindowSize         = 1024
	DefaultHopSize            = 512
	DefaultMinBPM             = 60
	DefaultMaxBPM             = 200
	DefaultTempoBPM           = 120.0
	DefaultPeakThresholdRatio = 0.3
	DefaultPeakStdDevFactor   = 1.5
	DefaultDirectWeight       = 1.0
	DefaultHarmonicWeight     = 0.5
)

// Config holds tempo estimation parameters. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	WindowSize int     `yaml:"window_size" json:"window_size"`
	HopSize    int     `yaml:"hop_size" json:"hop_size"`
	MinBPM     int     `yaml:"min_bpm" json:"min_bpm"`
	MaxBPM     int     `yaml:"max_bpm" json:"max_bpm"`
	DefaultBPM float64 `yaml:"default_bpm" json:"default_bpm"` // returned when there is no periodic evidence

	PeakStrategy       PeakStrategy `yaml:"peak_strategy" json:"peak_strategy"`
	PeakThresholdRatio float64      `yaml:"peak_threshold_ratio" json:"peak_threshold_ratio"`
	PeakStdDevFactor   float64      `yaml:"peak_stddev_factor" json:"peak_stddev_factor"`

	// Histogram weights for a direct interval hit and for each of its
	// half-time / double-time harmonics. Tunable, 1.0 and 0.5 by default.
	DirectWeight   float64 `yaml:"direct_weight" json:"direct_weight"`
	HarmonicWeight float64 `yaml:"harmonic_weight" json:"harmonic_weight"`

	// Autocorrelation is "direct" or "fft"
	Autocorrelation string `yaml:"autocorrelation" json:"autocorrelation"`
}

// DefaultConfig returns the reference parameters: 1024/512 windows,
// 60-200 BPM, 0.3 peak ratio, 1.0/0.5 histogram weights.
func DefaultConfig() Config {
	return Config{
		WindowSize:         DefaultWindowSize,
		HopSize:            DefaultHopSize,
		MinBPM:             DefaultMinBPM,
		MaxBPM:             DefaultMaxBPM,
		DefaultBPM:         DefaultTempoBPM,
		PeakStrategy:       PeakMaxRatio,
		PeakThresholdRatio: DefaultPeakThresholdRatio,
		PeakStdDevFactor:   DefaultPeakStdDevFactor,
		DirectWeight:       DefaultDirectWeight,
		HarmonicWeight:     DefaultHarmonicWeight,
		Autocorrelation:    stats.TimeDomain.String(),
	}
}

// Validate checks parameter ranges. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.WindowSize < 2:
		return fmt.Errorf("%w: window_size must be at least 2, got %d", ErrInvalidConfig, c.WindowSize)
	case c.HopSize < 1:
		return fmt.Errorf("%w: hop_size must be positive, got %d", ErrInvalidConfig, c.HopSize)
	case c.MinBPM <= 0:
		return fmt.Errorf("%w: min_bpm must be positive, got %d", ErrInvalidConfig, c.MinBPM)
	case c.MaxBPM < c.MinBPM:
		return fmt.Errorf("%w: max_bpm (%d) below min_bpm (%d)", ErrInvalidConfig, c.MaxBPM, c.MinBPM)
	case c.DefaultBPM <= 0:
		return fmt.Errorf("%w: default_bpm must be positive, got %g", ErrInvalidConfig, c.DefaultBPM)
	case c.DirectWeight <= 0:
		return fmt.Errorf("%w: direct_weight must be positive, got %g", ErrInvalidConfig, c.DirectWeight)
	case c.HarmonicWeight < 0:
		return fmt.Errorf("%w: harmonic_weight must not be negative, got %g", ErrInvalidConfig, c.HarmonicWeight)
	}

	switch c.PeakStrategy {
	case PeakMaxRatio:
		if c.PeakThresholdRatio < 0 || c.PeakThresholdRatio > 1 {
			return fmt.Errorf("%w: peak_threshold_ratio must be in [0, 1], got %g", ErrInvalidConfig, c.PeakThresholdRatio)
		}
	case PeakStdDev:
		if c.PeakStdDevFactor < 0 {
			return fmt.Errorf("%w: peak_stddev_factor must not be negative, got %g", ErrInvalidConfig, c.PeakStdDevFactor)
		}
	default:
		return fmt.Errorf("%w: unknown peak_strategy %q", ErrInvalidConfig, c.PeakStrategy)
	}

	if _, err := stats.ParseCorrelationMethod(c.Autocorrelation); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// correlationMethod returns the parsed autocorrelation method. Estimators
// only hold validated configs, so the parse error is already ruled out.
func (c Config) correlationMethod() stats.CorrelationMethod {
	m, _ := stats.ParseCorrelationMethod(c.Autocorrelation)
	return m
}
