package temporal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tempo/algorithms/stats"
	"github.com/RyanBlaney/sonido-tempo/logging"
)

// Method names the estimator that produced a tempo
type Method string

const (
	MethodHistogram       Method = "histogram"
	MethodAutocorrelation Method = "autocorrelation"
)

// TempoResult is the outcome of one estimation
type TempoResult struct {
	BPM    float64 `json:"bpm"` // unrounded, within [MinBPM, MaxBPM]
	Method Method  `json:"method"`

	// UsedFallback is set when fewer than two peaks routed the estimate
	// through autocorrelation.
	UsedFallback bool `json:"used_fallback"`

	// UsedDefault is set when neither estimator found any evidence and
	// DefaultBPM was returned.
	UsedDefault bool `json:"used_default"`

	// Confidence in [0, 1]: share of histogram weight held by the winning
	// bucket, or normalized autocorrelation at the winning lag.
	Confidence float64 `json:"confidence"`

	Peaks  int `json:"peaks"`
	Onsets int `json:"onsets"`
}

// Rounded returns BPM rounded to the given number of decimals
func (r *TempoResult) Rounded(decimals int) float64 {
	return RoundTo(r.BPM, decimals)
}

// Category returns the qualitative tempo label of BPM
func (r *TempoResult) Category() string {
	return ClassifyTempoCategory(r.BPM)
}

// TempoEstimation estimates a single tempo from a mono sample buffer:
// Hann-windowed RMS onsets, adaptive peak picking, then an interval
// histogram, or autocorrelation when fewer than two peaks are found.
//
// A TempoEstimation holds only immutable configuration and is safe for
// concurrent use on distinct buffers.
type TempoEstimation struct {
	config        Config
	onsetDetector *OnsetDetection
	peakPicker    *PeakPicker
	logger        logging.Logger
}

// NewTempoEstimation creates a new tempo estimator with DefaultConfig
func NewTempoEstimation() *TempoEstimation {
	te, _ := NewTempoEstimationWithConfig(DefaultConfig())
	return te
}

// NewTempoEstimationWithConfig creates a tempo estimator after validating cfg
func NewTempoEstimationWithConfig(cfg Config) (*TempoEstimation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &TempoEstimation{
		config:        cfg,
		onsetDetector: NewOnsetDetection(cfg.WindowSize, cfg.HopSize),
		peakPicker:    NewPeakPickerFromConfig(cfg),
	}, nil
}

// SetLogger overrides the global logger for this estimator
func (te *TempoEstimation) SetLogger(logger logging.Logger) {
	te.logger = logger
}

// Config returns the estimator configuration
func (te *TempoEstimation) Config() Config {
	return te.config
}

func (te *TempoEstimation) log() logging.Logger {
	if te.logger != nil {
		return te.logger
	}
	return logging.GetGlobalLogger()
}

// Estimate runs the full pipeline. It fails only for unanalyzable input:
// a non-positive sample rate (ErrInvalidSampleRate) or fewer samples than
// one analysis window (ErrInsufficientSamples).
func (te *TempoEstimation) Estimate(samples []float64, sampleRate int) (*TempoResult, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(samples) < te.config.WindowSize {
		return nil, fmt.Errorf("%w: got %d samples, need at least %d",
			ErrInsufficientSamples, len(samples), te.config.WindowSize)
	}

	onsets := te.onsetDetector.Build(samples)
	peaks := te.peakPicker.Pick(onsets)

	result := &TempoResult{
		Peaks:  len(peaks),
		Onsets: len(onsets),
	}

	if len(peaks) >= 2 {
		result.Method = MethodHistogram
		result.BPM, result.Confidence, result.UsedDefault = te.estimateHistogram(peaks, sampleRate)
	} else {
		result.Method = MethodAutocorrelation
		result.UsedFallback = true
		result.BPM, result.Confidence, result.UsedDefault = te.estimateAutocorrelation(onsets, sampleRate)
	}

	te.log().Debug("tempo estimated", logging.Fields{
		"bpm":           result.BPM,
		"method":        string(result.Method),
		"peaks":         result.Peaks,
		"onsets":        result.Onsets,
		"used_fallback": result.UsedFallback,
		"used_default":  result.UsedDefault,
	})

	return result, nil
}

// EstimateTempo returns the tempo rounded to the nearest integer BPM
func (te *TempoEstimation) EstimateTempo(samples []float64, sampleRate int) (float64, error) {
	result, err := te.Estimate(samples, sampleRate)
	if err != nil {
		return 0.0, err
	}
	return result.Rounded(0), nil
}

// EstimateTempoRaw returns the unrounded tempo
func (te *TempoEstimation) EstimateTempoRaw(samples []float64, sampleRate int) (float64, error) {
	result, err := te.Estimate(samples, sampleRate)
	if err != nil {
		return 0.0, err
	}
	return result.BPM, nil
}

// estimateHistogram bins inter-peak intervals by rounded BPM. An interval
// whose BPM is in range adds DirectWeight to its own bucket and
// HarmonicWeight to its half-time and double-time buckets when those are in
// range too. Out-of-range intervals contribute nothing.
func (te *TempoEstimation) estimateHistogram(peaks []int, sampleRate int) (bpm, confidence float64, usedDefault bool) {
	cfg := te.config
	inRange := func(b int) bool { return b >= cfg.MinBPM && b <= cfg.MaxBPM }

	hist := newTempoHistogram()
	for k := 1; k < len(peaks); k++ {
		interval := float64((peaks[k]-peaks[k-1])*cfg.HopSize) / float64(sampleRate)
		if interval <= 0 {
			continue
		}

		direct := int(math.Round(60.0 / interval))
		if !inRange(direct) {
			continue
		}
		hist.add(direct, cfg.DirectWeight)

		if halfTime := int(math.Round(float64(direct) / 2)); inRange(halfTime) {
			hist.add(halfTime, cfg.HarmonicWeight)
		}
		if doubleTime := direct * 2; inRange(doubleTime) {
			hist.add(doubleTime, cfg.HarmonicWeight)
		}
	}

	winner, ok := hist.best()
	if !ok {
		return te.clamp(cfg.DefaultBPM), 0.0, true
	}

	return float64(winner.BPM), winner.Weight / hist.total, false
}

// estimateAutocorrelation searches lags between the periods of MaxBPM and
// MinBPM for the highest mean lag product of the onset sequence.
func (te *TempoEstimation) estimateAutocorrelation(onsets []float64, sampleRate int) (bpm, confidence float64, usedDefault bool) {
	cfg := te.config

	// The shortest lag belongs to the fastest tempo
	minLag := max((60*sampleRate)/(cfg.MaxBPM*cfg.HopSize), 1)
	maxLag := (60 * sampleRate) / (cfg.MinBPM * cfg.HopSize)

	ac := stats.NewAutoCorrelation(minLag, maxLag)
	ac.SetMethod(cfg.correlationMethod())

	bestCorr := 0.0
	bestLag := 0
	for _, lc := range ac.Compute(onsets) {
		if lc.Mean > bestCorr {
			bestCorr = lc.Mean
			bestLag = lc.Lag
		}
	}

	if bestLag == 0 {
		return te.clamp(cfg.DefaultBPM), 0.0, true
	}

	intervalSeconds := float64(bestLag*cfg.HopSize) / float64(sampleRate)
	bpm = te.clamp(60.0 / intervalSeconds)

	if energy := floats.Dot(onsets, onsets) / float64(len(onsets)); energy > 0 {
		confidence = math.Min(1.0, bestCorr/energy)
	}

	return bpm, confidence, false
}

func (te *TempoEstimation) clamp(bpm float64) float64 {
	return math.Max(float64(te.config.MinBPM), math.Min(float64(te.config.MaxBPM), bpm))
}

// EstimateFromPeaks runs the interval histogram over peak positions with
// the default weights. Returns DefaultTempoBPM when no interval lands in
// [minBPM, maxBPM].
func EstimateFromPeaks(peaks []int, sampleRate, hopSize, minBPM, maxBPM int) float64 {
	te := estimatorFor(hopSize, minBPM, maxBPM)
	if te == nil || sampleRate <= 0 {
		return DefaultTempoBPM
	}
	bpm, _, _ := te.estimateHistogram(peaks, sampleRate)
	return bpm
}

// EstimateFromEnergy runs the autocorrelation fallback over an onset
// sequence. The result is clamped to [minBPM, maxBPM].
func EstimateFromEnergy(onsets []float64, sampleRate, hopSize, minBPM, maxBPM int) float64 {
	te := estimatorFor(hopSize, minBPM, maxBPM)
	if te == nil || sampleRate <= 0 {
		return math.Max(float64(minBPM), math.Min(float64(maxBPM), DefaultTempoBPM))
	}
	bpm, _, _ := te.estimateAutocorrelation(onsets, sampleRate)
	return bpm
}

func estimatorFor(hopSize, minBPM, maxBPM int) *TempoEstimation {
	cfg := DefaultConfig()
	cfg.HopSize = hopSize
	cfg.MinBPM = minBPM
	cfg.MaxBPM = maxBPM
	te, err := NewTempoEstimationWithConfig(cfg)
	if err != nil {
		return nil
	}
	return te
}

// Estimate runs the pipeline with DefaultConfig
func Estimate(samples []float64, sampleRate int) (*TempoResult, error) {
	return NewTempoEstimation().Estimate(samples, sampleRate)
}

// EstimateTempo runs the pipeline with DefaultConfig and returns the
// tempo rounded to an integer BPM
func EstimateTempo(samples []float64, sampleRate int) (float64, error) {
	return NewTempoEstimation().EstimateTempo(samples, sampleRate)
}

// RoundTo rounds v to the given number of decimals (half away from zero)
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// ClassifyTempoCategory classifies tempo into broad categories
func ClassifyTempoCategory(tempo float64) string {
	if tempo < 60 {
		return "very_slow"
	} else if tempo < 90 {
		return "slow"
	} else if tempo < 120 {
		return "moderate"
	} else if tempo < 150 {
		return "fast"
	} else {
		return "very_fast"
	}
}
