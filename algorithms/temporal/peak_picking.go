package temporal

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PeakPicker finds strict local maxima of an onset sequence that lie
// strictly above an adaptive threshold. The threshold is recomputed from
// each sequence, so it is relative to the loudest frame of that call only.
type PeakPicker struct {
	strategy     PeakStrategy
	ratio        float64
	stdDevFactor float64
}

// NewPeakPicker creates a picker using ratio * max(onsets), ratio 0.3
func NewPeakPicker() *PeakPicker {
	return &PeakPicker{
		strategy:     PeakMaxRatio,
		ratio:        DefaultPeakThresholdRatio,
		stdDevFactor: DefaultPeakStdDevFactor,
	}
}

// NewPeakPickerFromConfig creates a picker from the peak settings of cfg
func NewPeakPickerFromConfig(cfg Config) *PeakPicker {
	return &PeakPicker{
		strategy:     cfg.PeakStrategy,
		ratio:        cfg.PeakThresholdRatio,
		stdDevFactor: cfg.PeakStdDevFactor,
	}
}

// Threshold returns the adaptive threshold for onsets. Callers must pass a
// non-empty sequence.
func (pp *PeakPicker) Threshold(onsets []float64) float64 {
	if pp.strategy == PeakStdDev {
		mean, std := stat.MeanStdDev(onsets, nil)
		return mean + pp.stdDevFactor*std
	}
	return floats.Max(onsets) * pp.ratio
}

// Pick returns peak indices in increasing order. Position i (1 <= i <= n-2)
// is a peak iff onsets[i] is strictly greater than both neighbours and the
// threshold; plateaus and the two edge positions never qualify.
func (pp *PeakPicker) Pick(onsets []float64) []int {
	if len(onsets) < 3 {
		return []int{}
	}

	threshold := pp.Threshold(onsets)

	var peaks []int
	for i := 1; i < len(onsets)-1; i++ {
		if onsets[i] > onsets[i-1] &&
			onsets[i] > onsets[i+1] &&
			onsets[i] > threshold {
			peaks = append(peaks, i)
		}
	}

	if peaks == nil {
		return []int{}
	}
	return peaks
}

// PickPeaks runs the default max-ratio picker
func PickPeaks(onsets []float64) []int {
	return NewPeakPicker().Pick(onsets)
}
