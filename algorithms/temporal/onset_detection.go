package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-tempo/algorithms/windowing"
)

// OnsetDetection reduces a sample buffer to one onset strength per hop:
// the RMS energy of each Hann-windowed analysis frame.
type OnsetDetection struct {
	windowSize int
	hopSize    int
	window     *windowing.Hann
}

// NewOnsetDetection creates an onset builder with the given frame geometry
func NewOnsetDetection(windowSize, hopSize int) *OnsetDetection {
	return &OnsetDetection{
		windowSize: windowSize,
		hopSize:    hopSize,
		window:     windowing.NewHann(windowSize, true),
	}
}

// NumFrames returns floor((n-window)/hop)+1, or 0 when n < window
func (od *OnsetDetection) NumFrames(n int) int {
	if od.windowSize <= 0 || od.hopSize <= 0 || n < od.windowSize {
		return 0
	}
	return (n-od.windowSize)/od.hopSize + 1
}

// Build computes the onset sequence. Buffers shorter than one window give
// an empty sequence; there is no normalization or silence gating.
func (od *OnsetDetection) Build(samples []float64) []float64 {
	numFrames := od.NumFrames(len(samples))
	onsets := make([]float64, numFrames)
	if numFrames == 0 {
		return onsets
	}

	frame := make([]float64, od.windowSize)
	for i := range numFrames {
		start := i * od.hopSize
		frame = od.window.Apply(frame, samples[start:start+od.windowSize])
		onsets[i] = math.Sqrt(floats.Dot(frame, frame) / float64(od.windowSize))
	}

	return onsets
}

// BuildOnsets is a convenience wrapper around OnsetDetection.Build
func BuildOnsets(samples []float64, windowSize, hopSize int) []float64 {
	return NewOnsetDetection(windowSize, hopSize).Build(samples)
}
