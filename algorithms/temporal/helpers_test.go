package temporal

import (
	"math"
	"math/rand"
)

// clickTrack returns seconds of silence with a single-sample impulse of the
// given amplitude every round(60*sampleRate/bpm) samples, starting one period in.
func clickTrack(sampleRate int, bpm, seconds, amplitude float64) []float64 {
	samples := make([]float64, int(seconds*float64(sampleRate)))
	period := int(math.Round(60 * float64(sampleRate) / bpm))
	for t := period; t < len(samples); t += period {
		samples[t] = amplitude
	}
	return samples
}

func whiteNoise(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = rng.Float64()*2 - 1
	}
	return samples
}

// impulseOnsets returns an onset sequence of length n with 1.0 at
// offset, offset+period, ... and zeros elsewhere. count <= 0 fills to n.
func impulseOnsets(n, offset, period, count int) []float64 {
	onsets := make([]float64, n)
	for i, k := offset, 0; i < n && (count <= 0 || k < count); i, k = i+period, k+1 {
		onsets[i] = 1.0
	}
	return onsets
}
