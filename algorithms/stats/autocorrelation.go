package stats

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/fft"
)

// CorrelationMethod represents different computational approaches
type CorrelationMethod int

const (
	// Direct time-domain calculation
	TimeDomain CorrelationMethod = iota

	// FFT-based frequency domain (faster for long signals and wide lag ranges)
	FrequencyDomain
)

func (m CorrelationMethod) String() string {
	switch m {
	case TimeDomain:
		return "direct"
	case FrequencyDomain:
		return "fft"
	default:
		return "unknown"
	}
}

// ParseCorrelationMethod maps "direct" / "fft" (case-insensitive) to a method.
func ParseCorrelationMethod(s string) (CorrelationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct", "time", "time_domain":
		return TimeDomain, nil
	case "fft", "frequency", "frequency_domain":
		return FrequencyDomain, nil
	default:
		return TimeDomain, fmt.Errorf("unknown correlation method: %q", s)
	}
}

// LagCorrelation is the mean lag product at one lag.
type LagCorrelation struct {
	Lag   int     `json:"lag"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// AutoCorrelation computes mean lag products
//
//	r(lag) = 1/(n-lag) * sum_{i=lag}^{n-1} x[i] * x[i-lag]
//
// over an inclusive lag window. No mean removal or normalization is applied.
type AutoCorrelation struct {
	minLag int
	maxLag int
	method CorrelationMethod
}

// NewAutoCorrelation creates an autocorrelation over lags [minLag, maxLag]
func NewAutoCorrelation(minLag, maxLag int) *AutoCorrelation {
	return &AutoCorrelation{
		minLag: minLag,
		maxLag: maxLag,
		method: TimeDomain,
	}
}

// SetMethod selects direct or FFT computation
func (ac *AutoCorrelation) SetMethod(method CorrelationMethod) {
	ac.method = method
}

// Method returns the configured computation method
func (ac *AutoCorrelation) Method() CorrelationMethod {
	return ac.method
}

// Compute returns one entry per lag in the window that has at least one
// product, in ascending lag order. Negative lags are skipped; an empty
// window or a signal shorter than minLag+1 yields an empty result.
func (ac *AutoCorrelation) Compute(signal []float64) []LagCorrelation {
	minLag := max(ac.minLag, 0)
	maxLag := min(ac.maxLag, len(signal)-1)
	if len(signal) == 0 || minLag > maxLag {
		return []LagCorrelation{}
	}

	sums := LagProductSums(signal, maxLag, ac.method)

	result := make([]LagCorrelation, 0, maxLag-minLag+1)
	for lag := minLag; lag <= maxLag; lag++ {
		count := len(signal) - lag
		if count <= 0 {
			continue
		}
		result = append(result, LagCorrelation{
			Lag:   lag,
			Mean:  sums[lag] / float64(count),
			Count: count,
		})
	}

	return result
}

// LagProductSums returns s[lag] = sum_{i=lag}^{n-1} x[i]*x[i-lag] for
// lag = 0..maxLag. maxLag is clamped to len(signal)-1.
func LagProductSums(signal []float64, maxLag int, method CorrelationMethod) []float64 {
	n := len(signal)
	if n == 0 || maxLag < 0 {
		return []float64{}
	}
	maxLag = min(maxLag, n-1)

	if method == FrequencyDomain {
		return lagProductSumsFFT(signal, maxLag)
	}
	return lagProductSumsDirect(signal, maxLag)
}

func lagProductSumsDirect(signal []float64, maxLag int) []float64 {
	sums := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		sum := 0.0
		for i := lag; i < len(signal); i++ {
			sum += signal[i] * signal[i-lag]
		}
		sums[lag] = sum
	}
	return sums
}

// lagProductSumsFFT uses the Wiener-Khinchin relation on a zero-padded
// copy. Padding to at least n+maxLag keeps circular wrap-around out of the
// requested lags.
func lagProductSumsFFT(signal []float64, maxLag int) []float64 {
	n := len(signal)
	size := nextPowerOf2(n + maxLag)

	padded := make([]float64, size)
	copy(padded, signal)

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		spectrum[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}

	circular := fft.IFFT(spectrum)

	sums := make([]float64, maxLag+1)
	for lag := range sums {
		sums[lag] = real(circular[lag])
	}
	return sums
}

// nextPowerOf2 returns the smallest power of two >= n
func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
