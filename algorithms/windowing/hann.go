package windowing

import (
	"fmt"
	"math"
	"sync"
)

// hannCache memoizes symmetric Hann coefficients by window size.
// Entries are written once and never mutated afterwards.
var hannCache sync.Map // map[int][]float64

// HannCoefficients returns the symmetric Hann window of the given size,
// w[j] = 0.5 * (1 - cos(2*pi*j/(size-1))).
//
// The returned slice is shared between callers and must be treated as
// read-only. Use NewHann(...).GetCoefficients() for a private copy.
func HannCoefficients(size int) []float64 {
	if size <= 0 {
		return []float64{}
	}

	if cached, ok := hannCache.Load(size); ok {
		return cached.([]float64)
	}

	coeffs := generateHann(size, true)
	actual, _ := hannCache.LoadOrStore(size, coeffs)
	return actual.([]float64)
}

// generateHann computes Hann coefficients. A symmetric window divides by
// size-1 so both end points are zero; a periodic one divides by size.
func generateHann(size int, symmetric bool) []float64 {
	coefficients := make([]float64, size)
	if size == 1 {
		coefficients[0] = 1.0
		return coefficients
	}

	denominator := float64(size)
	if symmetric {
		denominator = float64(size - 1)
	}

	for i := range size {
		coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
	}

	return coefficients
}

// Hann represents a Hann window function
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window. Symmetric windows come from the
// shared cache; periodic ones are generated per instance.
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	if symmetric {
		h.coefficients = HannCoefficients(size)
	} else if size > 0 {
		h.coefficients = generateHann(size, false)
	}
	return h
}

// Apply multiplies segment by the window into dst and returns dst.
// dst is allocated when nil or too short. Returns nil if segment is not
// exactly one window long.
func (h *Hann) Apply(dst, segment []float64) []float64 {
	if len(segment) != h.size {
		return nil
	}

	if cap(dst) < h.size {
		dst = make([]float64, h.size)
	}
	dst = dst[:h.size]

	for i, c := range h.coefficients {
		dst[i] = segment[i] * c
	}

	return dst
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i, c := range h.coefficients {
		signal[i] *= c
	}

	return nil
}

// GetCoefficients returns a copy of the window coefficients
func (h *Hann) GetCoefficients() []float64 {
	coeffs := make([]float64, len(h.coefficients))
	copy(coeffs, h.coefficients)
	return coeffs
}

// GetSize returns the window size
func (h *Hann) GetSize() int {
	return h.size
}

// IsSymmetric reports whether the window divides by size-1
func (h *Hann) IsSymmetric() bool {
	return h.symmetric
}

// GetType returns the window type
func (h *Hann) GetType() string {
	return "hann"
}
