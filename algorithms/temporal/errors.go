package temporal

import "errors"

var (
	// ErrInsufficientSamples is returned when the buffer is shorter than one
	// analysis window, so no onset strength can be computed.
	ErrInsufficientSamples = errors.New("insufficient samples for tempo analysis")

	// ErrInvalidSampleRate is returned for a zero or negative sample rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid tempo configuration")
)
