package transcode

import "errors"

var (
	ErrUnsupportedFormat   = errors.New("unsupported audio format")
	ErrInvalidWAV          = errors.New("not a valid WAV file")
	ErrInvalidAIFF         = errors.New("not a valid AIFF file")
	ErrUnsupportedEncoding = errors.New("unsupported WAV encoding, only integer PCM is supported")
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
	ErrChannelOutOfRange   = errors.New("selected channel out of range")
	ErrNoAudio             = errors.New("no audio samples decoded")
)
