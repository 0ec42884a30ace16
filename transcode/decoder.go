package transcode

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-tempo/logging"
)

// Format identifies a supported container/codec
type Format string

const (
	FormatWAV    Format = "wav"
	FormatMP3    Format = "mp3"
	FormatVorbis Format = "ogg"
	FormatAIFF   Format = "aiff"
)

// FormatFromPath maps a file extension to a Format
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".ogg", ".oga":
		return FormatVorbis, nil
	case ".aif", ".aiff":
		return FormatAIFF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// AudioData represents decoded single-channel audio
type AudioData struct {
	PCM        []float64       `json:"-"` // mono samples, nominally in [-1, 1]
	SampleRate int             `json:"sample_rate"`
	Channels   int             `json:"channels"`
	Duration   time.Duration   `json:"duration"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   *StreamMetadata `json:"metadata,omitempty"`
}

// StreamMetadata describes the source the audio was decoded from
type StreamMetadata struct {
	Path           string `json:"path,omitempty"`
	Format         Format `json:"format"`
	Codec          string `json:"codec,omitempty"`
	SourceChannels int    `json:"source_channels"`
	BitDepth       int    `json:"bit_depth,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// Channel selects one source channel; -1 averages all channels to mono
	Channel int `yaml:"channel" json:"channel"`

	// MaxDuration truncates decoded audio; 0 means no limit
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Channel:     -1,
		MaxDuration: 0,
	}
}

// Decoder turns encoded audio into mono float samples
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// interleaved is what every codec backend hands back before channel selection
type interleaved struct {
	samples    []float64
	sampleRate int
	channels   int
	bitDepth   int
	codec      string
}

// DecodeFile opens path and decodes it according to its extension
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*AudioData, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	audio, err := d.Decode(ctx, f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	audio.Metadata.Path = path

	return audio, nil
}

// Decode decodes r as format. Context is checked before and after the
// (non-interruptible) codec work.
func (d *Decoder) Decode(ctx context.Context, r io.ReadSeeker, format Format) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "Decode",
		"format":    string(format),
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		raw *interleaved
		err error
	)
	switch format {
	case FormatWAV:
		raw, err = decodeWAV(r)
	case FormatMP3:
		raw, err = decodeMP3(r, d.maxFrames)
	case FormatVorbis:
		raw, err = decodeVorbis(r)
	case FormatAIFF:
		raw, err = decodeAIFF(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		logger.Debug("decode failed", logging.Fields{"error": err.Error()})
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pcm, err := d.selectChannel(raw)
	if err != nil {
		return nil, err
	}
	if maxFrames := d.maxFrames(raw.sampleRate); maxFrames > 0 && len(pcm) > maxFrames {
		pcm = pcm[:maxFrames]
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}

	logger.Debug("audio decoded", logging.Fields{
		"sample_rate":     raw.sampleRate,
		"source_channels": raw.channels,
		"frames":          len(pcm),
	})

	return &AudioData{
		PCM:        pcm,
		SampleRate: raw.sampleRate,
		Channels:   1,
		Duration:   time.Duration(len(pcm)) * time.Second / time.Duration(raw.sampleRate),
		Timestamp:  time.Now(),
		Metadata: &StreamMetadata{
			Format:         format,
			Codec:          raw.codec,
			SourceChannels: raw.channels,
			BitDepth:       raw.bitDepth,
		},
	}, nil
}

// maxFrames converts MaxDuration to a frame count at sampleRate; 0 means unlimited
func (d *Decoder) maxFrames(sampleRate int) int {
	if d.config.MaxDuration <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(d.config.MaxDuration.Seconds() * float64(sampleRate))
}

// selectChannel reduces interleaved samples to one channel
func (d *Decoder) selectChannel(raw *interleaved) ([]float64, error) {
	if raw.channels <= 0 || raw.sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrNoAudio, raw.channels, raw.sampleRate)
	}

	channel := d.config.Channel
	if channel >= raw.channels {
		return nil, fmt.Errorf("%w: channel %d of %d", ErrChannelOutOfRange, channel, raw.channels)
	}

	if raw.channels == 1 {
		return raw.samples, nil
	}

	frames := len(raw.samples) / raw.channels
	mono := make([]float64, frames)
	for i := range frames {
		frame := raw.samples[i*raw.channels : (i+1)*raw.channels]
		if channel >= 0 {
			mono[i] = frame[channel]
			continue
		}
		sum := 0.0
		for _, s := range frame {
			sum += s
		}
		mono[i] = sum / float64(raw.channels)
	}

	return mono, nil
}

// GetConfig returns decoder configuration information
func (d *Decoder) GetConfig() DecoderConfig {
	return *d.config
}
