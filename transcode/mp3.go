package transcode

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always yields interleaved stereo, 16-bit little-endian
const (
	mp3Channels       = 2
	mp3BytesPerSample = 2
)

// decodeMP3 decodes at most maxFrames(sampleRate) frames when a limit is set
func decodeMP3(r io.Reader, maxFrames func(sampleRate int) int) (*interleaved, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 stream: %w", err)
	}

	sampleRate := dec.SampleRate()

	var src io.Reader = dec
	if limit := maxFrames(sampleRate); limit > 0 {
		src = io.LimitReader(dec, int64(limit)*mp3Channels*mp3BytesPerSample)
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 frames: %w", err)
	}

	n := len(data) / mp3BytesPerSample
	n -= n % mp3Channels
	samples := make([]float64, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(data[2*i : 2*i+2]))
		samples[i] = float64(v) / 32768.0
	}

	return &interleaved{
		samples:    samples,
		sampleRate: sampleRate,
		channels:   mp3Channels,
		bitDepth:   16,
		codec:      "mp3",
	}, nil
}
