package transcode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
)

const aiffChunkFrames = 4096

func decodeAIFF(r io.ReadSeeker) (*interleaved, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidAIFF
	}

	dec.ReadInfo()
	format := dec.Format()
	if format == nil || format.NumChannels <= 0 {
		return nil, ErrInvalidAIFF
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, bitDepth)
	}

	buf := &audio.IntBuffer{
		Format: format,
		Data:   make([]int, aiffChunkFrames*format.NumChannels),
	}
	scale := float64(int64(1) << (bitDepth - 1))

	var samples []float64
	for {
		n, err := dec.PCMBuffer(buf)
		for _, v := range buf.Data[:n] {
			samples = append(samples, float64(v)/scale)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read AIFF samples: %w", err)
		}
		if n == 0 || err != nil {
			break
		}
	}

	return &interleaved{
		samples:    samples,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		bitDepth:   bitDepth,
		codec:      fmt.Sprintf("pcm_s%dbe", bitDepth),
	}, nil
}
