package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// maxOpusFrameSize is the largest Opus frame we accept (120 ms at 48 kHz).
const maxOpusFrameSize = 5760

// OpusNode is an optional processing-graph node that decodes Opus packets
// into float32 PCM ahead of resampling. It is used when the capture source
// delivers compressed packets (e.g. a network transport) instead of raw PCM.
//
// An OpusNode carries decoder state and must only be used from a single
// goroutine (the frame producer's loop).
type OpusNode struct {
	dec        *gopus.Decoder
	sampleRate int
	channels   int
}

// NewOpusNode creates a decoder node for the given packet rate and channel
// count. Common values: 48000 Hz stereo for transport audio.
func NewOpusNode(sampleRate, channels int) (*OpusNode, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusNode{dec: dec, sampleRate: sampleRate, channels: channels}, nil
}

// Decode decodes one Opus packet into mono float32 PCM at the node's sample
// rate. Multi-channel packets are downmixed.
func (n *OpusNode) Decode(packet []byte) ([]float32, error) {
	pcm, err := n.dec.Decode(packet, maxOpusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return DownmixMono(out, n.channels), nil
}

// SampleRate returns the PCM rate produced by Decode.
func (n *OpusNode) SampleRate() int { return n.sampleRate }
