// Package audio provides the frame type and PCM conversion primitives shared
// by the capture pipeline: sample-rate conversion, int16/float32 codecs, and
// the Source interface abstracting a hardware capture handle.
package audio

// Int16ToFloat32 converts little-endian int16 PCM bytes to normalised
// float32 samples. A trailing odd byte is ignored.
func Int16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Float32ToInt16 converts normalised float32 samples to little-endian int16
// PCM bytes, clamping to the int16 range.
func Float32ToInt16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32767.0)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DownmixMono averages interleaved multi-channel samples into mono.
// For channels <= 1 the input is returned unchanged.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// ResampleLinear resamples mono float32 PCM from srcRate to dstRate using
// linear interpolation. Suitable for upsampling; for downsampling prefer
// ResampleAveraging, which low-passes across the decimation window to limit
// aliasing. If srcRate == dstRate the input is returned unchanged.
func ResampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstLen {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// ResampleAveraging downsamples mono float32 PCM from srcRate to dstRate by
// averaging every source sample inside each output sample's decimation
// window. The window boundaries track the exact rational ratio, so
// non-integer ratios (e.g. 44100 -> 16000) stay phase-accurate.
// If srcRate <= dstRate the call falls back to ResampleLinear.
func ResampleAveraging(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}
	if srcRate <= dstRate {
		return ResampleLinear(samples, srcRate, dstRate)
	}

	ratio := float64(srcRate) / float64(dstRate)
	dstLen := int(float64(len(samples)) / ratio)
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	for i := range dstLen {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			end = start + 1
		}
		var sum float32
		for _, s := range samples[start:end] {
			sum += s
		}
		out[i] = sum / float32(end-start)
	}
	return out
}
