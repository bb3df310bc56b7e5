package capture

// streamResampler converts audio between sample rates across successive
// chunks, carrying unconsumed source samples so chunk boundaries introduce no
// discontinuities. Upsampling uses linear interpolation; downsampling
// averages each decimation window to limit aliasing.
//
// Not safe for concurrent use; the producer loop is the only caller.
type streamResampler struct {
	srcRate int
	dstRate int

	pending []float32
	// pos is the fractional read position of the next output sample,
	// relative to pending[0].
	pos float64
}

func newStreamResampler(srcRate, dstRate int) *streamResampler {
	return &streamResampler{srcRate: srcRate, dstRate: dstRate}
}

// process ingests one source-rate chunk and returns whatever destination-rate
// samples can be produced so far. Samples near the chunk tail stay pending
// until the next call supplies their interpolation or window neighbours.
func (r *streamResampler) process(chunk []float32) []float32 {
	if r.srcRate == r.dstRate {
		out := make([]float32, len(chunk))
		copy(out, chunk)
		return out
	}

	r.pending = append(r.pending, chunk...)
	ratio := float64(r.srcRate) / float64(r.dstRate)

	var out []float32
	if r.srcRate < r.dstRate {
		for {
			idx := int(r.pos)
			if idx+1 >= len(r.pending) {
				break
			}
			frac := float32(r.pos - float64(idx))
			out = append(out, r.pending[idx]+frac*(r.pending[idx+1]-r.pending[idx]))
			r.pos += ratio
		}
	} else {
		for {
			end := r.pos + ratio
			if int(end) > len(r.pending) {
				break
			}
			out = append(out, average(r.pending[int(r.pos):max(int(end), int(r.pos)+1)]))
			r.pos = end
		}
	}

	r.compact()
	return out
}

// drain emits the remaining pending samples as best it can (clamped
// interpolation upward, a partial final window downward) and resets the
// resampler state.
func (r *streamResampler) drain() []float32 {
	if r.srcRate == r.dstRate || len(r.pending) == 0 {
		r.pending = nil
		r.pos = 0
		return nil
	}

	ratio := float64(r.srcRate) / float64(r.dstRate)
	var out []float32
	if r.srcRate < r.dstRate {
		for int(r.pos) < len(r.pending) {
			idx := int(r.pos)
			next := idx + 1
			if next >= len(r.pending) {
				next = idx
			}
			frac := float32(r.pos - float64(idx))
			out = append(out, r.pending[idx]+frac*(r.pending[next]-r.pending[idx]))
			r.pos += ratio
		}
	} else {
		for int(r.pos) < len(r.pending) {
			end := int(r.pos + ratio)
			if end > len(r.pending) {
				end = len(r.pending)
			}
			out = append(out, average(r.pending[int(r.pos):max(end, int(r.pos)+1)]))
			r.pos += ratio
		}
	}

	r.pending = nil
	r.pos = 0
	return out
}

// compact discards fully consumed source samples.
func (r *streamResampler) compact() {
	drop := int(r.pos)
	if drop <= 0 {
		return
	}
	if drop > len(r.pending) {
		drop = len(r.pending)
	}
	r.pending = append(r.pending[:0:0], r.pending[drop:]...)
	r.pos -= float64(drop)
}

func average(samples []float32) float32 {
	var sum float32
	for _, s := range samples {
		sum += s
	}
	return sum / float32(len(samples))
}
