package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// readerChunk is the delivery granularity of a ReaderSource.
const readerChunk = 20 * time.Millisecond

// ReaderSource adapts a raw little-endian int16 PCM byte stream to the
// [Source] interface. The CLI entry point uses it to accept capture audio
// piped from a parent process over stdin; tests feed it from a bytes.Reader.
//
// Chunks are delivered in fixed 20ms slices. The stream ending (EOF) simply
// stops delivery; it is not an error.
type ReaderSource struct {
	r        io.Reader
	rate     int
	channels int

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource creates a source reading int16 PCM at the given rate and
// channel count from r.
func NewReaderSource(r io.Reader, sampleRate, channels int) *ReaderSource {
	if channels <= 0 {
		channels = 1
	}
	return &ReaderSource{r: r, rate: sampleRate, channels: channels}
}

// Open validates the stream parameters. There is no device to acquire.
func (s *ReaderSource) Open(_ context.Context) error {
	if s.rate <= 0 {
		return fmt.Errorf("audio: reader source needs a positive sample rate, got %d", s.rate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("audio: reader source closed")
	}
	return nil
}

// Start launches the read loop. A blocked read returns at the next chunk
// boundary after Stop; closing the underlying stream ends delivery
// immediately.
func (s *ReaderSource) Start(push func(chunk []float32)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("audio: reader source closed")
	}
	if s.stop != nil {
		return errors.New("audio: reader source already started")
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(push, s.stop, s.done)
	return nil
}

func (s *ReaderSource) loop(push func(chunk []float32), stop, done chan struct{}) {
	defer close(done)

	samplesPerChunk := int(float64(s.rate)*readerChunk.Seconds()) * s.channels
	buf := make([]byte, samplesPerChunk*2)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			push(Int16ToFloat32(buf[:n]))
		}
		if err != nil {
			// EOF (and a trailing short read) ends the stream cleanly.
			return
		}
	}
}

// Stop halts delivery. The source may be started again afterwards.
func (s *ReaderSource) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	// The loop may be blocked in a read; it observes the stop at its next
	// chunk boundary. Only wait when the stream has already ended.
	select {
	case <-done:
	default:
	}
	return nil
}

// Close stops delivery and marks the source unusable. Idempotent.
func (s *ReaderSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// SampleRate returns the configured stream rate.
func (s *ReaderSource) SampleRate() int { return s.rate }

// Channels returns the configured channel count.
func (s *ReaderSource) Channels() int { return s.channels }
