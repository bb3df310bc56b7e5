// Package mock provides test doubles for the audio package interfaces.
//
// Source simulates a capture device: scripted chunks are delivered through
// the push callback when Start is called, and every lifecycle call is
// recorded for assertion.
package mock

import (
	"context"
	"sync"

	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
)

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// Source is a mock implementation of audio.Source.
type Source struct {
	mu sync.Mutex

	// Rate and ChannelCount are returned by SampleRate and Channels.
	// Defaults: 16000 Hz mono.
	Rate         int
	ChannelCount int

	// Chunks are delivered synchronously, in order, on every Start call.
	Chunks [][]float32

	// OpenErr, StartErr, StopErr, CloseErr are returned by the corresponding
	// methods when non-nil.
	OpenErr  error
	StartErr error
	StopErr  error
	CloseErr error

	// OpenBlocks makes Open block until ctx is cancelled (for watchdog tests).
	OpenBlocks bool

	// --- Call records ---

	OpenCalls  int
	StartCalls int
	StopCalls  int
	CloseCalls int

	push func(chunk []float32)
}

// Open records the call and returns OpenErr. When OpenBlocks is set it waits
// for ctx cancellation and returns ctx.Err().
func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	s.OpenCalls++
	blocks := s.OpenBlocks
	err := s.OpenErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if blocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// Start records the call, stores push, and synchronously delivers any
// scripted Chunks.
func (s *Source) Start(push func(chunk []float32)) error {
	s.mu.Lock()
	s.StartCalls++
	s.push = push
	chunks := s.Chunks
	err := s.StartErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	for _, c := range chunks {
		push(c)
	}
	return nil
}

// Push delivers an extra chunk through the stored callback, simulating a
// hardware callback arriving after Start.
func (s *Source) Push(chunk []float32) {
	s.mu.Lock()
	push := s.push
	s.mu.Unlock()
	if push != nil {
		push(chunk)
	}
}

// Stop records the call and returns StopErr.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCalls++
	return s.StopErr
}

// Close records the call and returns CloseErr.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return s.CloseErr
}

// SampleRate returns Rate, defaulting to 16000.
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// Channels returns ChannelCount, defaulting to 1.
func (s *Source) Channels() int {
	if s.ChannelCount == 0 {
		return 1
	}
	return s.ChannelCount
}
