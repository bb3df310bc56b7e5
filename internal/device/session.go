package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Savin-Alex/ai-consul-sub001/internal/capture"
	"github.com/Savin-Alex/ai-consul-sub001/pkg/audio"
)

// Session bundles the capture resources for one recording session: the
// hardware source, an optional Opus decode node, and the frame producer. The
// state machine exclusively owns the session; nothing else may start, stop,
// or close its resources.
type Session struct {
	source   audio.Source
	opus     *audio.OpusNode
	producer *capture.Producer

	capturing atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewSession wires a source to a producer. opus may be nil; when set,
// [Session.PushOpus] decodes packets ahead of the producer for Opus-encoded
// sources.
func NewSession(source audio.Source, opus *audio.OpusNode, producer *capture.Producer) *Session {
	return &Session{source: source, opus: opus, producer: producer}
}

// Producer exposes the frame stream for the pipeline consumer.
func (s *Session) Producer() *capture.Producer { return s.producer }

// open acquires the device (permission prompt happens here).
func (s *Session) open(ctx context.Context) error {
	return s.source.Open(ctx)
}

// installCallback attaches the capture callback to the hardware path. Frames
// only flow once setCapturing(true) is called.
func (s *Session) installCallback() error {
	return s.source.Start(s.push)
}

// setCapturing gates the capture callback. Chunks arriving while the gate is
// closed (paused, still in bring-up) are discarded at the boundary.
func (s *Session) setCapturing(on bool) {
	s.capturing.Store(on)
}

// push is the capture callback. It must never block.
func (s *Session) push(chunk []float32) {
	if !s.capturing.Load() {
		return
	}
	if n := s.source.Channels(); n > 1 {
		chunk = audio.DownmixMono(chunk, n)
	}
	s.producer.Push(chunk)
}

// PushOpus decodes one Opus packet and feeds the result through the capture
// gate. Only valid when the session was built with a decode node.
func (s *Session) PushOpus(packet []byte) error {
	if s.opus == nil {
		return errors.New("device: session has no opus decode node")
	}
	pcm, err := s.opus.Decode(packet)
	if err != nil {
		return fmt.Errorf("device: decode opus packet: %w", err)
	}
	s.push(pcm)
	return nil
}

// stopCapture halts hardware callbacks without releasing the device.
func (s *Session) stopCapture() error {
	s.setCapturing(false)
	return s.source.Stop()
}

// close tears the session down in fixed order: stop the producer, detach the
// decode node, release the source. Guarded so the normal-stop path and an
// error path may race without a double teardown; every caller observes the
// first teardown's error.
func (s *Session) close() error {
	s.closeOnce.Do(func() {
		var errs []error

		s.setCapturing(false)
		if err := s.source.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop source: %w", err))
		}
		s.producer.Close()
		s.opus = nil
		if err := s.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// emergencyClose is close with per-step error suppression: every teardown
// step runs regardless of earlier failures, failures are logged and
// discarded.
func (s *Session) emergencyClose() {
	s.closeOnce.Do(func() {
		s.setCapturing(false)
		if err := s.source.Stop(); err != nil {
			slog.Error("emergency stop: stop source", "error", err)
		}
		s.producer.Close()
		s.opus = nil
		if err := s.source.Close(); err != nil {
			slog.Error("emergency stop: close source", "error", err)
		}
	})
}
