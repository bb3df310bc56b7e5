package audio

import "context"

// Source abstracts a hardware (or transport) capture handle. Concrete
// implementations wrap a microphone device, an OS capture API, or a network
// stream; a scripted implementation lives in the mock subpackage.
//
// Lifecycle: Open acquires the device (and any OS-level permission), Start
// begins delivering chunks, Stop halts delivery without releasing the
// device, Close releases everything. Open/Start/Stop/Close must be safe to
// call in that order from a single goroutine; Close must be idempotent.
type Source interface {
	// Open acquires the capture device. Blocking permission prompts must
	// respect ctx cancellation.
	Open(ctx context.Context) error

	// Start begins capture. push is invoked from the source's own capture
	// goroutine with variable-size chunks of interleaved float32 PCM at
	// SampleRate/Channels. push must never block: the capture side of the
	// pipeline drops on overflow rather than stalling the device callback.
	Start(push func(chunk []float32)) error

	// Stop halts chunk delivery. The device stays open; Start may be called
	// again to resume.
	Stop() error

	// Close releases the device. Calling Close more than once is safe and
	// returns nil.
	Close() error

	// SampleRate returns the native capture rate in Hz.
	SampleRate() int

	// Channels returns the native channel count.
	Channels() int
}
