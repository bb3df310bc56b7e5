package app

import (
	"time"

	"github.com/Savin-Alex/ai-consul-sub001/internal/device"
	"github.com/Savin-Alex/ai-consul-sub001/internal/suggest"
)

// eventQueueDepth bounds the outbound event channel. Emission never blocks
// the pipeline: when the consumer lags, events are dropped and counted.
const eventQueueDepth = 128

// Event is anything the pipeline reports to its consumer (a UI layer, a CLI,
// a test harness). Read them from [App.Events].
type Event interface {
	event()
}

// StateChanged reports one device state machine transition.
type StateChanged struct {
	device.Transition
}

func (StateChanged) event() {}

// Transcript reports one finalized utterance transcription.
type Transcript struct {
	Text string
	At   time.Time
}

func (Transcript) event() {}

// Suggestions reports the generated suggestions for one transcript. Items may
// be empty when the model produced nothing usable.
type Suggestions struct {
	Transcript string
	Items      []suggest.Suggestion
	At         time.Time
}

func (Suggestions) event() {}

// Notice reports a non-fatal pipeline problem: a capture drop, a transcription
// exhaustion, a suggestion failure. The session keeps running.
type Notice struct {
	Message string
	Err     error
	At      time.Time
}

func (Notice) event() {}
