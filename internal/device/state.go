// Package device owns the audio capture lifecycle: an explicit state machine
// over permission acquisition, processing-graph setup, recording, and
// teardown, plus the capture session resources it exclusively controls.
package device

import (
	"fmt"
	"time"
)

// State is one node of the capture lifecycle. Idle and Error are rest
// points; Ready, Recording, and Paused hold until an operator command; the
// remaining in-between states must progress on their own or the watchdog
// forces Error.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateInitializingContext  State = "initializing_context"
	StateLoadingWorklet       State = "loading_worklet"
	StateReady                State = "ready"
	StateRecording            State = "recording"
	StatePaused               State = "paused"
	StateStopping             State = "stopping"
	StateCleaningUp           State = "cleaning_up"
	StateError                State = "error"
)

// Trigger names a requested state transition.
type Trigger string

const (
	TriggerStart             Trigger = "start"
	TriggerPermissionGranted Trigger = "permission_granted"
	TriggerContextReady      Trigger = "context_ready"
	TriggerWorkletLoaded     Trigger = "worklet_loaded"
	TriggerBeginRecording    Trigger = "begin_recording"
	TriggerPause             Trigger = "pause"
	TriggerStop              Trigger = "stop"
	TriggerCleanup           Trigger = "cleanup"
	TriggerStopped           Trigger = "stopped"
	TriggerError             Trigger = "error"
)

// transitions is the edge table. TriggerError is handled separately: it is
// accepted from any state and may preempt an in-progress transition.
var transitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerStart: StateRequestingPermission,
	},
	StateError: {
		TriggerStart: StateRequestingPermission,
	},
	StateRequestingPermission: {
		TriggerPermissionGranted: StateInitializingContext,
	},
	StateInitializingContext: {
		TriggerContextReady: StateLoadingWorklet,
	},
	StateLoadingWorklet: {
		TriggerWorkletLoaded: StateReady,
	},
	StateReady: {
		TriggerBeginRecording: StateRecording,
		TriggerStop:           StateStopping,
	},
	StateRecording: {
		TriggerPause: StatePaused,
		TriggerStop:  StateStopping,
	},
	StatePaused: {
		TriggerBeginRecording: StateRecording,
		TriggerStop:           StateStopping,
	},
	StateStopping: {
		TriggerCleanup: StateCleaningUp,
		TriggerStopped: StateIdle,
	},
	StateCleaningUp: {
		TriggerStopped: StateIdle,
	},
}

// transitional reports whether s carries a watchdog: states the machine must
// leave on its own within the watchdog timeout.
func transitional(s State) bool {
	switch s {
	case StateRequestingPermission, StateInitializingContext,
		StateLoadingWorklet, StateStopping, StateCleaningUp:
		return true
	}
	return false
}

// TransitionError reports a rejected transition: either the requested edge
// does not exist from the current state, or another transition already holds
// the lock. The machine's state is unchanged.
type TransitionError struct {
	From    State
	Trigger Trigger
	// Busy is true when the edge was legal but another transition was in
	// flight.
	Busy bool
}

func (e *TransitionError) Error() string {
	if e.Busy {
		return fmt.Sprintf("device: transition %q rejected: another transition in flight (state %q)", e.Trigger, e.From)
	}
	return fmt.Sprintf("device: no transition %q from state %q", e.Trigger, e.From)
}

// Transition is one recorded state change.
type Transition struct {
	From    State
	To      State
	Trigger Trigger
	At      time.Time
}
