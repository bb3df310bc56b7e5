package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// historyLimit bounds the diagnostic transition ring.
const historyLimit = 100

// TriggerEmergencyStop is recorded when EmergencyStop forces the machine to
// idle outside the normal edge table.
const TriggerEmergencyStop Trigger = "emergency_stop"

// Config tunes a [Machine].
type Config struct {
	// WatchdogTimeout bounds how long a transitional state may persist
	// before being forced to error. Default: 10s.
	WatchdogTimeout time.Duration
}

// Option configures a [Machine].
type Option func(*Machine)

// WithObserver registers a callback invoked synchronously after every state
// change. The callback must not call back into the machine.
func WithObserver(fn func(Transition)) Option {
	return func(m *Machine) { m.onChange = fn }
}

// Machine is the audio device state machine. It exclusively owns the
// [Session] handed to Start and is safe for concurrent use: a transition
// lock admits one non-error transition at a time and rejects the rest with
// [*TransitionError].
type Machine struct {
	watchdog time.Duration
	onChange func(Transition)

	// busy is the transition lock. Error transitions bypass it.
	busy atomic.Bool

	mu      sync.Mutex
	state   State
	history []Transition
	session *Session
	wdTimer *time.Timer
	wdSeq   uint64
}

// NewMachine creates a machine at rest in idle.
func NewMachine(cfg Config, opts ...Option) *Machine {
	if cfg.WatchdogTimeout <= 0 {
		cfg.WatchdogTimeout = 10 * time.Second
	}
	m := &Machine{watchdog: cfg.WatchdogTimeout, state: StateIdle}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns a copy of the recorded transitions, oldest first, capped
// at the last 100.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Start walks the bring-up sequence: request permission, initialise the
// processing context, install the capture callback, and begin recording. On
// any stage failure the machine transitions to error and the session is torn
// down. Valid from idle or error.
func (m *Machine) Start(ctx context.Context, session *Session) error {
	if err := m.acquire(TriggerStart); err != nil {
		return err
	}
	defer m.release()

	if err := m.fire(TriggerStart); err != nil {
		return err
	}
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	if err := session.open(ctx); err != nil {
		return m.failStage("request permission", err)
	}
	if err := m.fire(TriggerPermissionGranted); err != nil {
		return err
	}

	// The producer goroutine is already running; reaching this state means
	// the processing context is live.
	if err := m.fire(TriggerContextReady); err != nil {
		return err
	}

	if err := session.installCallback(); err != nil {
		return m.failStage("install capture callback", err)
	}
	if err := m.fire(TriggerWorkletLoaded); err != nil {
		return err
	}

	if err := m.fire(TriggerBeginRecording); err != nil {
		return err
	}
	session.setCapturing(true)
	return nil
}

// Pause suspends frame flow without releasing the device.
func (m *Machine) Pause() error {
	if err := m.acquire(TriggerPause); err != nil {
		return err
	}
	defer m.release()

	if err := m.fire(TriggerPause); err != nil {
		return err
	}
	if s := m.currentSession(); s != nil {
		s.setCapturing(false)
	}
	return nil
}

// Resume restarts frame flow from paused (or ready). From any other state it
// rejects with a [*TransitionError] and changes nothing.
func (m *Machine) Resume() error {
	if err := m.acquire(TriggerBeginRecording); err != nil {
		return err
	}
	defer m.release()

	if err := m.fire(TriggerBeginRecording); err != nil {
		return err
	}
	if s := m.currentSession(); s != nil {
		s.setCapturing(true)
	}
	return nil
}

// Stop tears the session down and returns the machine to idle. Calling Stop
// when already idle is a no-op; the session teardown itself runs at most
// once however many paths race to it.
func (m *Machine) Stop() error {
	if err := m.acquire(TriggerStop); err != nil {
		return err
	}
	defer m.release()

	if m.State() == StateIdle {
		return nil
	}
	if err := m.fire(TriggerStop); err != nil {
		return err
	}

	session := m.currentSession()
	if session != nil {
		if err := session.stopCapture(); err != nil {
			return m.failStage("stop capture", err)
		}
		// Drain residue so the last partial utterance is not lost.
		if err := session.Producer().Flush(); err != nil {
			slog.Warn("flush on stop", "error", err)
		}
	}

	if err := m.fire(TriggerCleanup); err != nil {
		return err
	}
	if session != nil {
		if err := session.close(); err != nil {
			return m.failStage("close session", err)
		}
	}

	if err := m.fire(TriggerStopped); err != nil {
		return err
	}
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}

// EmergencyStop bypasses the transition lock, tears down every resource
// class best-effort (failures logged, never aborting the remaining steps),
// and forces the machine to idle.
func (m *Machine) EmergencyStop() {
	if s := m.currentSession(); s != nil {
		s.emergencyClose()
	}

	m.mu.Lock()
	tr := m.setStateLocked(StateIdle, TriggerEmergencyStop)
	m.session = nil
	m.mu.Unlock()
	m.notify(tr)
}

// Fail forces the machine into the error state, recording cause, and tears
// the session down. Error transitions are always allowed and may preempt an
// in-flight transition.
func (m *Machine) Fail(cause error) {
	slog.Error("device error", "error", cause)

	if s := m.currentSession(); s != nil {
		s.emergencyClose()
	}

	m.mu.Lock()
	tr := m.setStateLocked(StateError, TriggerError)
	m.session = nil
	m.mu.Unlock()
	m.notify(tr)
}

// acquire takes the transition lock or reports who holds it.
func (m *Machine) acquire(t Trigger) error {
	if !m.busy.CompareAndSwap(false, true) {
		return &TransitionError{From: m.State(), Trigger: t, Busy: true}
	}
	return nil
}

func (m *Machine) release() { m.busy.Store(false) }

// fire requests one edge from the table. Invalid edges are rejected with no
// state mutation.
func (m *Machine) fire(trigger Trigger) error {
	m.mu.Lock()
	next, ok := transitions[m.state][trigger]
	if !ok {
		from := m.state
		m.mu.Unlock()
		return &TransitionError{From: from, Trigger: trigger}
	}
	tr := m.setStateLocked(next, trigger)
	m.mu.Unlock()
	m.notify(tr)
	return nil
}

// setStateLocked commits a transition: updates state, the history ring, and
// the watchdog. Caller holds m.mu.
func (m *Machine) setStateLocked(to State, trigger Trigger) Transition {
	tr := Transition{From: m.state, To: to, Trigger: trigger, At: time.Now()}
	m.state = to

	m.history = append(m.history, tr)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}

	// Re-arm or cancel the watchdog. The sequence number makes an already
	// scheduled timer callback stale.
	m.wdSeq++
	if m.wdTimer != nil {
		m.wdTimer.Stop()
		m.wdTimer = nil
	}
	if transitional(to) {
		seq := m.wdSeq
		m.wdTimer = time.AfterFunc(m.watchdog, func() { m.watchdogFired(seq) })
	}

	slog.Debug("device transition", "from", tr.From, "to", tr.To, "trigger", trigger)
	return tr
}

// watchdogFired forces error when the machine is still stuck in the
// transitional state that armed this timer.
func (m *Machine) watchdogFired(seq uint64) {
	m.mu.Lock()
	if seq != m.wdSeq || !transitional(m.state) {
		m.mu.Unlock()
		return
	}
	stuck := m.state
	m.mu.Unlock()

	m.Fail(fmt.Errorf("device: watchdog expired in state %q after %v", stuck, m.watchdog))
}

func (m *Machine) currentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Machine) failStage(stage string, err error) error {
	wrapped := fmt.Errorf("device: %s: %w", stage, err)
	m.Fail(wrapped)
	return wrapped
}

func (m *Machine) notify(tr Transition) {
	if m.onChange != nil {
		m.onChange(tr)
	}
}
