package lifecycle

import (
	"sync"

	"go.uber.org/zap"

	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/stream"
)

// Phase is one state of a worker-resident module's lifecycle.
type Phase uint8

const (
	Uninitialized Phase = iota
	Initialized
	UpdateStarted
	UpdateEnded
	Disposed
)

var phaseNames = [...]string{
	Uninitialized: "UNINITIALIZED",
	Initialized:   "INITIALIZED",
	UpdateStarted: "UPDATE_STARTED",
	UpdateEnded:   "UPDATE_ENDED",
	Disposed:      "DISPOSED",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "UNKNOWN"
}

// Machine tracks one module instance through
// UNINITIALIZED → INITIALIZED → (UPDATE_STARTED ⇄ UPDATE_ENDED)* → DISPOSED
// and republishes each transition on an event stream. DISPOSED is
// terminal: the stream closes and emits nothing further.
type Machine struct {
	mu          sync.Mutex
	phase       Phase
	initialized bool
	events      *stream.Stream[Phase]
	logger      *zap.Logger
}

// New creates a machine in the UNINITIALIZED phase.
func New(logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		events: stream.New[Phase](logger),
		logger: logger,
	}
}

// Events is the transition stream. Subscribers see INITIALIZED exactly
// once, strict UPDATE_STARTED/UPDATE_ENDED alternation, then one terminal
// DISPOSED followed by completion.
func (m *Machine) Events() *stream.Stream[Phase] {
	return m.events
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Initialize fires INITIALIZED exactly once. Re-entrant calls after the
// first are silent no-ops rather than errors; calls after disposal fail.
func (m *Machine) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		if m.phase == Disposed {
			return errors.InvalidTransition(m.phase.String(), Initialized.String())
		}
		m.logger.Debug("re-entrant initialize ignored")
		return nil
	}
	m.initialized = true
	m.phase = Initialized
	m.events.Publish(Initialized)
	return nil
}

// BeginUpdate marks the start of one render/update tick. Valid only when
// initialized and not mid-update.
func (m *Machine) BeginUpdate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != Initialized && m.phase != UpdateEnded {
		return errors.InvalidTransition(m.phase.String(), UpdateStarted.String())
	}
	m.phase = UpdateStarted
	m.events.Publish(UpdateStarted)
	return nil
}

// EndUpdate closes the tick opened by BeginUpdate.
func (m *Machine) EndUpdate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != UpdateStarted {
		return errors.InvalidTransition(m.phase.String(), UpdateEnded.String())
	}
	m.phase = UpdateEnded
	m.events.Publish(UpdateEnded)
	return nil
}

// Dispose fires DISPOSED once and closes the event stream so subscribers
// observe completion. Idempotent: repeated disposal is a no-op.
func (m *Machine) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == Disposed {
		return
	}
	m.phase = Disposed
	m.initialized = true
	m.events.Publish(Disposed)
	m.events.Close()
}
