// Package breaker implements the circuit-breaker simulation model: a
// six-state concurrent state machine with timed open/close transitions,
// lock overrides, overload auto-trip, and an arc-physics resistance and
// voltage model.
package breaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// State is one of the six breaker states.
type State int

const (
	Open State = iota
	Closed
	Opening
	Closing
	LockedOpen
	LockedClosed
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	case Opening:
		return "OPENING"
	case Closing:
		return "CLOSING"
	case LockedOpen:
		return "LOCKED_OPEN"
	case LockedClosed:
		return "LOCKED_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// simTick is the background simulation loop's sample period.
const simTick = 10 * time.Millisecond

// ErrInvalidDefinition is returned by NewWithDefinition/SetDefinition
// when a Definition fails IsValid.
var ErrInvalidDefinition = errors.New("breaker: invalid breaker definition")

// Definition holds a breaker's physical ratings. All fields must satisfy
// the positivity/non-negativity constraints checked by IsValid.
type Definition struct {
	OpenTimeSec            float64
	CloseTimeSec           float64
	ResistanceOhm          float64
	MaxCurrentA            float64
	VoltageRatingV         float64
	PowerRatingW           float64
	ArcDurationSec         float64
	ArcVoltageV            float64
	ArcResistanceOhm       float64
	ContactGapMm           float64
	DielectricStrengthKVpm float64
}

// DefaultDefinition returns the ratings used when a breaker is created
// without an explicit Definition.
func DefaultDefinition() Definition {
	return Definition{
		OpenTimeSec:            0.050,
		CloseTimeSec:           0.100,
		ResistanceOhm:          0.001,
		MaxCurrentA:            1000.0,
		VoltageRatingV:         400.0,
		PowerRatingW:           400000.0,
		ArcDurationSec:         0.020,
		ArcVoltageV:            50.0,
		ArcResistanceOhm:       0.1,
		ContactGapMm:           10.0,
		DielectricStrengthKVpm: 3.0,
	}
}

// IsValid enforces the positivity/non-negativity constraints every
// Definition must satisfy before it can be applied to a breaker.
func (d Definition) IsValid() bool {
	return d.OpenTimeSec > 0 &&
		d.CloseTimeSec > 0 &&
		d.ResistanceOhm >= 0 &&
		d.MaxCurrentA > 0 &&
		d.VoltageRatingV > 0 &&
		d.PowerRatingW > 0 &&
		d.ArcDurationSec > 0 &&
		d.ArcVoltageV >= 0 &&
		d.ArcResistanceOhm >= 0 &&
		d.ContactGapMm > 0 &&
		d.DielectricStrengthKVpm > 0
}

// StateChangeCallback is invoked for every transition that actually
// changes state. The callback slot is read under the callback mutex,
// which is released before the call, so the callback may call back into
// the Model.
type StateChangeCallback func(oldState, newState State)

// Model is a circuit-breaker simulation: state, lock flag, and current
// are read via atomics; the Definition is mutex-guarded; a background
// goroutine samples transitions at 100 Hz for the lifetime of the Model.
type Model struct {
	state   atomic.Int32
	locked  atomic.Bool
	current atomic.Int64 // math.Float64bits of the current in amps

	transitionStart    atomic.Int64 // UnixNano; zero when not in transition
	transitionDuration atomic.Int64 // nanoseconds
	targetState        atomic.Int32

	defMu sync.Mutex
	def   Definition

	running atomic.Bool
	stopCh  chan struct{}
	grp     *errgroup.Group

	cbMu sync.Mutex
	cb   StateChangeCallback
}

// New creates a breaker with the default Definition and starts its
// simulation goroutine.
func New() *Model {
	m, _ := NewWithDefinition(DefaultDefinition())
	return m
}

// NewWithDefinition creates a breaker with a custom Definition, rejecting
// it at construction if invalid, and starts its simulation goroutine.
func NewWithDefinition(def Definition) (*Model, error) {
	if !def.IsValid() {
		return nil, ErrInvalidDefinition
	}
	m := &Model{def: def}
	m.state.Store(int32(Open))
	m.targetState.Store(int32(Open))
	m.startSimulation()
	return m, nil
}

func (m *Model) loadCurrent() float64 {
	return math.Float64frombits(uint64(m.current.Load()))
}

func (m *Model) storeCurrent(v float64) {
	m.current.Store(int64(math.Float64bits(v)))
}

// GetState returns the current breaker state.
func (m *Model) GetState() State {
	return State(m.state.Load())
}

// IsClosed reports whether the breaker is CLOSED or LOCKED_CLOSED.
func (m *Model) IsClosed() bool {
	s := m.GetState()
	return s == Closed || s == LockedClosed
}

// IsOpen reports whether the breaker is OPEN or LOCKED_OPEN.
func (m *Model) IsOpen() bool {
	s := m.GetState()
	return s == Open || s == LockedOpen
}

// IsOpening reports whether the breaker is transitioning to OPEN.
func (m *Model) IsOpening() bool {
	return m.GetState() == Opening
}

// IsClosing reports whether the breaker is transitioning to CLOSED.
func (m *Model) IsClosing() bool {
	return m.GetState() == Closing
}

// IsLocked reports whether the breaker is locked in its current position.
func (m *Model) IsLocked() bool {
	return m.locked.Load()
}

// IsInTransition reports whether the breaker is OPENING or CLOSING.
func (m *Model) IsInTransition() bool {
	s := m.GetState()
	return s == Opening || s == Closing
}

// GetCurrent returns the current flowing through the breaker, in amps.
func (m *Model) GetCurrent() float64 {
	return m.loadCurrent()
}

// SetCurrent sets the current flowing through the breaker. If the
// magnitude exceeds the configured MaxCurrentA, the breaker auto-trips.
func (m *Model) SetCurrent(amps float64) {
	m.storeCurrent(amps)
	m.defMu.Lock()
	max := m.def.MaxCurrentA
	m.defMu.Unlock()
	if math.Abs(amps) > max {
		m.Trip()
	}
}

// IsOverloaded reports whether the present current magnitude exceeds the
// configured MaxCurrentA.
func (m *Model) IsOverloaded() bool {
	m.defMu.Lock()
	max := m.def.MaxCurrentA
	m.defMu.Unlock()
	return math.Abs(m.loadCurrent()) > max
}

// GetDefinition returns a copy of the breaker's current ratings.
func (m *Model) GetDefinition() Definition {
	m.defMu.Lock()
	defer m.defMu.Unlock()
	return m.def
}

// SetDefinition replaces the breaker's ratings, rejecting the change if
// the new Definition is invalid.
func (m *Model) SetDefinition(def Definition) error {
	if !def.IsValid() {
		return ErrInvalidDefinition
	}
	m.defMu.Lock()
	m.def = def
	m.defMu.Unlock()
	return nil
}

// Open commands the breaker to open. Returns false if locked or already
// in (or transitioning to) OPEN.
func (m *Model) Open() bool {
	if m.locked.Load() {
		return false
	}
	cur := m.GetState()
	if cur == Open || cur == Opening {
		return false
	}

	m.defMu.Lock()
	duration := m.def.OpenTimeSec
	m.defMu.Unlock()

	m.targetState.Store(int32(Open))
	m.transitionDuration.Store(int64(duration * float64(time.Second)))
	m.transitionStart.Store(time.Now().UnixNano())
	m.transitionToState(Opening)
	return true
}

// Close commands the breaker to close. Returns false if locked or
// already in (or transitioning to) CLOSED.
func (m *Model) Close() bool {
	if m.locked.Load() {
		return false
	}
	cur := m.GetState()
	if cur == Closed || cur == Closing {
		return false
	}

	m.defMu.Lock()
	duration := m.def.CloseTimeSec
	m.defMu.Unlock()

	m.targetState.Store(int32(Closed))
	m.transitionDuration.Store(int64(duration * float64(time.Second)))
	m.transitionStart.Store(time.Now().UnixNano())
	m.transitionToState(Closing)
	return true
}

// Lock locks the breaker in its current position, moving OPEN/CLOSED to
// their LOCKED_* counterpart.
func (m *Model) Lock() {
	m.locked.Store(true)
	switch m.GetState() {
	case Open:
		m.transitionToState(LockedOpen)
	case Closed:
		m.transitionToState(LockedClosed)
	}
}

// Unlock releases the lock, moving LOCKED_OPEN/LOCKED_CLOSED back to
// OPEN/CLOSED.
func (m *Model) Unlock() {
	m.locked.Store(false)
	switch m.GetState() {
	case LockedOpen:
		m.transitionToState(Open)
	case LockedClosed:
		m.transitionToState(Closed)
	}
}

// Trip forces an emergency open: clears the lock, clears current, and
// moves immediately to OPEN.
func (m *Model) Trip() {
	m.locked.Store(false)
	m.transitionToState(Open)
	m.storeCurrent(0)
}

// OnStateChange registers the callback invoked for every state-changing
// transition. Passing nil clears the callback.
func (m *Model) OnStateChange(cb StateChangeCallback) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.cb = cb
}

func (m *Model) transitionToState(newState State) {
	old := State(m.state.Swap(int32(newState)))
	if old == newState {
		return
	}
	m.cbMu.Lock()
	cb := m.cb
	m.cbMu.Unlock()
	if cb != nil {
		cb(old, newState)
	}
}

func (m *Model) startSimulation() {
	if m.running.Swap(true) {
		return
	}
	m.stopCh = make(chan struct{})
	grp := &errgroup.Group{}
	m.grp = grp
	grp.Go(func() error {
		m.simulationLoop(m.stopCh)
		return nil
	})
}

// StopSimulation stops the background simulation goroutine and joins it.
func (m *Model) StopSimulation() {
	if !m.running.Swap(false) {
		return
	}
	close(m.stopCh)
	_ = m.grp.Wait()
}

func (m *Model) simulationLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(simTick)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.updateState()
		}
	}
}

func (m *Model) updateState() {
	cur := m.GetState()

	if cur == Opening || cur == Closing {
		startNanos := m.transitionStart.Load()
		durNanos := m.transitionDuration.Load()
		elapsed := time.Now().UnixNano() - startNanos

		if elapsed >= durNanos {
			target := State(m.targetState.Load())
			m.transitionToState(target)
			if target == Open {
				m.storeCurrent(0)
			}
		}
	}
}

// resistanceProgress returns the clamped [0,1] fraction of the current
// transition that has elapsed.
func (m *Model) resistanceProgress() float64 {
	startNanos := m.transitionStart.Load()
	durNanos := m.transitionDuration.Load()
	if durNanos <= 0 {
		return 1
	}
	elapsed := float64(time.Now().UnixNano() - startNanos)
	progress := elapsed / float64(durNanos)
	return clamp01(progress)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// GetResistance models the breaker's instantaneous series resistance:
// the rated value when closed, infinite when fully open, and a linear
// interpolation towards ArcResistanceOhm while in transition.
func (m *Model) GetResistance() float64 {
	m.defMu.Lock()
	def := m.def
	m.defMu.Unlock()

	switch m.GetState() {
	case Closed, LockedClosed:
		return def.ResistanceOhm
	case Opening:
		progress := m.resistanceProgress()
		return def.ResistanceOhm + progress*(def.ArcResistanceOhm-def.ResistanceOhm)
	case Closing:
		progress := m.resistanceProgress()
		return def.ArcResistanceOhm + progress*(def.ResistanceOhm-def.ArcResistanceOhm)
	default:
		return math.Inf(1)
	}
}

// GetArcVoltage models the voltage developed across the opening contacts:
// zero outside a transition or below 1A, and otherwise scaling with both
// elapsed arc progress and load current relative to the rated maximum.
func (m *Model) GetArcVoltage() float64 {
	if !m.IsInTransition() {
		return 0
	}

	current := m.loadCurrent()
	if math.Abs(current) <= 1.0 {
		return 0
	}

	m.defMu.Lock()
	def := m.def
	m.defMu.Unlock()

	startNanos := m.transitionStart.Load()
	elapsedSec := float64(time.Now().UnixNano()-startNanos) / float64(time.Second)
	if elapsedSec > def.ArcDurationSec {
		return 0
	}

	arcProgress := clamp01(elapsedSec / def.ArcDurationSec)
	scale := (1 + arcProgress*def.ContactGapMm/10) * (math.Abs(current) / def.MaxCurrentA)
	return def.ArcVoltageV * scale
}

// String implements fmt.Stringer so %v formatting produces the
// conventional state name rather than an integer.
func (m *Model) String() string {
	return fmt.Sprintf("Breaker{state=%s, locked=%v, current=%.1fA}", m.GetState(), m.IsLocked(), m.GetCurrent())
}
