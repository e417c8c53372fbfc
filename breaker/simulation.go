package breaker

import (
	"errors"
	"time"
)

// ErrInvalidSimulationParams is returned by RunSimulation when its
// arguments fail validation.
var ErrInvalidSimulationParams = errors.New("breaker: invalid simulation parameters")

// Result captures a full RunSimulation scenario: the sampled time
// series plus whether and when a trip occurred.
//
// Summary is reserved for a human-readable scenario recap (e.g. "tripped
// at t=1.2s on overcurrent"); RunSimulation never populates it, matching
// the reference simulator it's modeled on.
type Result struct {
	TimePoints    []float64
	CurrentValues []float64
	StateHistory  []State
	TripOccurred  bool
	TripTime      float64
	Summary       string
}

// RunSimulation closes the breaker, then steps a synthetic load: nominal
// current until faultTimeS, faultCurrentA from then on, sampled every
// timeStepS for durationS. It records the observed current and state at
// each step and reports the first tick the breaker is found OPEN after
// t=0 as a trip.
//
// This is a scenario driver for tests and demos that runs in real time:
// it sleeps for CloseTimeSec after closing, then for timeStepS between
// samples, so the breaker's own state machine (which runs on its own
// 100 Hz goroutine) advances between observations.
func (m *Model) RunSimulation(voltageV, nominalCurrentA, faultCurrentA, faultTimeS, durationS, timeStepS float64) (Result, error) {
	if nominalCurrentA < 0 || durationS <= 0 || timeStepS <= 0 {
		return Result{}, ErrInvalidSimulationParams
	}

	m.Close()
	m.defMu.Lock()
	closeWait := m.def.CloseTimeSec
	m.defMu.Unlock()
	time.Sleep(time.Duration(closeWait*float64(time.Second)) + 50*time.Microsecond)

	var result Result
	timeElapsed := 0.0

	for timeElapsed < durationS {
		current := nominalCurrentA
		if timeElapsed >= faultTimeS {
			current = faultCurrentA
		}

		if m.IsClosed() {
			m.SetCurrent(current)
		} else {
			m.SetCurrent(0)
		}

		result.TimePoints = append(result.TimePoints, timeElapsed)
		result.CurrentValues = append(result.CurrentValues, m.GetCurrent())
		result.StateHistory = append(result.StateHistory, m.GetState())

		if !result.TripOccurred && m.IsOpen() && timeElapsed > 0 {
			result.TripOccurred = true
			result.TripTime = timeElapsed
		}

		time.Sleep(time.Duration(timeStepS * float64(time.Second)))
		timeElapsed += timeStepS
	}

	return result, nil
}
