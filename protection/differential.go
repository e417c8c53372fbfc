package protection

import (
	"sync"
	"sync/atomic"
	"time"
)

// DifferentialSettings configures a DifferentialRelay's bias
// characteristic and instantaneous override.
type DifferentialSettings struct {
	SlopePercent            float64
	MinOperatingCurrentA    float64
	MinRestraintCurrentA    float64
	InstantaneousThresholdA float64
}

// DefaultDifferentialSettings returns a typical 25% bias slope setting.
func DefaultDifferentialSettings() DifferentialSettings {
	return DifferentialSettings{
		SlopePercent:            25.0,
		MinOperatingCurrentA:    0.3,
		MinRestraintCurrentA:    1.0,
		InstantaneousThresholdA: 10.0,
	}
}

// Valid reports whether the settings are within range.
func (s DifferentialSettings) Valid() bool {
	return s.SlopePercent > 0 && s.SlopePercent <= 100 &&
		s.MinOperatingCurrentA > 0 &&
		s.MinRestraintCurrentA > 0 &&
		s.InstantaneousThresholdA > 0
}

// DifferentialResult is the outcome of one DifferentialRelay.Update call.
type DifferentialResult struct {
	Trip              bool
	OperatingCurrentA float64
	RestraintCurrentA float64
	Instantaneous     bool
	TripTime          time.Time
}

// DifferentialTripCallback is invoked whenever Update produces a trip.
// The callback slot is read under the relay's callback mutex, which is
// released before the call.
type DifferentialTripCallback func(DifferentialResult)

// DifferentialRelay is a percentage-bias differential protection relay:
// it balances current entering and leaving a protected zone and trips on
// either an instantaneous overcurrent or a sustained imbalance above the
// bias slope.
type DifferentialRelay struct {
	settingsMu sync.Mutex
	settings   DifferentialSettings

	enabled atomic.Bool

	cbMu sync.Mutex
	cb   DifferentialTripCallback
}

// NewDifferentialRelay creates a relay with settings, rejecting it if invalid.
func NewDifferentialRelay(settings DifferentialSettings) (*DifferentialRelay, error) {
	if !settings.Valid() {
		return nil, ErrInvalidSettings
	}
	r := &DifferentialRelay{settings: settings}
	r.enabled.Store(true)
	return r, nil
}

// Update feeds one pair of complex currents (from the two sides of the
// protected zone) through the relay's bias characteristic.
func (r *DifferentialRelay) Update(current1A, current2A complex128) DifferentialResult {
	var result DifferentialResult

	if !r.enabled.Load() {
		return result
	}

	operating := current1A - current2A
	restraint := (current1A + current2A) * complex(0.5, 0)

	operatingMag := cmplxAbs(operating)
	restraintMag := cmplxAbs(restraint)

	result.OperatingCurrentA = operatingMag
	result.RestraintCurrentA = restraintMag

	r.settingsMu.Lock()
	settings := r.settings
	r.settingsMu.Unlock()

	if operatingMag >= settings.InstantaneousThresholdA {
		result.Trip = true
		result.Instantaneous = true
		result.TripTime = time.Now()
		r.invokeTrip(result)
		return result
	}

	if r.checkCharacteristic(operatingMag, restraintMag, settings) {
		result.Trip = true
		result.Instantaneous = false
		result.TripTime = time.Now()
		r.invokeTrip(result)
	}

	return result
}

// SetSettings replaces the relay's configuration, rejecting it if invalid.
func (r *DifferentialRelay) SetSettings(settings DifferentialSettings) error {
	if !settings.Valid() {
		return ErrInvalidSettings
	}
	r.settingsMu.Lock()
	r.settings = settings
	r.settingsMu.Unlock()
	return nil
}

// Settings returns a copy of the relay's current configuration.
func (r *DifferentialRelay) Settings() DifferentialSettings {
	r.settingsMu.Lock()
	defer r.settingsMu.Unlock()
	return r.settings
}

// SetEnabled enables or disables the relay.
func (r *DifferentialRelay) SetEnabled(enabled bool) {
	r.enabled.Store(enabled)
}

// Enabled reports whether the relay is currently active.
func (r *DifferentialRelay) Enabled() bool {
	return r.enabled.Load()
}

// OnTrip registers the callback invoked whenever Update produces a trip.
func (r *DifferentialRelay) OnTrip(cb DifferentialTripCallback) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.cb = cb
}

func (r *DifferentialRelay) invokeTrip(result DifferentialResult) {
	r.cbMu.Lock()
	cb := r.cb
	r.cbMu.Unlock()
	if cb != nil {
		cb(result)
	}
}

func (r *DifferentialRelay) checkCharacteristic(operating, restraint float64, settings DifferentialSettings) bool {
	if operating < settings.MinOperatingCurrentA {
		return false
	}
	if restraint < settings.MinRestraintCurrentA {
		return operating >= settings.MinOperatingCurrentA
	}
	slopeThreshold := restraint * (settings.SlopePercent / 100.0)
	return operating >= slopeThreshold
}
