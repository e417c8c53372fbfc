package protection

import (
	"testing"
)

func TestDefaultDifferentialSettingsValid(t *testing.T) {
	if !DefaultDifferentialSettings().Valid() {
		t.Fatal("DefaultDifferentialSettings() should be valid")
	}
}

func TestNewDifferentialRelayRejectsInvalid(t *testing.T) {
	settings := DefaultDifferentialSettings()
	settings.SlopePercent = 0
	if _, err := NewDifferentialRelay(settings); err != ErrInvalidSettings {
		t.Fatalf("NewDifferentialRelay() = %v, want ErrInvalidSettings", err)
	}
}

func TestDifferentialRelayBalancedNoTrip(t *testing.T) {
	r, err := NewDifferentialRelay(DefaultDifferentialSettings())
	if err != nil {
		t.Fatalf("NewDifferentialRelay() = %v", err)
	}

	// Equal in/out current -> zero operating current, no trip.
	result := r.Update(complex(5, 0), complex(5, 0))
	if result.Trip {
		t.Fatalf("balanced currents should not trip, got %+v", result)
	}
	if result.OperatingCurrentA != 0 {
		t.Errorf("OperatingCurrentA = %v, want 0", result.OperatingCurrentA)
	}
}

func TestDifferentialRelayInstantaneousTrip(t *testing.T) {
	r, _ := NewDifferentialRelay(DefaultDifferentialSettings())

	// Operating current of 15A exceeds the 10A instantaneous threshold.
	result := r.Update(complex(15, 0), complex(0, 0))
	if !result.Trip || !result.Instantaneous {
		t.Fatalf("expected instantaneous trip, got %+v", result)
	}
}

func TestDifferentialRelayBiasSlopeTrip(t *testing.T) {
	r, _ := NewDifferentialRelay(DefaultDifferentialSettings())

	// I1=3, I2=1 -> operating=2, restraint=2. Threshold = 2*0.25=0.5.
	// operating(2) >= threshold(0.5) and restraint(2) >= MinRestraintCurrentA(1) -> trip.
	result := r.Update(complex(3, 0), complex(1, 0))
	if !result.Trip || result.Instantaneous {
		t.Fatalf("expected non-instantaneous bias-slope trip, got %+v", result)
	}
}

func TestDifferentialRelayBelowMinOperatingNoTrip(t *testing.T) {
	r, _ := NewDifferentialRelay(DefaultDifferentialSettings())

	// Operating current 0.1A is below MinOperatingCurrentA (0.3A).
	result := r.Update(complex(2.1, 0), complex(2.0, 0))
	if result.Trip {
		t.Fatalf("expected no trip below MinOperatingCurrentA, got %+v", result)
	}
}

func TestDifferentialRelayLowRestraintUsesMinOperatingFloor(t *testing.T) {
	r, _ := NewDifferentialRelay(DefaultDifferentialSettings())

	// I1=0.5, I2=0 -> operating=0.5, restraint=0.25, below MinRestraintCurrentA (1.0).
	// Falls back to operating >= MinOperatingCurrentA (0.3) -> trip.
	result := r.Update(complex(0.5, 0), complex(0, 0))
	if !result.Trip {
		t.Fatalf("expected trip via min-operating floor when restraint is low, got %+v", result)
	}
}

func TestDifferentialRelayDisabledReturnsNull(t *testing.T) {
	r, _ := NewDifferentialRelay(DefaultDifferentialSettings())
	r.SetEnabled(false)

	result := r.Update(complex(15, 0), complex(0, 0))
	if result.Trip {
		t.Fatalf("disabled relay should not trip, got %+v", result)
	}
}

func TestDifferentialRelayOnTripCallback(t *testing.T) {
	r, _ := NewDifferentialRelay(DefaultDifferentialSettings())

	var got DifferentialResult
	called := false
	r.OnTrip(func(res DifferentialResult) {
		called = true
		got = res
	})

	r.Update(complex(15, 0), complex(0, 0))
	if !called {
		t.Fatal("OnTrip callback was not invoked")
	}
	if !got.Trip {
		t.Errorf("callback result Trip = false, want true")
	}
}

func TestDifferentialRelaySetSettingsRejectsInvalid(t *testing.T) {
	r, _ := NewDifferentialRelay(DefaultDifferentialSettings())
	bad := DefaultDifferentialSettings()
	bad.MinRestraintCurrentA = -1
	if err := r.SetSettings(bad); err != ErrInvalidSettings {
		t.Fatalf("SetSettings() = %v, want ErrInvalidSettings", err)
	}
}
