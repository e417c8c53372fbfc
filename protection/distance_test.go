package protection

import (
	"testing"
	"time"
)

func TestDefaultDistanceSettingsValid(t *testing.T) {
	if !DefaultDistanceSettings().Valid() {
		t.Fatal("DefaultDistanceSettings() should be valid")
	}
}

func TestNewDistanceRelayRejectsInvalid(t *testing.T) {
	settings := DefaultDistanceSettings()
	settings.VoltageThresholdV = 0
	if _, err := NewDistanceRelay(settings); err != ErrInvalidSettings {
		t.Fatalf("NewDistanceRelay() = %v, want ErrInvalidSettings", err)
	}
}

func TestDistanceRelayZone1InstantaneousTrip(t *testing.T) {
	r, err := NewDistanceRelay(DefaultDistanceSettings())
	if err != nil {
		t.Fatalf("NewDistanceRelay() = %v", err)
	}

	// V=100V @ 0deg, I=20A @ 0deg -> Z=5ohm @ 0deg, inside zone1 (reach 10, angle 1.047).
	v := complex(100, 0)
	i := complex(20, 0)

	result := r.Update(v, i)
	if !result.Zone1Trip {
		t.Fatalf("expected instantaneous Zone1 trip, got %+v", result)
	}
	if result.MeasuredImpedanceOhm != 5 {
		t.Errorf("MeasuredImpedanceOhm = %v, want 5", result.MeasuredImpedanceOhm)
	}
}

func TestDistanceRelayLoadBlocking(t *testing.T) {
	r, _ := NewDistanceRelay(DefaultDistanceSettings())

	// Below currentThresholdA -> load/blocking check should suppress any trip.
	v := complex(100, 0)
	i := complex(0.1, 0)

	result := r.Update(v, i)
	if result.Zone1Trip || result.Zone2Trip || result.Zone3Trip {
		t.Fatalf("expected no trip below current threshold, got %+v", result)
	}
}

func TestDistanceRelayWrongDirectionBlocks(t *testing.T) {
	r, _ := NewDistanceRelay(DefaultDistanceSettings())

	// Reverse-direction fault: Z has negative real part, directionForward=true rejects it.
	v := complex(100, 0)
	i := complex(-20, 0)

	result := r.Update(v, i)
	if result.Zone1Trip {
		t.Fatalf("expected no trip on reverse-direction impedance, got %+v", result)
	}
}

func TestDistanceRelayZone2DelayedTrip(t *testing.T) {
	settings := DefaultDistanceSettings()
	settings.Zone1.Enabled = false
	settings.Zone2.Delay = 20 * time.Millisecond
	r, _ := NewDistanceRelay(settings)

	// Z=15ohm inside zone2 reach (20) but outside zone1 reach (10).
	v := complex(150, 0)
	i := complex(10, 0)

	result := r.Update(v, i)
	if result.Zone2Trip {
		t.Fatalf("zone2 should not trip on first pickup, got %+v", result)
	}

	time.Sleep(30 * time.Millisecond)

	result = r.Update(v, i)
	if !result.Zone2Trip {
		t.Fatalf("expected zone2 trip after delay elapsed, got %+v", result)
	}
}

func TestDistanceRelayDisabledReturnsNull(t *testing.T) {
	r, _ := NewDistanceRelay(DefaultDistanceSettings())
	r.SetEnabled(false)

	result := r.Update(complex(100, 0), complex(20, 0))
	if result.Zone1Trip || result.MeasuredImpedanceOhm != 0 {
		t.Fatalf("disabled relay should return a zero result, got %+v", result)
	}
}

func TestDistanceRelayOnTripCallback(t *testing.T) {
	r, _ := NewDistanceRelay(DefaultDistanceSettings())

	var got DistanceResult
	called := false
	r.OnTrip(func(res DistanceResult) {
		called = true
		got = res
	})

	r.Update(complex(100, 0), complex(20, 0))
	if !called {
		t.Fatal("OnTrip callback was not invoked")
	}
	if !got.Zone1Trip {
		t.Errorf("callback result Zone1Trip = false, want true")
	}
}
