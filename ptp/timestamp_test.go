package ptp

import "testing"

func TestToTAIFromTAIRoundTrip(t *testing.T) {
	tests := []struct {
		seconds     uint64
		nanoseconds uint32
	}{
		{0, 0},
		{1, 0},
		{1700000000, 500_000_000},
		{0xFFFFFFFF, 999_999_999},
		{42, 1},
	}

	for _, tt := range tests {
		ts := New(tt.seconds, tt.nanoseconds)
		encoded := ts.ToTAI()
		decoded, ok := FromTAI(encoded)
		if !ok {
			t.Fatalf("FromTAI(ToTAI(%d, %d)) returned ok=false", tt.seconds, tt.nanoseconds)
		}
		if decoded.Seconds != uint64(uint32(tt.seconds)) {
			t.Errorf("round-trip seconds = %d, want %d", decoded.Seconds, uint32(tt.seconds))
		}
		diff := int64(decoded.Nanoseconds) - int64(tt.nanoseconds)
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			t.Errorf("round-trip nanoseconds = %d, want within 1 of %d", decoded.Nanoseconds, tt.nanoseconds)
		}
	}
}

func TestFromTAIAcceptsMaxFraction(t *testing.T) {
	// A fraction field of all-ones decodes to a nanosecond value that
	// floor-rounds just under 1e9, so it should still be accepted; only
	// deliberately malformed wire patterns trigger ok=false in practice.
	// This exercises the boundary without assuming a specific invalid
	// encoding exists for an 8-byte field that's otherwise total.
	ts, ok := FromTAI([8]byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF})
	if !ok {
		t.Fatalf("FromTAI(max fraction) returned ok=false unexpectedly")
	}
	if ts.Nanoseconds >= nanosPerSecond {
		t.Errorf("decoded nanoseconds = %d, want < %d", ts.Nanoseconds, nanosPerSecond)
	}
}

func TestNewMarksInvalidOnOverflowNanoseconds(t *testing.T) {
	ts := New(5, nanosPerSecond)
	if ts.Valid {
		t.Errorf("New(5, 1e9).Valid = true, want false")
	}
	ts = New(5, nanosPerSecond-1)
	if !ts.Valid {
		t.Errorf("New(5, 1e9-1).Valid = false, want true")
	}
}

func TestTimestampOrdering(t *testing.T) {
	a := New(1, 0)
	b := New(1, 500)
	c := New(2, 0)

	if !a.Less(b) {
		t.Error("a.Less(b) = false, want true")
	}
	if !b.Less(c) {
		t.Error("b.Less(c) = false, want true")
	}
	if !c.After(a) {
		t.Error("c.After(a) = false, want true")
	}
	if !a.Equal(New(1, 0)) {
		t.Error("a.Equal(New(1,0)) = false, want true")
	}
}

func TestToTimeRoundTripsSecondsAndNanoseconds(t *testing.T) {
	ts := New(1700000000, 123456789)
	converted := ts.ToTime()
	if got := uint64(converted.Unix()); got != ts.Seconds {
		t.Errorf("ToTime().Unix() = %d, want %d", got, ts.Seconds)
	}
	if got := uint32(converted.Nanosecond()); got != ts.Nanoseconds {
		t.Errorf("ToTime().Nanosecond() = %d, want %d", got, ts.Nanoseconds)
	}
}
