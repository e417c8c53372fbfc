package wire

import "testing"

func TestParseMACRoundTrip(t *testing.T) {
	tests := []struct {
		input string
		want  MAC
	}{
		{"01:0C:CD:04:00:01", MAC{0x01, 0x0C, 0xCD, 0x04, 0x00, 0x01}},
		{"ff:ff:ff:ff:ff:ff", Broadcast},
		{"00:00:00:00:00:00", MAC{}},
		{"aa:bb:cc:dd:ee:ff", MAC{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mac, err := ParseMAC(tt.input)
			if err != nil {
				t.Fatalf("ParseMAC(%q): %v", tt.input, err)
			}
			if mac != tt.want {
				t.Errorf("ParseMAC(%q) = %v, want %v", tt.input, mac, tt.want)
			}
			formatted := tt.want.String()
			reparsed, err := ParseMAC(formatted)
			if err != nil {
				t.Fatalf("ParseMAC(String()) round-trip: %v", err)
			}
			if reparsed != tt.want {
				t.Errorf("ParseMAC(%q.String()) = %v, want %v", tt.input, reparsed, tt.want)
			}
		})
	}
}

func TestParseMACCaseInsensitive(t *testing.T) {
	upper, err := ParseMAC("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("ParseMAC uppercase: %v", err)
	}
	lower, err := ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseMAC lowercase: %v", err)
	}
	if upper != lower {
		t.Errorf("ParseMAC case mismatch: %v != %v", upper, lower)
	}
}

func TestMACStringIsUppercaseCanonical(t *testing.T) {
	mac, err := ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseMAC: %v", err)
	}
	if got, want := mac.String(), "AA:BB:CC:DD:EE:FF"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseMACInvalid(t *testing.T) {
	tests := []string{
		"",
		"not-a-mac",
		"01:02:03:04:05",
		"01:02:03:04:05:06:07",
		"GG:02:03:04:05:06",
	}
	for _, in := range tests {
		if _, err := ParseMAC(in); err == nil {
			t.Errorf("ParseMAC(%q) expected error, got nil", in)
		}
		if _, ok := TryParseMAC(in); ok {
			t.Errorf("TryParseMAC(%q) expected ok=false", in)
		}
	}
}

func TestMACFromBytes(t *testing.T) {
	b := []byte{0x01, 0x0C, 0xCD, 0x04, 0x00, 0x01, 0xFF}
	mac := MACFromBytes(b)
	want := MAC{0x01, 0x0C, 0xCD, 0x04, 0x00, 0x01}
	if mac != want {
		t.Errorf("MACFromBytes(%v) = %v, want %v", b, mac, want)
	}
}

func TestMACPredicates(t *testing.T) {
	if !SVMulticastBase.IsMulticast() {
		t.Error("SVMulticastBase.IsMulticast() = false, want true")
	}
	if !Broadcast.IsBroadcast() {
		t.Error("Broadcast.IsBroadcast() = false, want true")
	}
	if !(MAC{}).IsZero() {
		t.Error("zero MAC.IsZero() = false, want true")
	}
	local := MAC{0x02, 0, 0, 0, 0, 0}
	if !local.IsLocallyAdministered() {
		t.Error("02:00:00:00:00:00.IsLocallyAdministered() = false, want true")
	}
}

func TestMACBytes(t *testing.T) {
	mac := MAC{1, 2, 3, 4, 5, 6}
	got := mac.Bytes()
	want := []byte{1, 2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("Bytes() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Bytes()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
