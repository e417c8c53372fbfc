package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MACLen is the byte length of an Ethernet hardware address.
const MACLen = 6

// ErrInvalidMAC is returned when a MAC address string cannot be parsed.
var ErrInvalidMAC = errors.New("wire: invalid MAC address")

// MAC is a 48-bit Ethernet hardware address.
type MAC [MACLen]byte

// SVMulticastBase is the IEC 61850-9-2 Sampled Values multicast base
// address (01:0C:CD:04:00:00).
var SVMulticastBase = MAC{0x01, 0x0C, 0xCD, 0x04, 0x00, 0x00}

// GOOSEMulticastBase is the IEC 61850 GOOSE multicast base address
// (01:0C:CD:01:00:00).
var GOOSEMulticastBase = MAC{0x01, 0x0C, 0xCD, 0x01, 0x00, 0x00}

// Broadcast is the all-ones Ethernet broadcast address.
var Broadcast = MAC{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ParseMAC parses "HH:HH:HH:HH:HH:HH" case-insensitively. It returns
// ErrInvalidMAC wrapped with the offending input on failure.
func ParseMAC(s string) (MAC, error) {
	mac, ok := TryParseMAC(s)
	if !ok {
		return MAC{}, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	return mac, nil
}

// TryParseMAC parses "HH:HH:HH:HH:HH:HH" case-insensitively, returning ok=false
// instead of an error on malformed input.
func TryParseMAC(s string) (MAC, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != MACLen {
		return MAC{}, false
	}
	var mac MAC
	for i, p := range parts {
		if len(p) != 2 {
			return MAC{}, false
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return MAC{}, false
		}
		mac[i] = byte(v)
	}
	return mac, true
}

// MACFromBytes copies a 6-byte slice into a MAC. It panics if b is shorter
// than MACLen, matching the fixed-size contract callers must uphold.
func MACFromBytes(b []byte) MAC {
	var mac MAC
	copy(mac[:], b[:MACLen])
	return mac
}

// String renders the address in uppercase canonical "HH:HH:HH:HH:HH:HH" form.
func (m MAC) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsMulticast reports whether the I/G bit is set.
func (m MAC) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// IsBroadcast reports whether m is the all-ones address.
func (m MAC) IsBroadcast() bool {
	return m == Broadcast
}

// IsZero reports whether m is the all-zero address.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// IsLocallyAdministered reports whether the U/L bit is set.
func (m MAC) IsLocallyAdministered() bool {
	return m[0]&0x02 != 0
}

// Bytes returns the address as a newly allocated 6-byte slice.
func (m MAC) Bytes() []byte {
	b := make([]byte, MACLen)
	copy(b, m[:])
	return b
}
