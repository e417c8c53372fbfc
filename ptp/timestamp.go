// Package ptp implements the IEEE 1588 PTP TAI timestamp encoding used by
// the IEC 61850-9-2 Sampled Values frame trailer.
package ptp

import "time"

const nanosPerSecond = 1_000_000_000

// Timestamp is a nanosecond-precision point on the TAI timeline, carried
// on the wire as 4 bytes of seconds (low 32 bits) plus 4 bytes of
// fractional seconds.
type Timestamp struct {
	Seconds     uint64
	Nanoseconds uint32
	Valid       bool
}

// Now returns the current wall-clock time split into PTP seconds/nanoseconds.
func Now() Timestamp {
	now := time.Now()
	return Timestamp{
		Seconds:     uint64(now.Unix()),
		Nanoseconds: uint32(now.Nanosecond()),
		Valid:       true,
	}
}

// New builds a Timestamp from seconds and nanoseconds, marking it valid
// only if ns is within a single second.
func New(seconds uint64, nanoseconds uint32) Timestamp {
	return Timestamp{
		Seconds:     seconds,
		Nanoseconds: nanoseconds,
		Valid:       nanoseconds < nanosPerSecond,
	}
}

// ToTAI packs the timestamp into its 8-byte wire representation: 4
// big-endian bytes of seconds (low 32 bits) followed by 4 big-endian
// bytes of fraction, where fraction = floor(ns * 2^32 / 1e9).
func (t Timestamp) ToTAI() [8]byte {
	var out [8]byte
	s := uint32(t.Seconds)
	out[0] = byte(s >> 24)
	out[1] = byte(s >> 16)
	out[2] = byte(s >> 8)
	out[3] = byte(s)

	fraction := uint32((uint64(t.Nanoseconds) << 32) / nanosPerSecond)
	out[4] = byte(fraction >> 24)
	out[5] = byte(fraction >> 16)
	out[6] = byte(fraction >> 8)
	out[7] = byte(fraction)
	return out
}

// FromTAI inverts ToTAI. It returns ok=false if the decoded nanosecond
// field would be >= 1e9 (a malformed fraction).
func FromTAI(data [8]byte) (Timestamp, bool) {
	seconds := uint64(data[0])<<24 | uint64(data[1])<<16 | uint64(data[2])<<8 | uint64(data[3])
	fraction := uint32(data[4])<<24 | uint32(data[5])<<16 | uint32(data[6])<<8 | uint32(data[7])

	nanoseconds := uint32((uint64(fraction) * nanosPerSecond) >> 32)
	if nanoseconds >= nanosPerSecond {
		return Timestamp{}, false
	}
	return Timestamp{Seconds: seconds, Nanoseconds: nanoseconds, Valid: true}, true
}

// ToTime converts the timestamp to a time.Time in UTC.
func (t Timestamp) ToTime() time.Time {
	return time.Unix(int64(t.Seconds), int64(t.Nanoseconds)).UTC()
}

// Equal reports whether two timestamps carry the same seconds/nanoseconds.
func (t Timestamp) Equal(o Timestamp) bool {
	return t.Seconds == o.Seconds && t.Nanoseconds == o.Nanoseconds
}

// Less reports whether t sorts before o in lexicographic (seconds,
// nanoseconds) order.
func (t Timestamp) Less(o Timestamp) bool {
	if t.Seconds != o.Seconds {
		return t.Seconds < o.Seconds
	}
	return t.Nanoseconds < o.Nanoseconds
}

// After reports whether t sorts after o.
func (t Timestamp) After(o Timestamp) bool {
	return o.Less(t)
}
