package sv

import "subsv/wire"

// EtherTypeSV is the IEC 61850-9-2 Sampled Values EtherType.
const EtherTypeSV = 0x88BA

// VlanTPID is the 802.1Q tag protocol identifier.
const VlanTPID = 0x8100

// AppIDMin and AppIDMax bound the valid APPID range for SV frames.
const (
	AppIDMin = 0x4000
	AppIDMax = 0x7FFF
)

// MaxASDUsPerMessage is the wire format's upper bound on ASDUs per frame.
// Only the single-ASDU case is exercised end-to-end: Decode recovers the
// first ASDU only.
const MaxASDUsPerMessage = 8

// VLAN carries 802.1Q tag fields. A zero-value VLAN (ID 0) is the
// "no VLAN" sentinel: the tag is omitted from the wire entirely.
type VLAN struct {
	ID           uint16 // 12-bit VID
	UserPriority uint8  // 3-bit PCP, 0-7
}

// Present reports whether the VLAN tag should be emitted on the wire.
func (v VLAN) Present() bool {
	return v.ID > 0
}

// Message is a full Layer-2 Sampled Values frame: Ethernet header,
// optional VLAN tag, and one or more ASDUs.
type Message struct {
	DstMAC    wire.MAC
	SrcMAC    wire.MAC
	VLAN      VLAN
	AppID     uint16
	Simulate  bool
	ASDUs     []ASDU
}

// Validate checks the frame-level invariants: at least one and at most
// MaxASDUsPerMessage ASDUs, a valid APPID, and that every ASDU validates.
func (m *Message) Validate() error {
	if len(m.ASDUs) < 1 || len(m.ASDUs) > MaxASDUsPerMessage {
		return ErrInvalidHeader
	}
	if m.AppID < AppIDMin || m.AppID > AppIDMax {
		return ErrInvalidHeader
	}
	for i := range m.ASDUs {
		if err := m.ASDUs[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
