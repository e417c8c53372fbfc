package sv

import (
	"errors"

	"subsv/ptp"
	"subsv/wire"
)

// Parser errors. These are never surfaced to a caller as a hard failure —
// per the error taxonomy, a subscriber treats every one of them as "drop
// this frame and keep listening".
var (
	ErrTooShort      = errors.New("sv: frame too short")
	ErrNotSV         = errors.New("sv: not a Sampled Values frame")
	ErrInvalidHeader = errors.New("sv: invalid SV header")
	ErrInvalidPayload = errors.New("sv: invalid SV payload")
)

// minFrameSize is the Ethernet header (12 bytes of MACs, without VLAN) plus
// the minimum trailer spec.md §4.4 requires to even attempt a parse.
const minFrameSize = 22

// Encode serializes msg into a Layer-2 frame exactly per the §4.4 layout.
// ASDUs beyond the first are appended in full (encode supports
// numASDUs > 1 on write; Decode only recovers the first).
func Encode(msg *Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	w := wire.NewWriter(256)
	w.WriteBytes(msg.DstMAC[:])
	w.WriteBytes(msg.SrcMAC[:])

	if msg.VLAN.Present() {
		w.WriteU16(VlanTPID)
		tci := (uint16(msg.VLAN.UserPriority&0x7) << 13) | (msg.VLAN.ID & 0x0FFF)
		w.WriteU16(tci)
	}

	w.WriteU16(EtherTypeSV)
	w.WriteU16(msg.AppID)

	lengthPos := w.Reserve(2)

	var reserved1 uint16
	if msg.Simulate {
		reserved1 = 1 << 15
	}
	w.WriteU16(reserved1)
	w.WriteU16(0) // Reserved2

	w.WriteU8(uint8(len(msg.ASDUs)))

	for i := range msg.ASDUs {
		encodeASDU(w, &msg.ASDUs[i])
	}

	bodyLen := w.Len() - (lengthPos + 2)
	if err := w.WriteU16At(lengthPos, uint16(bodyLen)); err != nil {
		return nil, err
	}

	return w.Bytes(), nil
}

func encodeASDU(w *wire.Writer, a *ASDU) {
	w.WriteFixedString(a.SvID, SvIDMaxLen)
	w.WriteU16(a.SmpCnt)
	w.WriteU32(a.ConfRev)
	w.WriteU8(uint8(a.SmpSynch))

	if a.SmpSynch == SmpSynchGlobal && a.GmIdentity != nil {
		w.WriteBytes(a.GmIdentity[:])
	}

	for _, av := range a.DataSet {
		w.WriteU32(av.Raw32())
		w.WriteU32(av.Quality.ToRaw())
	}

	tai := a.Timestamp.ToTAI()
	w.WriteBytes(tai[:])
}

// Decode parses a single Layer-2 frame, interpreting the dataset's raw
// 4-byte values as int32. Use DecodeTyped when the subscriber knows the
// originating control block's configured DataType (uint32/float32).
func Decode(frame []byte) (*Message, error) {
	return DecodeTyped(frame, DataTypeInt32)
}

// DecodeTyped parses a single Layer-2 frame, interpreting the dataset's
// raw 4-byte values per dataType. numASDUs > 1 is accepted on the wire
// but only the first ASDU is recovered, per spec.
func DecodeTyped(frame []byte, dataType DataType) (*Message, error) {
	if len(frame) < minFrameSize {
		return nil, ErrTooShort
	}

	r := wire.NewReader(frame)
	msg := &Message{}
	msg.DstMAC = wire.MACFromBytes(r.ReadBytes(wire.MACLen))
	msg.SrcMAC = wire.MACFromBytes(r.ReadBytes(wire.MACLen))

	etherType := r.ReadU16()
	if etherType == VlanTPID {
		tci := r.ReadU16()
		msg.VLAN = VLAN{
			ID:           tci & 0x0FFF,
			UserPriority: uint8(tci >> 13 & 0x7),
		}
		etherType = r.ReadU16()
	}

	if etherType != EtherTypeSV {
		return nil, ErrNotSV
	}

	msg.AppID = r.ReadU16()
	_ = r.ReadU16() // length field, recomputed by caller if needed

	reserved1 := r.ReadU16()
	msg.Simulate = reserved1&(1<<15) != 0
	_ = r.ReadU16() // Reserved2

	numASDUs := int(r.ReadU8())
	if numASDUs < 1 || numASDUs > MaxASDUsPerMessage {
		return nil, ErrInvalidHeader
	}

	asdu, err := decodeASDU(r, dataType)
	if err != nil {
		return nil, err
	}

	msg.ASDUs = []ASDU{*asdu}

	if err := asdu.Validate(); err != nil {
		return nil, ErrInvalidPayload
	}

	return msg, nil
}

func decodeASDU(r *wire.Reader, dataType DataType) (*ASDU, error) {
	a := &ASDU{}

	svID := r.ReadFixedString(SvIDMaxLen)
	a.SvID = trimSvID(svID)

	a.SmpCnt = r.ReadU16()
	a.ConfRev = r.ReadU32()

	synch := r.ReadU8()
	if synch > uint8(SmpSynchGlobal) {
		synch = uint8(SmpSynchNone)
	}
	a.SmpSynch = SmpSynch(synch)

	if a.SmpSynch == SmpSynchGlobal {
		var gm [8]byte
		copy(gm[:], r.ReadBytes(8))
		a.GmIdentity = &gm
	}

	for i := 0; i < DatasetSize; i++ {
		raw := r.ReadU32()
		q := QualityFromRaw(r.ReadU32())
		a.DataSet[i] = AnalogValueFromRaw(dataType, raw, q)
	}

	if r.Remaining() < 8 {
		a.Timestamp = ptp.Now()
		a.TimestampMissing = true
	} else {
		var tai [8]byte
		copy(tai[:], r.ReadBytes(8))
		ts, ok := ptp.FromTAI(tai)
		if !ok {
			ts = ptp.Now()
			a.TimestampMissing = true
		}
		a.Timestamp = ts
	}

	return a, nil
}

func trimSvID(s string) string {
	end := len(s)
	for end > 0 && s[end-1] == ' ' {
		end--
	}
	return s[:end]
}
