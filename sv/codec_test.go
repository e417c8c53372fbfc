package sv

import (
	"bytes"
	"math"
	"testing"

	"subsv/ptp"
	"subsv/wire"
)

func canonicalASDU() ASDU {
	a := ASDU{
		SvID:     "SV01",
		SmpCnt:   0,
		ConfRev:  1,
		SmpSynch: SmpSynchLocal,
		Timestamp: ptp.New(0, 0),
	}
	for i := 0; i < DatasetSize; i++ {
		a.DataSet[i] = NewInt32Value(int32(i), GoodQuality())
	}
	return a
}

func canonicalMessage(t *testing.T) *Message {
	t.Helper()
	dst, err := wire.ParseMAC("01:0C:CD:04:00:01")
	if err != nil {
		t.Fatalf("ParseMAC(dst): %v", err)
	}
	src, err := wire.ParseMAC("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("ParseMAC(src): %v", err)
	}
	return &Message{
		DstMAC: dst,
		SrcMAC: src,
		AppID:  0x4000,
		ASDUs:  []ASDU{canonicalASDU()},
	}
}

// TestEncodeCanonicalFrame is scenario S1: the canonical SVCB/ASDU fixture
// must encode byte-for-byte per the §4.4 layout.
func TestEncodeCanonicalFrame(t *testing.T) {
	msg := canonicalMessage(t)

	got, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var want []byte
	want = append(want, 0x01, 0x0C, 0xCD, 0x04, 0x00, 0x01) // dst MAC
	want = append(want, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF) // src MAC
	want = append(want, 0x88, 0xBA)                         // EtherType
	want = append(want, 0x40, 0x00)                         // APPID

	var body []byte
	body = append(body, 0x00, 0x00) // Reserved1 (not simulated)
	body = append(body, 0x00, 0x00) // Reserved2
	body = append(body, 0x01)       // numASDUs

	svID := make([]byte, SvIDMaxLen)
	copy(svID, "SV01")
	body = append(body, svID...)
	body = append(body, 0x00, 0x00)             // smpCnt
	body = append(body, 0x00, 0x00, 0x00, 0x01) // confRev
	body = append(body, 0x01)                   // smpSynch=Local

	for i := 0; i < DatasetSize; i++ {
		body = append(body, 0x00, 0x00, 0x00, byte(i)) // value i, big-endian i32
		body = append(body, 0x00, 0x00, 0x00, 0x00)    // quality 0
	}
	body = append(body, make([]byte, 8)...) // zero timestamp

	want = append(want, byte(len(body)>>8), byte(len(body)))
	want = append(want, body...)

	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() =\n% X\nwant\n% X", got, want)
	}
}

// TestDecodeCanonicalFrame is scenario S2: decoding S1's frame recovers
// the original ASDU fields.
func TestDecodeCanonicalFrame(t *testing.T) {
	msg := canonicalMessage(t)
	frame, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.ASDUs) != 1 {
		t.Fatalf("Decode() ASDUs = %d, want 1", len(decoded.ASDUs))
	}
	asdu := decoded.ASDUs[0]
	if asdu.SvID != "SV01" {
		t.Errorf("SvID = %q, want %q", asdu.SvID, "SV01")
	}
	if asdu.SmpCnt != 0 {
		t.Errorf("SmpCnt = %d, want 0", asdu.SmpCnt)
	}
	if asdu.ConfRev != 1 {
		t.Errorf("ConfRev = %d, want 1", asdu.ConfRev)
	}
	if asdu.SmpSynch != SmpSynchLocal {
		t.Errorf("SmpSynch = %v, want %v", asdu.SmpSynch, SmpSynchLocal)
	}
	for i := 0; i < DatasetSize; i++ {
		if got := asdu.DataSet[i].GetScaledInt(); got != int32(i) {
			t.Errorf("DataSet[%d] = %d, want %d", i, got, i)
		}
	}
}

// TestDecodeVLANPath is scenario S3: a VLAN-tagged frame is still parsed
// into the same ASDU, with the tag's fields reported separately.
func TestDecodeVLANPath(t *testing.T) {
	msg := canonicalMessage(t)
	msg.VLAN = VLAN{ID: 100, UserPriority: 4}

	frame, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if frame[12] != 0x81 || frame[13] != 0x00 {
		t.Fatalf("VLAN TPID at offset 12 = % X, want 81 00", frame[12:14])
	}
	tci := uint16(frame[14])<<8 | uint16(frame[15])
	if tci != 0x8064 {
		t.Fatalf("VLAN TCI at offset 14 = %#04x, want %#04x", tci, 0x8064)
	}
	if frame[16] != 0x88 || frame[17] != 0xBA {
		t.Fatalf("EtherType at offset 16 = % X, want 88 BA", frame[16:18])
	}

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.VLAN.ID != 100 {
		t.Errorf("VLAN.ID = %d, want 100", decoded.VLAN.ID)
	}
	if decoded.VLAN.UserPriority != 4 {
		t.Errorf("VLAN.UserPriority = %d, want 4", decoded.VLAN.UserPriority)
	}
	if decoded.ASDUs[0].SvID != "SV01" {
		t.Errorf("SvID = %q, want %q", decoded.ASDUs[0].SvID, "SV01")
	}
}

// TestCodecRoundTripArbitraryASDUs is invariant 1: parse(encode(asdu)) ==
// asdu modulo NUL-padding in svID, across a spread of data types, sync
// sources, and quality flags.
func TestCodecRoundTripArbitraryASDUs(t *testing.T) {
	tests := []struct {
		name     string
		dataType DataType
		build    func() ASDU
	}{
		{
			name:     "int32 with bad quality",
			dataType: DataTypeInt32,
			build: func() ASDU {
				a := ASDU{SvID: "MU01", SmpCnt: 4000, ConfRev: 7, SmpSynch: SmpSynchNone, Timestamp: ptp.New(1700000000, 123000000)}
				for i := 0; i < DatasetSize; i++ {
					a.DataSet[i] = NewInt32Value(int32(-i*1000), Quality{Validity: ValidityQuestionable, Overflow: true})
				}
				return a
			},
		},
		{
			name:     "uint32",
			dataType: DataTypeUint32,
			build: func() ASDU {
				a := ASDU{SvID: "MU02", SmpCnt: 1, ConfRev: 2, SmpSynch: SmpSynchNone, Timestamp: ptp.New(5, 0)}
				for i := 0; i < DatasetSize; i++ {
					a.DataSet[i] = NewUint32Value(uint32(i*100), GoodQuality())
				}
				return a
			},
		},
		{
			name:     "float32",
			dataType: DataTypeFloat32,
			build: func() ASDU {
				a := ASDU{SvID: "MU03", SmpCnt: 65535, ConfRev: 3, SmpSynch: SmpSynchNone, Timestamp: ptp.New(9, 500)}
				for i := 0; i < DatasetSize; i++ {
					a.DataSet[i] = NewFloat32Value(float32(i)*1.5, GoodQuality())
				}
				return a
			},
		},
		{
			name:     "global sync with gmIdentity",
			dataType: DataTypeInt32,
			build: func() ASDU {
				gm := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
				a := ASDU{SvID: "MU04", SmpCnt: 10, ConfRev: 1, SmpSynch: SmpSynchGlobal, GmIdentity: &gm, Timestamp: ptp.New(1, 1)}
				for i := 0; i < DatasetSize; i++ {
					a.DataSet[i] = NewInt32Value(int32(i), GoodQuality())
				}
				return a
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := canonicalMessage(t)
			msg.ASDUs = []ASDU{tt.build()}

			frame, err := Encode(msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := DecodeTyped(frame, tt.dataType)
			if err != nil {
				t.Fatalf("DecodeTyped: %v", err)
			}

			want := tt.build()
			got := decoded.ASDUs[0]
			if got.SvID != want.SvID {
				t.Errorf("SvID = %q, want %q", got.SvID, want.SvID)
			}
			if got.SmpCnt != want.SmpCnt {
				t.Errorf("SmpCnt = %d, want %d", got.SmpCnt, want.SmpCnt)
			}
			if got.ConfRev != want.ConfRev {
				t.Errorf("ConfRev = %d, want %d", got.ConfRev, want.ConfRev)
			}
			if got.SmpSynch != want.SmpSynch {
				t.Errorf("SmpSynch = %v, want %v", got.SmpSynch, want.SmpSynch)
			}
			for i := 0; i < DatasetSize; i++ {
				if got.DataSet[i].Raw32() != want.DataSet[i].Raw32() {
					t.Errorf("DataSet[%d].Raw32() = %#x, want %#x", i, got.DataSet[i].Raw32(), want.DataSet[i].Raw32())
				}
				if got.DataSet[i].Quality != want.DataSet[i].Quality {
					t.Errorf("DataSet[%d].Quality = %+v, want %+v", i, got.DataSet[i].Quality, want.DataSet[i].Quality)
				}
			}
		})
	}
}

// TestQualityRoundTrip is invariant 4: QualityFromRaw(q.ToRaw()) == q for
// every combination of the defined flag bits.
func TestQualityRoundTrip(t *testing.T) {
	validities := []Validity{ValidityGood, ValidityInvalid, ValidityReserved, ValidityQuestionable}
	for _, v := range validities {
		for mask := 0; mask < 1<<12; mask++ {
			q := Quality{
				Validity:        v,
				Overflow:        mask&(1<<0) != 0,
				OutOfRange:      mask&(1<<1) != 0,
				BadReference:    mask&(1<<2) != 0,
				Oscillatory:     mask&(1<<3) != 0,
				Failure:         mask&(1<<4) != 0,
				OldData:         mask&(1<<5) != 0,
				Inconsistent:    mask&(1<<6) != 0,
				Inaccurate:      mask&(1<<7) != 0,
				Source:          mask&(1<<8) != 0,
				Test:            mask&(1<<9) != 0,
				OperatorBlocked: mask&(1<<10) != 0,
				Derived:         mask&(1<<11) != 0,
			}
			got := QualityFromRaw(q.ToRaw())
			if got != q {
				t.Fatalf("QualityFromRaw(ToRaw(%+v)) = %+v", q, got)
			}
		}
	}
}

// TestASDUValidateRejectsShortSvID covers the ASDU construction invariant
// the codec relies on to reject malformed frames during decode.
func TestASDUValidateRejectsShortSvID(t *testing.T) {
	a := canonicalASDU()
	a.SvID = "X"
	if err := a.Validate(); err == nil {
		t.Error("Validate() with 1-char svID = nil, want error")
	}
}

func TestDecodeTooShortFrame(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if err != ErrTooShort {
		t.Errorf("Decode(short frame) err = %v, want %v", err, ErrTooShort)
	}
}

func TestDecodeNotSV(t *testing.T) {
	msg := canonicalMessage(t)
	frame, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Corrupt the EtherType field so it no longer reads as SV.
	corrupt := append([]byte(nil), frame...)
	corrupt[12] = 0x08
	corrupt[13] = 0x00
	if _, err := Decode(corrupt); err != ErrNotSV {
		t.Errorf("Decode(non-SV EtherType) err = %v, want %v", err, ErrNotSV)
	}
}

func TestAnalogValueGetFloatAndScaledInt(t *testing.T) {
	f := NewFloat32Value(2.0, GoodQuality())
	if got := f.GetScaledInt(); got != 2 {
		t.Errorf("float GetScaledInt() = %d, want 2", got)
	}
	i := NewInt32Value(7, GoodQuality())
	if got := i.GetFloat(); got != 7 {
		t.Errorf("int GetFloat() = %v, want 7", got)
	}
	u := NewUint32Value(math.MaxUint32, GoodQuality())
	if got := u.Raw32(); got != math.MaxUint32 {
		t.Errorf("uint Raw32() = %#x, want %#x", got, uint32(math.MaxUint32))
	}
}
