// Package sv implements the IEC 61850-9-2 Sampled Values wire codec: the
// ASDU data model, quality bitfield, and the frame encoder/decoder.
package sv

// Validity enumerates the 2-bit quality validity code.
type Validity uint8

const (
	ValidityGood          Validity = 0
	ValidityInvalid       Validity = 1
	ValidityReserved      Validity = 2
	ValidityQuestionable  Validity = 3
)

// Quality is the 32-bit packed IEC 61850 quality flag set.
type Quality struct {
	Validity        Validity
	Overflow        bool
	OutOfRange      bool
	BadReference    bool
	Oscillatory     bool
	Failure         bool
	OldData         bool
	Inconsistent    bool
	Inaccurate      bool
	Source          bool
	Test            bool
	OperatorBlocked bool
	Derived         bool
}

// bit offsets within the 32-bit raw quality word, per IEC 61850-7-3.
const (
	bitOverflow        = 2
	bitOutOfRange      = 3
	bitBadReference    = 4
	bitOscillatory     = 5
	bitFailure         = 6
	bitOldData         = 7
	bitInconsistent    = 8
	bitInaccurate      = 9
	bitSource          = 10
	bitTest            = 11
	bitOperatorBlocked = 12
	bitDerived         = 13
)

// GoodQuality returns the zero-value Quality (validity Good, all flags clear).
func GoodQuality() Quality {
	return Quality{Validity: ValidityGood}
}

// IsGood reports whether validity is Good.
func (q Quality) IsGood() bool {
	return q.Validity == ValidityGood
}

// ToRaw packs the quality into its 32-bit wire representation.
func (q Quality) ToRaw() uint32 {
	var raw uint32
	raw |= uint32(q.Validity) & 0x3
	setBit(&raw, bitOverflow, q.Overflow)
	setBit(&raw, bitOutOfRange, q.OutOfRange)
	setBit(&raw, bitBadReference, q.BadReference)
	setBit(&raw, bitOscillatory, q.Oscillatory)
	setBit(&raw, bitFailure, q.Failure)
	setBit(&raw, bitOldData, q.OldData)
	setBit(&raw, bitInconsistent, q.Inconsistent)
	setBit(&raw, bitInaccurate, q.Inaccurate)
	setBit(&raw, bitSource, q.Source)
	setBit(&raw, bitTest, q.Test)
	setBit(&raw, bitOperatorBlocked, q.OperatorBlocked)
	setBit(&raw, bitDerived, q.Derived)
	return raw
}

// QualityFromRaw unpacks a 32-bit wire quality word.
func QualityFromRaw(raw uint32) Quality {
	return Quality{
		Validity:        Validity(raw & 0x3),
		Overflow:        getBit(raw, bitOverflow),
		OutOfRange:      getBit(raw, bitOutOfRange),
		BadReference:    getBit(raw, bitBadReference),
		Oscillatory:     getBit(raw, bitOscillatory),
		Failure:         getBit(raw, bitFailure),
		OldData:         getBit(raw, bitOldData),
		Inconsistent:    getBit(raw, bitInconsistent),
		Inaccurate:      getBit(raw, bitInaccurate),
		Source:          getBit(raw, bitSource),
		Test:            getBit(raw, bitTest),
		OperatorBlocked: getBit(raw, bitOperatorBlocked),
		Derived:         getBit(raw, bitDerived),
	}
}

func setBit(raw *uint32, pos uint, v bool) {
	if v {
		*raw |= 1 << pos
	}
}

func getBit(raw uint32, pos uint) bool {
	return raw&(1<<pos) != 0
}
