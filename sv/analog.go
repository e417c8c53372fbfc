package sv

import (
	"github.com/spf13/cast"
)

// DataType selects the wire representation of an AnalogValue within a
// control block's data set. It is fixed per SVCB at configuration time.
type DataType int

const (
	DataTypeInt32 DataType = iota
	DataTypeUint32
	DataTypeFloat32
)

// AnalogValue is a tagged numeric sample plus its Quality. The tag
// (Type) is fixed for every sample published under a given control
// block; GetScaledInt and GetFloat coerce across tag variants so callers
// never need a type switch.
type AnalogValue struct {
	Type    DataType
	IntVal  int32
	UintVal uint32
	FltVal  float32
	Quality Quality
}

// NewInt32Value builds an int32-tagged AnalogValue.
func NewInt32Value(v int32, q Quality) AnalogValue {
	return AnalogValue{Type: DataTypeInt32, IntVal: v, Quality: q}
}

// NewUint32Value builds a uint32-tagged AnalogValue.
func NewUint32Value(v uint32, q Quality) AnalogValue {
	return AnalogValue{Type: DataTypeUint32, UintVal: v, Quality: q}
}

// NewFloat32Value builds a float32-tagged AnalogValue.
func NewFloat32Value(v float32, q Quality) AnalogValue {
	return AnalogValue{Type: DataTypeFloat32, FltVal: v, Quality: q}
}

// rawNumeric returns the tagged value as a generic numeric the cast
// package can coerce deterministically, regardless of which field is live.
func (a AnalogValue) rawNumeric() interface{} {
	switch a.Type {
	case DataTypeInt32:
		return a.IntVal
	case DataTypeUint32:
		return a.UintVal
	case DataTypeFloat32:
		return a.FltVal
	default:
		return int32(0)
	}
}

// GetScaledInt returns the value coerced to int32. Float values truncate
// towards zero (cast.ToInt32 semantics); this is total over all tag
// variants.
func (a AnalogValue) GetScaledInt() int32 {
	return int32(cast.ToInt64(a.rawNumeric()))
}

// GetFloat returns the value widened to float32. Integer values convert
// exactly (within float32 precision); this is total over all tag variants.
func (a AnalogValue) GetFloat() float32 {
	return float32(cast.ToFloat64(a.rawNumeric()))
}

// Raw32 returns the 4-byte on-wire encoding of the value's native
// representation (the size is fixed regardless of DataType).
func (a AnalogValue) Raw32() uint32 {
	switch a.Type {
	case DataTypeInt32:
		return uint32(a.IntVal)
	case DataTypeUint32:
		return a.UintVal
	case DataTypeFloat32:
		return float32bits(a.FltVal)
	default:
		return 0
	}
}

// AnalogValueFromRaw reconstructs a tagged value from its 4-byte wire
// encoding and quality, interpreting the bits per dataType.
func AnalogValueFromRaw(dataType DataType, raw uint32, q Quality) AnalogValue {
	switch dataType {
	case DataTypeInt32:
		return AnalogValue{Type: DataTypeInt32, IntVal: int32(raw), Quality: q}
	case DataTypeUint32:
		return AnalogValue{Type: DataTypeUint32, UintVal: raw, Quality: q}
	case DataTypeFloat32:
		return AnalogValue{Type: DataTypeFloat32, FltVal: float32frombits(raw), Quality: q}
	default:
		return AnalogValue{Type: DataTypeInt32, IntVal: int32(raw), Quality: q}
	}
}
