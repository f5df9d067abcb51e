package decoder

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Value is a decoded field. Its dynamic type is exactly one of the slice
// shapes below, selected by the field's base type. An empty slice means every
// element on the wire held the base type's invalid sentinel. When only some
// elements are invalid the sentinels stay in place, so array positions line
// up with the wire and callers check elements themselves.
type Value interface {
	BaseType() BaseType
	Len() int
	isValue()
}

type (
	Enum    []uint8
	Sint8   []int8
	Uint8   []uint8
	Uint8z  []uint8
	Sint16  []int16
	Uint16  []uint16
	Uint16z []uint16
	Sint32  []int32
	Uint32  []uint32
	Uint32z []uint32
	Float32 []float32
	Float64 []float64
	Sint64  []int64
	Uint64  []uint64
	Uint64z []uint64
	Bytes   []byte
	String  string
)

func (Enum) BaseType() BaseType    { return BaseEnum }
func (Sint8) BaseType() BaseType   { return BaseSint8 }
func (Uint8) BaseType() BaseType   { return BaseUint8 }
func (Uint8z) BaseType() BaseType  { return BaseUint8z }
func (Sint16) BaseType() BaseType  { return BaseSint16 }
func (Uint16) BaseType() BaseType  { return BaseUint16 }
func (Uint16z) BaseType() BaseType { return BaseUint16z }
func (Sint32) BaseType() BaseType  { return BaseSint32 }
func (Uint32) BaseType() BaseType  { return BaseUint32 }
func (Uint32z) BaseType() BaseType { return BaseUint32z }
func (Float32) BaseType() BaseType { return BaseFloat32 }
func (Float64) BaseType() BaseType { return BaseFloat64 }
func (Sint64) BaseType() BaseType  { return BaseSint64 }
func (Uint64) BaseType() BaseType  { return BaseUint64 }
func (Uint64z) BaseType() BaseType { return BaseUint64z }
func (Bytes) BaseType() BaseType   { return BaseByte }
func (String) BaseType() BaseType  { return BaseString }

func (v Enum) Len() int    { return len(v) }
func (v Sint8) Len() int   { return len(v) }
func (v Uint8) Len() int   { return len(v) }
func (v Uint8z) Len() int  { return len(v) }
func (v Sint16) Len() int  { return len(v) }
func (v Uint16) Len() int  { return len(v) }
func (v Uint16z) Len() int { return len(v) }
func (v Sint32) Len() int  { return len(v) }
func (v Uint32) Len() int  { return len(v) }
func (v Uint32z) Len() int { return len(v) }
func (v Float32) Len() int { return len(v) }
func (v Float64) Len() int { return len(v) }
func (v Sint64) Len() int  { return len(v) }
func (v Uint64) Len() int  { return len(v) }
func (v Uint64z) Len() int { return len(v) }
func (v Bytes) Len() int   { return len(v) }

// Len is 1 for a non-empty string and 0 otherwise.
func (v String) Len() int {
	if v == "" {
		return 0
	}
	return 1
}

func (Enum) isValue()    {}
func (Sint8) isValue()   {}
func (Uint8) isValue()   {}
func (Uint8z) isValue()  {}
func (Sint16) isValue()  {}
func (Uint16) isValue()  {}
func (Uint16z) isValue() {}
func (Sint32) isValue()  {}
func (Uint32) isValue()  {}
func (Uint32z) isValue() {}
func (Float32) isValue() {}
func (Float64) isValue() {}
func (Sint64) isValue()  {}
func (Uint64) isValue()  {}
func (Uint64z) isValue() {}
func (Bytes) isValue()   {}
func (String) isValue()  {}

// DecodeValue decodes raw as a run of bt elements in the given byte order.
// The width of raw comes from the definition, so a field may hold any number
// of elements. Content problems (unknown code, width not a multiple of the
// element size) return the raw bytes as Bytes together with the error.
func DecodeValue(raw []byte, bt BaseType, order binary.ByteOrder) (Value, error) {
	spec, ok := baseSpecs[bt]
	if !ok {
		return Bytes(bytes.Clone(raw)), ErrUnknownBaseType
	}
	if len(raw)%spec.size != 0 {
		return Bytes(bytes.Clone(raw)), ErrInvalidLength
	}

	u8 := func(b []byte) uint8 { return b[0] }
	switch bt {
	case BaseString:
		return String(nullTerminated(raw)), nil
	case BaseByte:
		if allBytes(raw, 0xFF) {
			return Bytes{}, nil
		}
		return Bytes(bytes.Clone(raw)), nil
	case BaseEnum:
		return Enum(decodeElems(raw, 1, u8, 0xFF)), nil
	case BaseSint8:
		return Sint8(decodeElems(raw, 1, func(b []byte) int8 { return int8(b[0]) }, 0x7F)), nil
	case BaseUint8:
		return Uint8(decodeElems(raw, 1, u8, 0xFF)), nil
	case BaseUint8z:
		return Uint8z(decodeElems(raw, 1, u8, 0)), nil
	case BaseSint16:
		return Sint16(decodeElems(raw, 2, func(b []byte) int16 { return int16(order.Uint16(b)) }, 0x7FFF)), nil
	case BaseUint16:
		return Uint16(decodeElems(raw, 2, order.Uint16, 0xFFFF)), nil
	case BaseUint16z:
		return Uint16z(decodeElems(raw, 2, order.Uint16, 0)), nil
	case BaseSint32:
		return Sint32(decodeElems(raw, 4, func(b []byte) int32 { return int32(order.Uint32(b)) }, 0x7FFFFFFF)), nil
	case BaseUint32:
		return Uint32(decodeElems(raw, 4, order.Uint32, 0xFFFFFFFF)), nil
	case BaseUint32z:
		return Uint32z(decodeElems(raw, 4, order.Uint32, 0)), nil
	case BaseFloat32:
		bits := decodeElems(raw, 4, order.Uint32, math.MaxUint32)
		out := make(Float32, len(bits))
		for i, b := range bits {
			out[i] = math.Float32frombits(b)
		}
		return out, nil
	case BaseFloat64:
		bits := decodeElems(raw, 8, order.Uint64, math.MaxUint64)
		out := make(Float64, len(bits))
		for i, b := range bits {
			out[i] = math.Float64frombits(b)
		}
		return out, nil
	case BaseSint64:
		return Sint64(decodeElems(raw, 8, func(b []byte) int64 { return int64(order.Uint64(b)) }, math.MaxInt64)), nil
	case BaseUint64:
		return Uint64(decodeElems(raw, 8, order.Uint64, math.MaxUint64)), nil
	default: // BaseUint64z
		return Uint64z(decodeElems(raw, 8, order.Uint64, 0)), nil
	}
}

// decodeElems reads len(raw)/size elements. Positions are kept when only
// some elements are invalid; the result is empty when all of them are.
func decodeElems[T comparable](raw []byte, size int, read func([]byte) T, invalid T) []T {
	out := make([]T, len(raw)/size)
	valid := false
	for i := range out {
		out[i] = read(raw[i*size : (i+1)*size])
		if out[i] != invalid {
			valid = true
		}
	}
	if !valid {
		return out[:0]
	}
	return out
}

func nullTerminated(raw []byte) string {
	if i := bytes.IndexByte(raw, 0x00); i >= 0 {
		return string(raw[:i])
	}
	return string(raw)
}

func allBytes(raw []byte, value byte) bool {
	if len(raw) == 0 {
		return false
	}
	for _, b := range raw {
		if b != value {
			return false
		}
	}
	return true
}

// Float64s widens any numeric value to float64. It reports false for
// strings and byte blobs.
func Float64s(v Value) ([]float64, bool) {
	switch x := v.(type) {
	case Enum:
		return widen(x), true
	case Sint8:
		return widen(x), true
	case Uint8:
		return widen(x), true
	case Uint8z:
		return widen(x), true
	case Sint16:
		return widen(x), true
	case Uint16:
		return widen(x), true
	case Uint16z:
		return widen(x), true
	case Sint32:
		return widen(x), true
	case Uint32:
		return widen(x), true
	case Uint32z:
		return widen(x), true
	case Float32:
		return widen(x), true
	case Float64:
		return append([]float64(nil), x...), true
	case Sint64:
		return widen(x), true
	case Uint64:
		return widen(x), true
	case Uint64z:
		return widen(x), true
	default:
		return nil, false
	}
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func widen[S ~[]E, E number](s S) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}
