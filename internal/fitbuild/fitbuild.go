// Package fitbuild assembles FIT byte streams record by record for tests.
package fitbuild

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Base type codes as written in definitions.
const (
	Enum    uint8 = 0x00
	Sint8   uint8 = 0x01
	Uint8   uint8 = 0x02
	Sint16  uint8 = 0x83
	Uint16  uint8 = 0x84
	Sint32  uint8 = 0x85
	Uint32  uint8 = 0x86
	String  uint8 = 0x07
	Float32 uint8 = 0x88
	Float64 uint8 = 0x89
	Uint8z  uint8 = 0x0A
	Uint16z uint8 = 0x8B
	Uint32z uint8 = 0x8C
	Byte    uint8 = 0x0D
	Sint64  uint8 = 0x8E
	Uint64  uint8 = 0x8F
	Uint64z uint8 = 0x90
)

// Field is a standard field descriptor.
type Field struct {
	Num, Size, BaseType uint8
}

// DevField is a developer field descriptor.
type DevField struct {
	Num, Size, DevIndex uint8
}

// Builder accumulates the record section of a FIT file.
type Builder struct {
	// HeaderSize is 12 or 14.
	HeaderSize      int
	ProtocolVersion uint8
	ProfileVersion  uint16

	records bytes.Buffer
}

func New() *Builder {
	return &Builder{HeaderSize: 14, ProtocolVersion: 0x20, ProfileVersion: 2132}
}

// Definition appends a definition record. arch is 0 for little endian and
// 1 for big endian; the developer flag is set when dev is non-empty.
func (b *Builder) Definition(local, arch uint8, global uint16, fields []Field, dev []DevField) *Builder {
	hdr := 0x40 | local&0x0F
	if len(dev) > 0 {
		hdr |= 0x20
	}
	b.records.WriteByte(hdr)
	b.records.WriteByte(0)
	b.records.WriteByte(arch)
	var g [2]byte
	if arch == 1 {
		binary.BigEndian.PutUint16(g[:], global)
	} else {
		binary.LittleEndian.PutUint16(g[:], global)
	}
	b.records.Write(g[:])
	b.records.WriteByte(uint8(len(fields)))
	for _, f := range fields {
		b.records.Write([]byte{f.Num, f.Size, f.BaseType})
	}
	if len(dev) > 0 {
		b.records.WriteByte(uint8(len(dev)))
		for _, f := range dev {
			b.records.Write([]byte{f.Num, f.Size, f.DevIndex})
		}
	}
	return b
}

// Data appends a data record header for local followed by the body parts.
func (b *Builder) Data(local uint8, body ...[]byte) *Builder {
	b.records.WriteByte(local & 0x0F)
	for _, p := range body {
		b.records.Write(p)
	}
	return b
}

// Raw appends bytes verbatim.
func (b *Builder) Raw(p ...byte) *Builder {
	b.records.Write(p)
	return b
}

// Value is one little endian field of a Message.
type Value struct {
	Num      uint8
	BaseType uint8
	Data     []byte
}

// Message defines local with the layout of values and appends one data
// record holding them.
func (b *Builder) Message(local uint8, global uint16, values ...Value) *Builder {
	fields := make([]Field, len(values))
	body := make([][]byte, len(values))
	for i, v := range values {
		fields[i] = Field{Num: v.Num, Size: uint8(len(v.Data)), BaseType: v.BaseType}
		body[i] = v.Data
	}
	return b.Definition(local, 0, global, fields, nil).Data(local, body...)
}

// Len is the size of the record section so far.
func (b *Builder) Len() int { return b.records.Len() }

// Bytes returns a complete file: header, records and a zero trailing CRC.
func (b *Builder) Bytes() []byte {
	return b.BytesWithDataSize(uint32(b.records.Len()))
}

// BytesWithDataSize is Bytes with an arbitrary declared data size.
func (b *Builder) BytesWithDataSize(size uint32) []byte {
	out := make([]byte, 0, b.HeaderSize+b.records.Len()+2)
	out = append(out, Header(b.HeaderSize, b.ProtocolVersion, b.ProfileVersion, size)...)
	out = append(out, b.records.Bytes()...)
	return append(out, 0, 0)
}

// Header encodes a file header of size 12 or 14.
func Header(size int, protocol uint8, profile uint16, dataSize uint32) []byte {
	h := make([]byte, size)
	h[0] = uint8(size)
	h[1] = protocol
	binary.LittleEndian.PutUint16(h[2:4], profile)
	binary.LittleEndian.PutUint32(h[4:8], dataSize)
	copy(h[8:12], ".FIT")
	return h
}

func U8(vs ...uint8) []byte { return append([]byte(nil), vs...) }

func U16(o binary.ByteOrder, vs ...uint16) []byte {
	out := make([]byte, 2*len(vs))
	for i, v := range vs {
		o.PutUint16(out[2*i:], v)
	}
	return out
}

func U32(o binary.ByteOrder, vs ...uint32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		o.PutUint32(out[4*i:], v)
	}
	return out
}

func U64(o binary.ByteOrder, vs ...uint64) []byte {
	out := make([]byte, 8*len(vs))
	for i, v := range vs {
		o.PutUint64(out[8*i:], v)
	}
	return out
}

// Str encodes s NUL padded to size bytes.
func Str(s string, size int) []byte {
	out := make([]byte, size)
	copy(out, s)
	return out
}

var le = binary.LittleEndian

func EnumValue(num, v uint8) Value { return Value{Num: num, BaseType: Enum, Data: U8(v)} }

func Uint8Value(num uint8, vs ...uint8) Value {
	return Value{Num: num, BaseType: Uint8, Data: U8(vs...)}
}

func Sint8Value(num uint8, v int8) Value { return Value{Num: num, BaseType: Sint8, Data: U8(uint8(v))} }

func Uint16Value(num uint8, vs ...uint16) Value {
	return Value{Num: num, BaseType: Uint16, Data: U16(le, vs...)}
}

func Sint16Value(num uint8, vs ...int16) Value {
	u := make([]uint16, len(vs))
	for i, v := range vs {
		u[i] = uint16(v)
	}
	return Value{Num: num, BaseType: Sint16, Data: U16(le, u...)}
}

func Uint32Value(num uint8, vs ...uint32) Value {
	return Value{Num: num, BaseType: Uint32, Data: U32(le, vs...)}
}

func Sint32Value(num uint8, vs ...int32) Value {
	u := make([]uint32, len(vs))
	for i, v := range vs {
		u[i] = uint32(v)
	}
	return Value{Num: num, BaseType: Sint32, Data: U32(le, u...)}
}

func Float32Value(num uint8, vs ...float32) Value {
	u := make([]uint32, len(vs))
	for i, v := range vs {
		u[i] = math.Float32bits(v)
	}
	return Value{Num: num, BaseType: Float32, Data: U32(le, u...)}
}

func StringValue(num uint8, s string, size int) Value {
	return Value{Num: num, BaseType: String, Data: Str(s, size)}
}

func BytesValue(num uint8, p ...byte) Value {
	return Value{Num: num, BaseType: Byte, Data: U8(p...)}
}
