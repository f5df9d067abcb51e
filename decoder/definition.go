package decoder

import (
	"encoding/binary"
	"fmt"
)

// FieldDefinition describes one standard field of a definition record.
type FieldDefinition struct {
	Number uint8 `json:"field_number"`
	Size   uint8 `json:"size"`
	// BaseTypeRaw is the byte as written; BaseType is its canonical form.
	BaseTypeRaw uint8    `json:"base_type_raw"`
	BaseType    BaseType `json:"base_type"`
}

// DeveloperFieldDefinition describes one developer field of a definition.
type DeveloperFieldDefinition struct {
	Number         uint8 `json:"field_number"`
	Size           uint8 `json:"size"`
	DeveloperIndex uint8 `json:"developer_data_index"`
}

// Definition is the layout of the data records that follow it under the
// same local message id.
type Definition struct {
	Local           uint8                      `json:"local_message_type"`
	Global          uint16                     `json:"global_message_number"`
	Architecture    uint8                      `json:"architecture"`
	Fields          []FieldDefinition          `json:"fields"`
	DeveloperFields []DeveloperFieldDefinition `json:"developer_fields,omitempty"`
}

// ByteOrder is the order multi-byte values of this definition's data use.
func (d *Definition) ByteOrder() binary.ByteOrder {
	if d.Architecture == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// DataSize is the byte length of one data record body under d.
func (d *Definition) DataSize() int {
	n := 0
	for _, f := range d.Fields {
		n += int(f.Size)
	}
	for _, f := range d.DeveloperFields {
		n += int(f.Size)
	}
	return n
}

func parseDefinition(c *cursor, h MessageHeader) (*Definition, error) {
	fixed, err := c.read(5)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	def := &Definition{Local: h.Local, Architecture: fixed[1]}
	if def.Architecture > 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidArchitecture, def.Architecture)
	}
	def.Global = def.ByteOrder().Uint16(fixed[2:4])

	count := int(fixed[4])
	raw, err := c.read(count * 3)
	if err != nil {
		return nil, fmt.Errorf("read field definitions: %w", err)
	}
	def.Fields = make([]FieldDefinition, count)
	for i := range def.Fields {
		b := raw[i*3 : i*3+3]
		def.Fields[i] = FieldDefinition{
			Number:      b[0],
			Size:        b[1],
			BaseTypeRaw: b[2],
			BaseType:    ParseBaseType(b[2]),
		}
	}

	if !h.DeveloperData {
		return def, nil
	}
	n, err := c.read(1)
	if err != nil {
		return nil, fmt.Errorf("read developer field count: %w", err)
	}
	raw, err = c.read(int(n[0]) * 3)
	if err != nil {
		return nil, fmt.Errorf("read developer field definitions: %w", err)
	}
	def.DeveloperFields = make([]DeveloperFieldDefinition, n[0])
	for i := range def.DeveloperFields {
		b := raw[i*3 : i*3+3]
		def.DeveloperFields[i] = DeveloperFieldDefinition{
			Number:         b[0],
			Size:           b[1],
			DeveloperIndex: b[2],
		}
	}
	return def, nil
}

// Registry holds the active definition per local message id. It belongs to
// one decode and is not safe for concurrent use.
type Registry struct {
	defs [localMesgNumMask + 1]*Definition
}

// Define makes d the active definition for its local id and reports whether
// an earlier one was replaced.
func (r *Registry) Define(d *Definition) bool {
	slot := &r.defs[d.Local&localMesgNumMask]
	replaced := *slot != nil
	*slot = d
	return replaced
}

// Lookup returns the active definition for local.
func (r *Registry) Lookup(local uint8) (*Definition, bool) {
	d := r.defs[local&localMesgNumMask]
	return d, d != nil
}

// cursor reads forward through the record stream and never past end.
type cursor struct {
	data []byte
	pos  int
	end  int
}

func (c *cursor) read(n int) ([]byte, error) {
	if n < 0 || c.pos+n > c.end {
		return nil, ErrTruncated
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) skip(n int) error {
	_, err := c.read(n)
	return err
}
