package decoder

import (
	"errors"
	"fmt"
	"math"
)

// Field is one decoded standard or developer field.
type Field struct {
	Number   uint8    `json:"field_number"`
	Size     uint8    `json:"size"`
	BaseType BaseType `json:"base_type"`
	Value    Value    `json:"value"`

	// Developer fields carry the index of the developer that described them.
	Developer      bool  `json:"developer,omitempty"`
	DeveloperIndex uint8 `json:"developer_data_index,omitempty"`

	// Labels from the profile or a field description. Scale and Offset are
	// nil when the field has none.
	Name   string   `json:"name,omitempty"`
	Units  string   `json:"units,omitempty"`
	Scale  *float64 `json:"scale,omitempty"`
	Offset *float64 `json:"offset,omitempty"`
}

// Scaled returns the field's numeric elements as value/scale - offset.
func (f Field) Scaled() ([]float64, bool) {
	vals, ok := Float64s(f.Value)
	if !ok {
		return nil, false
	}
	for i := range vals {
		if f.Scale != nil && *f.Scale != 0 {
			vals[i] /= *f.Scale
		}
		if f.Offset != nil {
			vals[i] -= *f.Offset
		}
	}
	return vals, true
}

// DataRecord is one decoded data message.
type DataRecord struct {
	// Index counts data records in file order, including those skipped by
	// a filter.
	Index  int    `json:"index"`
	Offset int64  `json:"file_offset"`
	Local  uint8  `json:"local_message_type"`
	Global uint16 `json:"global_message_number"`
	Name   string `json:"message_name,omitempty"`

	Fields          []Field `json:"fields"`
	DeveloperFields []Field `json:"developer_fields,omitempty"`
}

// Field returns the standard field with the given number.
func (r *DataRecord) Field(num uint8) (Field, bool) {
	for _, f := range r.Fields {
		if f.Number == num {
			return f, true
		}
	}
	return Field{}, false
}

// DeveloperField returns the developer field keyed by (num, devIndex).
func (r *DataRecord) DeveloperField(num, devIndex uint8) (Field, bool) {
	for _, f := range r.DeveloperFields {
		if f.Number == num && f.DeveloperIndex == devIndex {
			return f, true
		}
	}
	return Field{}, false
}

func (r *DataRecord) fieldErr(num uint8, err error) error {
	return &FieldError{Global: r.Global, Field: num, Err: err}
}

// Get returns field num as the shape S. A missing field yields
// ErrMissingField, any other shape ErrTypeMismatch, both wrapped in a
// *FieldError.
func Get[S Value](r *DataRecord, num uint8) (S, error) {
	var zero S
	f, ok := r.Field(num)
	if !ok {
		return zero, r.fieldErr(num, ErrMissingField)
	}
	v, ok := f.Value.(S)
	if !ok {
		return zero, r.fieldErr(num, fmt.Errorf("%w: have %s, want %s", ErrTypeMismatch, f.Value.BaseType(), zero.BaseType()))
	}
	return v, nil
}

// First returns the first element of field num. A field whose elements
// were all invalid counts as missing.
func First[S interface {
	Value
	~[]E
}, E any](r *DataRecord, num uint8) (E, error) {
	var zero E
	s, err := Get[S](r, num)
	if err != nil {
		return zero, err
	}
	if len(s) == 0 {
		return zero, r.fieldErr(num, ErrMissingField)
	}
	return s[0], nil
}

// Optional is First that maps a missing field to ok == false. Type
// mismatches are still errors.
func Optional[S interface {
	Value
	~[]E
}, E any](r *DataRecord, num uint8) (E, bool, error) {
	v, err := First[S, E](r, num)
	if err == nil {
		return v, true, nil
	}
	if errors.Is(err, ErrMissingField) {
		return v, false, nil
	}
	return v, false, err
}

// Array returns field num as S and checks it holds exactly n elements.
func Array[S interface {
	Value
	~[]E
}, E any](r *DataRecord, num uint8, n int) (S, error) {
	s, err := Get[S](r, num)
	if err != nil {
		return s, err
	}
	if len(s) != n {
		return s, r.fieldErr(num, fmt.Errorf("%w: %d elements, want %d", ErrMissingField, len(s), n))
	}
	return s, nil
}

// Text returns string field num; an empty string counts as missing.
func Text(r *DataRecord, num uint8) (string, error) {
	s, err := Get[String](r, num)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", r.fieldErr(num, ErrMissingField)
	}
	return string(s), nil
}

// decodeData decodes the body of one data record. The cursor advances by
// the definition's full data size whether or not individual fields decode;
// content problems come back as issues and the field keeps its raw bytes.
func decodeData(c *cursor, def *Definition, cat *Catalog) (*DataRecord, []error, error) {
	body, err := c.read(def.DataSize())
	if err != nil {
		return nil, nil, fmt.Errorf("read data message: %w", err)
	}

	order := def.ByteOrder()
	rec := &DataRecord{
		Local:  def.Local,
		Global: def.Global,
		Fields: make([]Field, 0, len(def.Fields)),
	}
	var issues []error
	pos := 0
	for _, fd := range def.Fields {
		raw := body[pos : pos+int(fd.Size)]
		pos += int(fd.Size)
		v, err := DecodeValue(raw, fd.BaseType, order)
		if err != nil {
			issues = append(issues, rec.fieldErr(fd.Number, fmt.Errorf("%w (base type 0x%02X, size %d)", err, fd.BaseTypeRaw, fd.Size)))
		}
		rec.Fields = append(rec.Fields, Field{
			Number:   fd.Number,
			Size:     fd.Size,
			BaseType: v.BaseType(),
			Value:    v,
		})
	}

	for _, dd := range def.DeveloperFields {
		raw := body[pos : pos+int(dd.Size)]
		pos += int(dd.Size)
		f := Field{
			Number:         dd.Number,
			Size:           dd.Size,
			Developer:      true,
			DeveloperIndex: dd.DeveloperIndex,
		}
		desc, ok := cat.Lookup(dd.Number, dd.DeveloperIndex)
		if !ok {
			f.Value = Bytes(append([]byte(nil), raw...))
			f.BaseType = BaseByte
			issues = append(issues, fmt.Errorf("developer field %d (developer %d): %w", dd.Number, dd.DeveloperIndex, ErrUnknownFieldDescription))
			rec.DeveloperFields = append(rec.DeveloperFields, f)
			continue
		}
		v, err := DecodeValue(raw, desc.BaseType, order)
		if err != nil {
			issues = append(issues, fmt.Errorf("developer field %q (%d, developer %d): %w", desc.Name, dd.Number, dd.DeveloperIndex, err))
		}
		f.Value = v
		f.BaseType = v.BaseType()
		desc.label(&f)
		rec.DeveloperFields = append(rec.DeveloperFields, f)
	}
	return rec, issues, nil
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
