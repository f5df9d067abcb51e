package decoder

import (
	"fmt"
	"sort"
)

// Field numbers of the field_description message.
const (
	fdDeveloperDataIndex = 0
	fdFieldNumber        = 1
	fdBaseType           = 2
	fdName               = 3
	fdArray              = 4
	fdComponents         = 5
	fdScale              = 6
	fdOffset             = 7
	fdUnits              = 8
	fdBits               = 9
	fdAccumulate         = 10
	fdBaseUnit           = 13
	fdNativeMesgNum      = 14
	fdNativeFieldNum     = 15
)

// Field numbers of the developer_data_id message.
const (
	ddDeveloperID        = 0
	ddApplicationID      = 1
	ddManufacturerID     = 2
	ddDeveloperDataIndex = 3
	ddApplicationVersion = 4
)

// FieldDescription is the in-stream description of one developer field.
type FieldDescription struct {
	DeveloperIndex uint8    `json:"developer_data_index"`
	FieldNumber    uint8    `json:"field_definition_number"`
	BaseType       BaseType `json:"base_type"`
	Name           string   `json:"field_name"`

	Array          *uint8  `json:"array,omitempty"`
	Components     string  `json:"components,omitempty"`
	Scale          *uint8  `json:"scale,omitempty"`
	Offset         *int8   `json:"offset,omitempty"`
	Units          string  `json:"units,omitempty"`
	Bits           string  `json:"bits,omitempty"`
	Accumulate     string  `json:"accumulate,omitempty"`
	BaseUnit       *uint16 `json:"fit_base_unit_id,omitempty"`
	NativeMesgNum  *uint16 `json:"native_mesg_num,omitempty"`
	NativeFieldNum *uint8  `json:"native_field_num,omitempty"`
}

func (d FieldDescription) label(f *Field) {
	f.Name = d.Name
	f.Units = d.Units
	if d.Scale != nil {
		f.Scale = floatPtr(float64(*d.Scale))
	}
	if d.Offset != nil {
		f.Offset = floatPtr(float64(*d.Offset))
	}
}

// DeveloperID identifies the application behind a developer data index.
type DeveloperID struct {
	Index              uint8   `json:"developer_data_index"`
	DeveloperID        []byte  `json:"developer_id,omitempty"`
	ApplicationID      []byte  `json:"application_id,omitempty"`
	ManufacturerID     *uint16 `json:"manufacturer_id,omitempty"`
	ApplicationVersion *uint32 `json:"application_version,omitempty"`
}

// NewFieldDescription builds a description from a field_description
// record. Developer index, field number, base type and name are required.
func NewFieldDescription(rec *DataRecord) (FieldDescription, error) {
	var d FieldDescription
	var err error
	if d.DeveloperIndex, err = First[Uint8](rec, fdDeveloperDataIndex); err != nil {
		return d, err
	}
	if d.FieldNumber, err = First[Uint8](rec, fdFieldNumber); err != nil {
		return d, err
	}
	bt, err := First[Uint8](rec, fdBaseType)
	if err != nil {
		return d, err
	}
	d.BaseType = ParseBaseType(bt)
	if !d.BaseType.Known() {
		return d, rec.fieldErr(fdBaseType, fmt.Errorf("%w: 0x%02X", ErrUnknownBaseType, bt))
	}
	if d.Name, err = Text(rec, fdName); err != nil {
		return d, err
	}

	if d.Array, err = optionalPtr[Uint8](rec, fdArray); err != nil {
		return d, err
	}
	if d.Scale, err = optionalPtr[Uint8](rec, fdScale); err != nil {
		return d, err
	}
	if d.Offset, err = optionalPtr[Sint8](rec, fdOffset); err != nil {
		return d, err
	}
	if d.BaseUnit, err = optionalPtr[Uint16](rec, fdBaseUnit); err != nil {
		return d, err
	}
	if d.NativeMesgNum, err = optionalPtr[Uint16](rec, fdNativeMesgNum); err != nil {
		return d, err
	}
	if d.NativeFieldNum, err = optionalPtr[Uint8](rec, fdNativeFieldNum); err != nil {
		return d, err
	}
	d.Components = optionalText(rec, fdComponents)
	d.Units = optionalText(rec, fdUnits)
	d.Bits = optionalText(rec, fdBits)
	d.Accumulate = optionalText(rec, fdAccumulate)
	return d, nil
}

// NewDeveloperID builds a DeveloperID from a developer_data_id record.
func NewDeveloperID(rec *DataRecord) (DeveloperID, error) {
	var d DeveloperID
	var err error
	if d.Index, err = First[Uint8](rec, ddDeveloperDataIndex); err != nil {
		return d, err
	}
	if b, err := Get[Bytes](rec, ddDeveloperID); err == nil {
		d.DeveloperID = b
	}
	if b, err := Get[Bytes](rec, ddApplicationID); err == nil {
		d.ApplicationID = b
	}
	if d.ManufacturerID, err = optionalPtr[Uint16](rec, ddManufacturerID); err != nil {
		return d, err
	}
	if d.ApplicationVersion, err = optionalPtr[Uint32](rec, ddApplicationVersion); err != nil {
		return d, err
	}
	return d, nil
}

func optionalPtr[S interface {
	Value
	~[]E
}, E any](rec *DataRecord, num uint8) (*E, error) {
	v, ok, err := Optional[S, E](rec, num)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func optionalText(rec *DataRecord, num uint8) string {
	s, _ := Get[String](rec, num)
	return string(s)
}

type catalogKey struct {
	field     uint8
	developer uint8
}

// Catalog maps (field number, developer index) to the developer field
// description seen earlier in the stream. A description is immutable once
// registered. Like Registry it belongs to a single decode.
type Catalog struct {
	fields     map[catalogKey]FieldDescription
	developers map[uint8]DeveloperID
}

func NewCatalog() *Catalog {
	return &Catalog{
		fields:     make(map[catalogKey]FieldDescription),
		developers: make(map[uint8]DeveloperID),
	}
}

// Register adds d unless its key is already described.
func (c *Catalog) Register(d FieldDescription) bool {
	k := catalogKey{field: d.FieldNumber, developer: d.DeveloperIndex}
	if _, ok := c.fields[k]; ok {
		return false
	}
	c.fields[k] = d
	return true
}

// Lookup returns the description for developer field num of developer devIndex.
func (c *Catalog) Lookup(num, devIndex uint8) (FieldDescription, bool) {
	if c == nil {
		return FieldDescription{}, false
	}
	d, ok := c.fields[catalogKey{field: num, developer: devIndex}]
	return d, ok
}

// Developer returns the developer_data_id registered for index.
func (c *Catalog) Developer(index uint8) (DeveloperID, bool) {
	d, ok := c.developers[index]
	return d, ok
}

func (c *Catalog) Len() int { return len(c.fields) }

// Descriptions lists the registered descriptions ordered by developer index
// then field number.
func (c *Catalog) Descriptions() []FieldDescription {
	out := make([]FieldDescription, 0, len(c.fields))
	for _, d := range c.fields {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeveloperIndex != out[j].DeveloperIndex {
			return out[i].DeveloperIndex < out[j].DeveloperIndex
		}
		return out[i].FieldNumber < out[j].FieldNumber
	})
	return out
}

// fold applies a decoded field_description or developer_data_id record.
func (c *Catalog) fold(rec *DataRecord) error {
	switch rec.Global {
	case MesgFieldDescription:
		d, err := NewFieldDescription(rec)
		if err != nil {
			return err
		}
		c.Register(d)
	case MesgDeveloperDataID:
		d, err := NewDeveloperID(rec)
		if err != nil {
			return err
		}
		if _, ok := c.developers[d.Index]; !ok {
			c.developers[d.Index] = d
		}
	}
	return nil
}
