package telemetry

import (
	"fmt"

	"github.com/lucasjlepore/fitcam/decoder"
)

// record field numbers.
const (
	recLatitude         = 0
	recLongitude        = 1
	recAltitude         = 2
	recDistance         = 5
	recSpeed            = 6
	recEnhancedSpeed    = 73
	recEnhancedAltitude = 78
)

// Record is the position part of a generic record message. Altitude and
// Speed hold the enhanced (32-bit) raw values, taken from the 16-bit
// fields when only those are present.
type Record struct {
	Index     int    `json:"index"`
	Timestamp uint32 `json:"timestamp"`
	Latitude  int32  `json:"position_lat"`
	Longitude int32  `json:"position_long"`
	Altitude  uint32 `json:"altitude"`
	Distance  uint32 `json:"distance"`
	Speed     uint32 `json:"speed"`
}

// NewRecord reads a record message. Timestamp and position are required.
func NewRecord(rec *decoder.DataRecord) (Record, error) {
	r := Record{Index: rec.Index}
	var err error
	if r.Timestamp, err = decoder.First[decoder.Uint32](rec, decoder.FieldTimestamp); err != nil {
		return r, err
	}
	if r.Latitude, err = decoder.First[decoder.Sint32](rec, recLatitude); err != nil {
		return r, err
	}
	if r.Longitude, err = decoder.First[decoder.Sint32](rec, recLongitude); err != nil {
		return r, err
	}
	if r.Distance, _, err = decoder.Optional[decoder.Uint32](rec, recDistance); err != nil {
		return r, err
	}
	if r.Altitude, err = enhanced(rec, recEnhancedAltitude, recAltitude); err != nil {
		return r, err
	}
	if r.Speed, err = enhanced(rec, recEnhancedSpeed, recSpeed); err != nil {
		return r, err
	}
	return r, nil
}

func enhanced(rec *decoder.DataRecord, wide, narrow uint8) (uint32, error) {
	v, ok, err := decoder.Optional[decoder.Uint32](rec, wide)
	if err != nil || ok {
		return v, err
	}
	n, _, err := decoder.Optional[decoder.Uint16](rec, narrow)
	return uint32(n), err
}

// Records extracts record messages leniently: a record that lacks a
// required field is skipped and reported in skipped, and only a stream
// with no usable record at all is an error.
func Records(records []decoder.DataRecord) (out []Record, skipped []error, err error) {
	for i := range records {
		if records[i].Global != decoder.MesgRecord {
			continue
		}
		r, err := NewRecord(&records[i])
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %d: %w", records[i].Index, err))
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, skipped, &MissingMessageError{Global: decoder.MesgRecord}
	}
	return out, skipped, nil
}

// Point converts r to physical units. Record timestamps are absolute, so
// Datetime is always set.
func (r Record) Point() Point {
	return Point{
		Index:     r.Index,
		Latitude:  float64(r.Latitude) * semi2deg,
		Longitude: float64(r.Longitude) * semi2deg,
		Altitude:  float64(r.Altitude)/5 - 500,
		Speed2D:   float64(r.Speed) / 1000,
		Time:      Relative(r.Timestamp, 0),
		Datetime:  decoder.TimestampToTime(r.Timestamp),
	}
}
