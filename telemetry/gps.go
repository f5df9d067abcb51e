package telemetry

import (
	"math"
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
)

// gps_metadata field numbers.
const (
	gpsTimestampMs  = 0
	gpsLatitude     = 1
	gpsLongitude    = 2
	gpsAltitude     = 3
	gpsSpeed        = 4
	gpsHeading      = 5
	gpsUTCTimestamp = 6
	gpsVelocity     = 7
)

// semicircles to degrees
var semi2deg = 180 / math.Pow(2, 31)

// GpsMetadata is a decoded gps_metadata message with raw profile units.
type GpsMetadata struct {
	Index        int      `json:"index"`
	Timestamp    uint32   `json:"timestamp"`
	TimestampMs  uint16   `json:"timestamp_ms"`
	Latitude     int32    `json:"position_lat"`
	Longitude    int32    `json:"position_long"`
	Altitude     uint32   `json:"enhanced_altitude"`
	Speed        uint32   `json:"enhanced_speed"`
	Heading      uint16   `json:"heading"`
	UTCTimestamp uint32   `json:"utc_timestamp"`
	Velocity     [3]int16 `json:"velocity"`
}

// NewGpsMetadata reads a gps_metadata record. Heading, UTC timestamp and
// velocity are optional; the other fields are required.
func NewGpsMetadata(rec *decoder.DataRecord) (GpsMetadata, error) {
	g := GpsMetadata{Index: rec.Index}
	var err error
	if g.Timestamp, err = decoder.First[decoder.Uint32](rec, decoder.FieldTimestamp); err != nil {
		return g, err
	}
	if g.TimestampMs, err = decoder.First[decoder.Uint16](rec, gpsTimestampMs); err != nil {
		return g, err
	}
	if g.Latitude, err = decoder.First[decoder.Sint32](rec, gpsLatitude); err != nil {
		return g, err
	}
	if g.Longitude, err = decoder.First[decoder.Sint32](rec, gpsLongitude); err != nil {
		return g, err
	}
	if g.Altitude, err = decoder.First[decoder.Uint32](rec, gpsAltitude); err != nil {
		return g, err
	}
	if g.Speed, err = decoder.First[decoder.Uint32](rec, gpsSpeed); err != nil {
		return g, err
	}
	if g.Heading, _, err = decoder.Optional[decoder.Uint16](rec, gpsHeading); err != nil {
		return g, err
	}
	if g.UTCTimestamp, _, err = decoder.Optional[decoder.Uint32](rec, gpsUTCTimestamp); err != nil {
		return g, err
	}
	// A velocity whose components all held the invalid sentinel is absent.
	if f, ok := rec.Field(gpsVelocity); ok && f.Value != nil && f.Value.Len() > 0 {
		v, err := decoder.Array[decoder.Sint16](rec, gpsVelocity, 3)
		if err != nil {
			return g, err
		}
		copy(g.Velocity[:], v)
	}
	return g, nil
}

// GpsMetadataMessages extracts every gps_metadata message in records.
func GpsMetadataMessages(records []decoder.DataRecord) ([]GpsMetadata, error) {
	return extract(records, decoder.MesgGpsMetadata, NewGpsMetadata)
}

// Point converts g to degrees, metres and metres per second.
func (g GpsMetadata) Point() Point {
	vx, vy, vz := float64(g.Velocity[0]), float64(g.Velocity[1]), float64(g.Velocity[2])
	return Point{
		Index:     g.Index,
		Latitude:  float64(g.Latitude) * semi2deg,
		Longitude: float64(g.Longitude) * semi2deg,
		Altitude:  float64(g.Altitude)/5 - 500,
		Heading:   float64(g.Heading) / 100,
		Speed2D:   float64(g.Speed) / 1000,
		Speed3D:   math.Sqrt(vx*vx+vy*vy+vz*vz) / 100,
		Time:      Relative(g.Timestamp, g.TimestampMs),
	}
}

// Point is a position sample in physical units. Time is device relative;
// Datetime is set once a start time is known.
type Point struct {
	Index     int           `json:"index"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Altitude  float64       `json:"altitude"`
	Heading   float64       `json:"heading"`
	Speed2D   float64       `json:"speed2d"`
	Speed3D   float64       `json:"speed3d"`
	Time      time.Duration `json:"time"`
	Datetime  time.Time     `json:"datetime,omitzero"`
}
