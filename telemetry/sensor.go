package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/tormoder/fit"
)

// SensorKind selects a three-axis sensor. Its value is the sensor_type used
// by three_d_sensor_calibration messages.
type SensorKind fit.SensorType

const (
	Accelerometer = SensorKind(fit.SensorTypeAccelerometer)
	Gyroscope     = SensorKind(fit.SensorTypeGyroscope)
	Magnetometer  = SensorKind(fit.SensorTypeCompass)
)

// SensorKinds lists the supported kinds.
var SensorKinds = []SensorKind{Accelerometer, Gyroscope, Magnetometer}

// Global is the global message number carrying this kind's samples.
func (k SensorKind) Global() uint16 {
	switch k {
	case Accelerometer:
		return decoder.MesgAccelerometerData
	case Gyroscope:
		return decoder.MesgGyroscopeData
	case Magnetometer:
		return decoder.MesgMagnetometerData
	}
	return 0
}

func (k SensorKind) String() string {
	switch k {
	case Accelerometer:
		return "accelerometer"
	case Gyroscope:
		return "gyroscope"
	case Magnetometer:
		return "magnetometer"
	}
	return fmt.Sprintf("sensor(%d)", uint8(k))
}

// ParseSensorKind accepts a kind's name or a common abbreviation.
func ParseSensorKind(s string) (SensorKind, error) {
	switch strings.ToLower(s) {
	case "accelerometer", "accel", "acc":
		return Accelerometer, nil
	case "gyroscope", "gyro", "gyr":
		return Gyroscope, nil
	case "magnetometer", "mag", "compass":
		return Magnetometer, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSensor, s)
}

// three-axis data field numbers, shared by 164, 165 and 208.
const (
	sensorTimestampMs      = 0
	sensorSampleTimeOffset = 1
	sensorX                = 2
	sensorY                = 3
	sensorZ                = 4
)

// SensorBatch is one three-axis data message: a batch of raw samples.
type SensorBatch struct {
	Index             int        `json:"index"`
	Kind              SensorKind `json:"sensor_kind"`
	Timestamp         uint32     `json:"timestamp"`
	TimestampMs       uint16     `json:"timestamp_ms"`
	SampleTimeOffsets []uint16   `json:"sample_time_offset"`
	X                 []uint16   `json:"x"`
	Y                 []uint16   `json:"y"`
	Z                 []uint16   `json:"z"`

	// Dropped counts samples removed because they held the invalid sentinel.
	Dropped int `json:"dropped_samples,omitempty"`
}

const invalidUint16 = 0xFFFF

// NewSensorBatch reads a three-axis data record of kind k. All axes must
// hold the same number of samples. Samples with an invalid element on any
// axis are dropped.
func NewSensorBatch(rec *decoder.DataRecord, k SensorKind) (SensorBatch, error) {
	b := SensorBatch{Index: rec.Index, Kind: k}
	var err error
	if b.Timestamp, err = decoder.First[decoder.Uint32](rec, decoder.FieldTimestamp); err != nil {
		return b, err
	}
	if b.TimestampMs, err = decoder.First[decoder.Uint16](rec, sensorTimestampMs); err != nil {
		return b, err
	}
	axes := []struct {
		num uint8
		dst *[]uint16
	}{
		{sensorSampleTimeOffset, &b.SampleTimeOffsets},
		{sensorX, &b.X},
		{sensorY, &b.Y},
		{sensorZ, &b.Z},
	}
	for _, a := range axes {
		v, err := decoder.Get[decoder.Uint16](rec, a.num)
		if err != nil {
			return b, err
		}
		*a.dst = v
	}
	n := len(b.X)
	if len(b.Y) != n || len(b.Z) != n || len(b.SampleTimeOffsets) != n {
		return b, fmt.Errorf("%w: offsets %d, x %d, y %d, z %d", ErrMismatchedAxes, len(b.SampleTimeOffsets), len(b.X), len(b.Y), len(b.Z))
	}
	b.dropInvalid()
	return b, nil
}

// dropInvalid removes samples where any axis or the time offset holds the
// uint16 invalid sentinel.
func (b *SensorBatch) dropInvalid() {
	keep := 0
	for i := range b.X {
		if b.SampleTimeOffsets[i] == invalidUint16 || b.X[i] == invalidUint16 ||
			b.Y[i] == invalidUint16 || b.Z[i] == invalidUint16 {
			b.Dropped++
			continue
		}
		b.SampleTimeOffsets[keep] = b.SampleTimeOffsets[i]
		b.X[keep], b.Y[keep], b.Z[keep] = b.X[i], b.Y[i], b.Z[i]
		keep++
	}
	b.SampleTimeOffsets = b.SampleTimeOffsets[:keep]
	b.X, b.Y, b.Z = b.X[:keep], b.Y[:keep], b.Z[:keep]
}

// SensorBatches extracts every data message of kind k.
func SensorBatches(records []decoder.DataRecord, k SensorKind) ([]SensorBatch, error) {
	if k.Global() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSensor, uint8(k))
	}
	return extract(records, k.Global(), func(rec *decoder.DataRecord) (SensorBatch, error) {
		return NewSensorBatch(rec, k)
	})
}

// Len is the number of samples in the batch.
func (b SensorBatch) Len() int { return len(b.X) }

// SampleTimes returns the device relative time of each sample.
func (b SensorBatch) SampleTimes() []time.Duration {
	base := Relative(b.Timestamp, b.TimestampMs)
	out := make([]time.Duration, len(b.SampleTimeOffsets))
	for i, off := range b.SampleTimeOffsets {
		out[i] = base + time.Duration(off)*time.Millisecond
	}
	return out
}

// millis is the batch timestamp in milliseconds.
func (b SensorBatch) millis() uint64 {
	return uint64(b.Timestamp)*1000 + uint64(b.TimestampMs)
}
