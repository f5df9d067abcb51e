package telemetry

import (
	"fmt"
	"math"

	"github.com/lucasjlepore/fitcam/decoder"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// three_d_sensor_calibration field numbers.
const (
	calSensorType        = 0
	calFactor            = 1
	calDivisor           = 2
	calLevelShift        = 3
	calOffset            = 4
	calOrientationMatrix = 5
)

// Calibration is a decoded three_d_sensor_calibration message.
type Calibration struct {
	Index       int        `json:"index"`
	Timestamp   uint32     `json:"timestamp"`
	Kind        SensorKind `json:"sensor_type"`
	Factor      uint32     `json:"calibration_factor"`
	Divisor     uint32     `json:"calibration_divisor"`
	LevelShift  uint32     `json:"level_shift"`
	Offset      [3]int32   `json:"offset_cal"`
	Orientation [9]int32   `json:"orientation_matrix"`
}

// NewCalibration reads a three_d_sensor_calibration record.
func NewCalibration(rec *decoder.DataRecord) (Calibration, error) {
	c := Calibration{Index: rec.Index}
	var err error
	if c.Timestamp, err = decoder.First[decoder.Uint32](rec, decoder.FieldTimestamp); err != nil {
		return c, err
	}
	kind, err := decoder.First[decoder.Enum](rec, calSensorType)
	if err != nil {
		return c, err
	}
	c.Kind = SensorKind(kind)
	if c.Factor, err = decoder.First[decoder.Uint32](rec, calFactor); err != nil {
		return c, err
	}
	if c.Divisor, err = decoder.First[decoder.Uint32](rec, calDivisor); err != nil {
		return c, err
	}
	if c.LevelShift, err = decoder.First[decoder.Uint32](rec, calLevelShift); err != nil {
		return c, err
	}
	offset, err := decoder.Array[decoder.Sint32](rec, calOffset, 3)
	if err != nil {
		return c, err
	}
	copy(c.Offset[:], offset)
	orientation, err := decoder.Array[decoder.Sint32](rec, calOrientationMatrix, 9)
	if err != nil {
		return c, err
	}
	copy(c.Orientation[:], orientation)
	return c, nil
}

// Calibrations extracts the calibration messages for kind k in file order.
func Calibrations(records []decoder.DataRecord, k SensorKind) ([]Calibration, error) {
	all, err := extract(records, decoder.MesgThreeDSensorCalibration, NewCalibration)
	if err != nil {
		return nil, err
	}
	var out []Calibration
	for _, c := range all {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", k, &MissingMessageError{Global: decoder.MesgThreeDSensorCalibration})
	}
	return out, nil
}

// calibrator applies one calibration: scale * M * (raw - shift - offset).
type calibrator struct {
	scale  float64
	matrix *mat.Dense
	bias   *mat.VecDense
}

func newCalibrator(c Calibration) (*calibrator, error) {
	if c.Divisor == 0 {
		return nil, fmt.Errorf("%w: calibration %d has divisor 0", ErrInvalidCalibration, c.Index)
	}
	m := make([]float64, 9)
	for i, v := range c.Orientation {
		m[i] = float64(v) / math.MaxUint16
	}
	shift := float64(c.LevelShift)
	return &calibrator{
		scale:  float64(c.Factor) / float64(c.Divisor),
		matrix: mat.NewDense(3, 3, m),
		bias: mat.NewVecDense(3, []float64{
			shift + float64(c.Offset[0]),
			shift + float64(c.Offset[1]),
			shift + float64(c.Offset[2]),
		}),
	}, nil
}

func (cb *calibrator) apply(x, y, z float64) (float64, float64, float64) {
	v := mat.NewVecDense(3, []float64{x, y, z})
	v.SubVec(v, cb.bias)
	var out mat.VecDense
	out.MulVec(cb.matrix, v)
	out.ScaleVec(cb.scale, &out)
	return out.AtVec(0), out.AtVec(1), out.AtVec(2)
}

// Apply calibrates a single raw sample.
func (c Calibration) Apply(x, y, z float64) (float64, float64, float64, error) {
	cb, err := newCalibrator(c)
	if err != nil {
		return 0, 0, 0, err
	}
	cx, cy, cz := cb.apply(x, y, z)
	return cx, cy, cz, nil
}

// SelectCalibration returns the position in cals of the calibration that
// applies to b: the last one whose timestamp precedes the batch. When none
// precedes it, the first calibration is used. cals must be in file order.
func SelectCalibration(cals []Calibration, b SensorBatch) (int, error) {
	if len(cals) == 0 {
		return 0, ErrNoCalibration
	}
	at := b.millis()
	i := 0
	for j, c := range cals {
		if uint64(c.Timestamp)*1000 >= at {
			break
		}
		i = j
	}
	return i, nil
}

// CalibratedBatch is a sensor batch with calibrated values per axis.
type CalibratedBatch struct {
	SensorBatch
	// Calibration is the record index of the calibration used.
	Calibration int       `json:"calibration_index"`
	CalibratedX []float64 `json:"calibrated_x"`
	CalibratedY []float64 `json:"calibrated_y"`
	CalibratedZ []float64 `json:"calibrated_z"`
}

// Calibrate applies the matching calibration to every batch. Batches are
// independent and are calibrated in parallel; the result keeps their order.
func Calibrate(batches []SensorBatch, cals []Calibration) ([]CalibratedBatch, error) {
	calibrators := make([]*calibrator, len(cals))
	for i, c := range cals {
		cb, err := newCalibrator(c)
		if err != nil {
			return nil, err
		}
		calibrators[i] = cb
	}

	out := make([]CalibratedBatch, len(batches))
	var g errgroup.Group
	for i, b := range batches {
		g.Go(func() error {
			ci, err := SelectCalibration(cals, b)
			if err != nil {
				return err
			}
			cb := calibrators[ci]
			cal := CalibratedBatch{
				SensorBatch: b,
				Calibration: cals[ci].Index,
				CalibratedX: make([]float64, b.Len()),
				CalibratedY: make([]float64, b.Len()),
				CalibratedZ: make([]float64, b.Len()),
			}
			for s := 0; s < b.Len(); s++ {
				cal.CalibratedX[s], cal.CalibratedY[s], cal.CalibratedZ[s] = cb.apply(float64(b.X[s]), float64(b.Y[s]), float64(b.Z[s]))
			}
			out[i] = cal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CalibrateSensor extracts and calibrates kind k, optionally limited to a
// record range. Calibrations are looked up in all of records, since the
// applicable one may precede the range.
func CalibrateSensor(records []decoder.DataRecord, k SensorKind, r *decoder.Range) ([]CalibratedBatch, error) {
	batches, err := SensorBatches(decoder.Select(records, r), k)
	if err != nil {
		return nil, err
	}
	cals, err := Calibrations(records, k)
	if err != nil {
		return nil, err
	}
	return Calibrate(batches, cals)
}
