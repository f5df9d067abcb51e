// Package telemetry projects decoded FIT records into camera telemetry:
// recording sessions, GPS points, time correlation and calibrated
// three-axis sensor samples.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/lucasjlepore/fitcam/decoder"
)

var (
	// ErrNoMessages matches every *MissingMessageError.
	ErrNoMessages = errors.New("no messages")

	ErrNoCalibration      = errors.New("no calibration precedes sensor data")
	ErrInvalidCalibration = errors.New("invalid calibration")
	ErrMismatchedAxes     = errors.New("sensor axes differ in length")
	ErrUnknownSensor      = errors.New("unknown sensor kind")
)

// MissingMessageError reports that a record stream holds no usable
// messages of one kind.
type MissingMessageError struct {
	Global uint16
}

func (e *MissingMessageError) Error() string {
	return fmt.Sprintf("no %s (global %d) messages", decoder.MessageName(e.Global), e.Global)
}

func (e *MissingMessageError) Is(target error) bool { return target == ErrNoMessages }

// extract builds one T per record of the given global number. The first
// record that fails to build aborts the extraction.
func extract[T any](records []decoder.DataRecord, global uint16, build func(*decoder.DataRecord) (T, error)) ([]T, error) {
	var out []T
	for i := range records {
		if records[i].Global != global {
			continue
		}
		v, err := build(&records[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", records[i].Index, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, &MissingMessageError{Global: global}
	}
	return out, nil
}
