package telemetry

import (
	"errors"
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
)

// timestamp_correlation field numbers.
const (
	tcSystemTimestamp   = 1
	tcTimestampMs       = 4
	tcSystemTimestampMs = 5
)

// TimestampCorrelation pairs device time with UTC at one instant.
type TimestampCorrelation struct {
	Index int `json:"index"`
	// Timestamp and TimestampMs are UTC seconds since the FIT epoch.
	Timestamp   uint32 `json:"timestamp"`
	TimestampMs uint16 `json:"timestamp_ms"`
	// SystemTimestamp and SystemTimestampMs are device relative.
	SystemTimestamp   uint32 `json:"system_timestamp"`
	SystemTimestampMs uint16 `json:"system_timestamp_ms"`
}

// NewTimestampCorrelation reads a timestamp_correlation record. The
// millisecond fields default to zero when absent.
func NewTimestampCorrelation(rec *decoder.DataRecord) (TimestampCorrelation, error) {
	tc := TimestampCorrelation{Index: rec.Index}
	var err error
	if tc.Timestamp, err = decoder.First[decoder.Uint32](rec, decoder.FieldTimestamp); err != nil {
		return tc, err
	}
	if tc.SystemTimestamp, err = decoder.First[decoder.Uint32](rec, tcSystemTimestamp); err != nil {
		return tc, err
	}
	if tc.TimestampMs, _, err = decoder.Optional[decoder.Uint16](rec, tcTimestampMs); err != nil {
		return tc, err
	}
	if tc.SystemTimestampMs, _, err = decoder.Optional[decoder.Uint16](rec, tcSystemTimestampMs); err != nil {
		return tc, err
	}
	return tc, nil
}

// FindTimestampCorrelation returns the first timestamp_correlation record.
func FindTimestampCorrelation(records []decoder.DataRecord) (TimestampCorrelation, error) {
	for i := range records {
		if records[i].Global == decoder.MesgTimestampCorrelation {
			return NewTimestampCorrelation(&records[i])
		}
	}
	return TimestampCorrelation{}, &MissingMessageError{Global: decoder.MesgTimestampCorrelation}
}

// Offset is what to add to a device relative time to get UTC time.
func (tc TimestampCorrelation) Offset() time.Duration {
	s := int64(tc.Timestamp) - int64(tc.SystemTimestamp)
	ms := int64(tc.TimestampMs) - int64(tc.SystemTimestampMs)
	return time.Duration(s)*time.Second + time.Duration(ms)*time.Millisecond
}

// StartTime is the absolute time of device time zero, shifted by hours.
// The shift is a plain offset, not a time zone.
func (tc TimestampCorrelation) StartTime(hours int) time.Time {
	return decoder.Epoch.Add(time.Duration(hours)*time.Hour + tc.Offset())
}

// StartTime finds the correlation in records and returns the absolute time
// of device time zero. Without a correlation it returns an error matching
// ErrNoMessages, or the unshifted FIT epoch when defaultOnError is set.
func StartTime(records []decoder.DataRecord, hours int, defaultOnError bool) (time.Time, error) {
	tc, err := FindTimestampCorrelation(records)
	if err != nil {
		if defaultOnError && errors.Is(err, ErrNoMessages) {
			return decoder.Epoch, nil
		}
		return time.Time{}, err
	}
	return tc.StartTime(hours), nil
}

// Absolute converts a device relative (seconds, milliseconds) pair to
// absolute time given the start time t0.
func Absolute(t0 time.Time, seconds uint32, ms uint16) time.Time {
	return t0.Add(Relative(seconds, ms))
}

// Relative converts a (seconds, milliseconds) pair to a duration.
func Relative(seconds uint32, ms uint16) time.Duration {
	return time.Duration(seconds)*time.Second + time.Duration(ms)*time.Millisecond
}
