package telemetry

import (
	"errors"
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
)

// Points projects the position samples in records, optionally limited to a
// record range. gps_metadata is preferred; without it the generic record
// messages are used, and records lacking a position are returned in skipped.
func Points(records []decoder.DataRecord, r *decoder.Range) (points []Point, skipped []error, err error) {
	records = decoder.Select(records, r)

	gps, err := GpsMetadataMessages(records)
	if err == nil {
		points = make([]Point, len(gps))
		for i, g := range gps {
			points[i] = g.Point()
		}
		return points, nil, nil
	}
	if !errors.Is(err, ErrNoMessages) {
		return nil, nil, err
	}

	recs, skipped, err := Records(records)
	if err != nil {
		return nil, skipped, err
	}
	points = make([]Point, len(recs))
	for i, rec := range recs {
		points[i] = rec.Point()
	}
	return points, skipped, nil
}

// SetStartTime fills Datetime of points that lack one as t0 + Time.
func SetStartTime(points []Point, t0 time.Time) {
	for i := range points {
		if points[i].Datetime.IsZero() {
			points[i].Datetime = t0.Add(points[i].Time)
		}
	}
}
