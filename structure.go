package fitcam

import (
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/telemetry"
)

// SessionSummary is one recording session with what it contains.
type SessionSummary struct {
	ID              string         `json:"id"`
	IDs             []string       `json:"ids"`
	Range           decoder.Range  `json:"range"`
	StartTime       time.Time      `json:"start_time,omitzero"`
	EndTime         time.Time      `json:"end_time,omitzero"`
	DurationSeconds float64        `json:"duration_seconds"`
	Points          int            `json:"points"`
	SensorSamples   map[string]int `json:"sensor_samples,omitempty"`
}

func summarizeSessions(records []decoder.DataRecord, events []telemetry.CameraEvent, t0 time.Time) []SessionSummary {
	byIndex := make(map[int]telemetry.CameraEvent, len(events))
	for _, e := range events {
		byIndex[e.Index] = e
	}

	sessions := telemetry.Sessions(events)
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		sum := SessionSummary{ID: s.ID(), IDs: s.IDs, Range: s.Range()}

		start, end := byIndex[s.Start], byIndex[s.End]
		from := telemetry.Relative(start.Timestamp, start.TimestampMs)
		to := telemetry.Relative(end.Timestamp, end.TimestampMs)
		sum.DurationSeconds = (to - from).Seconds()
		if !t0.IsZero() {
			sum.StartTime = t0.Add(from)
			sum.EndTime = t0.Add(to)
		}

		r := s.Range()
		if points, _, err := telemetry.Points(records, &r); err == nil {
			sum.Points = len(points)
		}
		in := telemetry.SessionRecords(records, s)
		for _, k := range telemetry.SensorKinds {
			batches, err := telemetry.SensorBatches(in, k)
			if err != nil {
				continue
			}
			if sum.SensorSamples == nil {
				sum.SensorSamples = make(map[string]int)
			}
			for _, b := range batches {
				sum.SensorSamples[k.String()] += b.Len()
			}
		}
		out = append(out, sum)
	}
	return out
}
