// Package fitcam summarizes action camera FIT files: recording sessions,
// the GPS track and calibrated motion sensor data.
package fitcam

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/telemetry"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const earthRadiusMeters = 6371008.8

// Start time sources.
const (
	StartFromCorrelation = "timestamp_correlation"
	StartFromDefault     = "fit_epoch"
	StartUnavailable     = "unavailable"
)

// Config controls decoding and time correlation.
type Config struct {
	// HourOffset shifts absolute times by whole hours.
	HourOffset int
	// DefaultTimeOnError falls back to the FIT epoch when the file has no
	// timestamp correlation.
	DefaultTimeOnError bool
	// Relaxed accepts a partially decoded file. Without it a truncated
	// file fails with an error matching decoder.IsPartial, and the caller
	// may retry with Relaxed set.
	Relaxed bool
	// Sensors limits the calibrated sensors; nil means all.
	Sensors []telemetry.SensorKind
	Logger  *zerolog.Logger
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}

// Analysis contains what was extracted from one camera FIT file.
type Analysis struct {
	FilePath         string                     `json:"file_path,omitempty"`
	Header           decoder.Header             `json:"header"`
	RecordCount      int                        `json:"record_count"`
	DefinitionCount  int                        `json:"definition_count"`
	DataMessageCount int                        `json:"data_message_count"`
	Partial          string                     `json:"partial,omitempty"`
	Issues           []string                   `json:"issues,omitempty"`
	SkippedPoints    []string                   `json:"skipped_points,omitempty"`
	Messages         []MessageCount             `json:"messages"`
	StartTime        time.Time                  `json:"start_time,omitzero"`
	StartTimeSource  string                     `json:"start_time_source"`
	DeviceIDs        []string                   `json:"device_ids,omitempty"`
	Sessions         []SessionSummary           `json:"sessions,omitempty"`
	Track            *TrackSummary              `json:"track,omitempty"`
	Sensors          []SensorSummary            `json:"sensors,omitempty"`
	DeveloperFields  []decoder.FieldDescription `json:"developer_fields,omitempty"`
	Notes            string                     `json:"notes"`
}

// MessageCount is the number of data records of one global message.
type MessageCount struct {
	Global uint16 `json:"global"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// TrackSummary describes the position samples.
type TrackSummary struct {
	Source          string    `json:"source"`
	Points          int       `json:"points"`
	StartTime       time.Time `json:"start_time,omitzero"`
	EndTime         time.Time `json:"end_time,omitzero"`
	DurationSeconds float64   `json:"duration_seconds"`
	DistanceMeters  float64   `json:"distance_meters"`
	MinAltitudeM    float64   `json:"min_altitude_m"`
	MaxAltitudeM    float64   `json:"max_altitude_m"`
	ElevationGainM  float64   `json:"elevation_gain_m"`
	ElevationLossM  float64   `json:"elevation_loss_m"`
	AvgSpeedMps     float64   `json:"avg_speed_mps"`
	MaxSpeedMps     float64   `json:"max_speed_mps"`
}

// SensorSummary describes one calibrated sensor.
type SensorSummary struct {
	Kind         string      `json:"kind"`
	Batches      int         `json:"batches"`
	Samples      int         `json:"samples"`
	Calibrations []int       `json:"calibrations"`
	Axes         [3]AxisStat `json:"axes"`
	Error        string      `json:"error,omitempty"`
}

// AxisStat summarizes one calibrated axis.
type AxisStat struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// AnalyzeFile decodes and analyzes a camera FIT file.
func AnalyzeFile(path string, cfg Config) (*Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	a, err := AnalyzeBytes(data, cfg)
	if err != nil {
		return nil, err
	}
	a.FilePath = path
	return a, nil
}

// AnalyzeBytes analyzes a camera FIT file held in memory.
func AnalyzeBytes(data []byte, cfg Config) (*Analysis, error) {
	log := cfg.logger()

	f, derr := decoder.Decode(data, decoder.WithLogger(log))
	if derr != nil && !cfg.Relaxed {
		return nil, fmt.Errorf("decode FIT file: %w", derr)
	}
	f, err := decoder.Relaxed(f, derr)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	var partial string
	if derr != nil {
		partial = derr.Error()
		log.Warn().Err(derr).Msg("analyzing partial file")
	}
	decoder.Augment(f.Records)

	a := &Analysis{
		Header:           f.Header,
		RecordCount:      len(f.Records),
		DefinitionCount:  f.Definitions,
		DataMessageCount: f.DataMessages,
		Partial:          partial,
		Messages:         countMessages(f),
		DeveloperFields:  f.Catalog.Descriptions(),
	}
	for _, issue := range f.Issues {
		a.Issues = append(a.Issues, issue.Error())
	}

	a.StartTimeSource = StartUnavailable
	switch _, cerr := telemetry.FindTimestampCorrelation(f.Records); {
	case cerr == nil:
		a.StartTimeSource = StartFromCorrelation
	case errors.Is(cerr, telemetry.ErrNoMessages) && cfg.DefaultTimeOnError:
		a.StartTimeSource = StartFromDefault
	}
	if a.StartTimeSource != StartUnavailable {
		if a.StartTime, err = telemetry.StartTime(f.Records, cfg.HourOffset, cfg.DefaultTimeOnError); err != nil {
			return nil, fmt.Errorf("correlate time: %w", err)
		}
	}

	events, err := telemetry.CameraEvents(f.Records)
	switch {
	case err == nil:
		a.DeviceIDs = telemetry.DeviceIDs(events)
		a.Sessions = summarizeSessions(f.Records, events, a.StartTime)
	case !errors.Is(err, telemetry.ErrNoMessages):
		return nil, fmt.Errorf("extract camera events: %w", err)
	}

	points, skipped, err := telemetry.Points(f.Records, nil)
	for _, serr := range skipped {
		a.SkippedPoints = append(a.SkippedPoints, serr.Error())
		log.Debug().Err(serr).Msg("record without position skipped")
	}
	switch {
	case err == nil:
		if !a.StartTime.IsZero() {
			telemetry.SetStartTime(points, a.StartTime)
		}
		a.Track = summarizeTrack(f, points)
	case !errors.Is(err, telemetry.ErrNoMessages):
		return nil, fmt.Errorf("extract points: %w", err)
	}

	kinds := cfg.Sensors
	if kinds == nil {
		kinds = telemetry.SensorKinds
	}
	for _, k := range kinds {
		s, ok := summarizeSensor(f.Records, k)
		if !ok {
			continue
		}
		if s.Error != "" {
			log.Warn().Str("sensor", s.Kind).Str("error", s.Error).Msg("sensor not calibrated")
		}
		a.Sensors = append(a.Sensors, s)
	}

	log.Debug().
		Int("records", a.RecordCount).
		Int("sessions", len(a.Sessions)).
		Int("sensors", len(a.Sensors)).
		Str("start_time_source", a.StartTimeSource).
		Msg("analysis complete")

	a.Notes = BuildReport(a)
	return a, nil
}

func countMessages(f *decoder.File) []MessageCount {
	var out []MessageCount
	for global, recs := range f.Group() {
		out = append(out, MessageCount{Global: global, Name: decoder.MessageName(global), Count: len(recs)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Global < out[j].Global })
	return out
}

func summarizeTrack(f *decoder.File, points []telemetry.Point) *TrackSummary {
	t := &TrackSummary{Source: "gps_metadata", Points: len(points)}
	if len(f.Filter(decoder.MesgGpsMetadata, nil)) == 0 {
		t.Source = "record"
	}
	if len(points) == 0 {
		return t
	}

	alt := make([]float64, len(points))
	speed := make([]float64, len(points))
	for i, p := range points {
		alt[i] = p.Altitude
		speed[i] = p.Speed2D
		if i == 0 {
			continue
		}
		prev := points[i-1]
		t.DistanceMeters += haversine(prev.Latitude, prev.Longitude, p.Latitude, p.Longitude)
		if d := p.Altitude - prev.Altitude; d > 0 {
			t.ElevationGainM += d
		} else {
			t.ElevationLossM -= d
		}
	}
	t.MinAltitudeM = floats.Min(alt)
	t.MaxAltitudeM = floats.Max(alt)
	t.MaxSpeedMps = floats.Max(speed)
	t.AvgSpeedMps = stat.Mean(speed, nil)

	first, last := points[0], points[len(points)-1]
	t.StartTime, t.EndTime = first.Datetime, last.Datetime
	t.DurationSeconds = (last.Time - first.Time).Seconds()
	return t
}

// haversine is the great circle distance in metres between two positions
// in degrees.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// summarizeSensor reports false when the file has no data for k.
func summarizeSensor(records []decoder.DataRecord, k telemetry.SensorKind) (SensorSummary, bool) {
	s := SensorSummary{Kind: k.String()}
	batches, err := telemetry.CalibrateSensor(records, k, nil)
	if err != nil {
		var me *telemetry.MissingMessageError
		if errors.As(err, &me) && me.Global == k.Global() {
			return s, false
		}
		s.Error = err.Error()
		return s, true
	}

	var axes [3][]float64
	seen := make(map[int]bool)
	for _, b := range batches {
		s.Batches++
		s.Samples += b.Len()
		axes[0] = append(axes[0], b.CalibratedX...)
		axes[1] = append(axes[1], b.CalibratedY...)
		axes[2] = append(axes[2], b.CalibratedZ...)
		if !seen[b.Calibration] {
			seen[b.Calibration] = true
			s.Calibrations = append(s.Calibrations, b.Calibration)
		}
	}
	if s.Samples == 0 {
		return s, true
	}
	for i, v := range axes {
		mean, std := stat.MeanStdDev(v, nil)
		if len(v) < 2 {
			std = 0
		}
		s.Axes[i] = AxisStat{Min: floats.Min(v), Max: floats.Max(v), Mean: mean, StdDev: std}
	}
	return s, true
}
