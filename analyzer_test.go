package fitcam

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/internal/fitbuild"
	"github.com/lucasjlepore/fitcam/telemetry"
	"github.com/tormoder/fit"
)

type sample struct {
	correlation bool
	gps         [][2]int32
}

// buildSample writes: optional correlation, a session start, gps fixes
// one second apart, a calibration and an accelerometer batch, and the
// session end.
func buildSample(t *testing.T, s sample) *fitbuild.Builder {
	t.Helper()

	b := fitbuild.New()
	if s.correlation {
		b.Message(0, decoder.MesgTimestampCorrelation,
			fitbuild.Uint32Value(decoder.FieldTimestamp, 500),
			fitbuild.Uint32Value(1, 0),
		)
	}
	camera := func(ts uint32, typ fit.CameraEventType) {
		b.Message(1, decoder.MesgCameraEvent,
			fitbuild.Uint32Value(decoder.FieldTimestamp, ts),
			fitbuild.Uint16Value(0, 0),
			fitbuild.EnumValue(1, uint8(typ)),
			fitbuild.StringValue(2, "clip-1", 16),
		)
	}
	camera(10, fit.CameraEventTypeVideoStart)
	for i, pos := range s.gps {
		b.Message(2, decoder.MesgGpsMetadata,
			fitbuild.Uint32Value(decoder.FieldTimestamp, uint32(10+i)),
			fitbuild.Uint16Value(0, 0),
			fitbuild.Sint32Value(1, pos[0]),
			fitbuild.Sint32Value(2, pos[1]),
			fitbuild.Uint32Value(3, uint32(2500+5*i)),
			fitbuild.Uint32Value(4, uint32(1000*i)),
		)
	}
	b.Message(3, decoder.MesgThreeDSensorCalibration,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 0),
		fitbuild.EnumValue(0, uint8(fit.SensorTypeAccelerometer)),
		fitbuild.Uint32Value(1, 1),
		fitbuild.Uint32Value(2, 1),
		fitbuild.Uint32Value(3, 0),
		fitbuild.Sint32Value(4, 0, 0, 0),
		fitbuild.Sint32Value(5, 65535, 0, 0, 0, 65535, 0, 0, 0, 65535),
	)
	b.Message(4, decoder.MesgAccelerometerData,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 11),
		fitbuild.Uint16Value(0, 0),
		fitbuild.Uint16Value(1, 0, 10, 20),
		fitbuild.Uint16Value(2, 1, 2, 3),
		fitbuild.Uint16Value(3, 5, 5, 5),
		fitbuild.Uint16Value(4, 7, 8, 9),
	)
	camera(40, fit.CameraEventTypeVideoEnd)
	return b
}

func TestAnalyzeFile(t *testing.T) {
	b := buildSample(t, sample{correlation: true, gps: [][2]int32{{0, 0}, {0, 1 << 24}}})
	path := filepath.Join(t.TempDir(), "cam.fit")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write sample fit: %v", err)
	}

	a, err := AnalyzeFile(path, Config{})
	if err != nil {
		t.Fatalf("AnalyzeFile error: %v", err)
	}
	if a.FilePath != path || a.RecordCount != 7 {
		t.Fatalf("unexpected analysis: path %q, %d records", a.FilePath, a.RecordCount)
	}
	if a.StartTimeSource != StartFromCorrelation {
		t.Fatalf("start time source = %q", a.StartTimeSource)
	}
	t0 := decoder.Epoch.Add(500 * time.Second)
	if !a.StartTime.Equal(t0) {
		t.Fatalf("start time = %v, want %v", a.StartTime, t0)
	}

	wantSession := SessionSummary{
		ID:              "clip-1",
		IDs:             []string{"clip-1"},
		Range:           decoder.Range{Start: 1, End: 6},
		StartTime:       t0.Add(10 * time.Second),
		EndTime:         t0.Add(40 * time.Second),
		DurationSeconds: 30,
		Points:          2,
		SensorSamples:   map[string]int{"accelerometer": 3},
	}
	if diff := cmp.Diff([]SessionSummary{wantSession}, a.Sessions); diff != "" {
		t.Fatalf("sessions (-want +got):\n%s", diff)
	}

	if a.Track == nil || a.Track.Source != "gps_metadata" || a.Track.Points != 2 {
		t.Fatalf("track = %+v", a.Track)
	}
	wantDistance := earthRadiusMeters * (180.0 / 128) * math.Pi / 180
	if math.Abs(a.Track.DistanceMeters-wantDistance) > 1e-6 {
		t.Fatalf("distance = %v, want %v", a.Track.DistanceMeters, wantDistance)
	}
	if a.Track.ElevationGainM != 1 || a.Track.MaxSpeedMps != 1 || a.Track.AvgSpeedMps != 0.5 {
		t.Fatalf("track = %+v", a.Track)
	}

	if len(a.Sensors) != 1 {
		t.Fatalf("sensors = %+v", a.Sensors)
	}
	acc := a.Sensors[0]
	if acc.Kind != "accelerometer" || acc.Samples != 3 || !cmp.Equal(acc.Calibrations, []int{4}) {
		t.Fatalf("accelerometer = %+v", acc)
	}
	wantX := AxisStat{Min: 1, Max: 3, Mean: 2, StdDev: 1}
	if diff := cmp.Diff(wantX, acc.Axes[0]); diff != "" {
		t.Fatalf("x axis (-want +got):\n%s", diff)
	}
	if acc.Axes[1].StdDev != 0 || acc.Axes[1].Mean != 5 {
		t.Fatalf("y axis = %+v", acc.Axes[1])
	}

	for _, want := range []string{"clip-1", "accelerometer: 3 samples", "Start: 1989-12-31 00:08:20"} {
		if !strings.Contains(a.Notes, want) {
			t.Fatalf("report missing %q:\n%s", want, a.Notes)
		}
	}
}

func TestAnalyzeStartTimeFallback(t *testing.T) {
	data := buildSample(t, sample{}).Bytes()

	a, err := AnalyzeBytes(data, Config{})
	if err != nil {
		t.Fatalf("AnalyzeBytes error: %v", err)
	}
	if a.StartTimeSource != StartUnavailable || !a.StartTime.IsZero() {
		t.Fatalf("start = %v (%s)", a.StartTime, a.StartTimeSource)
	}
	if !a.Sessions[0].StartTime.IsZero() {
		t.Fatalf("session start = %v, want unset", a.Sessions[0].StartTime)
	}
	if a.Track != nil {
		t.Fatalf("track without positions = %+v", a.Track)
	}

	a, err = AnalyzeBytes(data, Config{DefaultTimeOnError: true, HourOffset: 3})
	if err != nil {
		t.Fatalf("AnalyzeBytes error: %v", err)
	}
	// the fallback is the raw epoch; the hour offset only shifts correlated times
	if want := decoder.Epoch; a.StartTimeSource != StartFromDefault || !a.StartTime.Equal(want) {
		t.Fatalf("start = %v (%s), want %v", a.StartTime, a.StartTimeSource, want)
	}
}

func TestAnalyzeRelaxed(t *testing.T) {
	data := buildSample(t, sample{correlation: true}).Bytes()
	truncated := data[:len(data)-5]

	if _, err := AnalyzeBytes(truncated, Config{}); !decoder.IsPartial(err) {
		t.Fatalf("strict error = %v, want partial", err)
	}
	a, err := AnalyzeBytes(truncated, Config{Relaxed: true, Sensors: []telemetry.SensorKind{telemetry.Gyroscope}})
	if err != nil {
		t.Fatalf("relaxed error: %v", err)
	}
	if a.Partial == "" || len(a.Sessions) != 0 || len(a.Sensors) != 0 {
		t.Fatalf("analysis = partial %q, sessions %v, sensors %v", a.Partial, a.Sessions, a.Sensors)
	}
	if !strings.Contains(a.Notes, "Partial read") {
		t.Fatalf("report does not mention partial read:\n%s", a.Notes)
	}
}

func TestSensorWithoutCalibration(t *testing.T) {
	b := fitbuild.New()
	b.Message(0, decoder.MesgGyroscopeData,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 1),
		fitbuild.Uint16Value(0, 0),
		fitbuild.Uint16Value(1, 0),
		fitbuild.Uint16Value(2, 1),
		fitbuild.Uint16Value(3, 1),
		fitbuild.Uint16Value(4, 1),
	)
	a, err := AnalyzeBytes(b.Bytes(), Config{})
	if err != nil {
		t.Fatalf("AnalyzeBytes error: %v", err)
	}
	if len(a.Sensors) != 1 || a.Sensors[0].Kind != "gyroscope" || a.Sensors[0].Error == "" {
		t.Fatalf("sensors = %+v", a.Sensors)
	}
}

func TestHaversine(t *testing.T) {
	// a quarter of a meridian
	got := haversine(0, 0, 90, 0)
	want := earthRadiusMeters * math.Pi / 2
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("haversine = %v, want %v", got, want)
	}
	if d := haversine(45, 7, 45, 7); d != 0 {
		t.Fatalf("distance to self = %v", d)
	}
}

func TestAnalyzeReportsSkippedRecords(t *testing.T) {
	b := fitbuild.New()
	b.Message(0, decoder.MesgRecord,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 100),
		fitbuild.Sint32Value(0, 0),
		fitbuild.Sint32Value(1, 0),
		fitbuild.Uint32Value(78, 2500),
	)
	b.Message(1, decoder.MesgRecord,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 101),
		fitbuild.Uint8Value(3, 120),
	)

	a, err := AnalyzeBytes(b.Bytes(), Config{})
	if err != nil {
		t.Fatalf("AnalyzeBytes error: %v", err)
	}
	if a.Track == nil || a.Track.Source != "record" || a.Track.Points != 1 {
		t.Fatalf("track = %+v", a.Track)
	}
	if len(a.SkippedPoints) != 1 || !strings.Contains(a.SkippedPoints[0], "record 1") {
		t.Fatalf("skipped points = %v", a.SkippedPoints)
	}
	if !strings.Contains(a.Notes, "1 record(s) without a position skipped") {
		t.Fatalf("report does not mention skipped records:\n%s", a.Notes)
	}
}

func TestAnalyzeInvalidVelocity(t *testing.T) {
	b := fitbuild.New()
	b.Message(0, decoder.MesgGpsMetadata,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 10),
		fitbuild.Uint16Value(0, 0),
		fitbuild.Sint32Value(1, 0),
		fitbuild.Sint32Value(2, 0),
		fitbuild.Uint32Value(3, 2500),
		fitbuild.Uint32Value(4, 1000),
		fitbuild.Uint16Value(5, 0xFFFF),
		fitbuild.Sint16Value(7, 0x7FFF, 0x7FFF, 0x7FFF),
	)
	a, err := AnalyzeBytes(b.Bytes(), Config{})
	if err != nil {
		t.Fatalf("AnalyzeBytes error: %v", err)
	}
	if a.Track == nil || a.Track.Points != 1 || a.Track.MaxSpeedMps != 1 {
		t.Fatalf("track = %+v", a.Track)
	}
}
