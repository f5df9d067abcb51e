package export

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
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
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

const correlatedUTC = 1_000_000

// buildCameraFIT is a short recording: correlation, one session holding a
// gps fix and one accelerometer batch, and the calibration for it.
func buildCameraFIT(t *testing.T) []byte {
	t.Helper()

	b := fitbuild.New()
	b.Message(0, decoder.MesgTimestampCorrelation,
		fitbuild.Uint32Value(decoder.FieldTimestamp, correlatedUTC),
		fitbuild.Uint32Value(1, 0),
		fitbuild.Uint16Value(4, 0),
		fitbuild.Uint16Value(5, 0),
	)
	camera := func(ts uint32, typ fit.CameraEventType) {
		b.Message(1, decoder.MesgCameraEvent,
			fitbuild.Uint32Value(decoder.FieldTimestamp, ts),
			fitbuild.Uint16Value(0, 0),
			fitbuild.EnumValue(1, uint8(typ)),
			fitbuild.StringValue(2, "clip-1", 16),
		)
	}
	camera(1, fit.CameraEventTypeVideoStart)
	b.Message(2, decoder.MesgGpsMetadata,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 1),
		fitbuild.Uint16Value(0, 0),
		fitbuild.Sint32Value(1, 1<<30),
		fitbuild.Sint32Value(2, 1<<29),
		fitbuild.Uint32Value(3, 3000),
		fitbuild.Uint32Value(4, 2500),
	)
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
		fitbuild.Uint32Value(decoder.FieldTimestamp, 2),
		fitbuild.Uint16Value(0, 0),
		fitbuild.Uint16Value(1, 0, 10, 20),
		fitbuild.Uint16Value(2, 1, 2, 3),
		fitbuild.Uint16Value(3, 4, 5, 6),
		fitbuild.Uint16Value(4, 7, 8, 9),
	)
	camera(3, fit.CameraEventTypeVideoEnd)
	return b.Bytes()
}

func writeSample(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.fit")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write sample fit: %v", err)
	}
	return path
}

func TestExportFileWritesBundle(t *testing.T) {
	inputPath := writeSample(t, buildCameraFIT(t))
	outDir := filepath.Join(t.TempDir(), "export")

	result, err := ExportFile(inputPath, outDir, Options{CopySourceFile: true})
	if err != nil {
		t.Fatalf("ExportFile error: %v", err)
	}
	if result.RecordCount != 6 || result.Partial {
		t.Fatalf("unexpected result: %+v", result)
	}
	for _, p := range append([]string{result.ManifestPath, result.RecordsPath, result.MsgpackPath, result.SourceCopyPath}, result.TablePaths...) {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing output: %v", err)
		}
	}

	manifestData, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.FormatVersion != FormatVersion {
		t.Fatalf("unexpected format version: %q", manifest.FormatVersion)
	}
	wantSessions := []telemetry.Session{{IDs: []string{"clip-1"}, Start: 1, End: 5}}
	if diff := cmp.Diff(wantSessions, manifest.Sessions); diff != "" {
		t.Fatalf("sessions (-want +got):\n%s", diff)
	}
	wantTables := []TableInfo{
		{Name: "points", Path: "points.parquet", Format: FormatParquet, Rows: 1},
		{Name: "accelerometer", Path: "accelerometer.parquet", Format: FormatParquet, Rows: 3},
	}
	if diff := cmp.Diff(wantTables, manifest.Tables); diff != "" {
		t.Fatalf("tables (-want +got):\n%s", diff)
	}
	wantStart := decoder.Epoch.Add(correlatedUTC * time.Second)
	if manifest.StartTime == nil || !manifest.StartTime.Equal(wantStart) {
		t.Fatalf("start time = %v, want %v", manifest.StartTime, wantStart)
	}

	recordsData, err := os.ReadFile(result.RecordsPath)
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(recordsData)), "\n")
	if len(lines) != result.RecordCount {
		t.Fatalf("records line count mismatch: %d != %d", len(lines), result.RecordCount)
	}

	packed, err := os.ReadFile(result.MsgpackPath)
	if err != nil {
		t.Fatalf("read msgpack: %v", err)
	}
	envelopes, err := UnmarshalMsgpack(packed)
	if err != nil {
		t.Fatalf("decode msgpack: %v", err)
	}
	var globals []uint16
	for _, env := range envelopes {
		globals = append(globals, env.GlobalMessageNum)
	}
	wantGlobals := []uint16{
		decoder.MesgTimestampCorrelation, decoder.MesgCameraEvent, decoder.MesgGpsMetadata,
		decoder.MesgThreeDSensorCalibration, decoder.MesgAccelerometerData, decoder.MesgCameraEvent,
	}
	if diff := cmp.Diff(wantGlobals, globals); diff != "" {
		t.Fatalf("msgpack globals (-want +got):\n%s", diff)
	}

	fr, err := local.NewLocalFileReader(filepath.Join(outDir, "accelerometer.parquet"))
	if err != nil {
		t.Fatalf("open parquet: %v", err)
	}
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(sensorRow), 1)
	if err != nil {
		t.Fatalf("parquet reader: %v", err)
	}
	defer pr.ReadStop()
	if n := pr.GetNumRows(); n != 3 {
		t.Fatalf("parquet rows = %d, want 3", n)
	}
}

func TestExportBytesCSV(t *testing.T) {
	bundle, err := ExportBytes("sample.fit", buildCameraFIT(t), Options{Format: "CSV", HourOffset: 1})
	if err != nil {
		t.Fatalf("ExportBytes error: %v", err)
	}
	for _, name := range []string{ManifestName, RecordsName, MsgpackName, "points.csv", "accelerometer.csv"} {
		if len(bundle.Files[name]) == 0 {
			t.Fatalf("bundle is missing %s", name)
		}
	}
	if _, ok := bundle.Files[SourceName]; ok {
		t.Fatal("source copied without CopySourceFile")
	}

	rows, err := csv.NewReader(bytes.NewReader(bundle.Files["accelerometer.csv"])).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("csv rows = %d, want header and 3 samples", len(rows))
	}
	if diff := cmp.Diff(sensorHeader, rows[0]); diff != "" {
		t.Fatalf("csv header (-want +got):\n%s", diff)
	}
	// third sample: 2s + 20ms after device zero, one hour shift
	want := decoder.Epoch.Add(correlatedUTC*time.Second + time.Hour + 2020*time.Millisecond)
	if got := rows[3][4]; got != isoTime(want) {
		t.Fatalf("sample time = %q, want %q", got, isoTime(want))
	}
	if got := rows[3][8:]; !cmp.Equal(got, []string{"3", "6", "9"}) {
		t.Fatalf("calibrated sample = %v", got)
	}

	points, err := csv.NewReader(bytes.NewReader(bundle.Files["points.csv"])).ReadAll()
	if err != nil {
		t.Fatalf("read points csv: %v", err)
	}
	if got := points[1][3:6]; !cmp.Equal(got, []string{"90", "45", "100"}) {
		t.Fatalf("point = %v", got)
	}
}

func TestExportRelaxed(t *testing.T) {
	data := buildCameraFIT(t)
	truncated := data[:len(data)-6]

	if _, err := ExportBytes("cut.fit", truncated, Options{}); !decoder.IsPartial(err) {
		t.Fatalf("strict export error = %v, want partial", err)
	}
	bundle, err := ExportBytes("cut.fit", truncated, Options{Relaxed: true})
	if err != nil {
		t.Fatalf("relaxed export error: %v", err)
	}
	if bundle.Manifest.Partial == "" || bundle.Manifest.RecordCount != 5 {
		t.Fatalf("manifest = partial %q, %d records", bundle.Manifest.Partial, bundle.Manifest.RecordCount)
	}
	// the session end was cut off
	if len(bundle.Manifest.Sessions) != 0 {
		t.Fatalf("sessions = %+v, want none", bundle.Manifest.Sessions)
	}
}

func TestExportRejectsNonEmptyDir(t *testing.T) {
	inputPath := writeSample(t, buildCameraFIT(t))
	outDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outDir, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	if _, err := ExportFile(inputPath, outDir, Options{}); err == nil {
		t.Fatal("expected error for non-empty output directory")
	}
	if _, err := ExportFile(inputPath, outDir, Options{Overwrite: true, Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestEnvelopes(t *testing.T) {
	f, err := decoder.Decode(buildCameraFIT(t))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	decoder.Augment(f.Records)
	envs := Envelopes(f)

	gps := envs[2]
	if gps.MessageName != decoder.MessageName(decoder.MesgGpsMetadata) {
		t.Fatalf("message name = %q", gps.MessageName)
	}
	ts := gps.Fields[0]
	if ts.Timestamp == nil || ts.Timestamp.Raw != 1 || ts.Decoded != float64(1) {
		t.Fatalf("timestamp field = %+v", ts)
	}
	uuid := envs[1].Fields[3]
	if uuid.Decoded != "clip-1" || uuid.IsArray {
		t.Fatalf("uuid field = %+v", uuid)
	}
	offsets := envs[4].Fields[2]
	if !offsets.IsArray || !cmp.Equal(offsets.Decoded, []float64{0, 10, 20}) {
		t.Fatalf("sample_time_offset field = %+v", offsets)
	}
}

func TestExportNonFiniteFloats(t *testing.T) {
	b := fitbuild.New()
	b.Message(0, 999,
		fitbuild.Value{Num: 1, BaseType: fitbuild.Float32,
			Data: fitbuild.U32(binary.LittleEndian, math.Float32bits(1.5), 0xFFFFFFFF)},
		fitbuild.Value{Num: 2, BaseType: fitbuild.Float32,
			Data: fitbuild.U32(binary.LittleEndian, 0x7F800000)},
	)

	bundle, err := ExportBytes("floats.fit", b.Bytes(), Options{Format: FormatCSV})
	if err != nil {
		t.Fatalf("ExportBytes error: %v", err)
	}
	var env struct {
		Fields []struct {
			Decoded any  `json:"decoded"`
			Invalid bool `json:"invalid"`
		} `json:"fields"`
	}
	line := bytes.TrimSpace(bundle.Files[RecordsName])
	if err := json.Unmarshal(line, &env); err != nil {
		t.Fatalf("decode records.jsonl: %v\n%s", err, line)
	}
	if len(env.Fields) != 2 {
		t.Fatalf("fields = %+v", env.Fields)
	}
	if diff := cmp.Diff([]any{1.5, nil}, env.Fields[0].Decoded); diff != "" {
		t.Fatalf("partly invalid array (-want +got):\n%s", diff)
	}
	if env.Fields[1].Decoded != nil || !env.Fields[1].Invalid {
		t.Fatalf("infinite scalar = %+v", env.Fields[1])
	}
	if _, err := MarshalMsgpack(bundle.Records); err != nil {
		t.Fatalf("MarshalMsgpack error: %v", err)
	}
}

func TestFieldValueScaledNonFinite(t *testing.T) {
	scale := 10.0
	fv := fieldValue(decoder.Field{
		Number:   4,
		BaseType: decoder.BaseFloat32,
		Value:    decoder.Float32{25, float32(math.NaN())},
		Scale:    &scale,
	})
	if diff := cmp.Diff([]any{2.5, nil}, fv.Scaled); diff != "" {
		t.Fatalf("scaled (-want +got):\n%s", diff)
	}
	if _, err := json.Marshal(fv); err != nil {
		t.Fatalf("marshal field value: %v", err)
	}
}
