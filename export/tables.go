package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/lucasjlepore/fitcam/telemetry"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type pointRow struct {
	RecordIndex int64   `parquet:"name=record_index, type=INT64"`
	TimeS       float64 `parquet:"name=time_s, type=DOUBLE"`
	TSUTCISO    string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Latitude    float64 `parquet:"name=latitude_deg, type=DOUBLE"`
	Longitude   float64 `parquet:"name=longitude_deg, type=DOUBLE"`
	AltitudeM   float64 `parquet:"name=altitude_m, type=DOUBLE"`
	HeadingDeg  float64 `parquet:"name=heading_deg, type=DOUBLE"`
	Speed2DMPS  float64 `parquet:"name=speed2d_mps, type=DOUBLE"`
	Speed3DMPS  float64 `parquet:"name=speed3d_mps, type=DOUBLE"`
}

var pointHeader = []string{
	"record_index", "time_s", "ts_utc_iso", "latitude_deg", "longitude_deg", "altitude_m", "heading_deg", "speed2d_mps", "speed3d_mps",
}

func pointRows(points []telemetry.Point) []pointRow {
	rows := make([]pointRow, len(points))
	for i, p := range points {
		rows[i] = pointRow{
			RecordIndex: int64(p.Index),
			TimeS:       p.Time.Seconds(),
			TSUTCISO:    isoTime(p.Datetime),
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			AltitudeM:   p.Altitude,
			HeadingDeg:  p.Heading,
			Speed2DMPS:  p.Speed2D,
			Speed3DMPS:  p.Speed3D,
		}
	}
	return rows
}

func (r pointRow) csv() []string {
	return []string{
		strconv.FormatInt(r.RecordIndex, 10),
		formatFloat(r.TimeS),
		r.TSUTCISO,
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		formatFloat(r.AltitudeM),
		formatFloat(r.HeadingDeg),
		formatFloat(r.Speed2DMPS),
		formatFloat(r.Speed3DMPS),
	}
}

// sensorRow is one calibrated sample.
type sensorRow struct {
	RecordIndex      int64   `parquet:"name=record_index, type=INT64"`
	Sample           int32   `parquet:"name=sample, type=INT32"`
	CalibrationIndex int64   `parquet:"name=calibration_index, type=INT64"`
	TimeS            float64 `parquet:"name=time_s, type=DOUBLE"`
	TSUTCISO         string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RawX             int32   `parquet:"name=raw_x, type=INT32"`
	RawY             int32   `parquet:"name=raw_y, type=INT32"`
	RawZ             int32   `parquet:"name=raw_z, type=INT32"`
	X                float64 `parquet:"name=x, type=DOUBLE"`
	Y                float64 `parquet:"name=y, type=DOUBLE"`
	Z                float64 `parquet:"name=z, type=DOUBLE"`
}

var sensorHeader = []string{
	"record_index", "sample", "calibration_index", "time_s", "ts_utc_iso", "raw_x", "raw_y", "raw_z", "x", "y", "z",
}

// sensorRows flattens calibrated batches to one row per sample. t0 is the
// start time; a zero t0 leaves ts_utc_iso empty.
func sensorRows(batches []telemetry.CalibratedBatch, t0 time.Time) []sensorRow {
	var rows []sensorRow
	for _, b := range batches {
		times := b.SampleTimes()
		for s := 0; s < b.Len(); s++ {
			row := sensorRow{
				RecordIndex:      int64(b.Index),
				Sample:           int32(s),
				CalibrationIndex: int64(b.Calibration),
				TimeS:            times[s].Seconds(),
				RawX:             int32(b.X[s]),
				RawY:             int32(b.Y[s]),
				RawZ:             int32(b.Z[s]),
				X:                b.CalibratedX[s],
				Y:                b.CalibratedY[s],
				Z:                b.CalibratedZ[s],
			}
			if !t0.IsZero() {
				row.TSUTCISO = isoTime(t0.Add(times[s]))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func (r sensorRow) csv() []string {
	return []string{
		strconv.FormatInt(r.RecordIndex, 10),
		strconv.Itoa(int(r.Sample)),
		strconv.FormatInt(r.CalibrationIndex, 10),
		formatFloat(r.TimeS),
		r.TSUTCISO,
		strconv.Itoa(int(r.RawX)),
		strconv.Itoa(int(r.RawY)),
		strconv.Itoa(int(r.RawZ)),
		formatFloat(r.X),
		formatFloat(r.Y),
		formatFloat(r.Z),
	}
}

type csvRow interface {
	csv() []string
}

func writeCSV[T csvRow](w io.Writer, header []string, rows []T) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.csv()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func marshalCSV[T csvRow](header []string, rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCSV(&buf, header, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeParquet[T any](fw source.ParquetFile, rows []T) error {
	pw, err := writer.NewParquetWriter(fw, new(T), 4)
	if err != nil {
		_ = fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func writeParquetFile[T any](path string, rows []T) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	return writeParquet(fw, rows)
}

func marshalParquet[T any](rows []T) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeParquet(fw, rows); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// table is one exported table before it is written;
// parquet writes to a local file when path is set, else to memory.
type table struct {
	name    string
	rows    int
	csv     func() ([]byte, error)
	parquet func(path string) ([]byte, error)
}

func newTable[T csvRow](name string, header []string, rows []T) table {
	return table{
		name: name,
		rows: len(rows),
		csv:  func() ([]byte, error) { return marshalCSV(header, rows) },
		parquet: func(path string) ([]byte, error) {
			if path != "" {
				return nil, writeParquetFile(path, rows)
			}
			return marshalParquet(rows)
		},
	}
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
