package export

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/telemetry"
	"github.com/tormoder/fit"
)

// built is everything an export writes, before it is written.
type built struct {
	manifest  Manifest
	envelopes []RecordEnvelope
	tables    []table
	partial   bool
}

func tableFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatParquet
	}
	if format != FormatParquet && format != FormatCSV {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

func build(data []byte, sourcePath string, opts Options) (*built, error) {
	log := opts.logger()
	format, err := tableFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	f, derr := decoder.Decode(data, decoder.WithLogger(log))
	if derr != nil && !opts.Relaxed {
		return nil, fmt.Errorf("decode fit data: %w", derr)
	}
	f, err = decoder.Relaxed(f, derr)
	if err != nil {
		return nil, fmt.Errorf("decode fit data: %w", err)
	}
	var partial string
	if derr != nil {
		partial = derr.Error()
		log.Warn().Err(derr).Int("records", len(f.Records)).Msg("exporting partial file")
	}
	decoder.Augment(f.Records)

	sum := sha256.Sum256(data)
	b := &built{
		envelopes: Envelopes(f),
		partial:   partial != "",
	}
	m := Manifest{
		FormatVersion:     FormatVersion,
		GeneratedAt:       time.Now().UTC(),
		SourceFile:        sourcePath,
		SourceFileName:    filepath.Base(sourcePath),
		SourceSHA256:      hex.EncodeToString(sum[:]),
		SourceSizeBytes:   int64(len(data)),
		Header:            f.Header,
		RecordsPath:       RecordsName,
		MsgpackPath:       MsgpackName,
		RecordCount:       len(f.Records),
		DefinitionCount:   f.Definitions,
		DataMessageCount:  f.DataMessages,
		Partial:           partial,
		FieldDescriptions: f.Catalog.Descriptions(),
		FileIdProjection:  projectFileID(data),
		SchemaDescription: SchemaDetails{
			RecordType: "JSONL line-per-FIT-data-record preserving original order and byte offsets",
			Notes: []string{
				"record_index counts data records in file order and matches session ranges.",
				"Fields whose elements all held the invalid sentinel are exported with invalid=true and decoded=null.",
				"Non-finite float elements export as null.",
				"Developer fields carry the name and units of their in-stream field description.",
				"Point and sensor tables use degrees, metres, metres per second and calibrated sensor units.",
			},
		},
	}
	if sourcePath == "" {
		m.SourceFileName = ""
	}
	if f.HasCRC {
		crc := f.CRC
		m.FileCRC = &crc
	}
	for _, issue := range f.Issues {
		m.Warnings = append(m.Warnings, issue.Error())
	}

	var t0 time.Time
	switch start, err := telemetry.StartTime(f.Records, opts.HourOffset, opts.DefaultTimeOnError); {
	case err == nil:
		t0 = start
		m.StartTime = &start
	case errors.Is(err, telemetry.ErrNoMessages):
		m.Warnings = append(m.Warnings, "no timestamp_correlation: absolute times unavailable")
	default:
		return nil, fmt.Errorf("correlate time: %w", err)
	}

	events, err := telemetry.CameraEvents(f.Records)
	switch {
	case err == nil:
		m.Sessions = telemetry.Sessions(events)
		m.DeviceIDs = telemetry.DeviceIDs(events)
	case !errors.Is(err, telemetry.ErrNoMessages):
		m.Warnings = append(m.Warnings, fmt.Sprintf("sessions not indexed: %v", err))
	}

	points, skipped, err := telemetry.Points(f.Records, nil)
	for _, serr := range skipped {
		m.Warnings = append(m.Warnings, fmt.Sprintf("point skipped: %v", serr))
	}
	switch {
	case err == nil:
		if !t0.IsZero() {
			telemetry.SetStartTime(points, t0)
		}
		b.tables = append(b.tables, newTable("points", pointHeader, pointRows(points)))
	case !errors.Is(err, telemetry.ErrNoMessages):
		m.Warnings = append(m.Warnings, fmt.Sprintf("points not exported: %v", err))
	}

	for _, k := range telemetry.SensorKinds {
		batches, err := telemetry.CalibrateSensor(f.Records, k, nil)
		if errors.Is(err, telemetry.ErrNoMessages) {
			continue
		}
		if err != nil {
			m.Warnings = append(m.Warnings, fmt.Sprintf("%s not exported: %v", k, err))
			log.Warn().Err(err).Stringer("sensor", k).Msg("sensor not exported")
			continue
		}
		b.tables = append(b.tables, newTable(k.String(), sensorHeader, sensorRows(batches, t0)))
	}

	for _, t := range b.tables {
		m.Tables = append(m.Tables, TableInfo{Name: t.name, Path: t.name + "." + format, Format: format, Rows: t.rows})
	}
	b.manifest = m
	return b, nil
}

// ExportFile decodes a FIT file and writes an export bundle to outputDir.
// Output files:
//   - manifest.json
//   - records.jsonl
//   - records.msgpack
//   - points and one table per calibrated sensor, as parquet or csv
//   - source.fit (optional)
func ExportFile(inputPath, outputDir string, opts Options) (*Result, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read fit file: %w", err)
	}
	b, err := build(data, inputPath, opts)
	if err != nil {
		return nil, err
	}

	if err := ensureOutputDir(outputDir, opts.Overwrite); err != nil {
		return nil, err
	}

	recordsPath := filepath.Join(outputDir, RecordsName)
	if err := writeJSONL(recordsPath, b.envelopes); err != nil {
		return nil, fmt.Errorf("write %s: %w", RecordsName, err)
	}

	msgpackPath := filepath.Join(outputDir, MsgpackName)
	packed, err := MarshalMsgpack(b.envelopes)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", MsgpackName, err)
	}
	if err := os.WriteFile(msgpackPath, packed, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", MsgpackName, err)
	}

	var tablePaths []string
	for i, t := range b.tables {
		info := b.manifest.Tables[i]
		path := filepath.Join(outputDir, info.Path)
		if err := writeTable(t, info.Format, path); err != nil {
			return nil, fmt.Errorf("write %s: %w", info.Path, err)
		}
		tablePaths = append(tablePaths, path)
	}

	manifestPath := filepath.Join(outputDir, ManifestName)
	if err := writeJSON(manifestPath, b.manifest); err != nil {
		return nil, fmt.Errorf("write %s: %w", ManifestName, err)
	}

	sourceCopyPath := ""
	if opts.CopySourceFile {
		sourceCopyPath = filepath.Join(outputDir, SourceName)
		if err := copyFile(inputPath, sourceCopyPath); err != nil {
			return nil, fmt.Errorf("copy source fit file: %w", err)
		}
	}

	return &Result{
		OutputDir:        outputDir,
		ManifestPath:     manifestPath,
		RecordsPath:      recordsPath,
		MsgpackPath:      msgpackPath,
		TablePaths:       tablePaths,
		SourceCopyPath:   sourceCopyPath,
		RecordCount:      b.manifest.RecordCount,
		DefinitionCount:  b.manifest.DefinitionCount,
		DataMessageCount: b.manifest.DataMessageCount,
		SourceSHA256:     b.manifest.SourceSHA256,
		SourceSizeBytes:  b.manifest.SourceSizeBytes,
		Partial:          b.partial,
	}, nil
}

// ExportBytes builds the same bundle as ExportFile in memory. name is
// recorded as the source file name.
func ExportBytes(name string, data []byte, opts Options) (*Bundle, error) {
	b, err := build(data, name, opts)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, len(b.tables)+4)
	if files[RecordsName], err = MarshalJSONL(b.envelopes); err != nil {
		return nil, fmt.Errorf("encode %s: %w", RecordsName, err)
	}
	if files[MsgpackName], err = MarshalMsgpack(b.envelopes); err != nil {
		return nil, fmt.Errorf("encode %s: %w", MsgpackName, err)
	}
	for i, t := range b.tables {
		info := b.manifest.Tables[i]
		var out []byte
		if info.Format == FormatCSV {
			out, err = t.csv()
		} else {
			out, err = t.parquet("")
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", info.Path, err)
		}
		files[info.Path] = out
	}
	if files[ManifestName], err = MarshalJSON(b.manifest); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ManifestName, err)
	}
	if opts.CopySourceFile {
		files[SourceName] = append([]byte(nil), data...)
	}
	return &Bundle{Manifest: b.manifest, Records: b.envelopes, Files: files}, nil
}

func writeTable(t table, format, path string) error {
	if format == FormatParquet {
		_, err := t.parquet(path)
		return err
	}
	out, err := t.csv()
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL(path string, records []RecordEnvelope) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// projectFileID reads the file_id message with the profile decoder. Camera
// files it cannot read get no projection.
func projectFileID(data []byte) *FileIDInfo {
	_, id, err := fit.DecodeHeaderAndFileID(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	info := &FileIDInfo{
		Type:         fmt.Sprint(id.Type),
		Manufacturer: fmt.Sprint(id.Manufacturer),
		Product:      fmt.Sprint(id.GetProduct()),
		SerialNumber: id.SerialNumber,
	}
	if !id.TimeCreated.IsZero() {
		info.TimeCreated = id.TimeCreated.UTC().Format(time.RFC3339)
	}
	return info
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
