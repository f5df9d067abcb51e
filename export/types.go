// Package export writes a decoded camera FIT file as a bundle of files: a
// manifest, one JSON line per data record, a msgpack copy of the records
// and position and sensor tables as parquet or CSV.
package export

import (
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/telemetry"
	"github.com/rs/zerolog"
)

const (
	// FormatVersion identifies the on-disk schema of an export bundle.
	FormatVersion = "fitcam_jsonl_v1"

	ManifestName = "manifest.json"
	RecordsName  = "records.jsonl"
	MsgpackName  = "records.msgpack"
	SourceName   = "source.fit"
)

// Table formats.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// Options controls export behavior.
type Options struct {
	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool

	// CopySourceFile writes a byte-for-byte copy of the source FIT file to the output directory.
	CopySourceFile bool

	// Format is the table format, parquet (default) or csv.
	Format string

	// Relaxed accepts a partially decoded file.
	Relaxed bool

	// HourOffset shifts absolute times, for devices recording local time as UTC.
	HourOffset int

	// DefaultTimeOnError uses the FIT epoch as start time when the file has
	// no timestamp correlation.
	DefaultTimeOnError bool

	Logger *zerolog.Logger
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// Result describes generated files.
type Result struct {
	OutputDir        string   `json:"output_dir"`
	ManifestPath     string   `json:"manifest_path"`
	RecordsPath      string   `json:"records_path"`
	MsgpackPath      string   `json:"msgpack_path"`
	TablePaths       []string `json:"table_paths,omitempty"`
	SourceCopyPath   string   `json:"source_copy_path,omitempty"`
	RecordCount      int      `json:"record_count"`
	DefinitionCount  int      `json:"definition_count"`
	DataMessageCount int      `json:"data_message_count"`
	SourceSHA256     string   `json:"source_sha256"`
	SourceSizeBytes  int64    `json:"source_size_bytes"`
	Partial          bool     `json:"partial"`
}

// Manifest captures export metadata and pointers to exported files.
type Manifest struct {
	FormatVersion     string                     `json:"format_version"`
	GeneratedAt       time.Time                  `json:"generated_at"`
	SourceFile        string                     `json:"source_file,omitempty"`
	SourceFileName    string                     `json:"source_file_name"`
	SourceSHA256      string                     `json:"source_sha256"`
	SourceSizeBytes   int64                      `json:"source_size_bytes"`
	Header            decoder.Header             `json:"header"`
	FileCRC           *uint16                    `json:"file_crc,omitempty"`
	RecordsPath       string                     `json:"records_path"`
	MsgpackPath       string                     `json:"msgpack_path"`
	RecordCount       int                        `json:"record_count"`
	DefinitionCount   int                        `json:"definition_count"`
	DataMessageCount  int                        `json:"data_message_count"`
	Partial           string                     `json:"partial,omitempty"`
	Warnings          []string                   `json:"warnings,omitempty"`
	StartTime         *time.Time                 `json:"start_time,omitempty"`
	Sessions          []telemetry.Session        `json:"sessions,omitempty"`
	DeviceIDs         []string                   `json:"device_ids,omitempty"`
	FieldDescriptions []decoder.FieldDescription `json:"field_descriptions,omitempty"`
	Tables            []TableInfo                `json:"tables,omitempty"`
	FileIdProjection  *FileIDInfo                `json:"file_id_projection,omitempty"`
	SchemaDescription SchemaDetails              `json:"schema_description"`
}

// TableInfo describes one exported table.
type TableInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Format string `json:"format"`
	Rows   int    `json:"rows"`
}

// SchemaDetails documents the record shape for downstream applications.
type SchemaDetails struct {
	RecordType string   `json:"record_type"`
	Notes      []string `json:"notes"`
}

// FileIDInfo is a convenience projection from the file_id message.
type FileIDInfo struct {
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	TimeCreated  string `json:"time_created,omitempty"`
	SerialNumber uint32 `json:"serial_number,omitempty"`
}

// RecordEnvelope is one JSONL line in records.jsonl.
// The stream preserves original FIT record order.
type RecordEnvelope struct {
	FormatVersion    string       `json:"format_version" codec:"format_version"`
	RecordIndex      int          `json:"record_index" codec:"record_index"`
	FileOffset       int64        `json:"file_offset" codec:"file_offset"`
	LocalMessageType uint8        `json:"local_message_type" codec:"local_message_type"`
	GlobalMessageNum uint16       `json:"global_message_num" codec:"global_message_num"`
	MessageName      string       `json:"message_name" codec:"message_name"`
	Fields           []FieldValue `json:"fields" codec:"fields"`
	DeveloperFields  []FieldValue `json:"developer_fields,omitempty" codec:"developer_fields,omitempty"`
	Warnings         []string     `json:"warnings,omitempty" codec:"warnings,omitempty"`
}

// FieldValue is one decoded field of a record envelope.
type FieldValue struct {
	FieldNumber      uint8           `json:"field_number" codec:"field_number"`
	Name             string          `json:"name,omitempty" codec:"name,omitempty"`
	Units            string          `json:"units,omitempty" codec:"units,omitempty"`
	Size             uint8           `json:"size" codec:"size"`
	BaseType         string          `json:"base_type" codec:"base_type"`
	DeveloperDataIdx *uint8          `json:"developer_data_index,omitempty" codec:"developer_data_index,omitempty"`
	Decoded          any             `json:"decoded" codec:"decoded"`
	IsArray          bool            `json:"is_array" codec:"is_array"`
	Invalid          bool            `json:"invalid" codec:"invalid"`
	Scaled           any             `json:"scaled,omitempty" codec:"scaled,omitempty"`
	Timestamp        *TimeProjection `json:"timestamp_projection,omitempty" codec:"timestamp_projection,omitempty"`
}

// TimeProjection is attached to timestamp fields.
type TimeProjection struct {
	Raw uint32 `json:"raw" codec:"raw"`
	UTC string `json:"utc" codec:"utc"`
}

// Bundle is an export held in memory, keyed by file name.
type Bundle struct {
	Manifest Manifest
	Records  []RecordEnvelope
	Files    map[string][]byte
}
