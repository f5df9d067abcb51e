// Package decoder reads FIT files: header, definition and data records,
// typed field values and in-stream developer field descriptions.
package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// File is the result of a decode.
type File struct {
	Header Header `json:"header"`
	// CRC is the trailing file checksum, read but not verified.
	CRC    uint16 `json:"crc"`
	HasCRC bool   `json:"has_crc"`

	Records     []DataRecord `json:"records"`
	Definitions int          `json:"definition_count"`
	// DataMessages counts every data record in the stream, filtered or not.
	DataMessages int `json:"data_message_count"`

	// Issues are record-local content problems; each record involved is
	// still present in Records.
	Issues  []*RecordError `json:"-"`
	Catalog *Catalog       `json:"-"`
}

type options struct {
	filter map[uint16]bool
	logger zerolog.Logger
}

// Option configures a decode.
type Option func(*options)

// WithFilter keeps only data records with the given global message numbers.
// Other records are skipped without decoding their fields. Field description
// and developer id records are still decoded for the catalog.
func WithFilter(globals ...uint16) Option {
	return func(o *options) {
		if o.filter == nil {
			o.filter = make(map[uint16]bool, len(globals))
		}
		for _, g := range globals {
			o.filter[g] = true
		}
	}
}

// WithLogger sets the logger for decode diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func (o *options) wanted(global uint16) bool {
	return o.filter == nil || o.filter[global]
}

// DecodeFile reads and decodes the file at path.
func DecodeFile(path string, opts ...Option) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fit file: %w", err)
	}
	return Decode(data, opts...)
}

// DecodeReader reads r to the end and decodes it.
func DecodeReader(r io.Reader, opts ...Option) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fit data: %w", err)
	}
	return Decode(data, opts...)
}

// Decode decodes a complete FIT file held in memory.
//
// On success err is nil. If decoding stopped early and at least one record
// was recovered, Decode returns the file together with a *PartialError;
// otherwise the file is nil. Use Relaxed to accept partial results.
func Decode(data []byte, opts ...Option) (*File, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("parse fit header: %w", err)
	}
	f := &File{Header: h, Catalog: NewCatalog()}

	start := int(h.Size)
	end := start + int(h.DataSize)
	var sizeErr error
	switch {
	case h.DataSize == 0:
		end = max(start, len(data)-2)
		sizeErr = ErrDataSizeZero
	case end > len(data):
		sizeErr = fmt.Errorf("%w: %d bytes declared, %d available", ErrDataSizeExceeded, h.DataSize, len(data)-start)
		end = len(data)
	default:
		if end+2 <= len(data) {
			f.CRC = binary.LittleEndian.Uint16(data[end : end+2])
			f.HasCRC = true
		}
	}
	if sizeErr != nil {
		o.logger.Warn().Err(sizeErr).Msg("decoding to end of available data")
	}

	d := &decodeState{
		opts: &o,
		file: f,
		c:    &cursor{data: data, pos: start, end: end},
	}
	stopErr := d.run()
	if stopErr == nil {
		stopErr = sizeErr
	}

	o.logger.Debug().
		Int("records", len(f.Records)).
		Int("definitions", f.Definitions).
		Int("data_messages", f.DataMessages).
		Int("issues", len(f.Issues)).
		Msg("decoded fit file")

	if stopErr == nil {
		return f, nil
	}
	if len(f.Records) == 0 {
		return nil, stopErr
	}
	return f, &PartialError{Err: stopErr, Records: len(f.Records)}
}

type decodeState struct {
	opts     *options
	file     *File
	c        *cursor
	registry Registry
}

func (d *decodeState) run() error {
	log := d.opts.logger
	for d.c.pos < d.c.end {
		offset := int64(d.c.pos)
		b, err := d.c.read(1)
		if err != nil {
			return &OffsetError{Offset: offset, Err: err}
		}
		mh, err := ParseMessageHeader(b[0])
		if err != nil {
			return &OffsetError{Offset: offset, Err: err}
		}

		if mh.Kind == KindDefinition {
			def, err := parseDefinition(d.c, mh)
			if err != nil {
				return &OffsetError{Offset: offset, Err: err}
			}
			if d.registry.Define(def) {
				log.Trace().Uint8("local", def.Local).Uint16("global", def.Global).Msg("local message redefined")
			}
			d.file.Definitions++
			continue
		}

		def, ok := d.registry.Lookup(mh.Local)
		if !ok {
			return &OffsetError{Offset: offset, Err: fmt.Errorf("%w: local message %d", ErrUnknownDefinition, mh.Local)}
		}
		index := d.file.DataMessages
		d.file.DataMessages++

		catalogMesg := def.Global == MesgFieldDescription || def.Global == MesgDeveloperDataID
		if !d.opts.wanted(def.Global) && !catalogMesg {
			if err := d.c.skip(def.DataSize()); err != nil {
				return &OffsetError{Offset: offset, Err: fmt.Errorf("skip data message: %w", err)}
			}
			continue
		}

		rec, issues, err := decodeData(d.c, def, d.file.Catalog)
		if err != nil {
			return &OffsetError{Offset: offset, Err: err}
		}
		rec.Index = index
		rec.Offset = offset
		for _, issue := range issues {
			d.issue(rec, issue)
		}
		if catalogMesg {
			if err := d.file.Catalog.fold(rec); err != nil {
				d.issue(rec, err)
			}
		}
		if d.opts.wanted(def.Global) {
			d.file.Records = append(d.file.Records, *rec)
		}
	}
	return nil
}

func (d *decodeState) issue(rec *DataRecord, err error) {
	re := &RecordError{Index: rec.Index, Offset: rec.Offset, Global: rec.Global, Err: err}
	d.file.Issues = append(d.file.Issues, re)
	d.opts.logger.Warn().Err(err).Int("index", rec.Index).Uint16("global", rec.Global).Msg("record decoded with errors")
}

// Range is an inclusive span of data record indices.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether index lies in r.
func (r Range) Contains(index int) bool {
	return index >= r.Start && index <= r.End
}

// Select returns the records whose index lies in r. A nil r selects all.
func Select(records []DataRecord, r *Range) []DataRecord {
	if r == nil {
		return records
	}
	var out []DataRecord
	for _, rec := range records {
		if r.Contains(rec.Index) {
			out = append(out, rec)
		}
	}
	return out
}

// Filter returns the records of one global message number, optionally
// limited to an index range.
func (f *File) Filter(global uint16, r *Range) []DataRecord {
	return FilterRecords(f.Records, global, r)
}

// FilterRecords is File.Filter over any record slice.
func FilterRecords(records []DataRecord, global uint16, r *Range) []DataRecord {
	var out []DataRecord
	for _, rec := range records {
		if rec.Global == global && (r == nil || r.Contains(rec.Index)) {
			out = append(out, rec)
		}
	}
	return out
}

// Group buckets records by global message number, keeping file order.
func (f *File) Group() map[uint16][]DataRecord {
	out := make(map[uint16][]DataRecord)
	for _, rec := range f.Records {
		out[rec.Global] = append(out[rec.Global], rec)
	}
	return out
}

// Fatal reports whether err from Decode left no usable file.
func Fatal(f *File, err error) bool {
	return err != nil && (f == nil || !errors.As(err, new(*PartialError)))
}
