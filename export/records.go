package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"time"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/ugorji/go/codec"
)

// Envelopes converts decoded records to export envelopes. Record-local
// issues are attached to the record they concern as warnings.
func Envelopes(f *decoder.File) []RecordEnvelope {
	warnings := make(map[int][]string, len(f.Issues))
	for _, issue := range f.Issues {
		warnings[issue.Index] = append(warnings[issue.Index], issue.Err.Error())
	}

	out := make([]RecordEnvelope, len(f.Records))
	for i := range f.Records {
		rec := &f.Records[i]
		env := RecordEnvelope{
			FormatVersion:    FormatVersion,
			RecordIndex:      rec.Index,
			FileOffset:       rec.Offset,
			LocalMessageType: rec.Local,
			GlobalMessageNum: rec.Global,
			MessageName:      rec.Name,
			Fields:           make([]FieldValue, 0, len(rec.Fields)),
			Warnings:         warnings[rec.Index],
		}
		if env.MessageName == "" {
			env.MessageName = decoder.MessageName(rec.Global)
		}
		for _, field := range rec.Fields {
			env.Fields = append(env.Fields, fieldValue(field))
		}
		for _, field := range rec.DeveloperFields {
			env.DeveloperFields = append(env.DeveloperFields, fieldValue(field))
		}
		out[i] = env
	}
	return out
}

func fieldValue(f decoder.Field) FieldValue {
	fv := FieldValue{
		FieldNumber: f.Number,
		Name:        f.Name,
		Units:       f.Units,
		Size:        f.Size,
		BaseType:    f.BaseType.String(),
		Invalid:     f.Value == nil || f.Value.Len() == 0,
	}
	if f.Developer {
		idx := f.DeveloperIndex
		fv.DeveloperDataIdx = &idx
	}
	fv.Decoded, fv.IsArray = decodedValue(f.Value)
	if fv.Decoded == nil {
		fv.Invalid = true
	}
	if f.Scale != nil || f.Offset != nil {
		if vals, ok := f.Scaled(); ok && len(vals) > 0 {
			fv.Scaled = finite(vals)
		}
	}
	if !f.Developer && f.Number == decoder.FieldTimestamp {
		if ts, ok := f.Value.(decoder.Uint32); ok && len(ts) == 1 {
			fv.Timestamp = &TimeProjection{
				Raw: ts[0],
				UTC: decoder.TimestampToTime(ts[0]).Format(time.RFC3339),
			}
		}
	}
	return fv
}

// decodedValue renders a value as a scalar when it has one element and as
// a list otherwise. Byte blobs become lists of ints. Non-finite floats
// render as nil.
func decodedValue(v decoder.Value) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case decoder.String:
		return string(x), false
	case decoder.Bytes:
		ints := make([]int, len(x))
		for i, b := range x {
			ints[i] = int(b)
		}
		return ints, true
	}
	vals, ok := decoder.Float64s(v)
	if !ok {
		return nil, false
	}
	switch len(vals) {
	case 0:
		return nil, false
	case 1:
		if isFinite(vals[0]) {
			return vals[0], false
		}
		return nil, false
	}
	return finite(vals), true
}

// finite returns vals unchanged when every element is a finite number.
// Otherwise NaN and infinite elements, such as the invalid sentinel inside
// a partly valid float array, become nil so that JSON can carry them.
func finite(vals []float64) any {
	i := 0
	for i < len(vals) && isFinite(vals[i]) {
		i++
	}
	if i == len(vals) {
		return vals
	}
	out := make([]any, len(vals))
	for j, v := range vals {
		if isFinite(v) {
			out[j] = v
		}
	}
	return out
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// MarshalJSON renders indented JSON.
func MarshalJSON(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	out = append(out, '\n')
	return out, nil
}

// MarshalJSONL renders record envelopes as JSONL bytes.
func MarshalJSONL(records []RecordEnvelope) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriterSize(&buf, 1<<20)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalMsgpack renders record envelopes as one msgpack array.
func MarshalMsgpack(records []RecordEnvelope) ([]byte, error) {
	var h codec.MsgpackHandle
	var out []byte
	enc := codec.NewEncoderBytes(&out, &h)
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return out, nil
}

// UnmarshalMsgpack reads envelopes written by MarshalMsgpack.
func UnmarshalMsgpack(data []byte) ([]RecordEnvelope, error) {
	var h codec.MsgpackHandle
	h.RawToString = true
	var out []RecordEnvelope
	if err := codec.NewDecoderBytes(data, &h).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
