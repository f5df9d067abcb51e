package decoder

import (
	"errors"
	"fmt"
)

// Low-level parse errors. Callers match them with errors.Is.
var (
	ErrNoData                  = errors.New("no data")
	ErrTruncated               = errors.New("unexpected end of data")
	ErrHeaderSize              = errors.New("invalid header size")
	ErrSignature               = errors.New("invalid header signature")
	ErrDataSizeZero            = errors.New("header data size is zero")
	ErrDataSizeExceeded        = errors.New("header data size exceeds file size")
	ErrUnsupportedFeature      = errors.New("compressed timestamp headers are not supported")
	ErrInvalidArchitecture     = errors.New("invalid architecture")
	ErrUnknownDefinition       = errors.New("data message without definition")
	ErrUnknownBaseType         = errors.New("unknown base type")
	ErrInvalidLength           = errors.New("field size is not a multiple of the base type size")
	ErrUnknownFieldDescription = errors.New("developer field without field description")
	ErrTypeMismatch            = errors.New("unexpected value type")
	ErrMissingField            = errors.New("missing field")
)

// FieldError names the message and field a value problem belongs to.
type FieldError struct {
	Global uint16
	Field  uint8
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s (global %d) field %d: %v", MessageName(e.Global), e.Global, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// OffsetError reports a framing failure at a byte offset in the file.
type OffsetError struct {
	Offset int64
	Err    error
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("byte %d: %v", e.Offset, e.Err)
}

func (e *OffsetError) Unwrap() error { return e.Err }

// RecordError is a content problem confined to one data record. Decoding
// continues past it; the record keeps whatever could be decoded.
type RecordError struct {
	Index  int
	Offset int64
	Global uint16
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%s, global %d) at byte %d: %v", e.Index, MessageName(e.Global), e.Global, e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// PartialError is returned together with a non-nil *File when decoding
// stopped early but some records were recovered.
type PartialError struct {
	Err     error
	Records int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("partial read (%d records): %v", e.Records, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// IsPartial reports whether err carries a partial result.
func IsPartial(err error) bool {
	var pe *PartialError
	return errors.As(err, &pe)
}

// Relaxed accepts a partial decode as success. Fatal errors pass through.
//
//	f, err := decoder.Relaxed(decoder.Decode(data))
func Relaxed(f *File, err error) (*File, error) {
	if err == nil || (f != nil && IsPartial(err)) {
		return f, nil
	}
	return nil, err
}
