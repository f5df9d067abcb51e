package decoder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lucasjlepore/fitcam/internal/fitbuild"
	"github.com/tormoder/fit"
)

func TestParseHeaderRoundTrip(t *testing.T) {
	for _, size := range []int{HeaderSizeNoCRC, HeaderSizeCRC} {
		raw := fitbuild.Header(size, 0x20, 2132, 4096)
		got, err := ParseHeader(raw)
		if err != nil {
			t.Fatalf("ParseHeader(size %d) error: %v", size, err)
		}
		want := Header{
			Size:            uint8(size),
			ProtocolVersion: 0x20,
			ProfileVersion:  2132,
			DataSize:        4096,
			DataType:        ".FIT",
			HasCRC:          size == HeaderSizeCRC,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("header mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestParseHeaderRejects(t *testing.T) {
	badSize := fitbuild.Header(HeaderSizeNoCRC, 0x10, 100, 0)
	badSize[0] = 13

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrNoData},
		{name: "short", data: []byte{12, 0x10, 0, 0}, want: ErrTruncated},
		{name: "all zero 12", data: make([]byte, 12), want: ErrSignature},
		{name: "all zero 14", data: make([]byte, 14), want: ErrSignature},
		{name: "size 13", data: badSize, want: ErrHeaderSize},
		{name: "14 byte header cut short", data: fitbuild.Header(HeaderSizeCRC, 0x10, 100, 0)[:13], want: ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ParseHeader error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseHeaderMatchesFitPackage(t *testing.T) {
	data := encodeActivity(t, 3)

	ref, err := fit.DecodeHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("fit.DecodeHeader error: %v", err)
	}
	got, err := ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader error: %v", err)
	}
	if got.Size != ref.Size || got.ProtocolVersion != ref.ProtocolVersion ||
		got.ProfileVersion != ref.ProfileVersion || got.DataSize != ref.DataSize {
		t.Fatalf("header %+v does not match fit package header %+v", got, ref)
	}
	if got.DataType != string(ref.DataType[:]) {
		t.Fatalf("data type = %q, want %q", got.DataType, ref.DataType)
	}
}

func TestParseMessageHeader(t *testing.T) {
	tests := []struct {
		b    byte
		want MessageHeader
	}{
		{b: 0x00, want: MessageHeader{Kind: KindData}},
		{b: 0x05, want: MessageHeader{Kind: KindData, Local: 5}},
		{b: 0x4F, want: MessageHeader{Kind: KindDefinition, Local: 15}},
		{b: 0x62, want: MessageHeader{Kind: KindDefinition, DeveloperData: true, Local: 2}},
		// The developer bit means nothing on data headers.
		{b: 0x23, want: MessageHeader{Kind: KindData, Local: 3}},
	}
	for _, tt := range tests {
		got, err := ParseMessageHeader(tt.b)
		if err != nil {
			t.Fatalf("ParseMessageHeader(0x%02X) error: %v", tt.b, err)
		}
		if got != tt.want {
			t.Fatalf("ParseMessageHeader(0x%02X) = %+v, want %+v", tt.b, got, tt.want)
		}
	}

	for _, b := range []byte{0x80, 0xA3, 0xFF} {
		if _, err := ParseMessageHeader(b); !errors.Is(err, ErrUnsupportedFeature) {
			t.Fatalf("ParseMessageHeader(0x%02X) error = %v, want ErrUnsupportedFeature", b, err)
		}
	}
}
