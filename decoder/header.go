package decoder

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSizeNoCRC = 12
	HeaderSizeCRC   = 14

	// Signature is the data type marker at bytes 8..12 of every header.
	Signature = ".FIT"
)

// Header is the parsed file header.
type Header struct {
	Size            uint8  `json:"size"`
	ProtocolVersion uint8  `json:"protocol_version"`
	ProfileVersion  uint16 `json:"profile_version"`
	DataSize        uint32 `json:"data_size"`
	DataType        string `json:"data_type"`
	HasCRC          bool   `json:"has_crc"`
	CRC             uint16 `json:"crc,omitempty"`
}

// ParseHeader reads the 12 or 14 byte header at the start of data. The
// header checksum is kept but not verified.
func ParseHeader(data []byte) (Header, error) {
	if len(data) == 0 {
		return Header{}, ErrNoData
	}
	if len(data) < HeaderSizeNoCRC {
		return Header{}, fmt.Errorf("read header: %w", ErrTruncated)
	}
	if sig := string(data[8:12]); sig != Signature {
		return Header{}, fmt.Errorf("%w: %q", ErrSignature, sig)
	}

	size := data[0]
	if size != HeaderSizeNoCRC && size != HeaderSizeCRC {
		return Header{}, fmt.Errorf("%w: %d", ErrHeaderSize, size)
	}
	if len(data) < int(size) {
		return Header{}, fmt.Errorf("read header: %w", ErrTruncated)
	}

	h := Header{
		Size:            size,
		ProtocolVersion: data[1],
		ProfileVersion:  binary.LittleEndian.Uint16(data[2:4]),
		DataSize:        binary.LittleEndian.Uint32(data[4:8]),
		DataType:        Signature,
	}
	if size == HeaderSizeCRC {
		h.HasCRC = true
		h.CRC = binary.LittleEndian.Uint16(data[12:14])
	}
	return h, nil
}

// ProtocolMajor is the high nibble of the protocol version.
func (h Header) ProtocolMajor() uint8 { return h.ProtocolVersion >> 4 }

// ProfileMajor is the profile version divided by 100 (e.g. 2132 -> 21).
func (h Header) ProfileMajor() uint16 { return h.ProfileVersion / 100 }
