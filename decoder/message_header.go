package decoder

const (
	compressedHeaderMask = 0x80
	mesgDefinitionMask   = 0x40
	devDataMask          = 0x20
	localMesgNumMask     = 0x0F
)

// MessageKind tells definition records from data records.
type MessageKind uint8

const (
	KindData MessageKind = iota
	KindDefinition
)

func (k MessageKind) String() string {
	if k == KindDefinition {
		return "definition"
	}
	return "data"
}

// MessageHeader is the decoded record header byte.
type MessageHeader struct {
	Kind MessageKind
	// DeveloperData is only meaningful on definition headers.
	DeveloperData bool
	Local         uint8
}

// ParseMessageHeader interprets one record header byte. Compressed
// timestamp headers return ErrUnsupportedFeature.
func ParseMessageHeader(b byte) (MessageHeader, error) {
	if b&compressedHeaderMask == compressedHeaderMask {
		return MessageHeader{}, ErrUnsupportedFeature
	}
	h := MessageHeader{Local: b & localMesgNumMask}
	if b&mesgDefinitionMask == mesgDefinitionMask {
		h.Kind = KindDefinition
		h.DeveloperData = b&devDataMask == devDataMask
	}
	return h, nil
}
