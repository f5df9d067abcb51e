package telemetry

import (
	"bytes"
	"errors"
	"testing"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/internal/fitbuild"
)

func TestDeveloperDataExtraction(t *testing.T) {
	b := fitbuild.New().
		Message(0, decoder.MesgDeveloperDataID,
			fitbuild.BytesValue(1, 9, 8, 7),
			fitbuild.Uint8Value(3, 0),
		).
		Message(1, decoder.MesgFieldDescription,
			fitbuild.Uint8Value(0, 0),
			fitbuild.Uint8Value(1, 4),
			fitbuild.Uint8Value(2, fitbuild.Uint16),
			fitbuild.StringValue(3, "lens_temp", 16),
			fitbuild.StringValue(8, "C", 4),
		)
	records := decodeRecords(t, b)

	ids, err := DeveloperIDs(records)
	if err != nil {
		t.Fatalf("DeveloperIDs error: %v", err)
	}
	if len(ids) != 1 || ids[0].Index != 0 || !bytes.Equal(ids[0].ApplicationID, []byte{9, 8, 7}) {
		t.Fatalf("developer ids = %+v", ids)
	}

	descs, err := FieldDescriptions(records)
	if err != nil {
		t.Fatalf("FieldDescriptions error: %v", err)
	}
	if len(descs) != 1 || descs[0].Name != "lens_temp" || descs[0].Units != "C" || descs[0].BaseType != decoder.BaseUint16 {
		t.Fatalf("field descriptions = %+v", descs)
	}
}

func TestDeveloperDataMissing(t *testing.T) {
	records := decodeRecords(t, addCameraEvent(fitbuild.New(), 1, 0, "clip"))
	_, err := FieldDescriptions(records)
	var missing *MissingMessageError
	if !errors.As(err, &missing) || missing.Global != decoder.MesgFieldDescription {
		t.Fatalf("error = %v, want missing field_description", err)
	}
}
