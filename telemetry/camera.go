package telemetry

import (
	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/tormoder/fit"
)

// camera_event field numbers.
const (
	cameraTimestampMs = 0
	cameraEventType   = 1
	cameraFileUUID    = 2
	cameraOrientation = 3
)

// CameraEvent is a decoded camera_event message.
type CameraEvent struct {
	Index       int                 `json:"index"`
	Timestamp   uint32              `json:"timestamp"`
	TimestampMs uint16              `json:"timestamp_ms"`
	Type        fit.CameraEventType `json:"camera_event_type"`
	FileUUID    string              `json:"camera_file_uuid"`
	Orientation uint8               `json:"camera_orientation"`
}

// NewCameraEvent reads a camera_event record. Orientation is optional.
func NewCameraEvent(rec *decoder.DataRecord) (CameraEvent, error) {
	e := CameraEvent{Index: rec.Index}
	var err error
	if e.Timestamp, err = decoder.First[decoder.Uint32](rec, decoder.FieldTimestamp); err != nil {
		return e, err
	}
	if e.TimestampMs, err = decoder.First[decoder.Uint16](rec, cameraTimestampMs); err != nil {
		return e, err
	}
	typ, err := decoder.First[decoder.Enum](rec, cameraEventType)
	if err != nil {
		return e, err
	}
	e.Type = fit.CameraEventType(typ)
	if e.FileUUID, err = decoder.Text(rec, cameraFileUUID); err != nil {
		return e, err
	}
	if e.Orientation, _, err = decoder.Optional[decoder.Enum](rec, cameraOrientation); err != nil {
		return e, err
	}
	return e, nil
}

// CameraEvents extracts every camera_event in records.
func CameraEvents(records []decoder.DataRecord) ([]CameraEvent, error) {
	return extract(records, decoder.MesgCameraEvent, NewCameraEvent)
}

// DeviceIDs lists the distinct camera file ids in event order.
func DeviceIDs(events []CameraEvent) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range events {
		if seen[e.FileUUID] {
			continue
		}
		seen[e.FileUUID] = true
		out = append(out, e.FileUUID)
	}
	return out
}
