package telemetry

import (
	"testing"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/internal/fitbuild"
	"github.com/tormoder/fit"
)

func decodeRecords(t *testing.T, b *fitbuild.Builder) []decoder.DataRecord {
	t.Helper()
	f, err := decoder.Decode(b.Bytes())
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return f.Records
}

func addCameraEvent(b *fitbuild.Builder, ts uint32, typ fit.CameraEventType, uuid string) *fitbuild.Builder {
	return b.Message(0, decoder.MesgCameraEvent,
		fitbuild.Uint32Value(decoder.FieldTimestamp, ts),
		fitbuild.Uint16Value(cameraTimestampMs, 0),
		fitbuild.EnumValue(cameraEventType, uint8(typ)),
		fitbuild.StringValue(cameraFileUUID, uuid, 40),
		fitbuild.EnumValue(cameraOrientation, 0),
	)
}

func addCorrelation(b *fitbuild.Builder, utc uint32, utcMs uint16, sys uint32, sysMs uint16) *fitbuild.Builder {
	return b.Message(1, decoder.MesgTimestampCorrelation,
		fitbuild.Uint32Value(decoder.FieldTimestamp, utc),
		fitbuild.Uint32Value(tcSystemTimestamp, sys),
		fitbuild.Uint16Value(tcTimestampMs, utcMs),
		fitbuild.Uint16Value(tcSystemTimestampMs, sysMs),
	)
}

func addGps(b *fitbuild.Builder, ts uint32, lat, lon int32, alt, speed uint32) *fitbuild.Builder {
	return b.Message(2, decoder.MesgGpsMetadata,
		fitbuild.Uint32Value(decoder.FieldTimestamp, ts),
		fitbuild.Uint16Value(gpsTimestampMs, 500),
		fitbuild.Sint32Value(gpsLatitude, lat),
		fitbuild.Sint32Value(gpsLongitude, lon),
		fitbuild.Uint32Value(gpsAltitude, alt),
		fitbuild.Uint32Value(gpsSpeed, speed),
		fitbuild.Uint16Value(gpsHeading, 9000),
		fitbuild.Uint32Value(gpsUTCTimestamp, ts+1000),
		fitbuild.Sint16Value(gpsVelocity, 300, 400, 0),
	)
}

func addSensor(b *fitbuild.Builder, k SensorKind, ts uint32, x, y, z []uint16) *fitbuild.Builder {
	offsets := make([]uint16, len(x))
	for i := range offsets {
		offsets[i] = uint16(i * 10)
	}
	return b.Message(3, k.Global(),
		fitbuild.Uint32Value(decoder.FieldTimestamp, ts),
		fitbuild.Uint16Value(sensorTimestampMs, 0),
		fitbuild.Uint16Value(sensorSampleTimeOffset, offsets...),
		fitbuild.Uint16Value(sensorX, x...),
		fitbuild.Uint16Value(sensorY, y...),
		fitbuild.Uint16Value(sensorZ, z...),
	)
}

func addCalibration(b *fitbuild.Builder, c Calibration) *fitbuild.Builder {
	return b.Message(4, decoder.MesgThreeDSensorCalibration,
		fitbuild.Uint32Value(decoder.FieldTimestamp, c.Timestamp),
		fitbuild.EnumValue(calSensorType, uint8(c.Kind)),
		fitbuild.Uint32Value(calFactor, c.Factor),
		fitbuild.Uint32Value(calDivisor, c.Divisor),
		fitbuild.Uint32Value(calLevelShift, c.LevelShift),
		fitbuild.Sint32Value(calOffset, c.Offset[:]...),
		fitbuild.Sint32Value(calOrientationMatrix, c.Orientation[:]...),
	)
}
