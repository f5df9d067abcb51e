package decoder

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/tormoder/fit"
	"golang.org/x/sync/errgroup"
)

// Global message numbers of the messages this package knows by name.
const (
	MesgFileID                  = uint16(fit.MesgNumFileId)
	MesgRecord                  = uint16(fit.MesgNumRecord)
	MesgGpsMetadata             = uint16(fit.MesgNumGpsMetadata)
	MesgCameraEvent             = uint16(fit.MesgNumCameraEvent)
	MesgTimestampCorrelation    = uint16(fit.MesgNumTimestampCorrelation)
	MesgGyroscopeData           = uint16(fit.MesgNumGyroscopeData)
	MesgAccelerometerData       = uint16(fit.MesgNumAccelerometerData)
	MesgThreeDSensorCalibration = uint16(fit.MesgNumThreeDSensorCalibration)
	MesgFieldDescription        = uint16(fit.MesgNumFieldDescription)
	MesgDeveloperDataID         = uint16(fit.MesgNumDeveloperDataId)
	MesgMagnetometerData        = uint16(fit.MesgNumMagnetometerData)
)

// FieldTimestamp is the timestamp field number shared by all messages.
const FieldTimestamp = 253

type fieldProfile struct {
	name   string
	units  string
	scale  float64
	offset float64
}

type mesgProfile struct {
	name   string
	fields map[uint8]fieldProfile
}

var (
	timestampField   = fieldProfile{name: "timestamp", units: "s"}
	timestampMsField = fieldProfile{name: "timestamp_ms", units: "ms"}
)

func threeAxis(prefix string) map[uint8]fieldProfile {
	return map[uint8]fieldProfile{
		FieldTimestamp: timestampField,
		0:              timestampMsField,
		1:              {name: "sample_time_offset", units: "ms"},
		2:              {name: prefix + "_x", units: "counts"},
		3:              {name: prefix + "_y", units: "counts"},
		4:              {name: prefix + "_z", units: "counts"},
	}
}

var profile = map[uint16]mesgProfile{
	MesgFileID: {name: "file_id", fields: map[uint8]fieldProfile{
		0: {name: "type"},
		1: {name: "manufacturer"},
		2: {name: "product"},
		3: {name: "serial_number"},
		4: {name: "time_created", units: "s"},
	}},
	MesgRecord: {name: "record", fields: map[uint8]fieldProfile{
		FieldTimestamp: timestampField,
		0:              {name: "position_lat", units: "semicircles"},
		1:              {name: "position_long", units: "semicircles"},
		2:              {name: "altitude", units: "m", scale: 5, offset: 500},
		3:              {name: "heart_rate", units: "bpm"},
		4:              {name: "cadence", units: "rpm"},
		5:              {name: "distance", units: "m", scale: 100},
		6:              {name: "speed", units: "m/s", scale: 1000},
		7:              {name: "power", units: "watts"},
		73:             {name: "enhanced_speed", units: "m/s", scale: 1000},
		78:             {name: "enhanced_altitude", units: "m", scale: 5, offset: 500},
	}},
	MesgGpsMetadata: {name: "gps_metadata", fields: map[uint8]fieldProfile{
		FieldTimestamp: timestampField,
		0:              timestampMsField,
		1:              {name: "position_lat", units: "semicircles"},
		2:              {name: "position_long", units: "semicircles"},
		3:              {name: "enhanced_altitude", units: "m", scale: 5, offset: 500},
		4:              {name: "enhanced_speed", units: "m/s", scale: 1000},
		5:              {name: "heading", units: "degrees", scale: 100},
		6:              {name: "utc_timestamp", units: "s"},
		7:              {name: "velocity", units: "m/s", scale: 100},
	}},
	MesgCameraEvent: {name: "camera_event", fields: map[uint8]fieldProfile{
		FieldTimestamp: timestampField,
		0:              timestampMsField,
		1:              {name: "camera_event_type"},
		2:              {name: "camera_file_uuid"},
		3:              {name: "camera_orientation"},
	}},
	MesgTimestampCorrelation: {name: "timestamp_correlation", fields: map[uint8]fieldProfile{
		FieldTimestamp: timestampField,
		0:              {name: "fractional_timestamp", units: "s", scale: 32768},
		1:              {name: "system_timestamp", units: "s"},
		2:              {name: "fractional_system_timestamp", units: "s", scale: 32768},
		3:              {name: "local_timestamp", units: "s"},
		4:              timestampMsField,
		5:              {name: "system_timestamp_ms", units: "ms"},
	}},
	MesgGyroscopeData:     {name: "gyroscope_data", fields: threeAxis("gyro")},
	MesgAccelerometerData: {name: "accelerometer_data", fields: threeAxis("accel")},
	MesgMagnetometerData:  {name: "magnetometer_data", fields: threeAxis("mag")},
	MesgThreeDSensorCalibration: {name: "three_d_sensor_calibration", fields: map[uint8]fieldProfile{
		FieldTimestamp: timestampField,
		0:              {name: "sensor_type"},
		1:              {name: "calibration_factor"},
		2:              {name: "calibration_divisor", units: "counts"},
		3:              {name: "level_shift"},
		4:              {name: "offset_cal"},
		5:              {name: "orientation_matrix", scale: 65535},
	}},
	MesgFieldDescription: {name: "field_description", fields: map[uint8]fieldProfile{
		fdDeveloperDataIndex: {name: "developer_data_index"},
		fdFieldNumber:        {name: "field_definition_number"},
		fdBaseType:           {name: "fit_base_type_id"},
		fdName:               {name: "field_name"},
		fdArray:              {name: "array"},
		fdComponents:         {name: "components"},
		fdScale:              {name: "scale"},
		fdOffset:             {name: "offset"},
		fdUnits:              {name: "units"},
		fdBits:               {name: "bits"},
		fdAccumulate:         {name: "accumulate"},
		fdBaseUnit:           {name: "fit_base_unit_id"},
		fdNativeMesgNum:      {name: "native_mesg_num"},
		fdNativeFieldNum:     {name: "native_field_num"},
	}},
	MesgDeveloperDataID: {name: "developer_data_id", fields: map[uint8]fieldProfile{
		ddDeveloperID:        {name: "developer_id"},
		ddApplicationID:      {name: "application_id"},
		ddManufacturerID:     {name: "manufacturer_id"},
		ddDeveloperDataIndex: {name: "developer_data_index"},
		ddApplicationVersion: {name: "application_version"},
	}},
}

// MessageName returns a snake_case name for a global message number.
// Messages outside the built-in table fall back to the fit package's name.
func MessageName(global uint16) string {
	if p, ok := profile[global]; ok {
		return p.name
	}
	name := strings.TrimPrefix(fmt.Sprint(fit.MesgNum(global)), "MesgNum")
	if name == "" || strings.HasPrefix(name, "(") {
		return fmt.Sprintf("unknown_%d", global)
	}
	return name
}

// FieldName returns the profile name of a standard field, or "" if unknown.
func FieldName(global uint16, num uint8) string {
	return profile[global].fields[num].name
}

// Augment labels records in place: message names and, for standard fields
// the profile knows, name, units, scale and offset. Developer fields already
// carry their description's labels. Records are independent, so they are
// labelled in parallel.
func Augment(records []DataRecord) {
	workers := runtime.GOMAXPROCS(0)
	chunk := (len(records) + workers - 1) / workers
	if chunk == 0 {
		return
	}
	var g errgroup.Group
	for start := 0; start < len(records); start += chunk {
		part := records[start:min(start+chunk, len(records))]
		g.Go(func() error {
			for i := range part {
				augment(&part[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}

func augment(rec *DataRecord) {
	rec.Name = MessageName(rec.Global)
	p, ok := profile[rec.Global]
	if !ok {
		return
	}
	for i := range rec.Fields {
		f := &rec.Fields[i]
		fp, ok := p.fields[f.Number]
		if !ok {
			continue
		}
		f.Name = fp.name
		f.Units = fp.units
		if fp.scale != 0 && fp.scale != 1 {
			f.Scale = floatPtr(fp.scale)
		}
		if fp.offset != 0 {
			f.Offset = floatPtr(fp.offset)
		}
	}
}
