package telemetry

import "github.com/lucasjlepore/fitcam/decoder"

// FieldDescriptions extracts the developer field descriptions in records.
func FieldDescriptions(records []decoder.DataRecord) ([]decoder.FieldDescription, error) {
	return extract(records, decoder.MesgFieldDescription, decoder.NewFieldDescription)
}

// DeveloperIDs extracts the developer_data_id messages in records.
func DeveloperIDs(records []decoder.DataRecord) ([]decoder.DeveloperID, error) {
	return extract(records, decoder.MesgDeveloperDataID, decoder.NewDeveloperID)
}
