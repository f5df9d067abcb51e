package decoder

import "time"

// Epoch is the zero point of FIT timestamps.
var Epoch = time.Date(1989, 12, 31, 0, 0, 0, 0, time.UTC)

// TimestampToTime converts seconds since Epoch to UTC time.
func TimestampToTime(ts uint32) time.Time {
	return Epoch.Add(time.Duration(ts) * time.Second)
}
