package telemetry

import (
	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/tormoder/fit"
)

// Session is one recording, from a video start event to the matching video
// end event. Start and End are inclusive record indices.
type Session struct {
	IDs   []string `json:"ids"`
	Start int      `json:"start"`
	End   int      `json:"end"`
}

// ID is the file id of the session's first clip.
func (s Session) ID() string {
	if len(s.IDs) == 0 {
		return ""
	}
	return s.IDs[0]
}

// Range is the span of record indices the session covers.
func (s Session) Range() decoder.Range {
	return decoder.Range{Start: s.Start, End: s.End}
}

// Contains reports whether id belongs to the session.
func (s Session) Contains(id string) bool {
	for _, v := range s.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Sessions groups camera events into recording sessions. A start event
// opens a session, every following event adds its file id and an end event
// closes it. A start while a session is open restarts it; a session still
// open when the events run out is dropped.
func Sessions(events []CameraEvent) []Session {
	var (
		out     []Session
		open    bool
		current Session
	)
	for _, e := range events {
		switch {
		case e.Type == fit.CameraEventTypeVideoStart:
			open = true
			current = Session{IDs: []string{e.FileUUID}, Start: e.Index}
		case !open:
			continue
		case e.Type == fit.CameraEventTypeVideoEnd:
			current.IDs = dedupe(append(current.IDs, e.FileUUID))
			current.End = e.Index
			out = append(out, current)
			open = false
		default:
			current.IDs = append(current.IDs, e.FileUUID)
		}
	}
	return out
}

// IndexSessions maps each session's first file id to its record range.
func IndexSessions(sessions []Session) map[string]decoder.Range {
	out := make(map[string]decoder.Range, len(sessions))
	for _, s := range sessions {
		out[s.ID()] = s.Range()
	}
	return out
}

// SessionByID returns the session containing id.
func SessionByID(sessions []Session, id string) (Session, bool) {
	for _, s := range sessions {
		if s.Contains(id) {
			return s, true
		}
	}
	return Session{}, false
}

// SessionRecords returns the records inside s.
func SessionRecords(records []decoder.DataRecord, s Session) []decoder.DataRecord {
	r := s.Range()
	return decoder.Select(records, &r)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
