package fitcam

import (
	"fmt"
	"math"
	"strings"
)

// BuildReport renders an analysis as a plain text summary.
func BuildReport(a *Analysis) string {
	if a == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(
		&b,
		"FIT protocol %d.%d, profile %d.%02d | %d records (%d definitions)\n",
		a.Header.ProtocolVersion>>4,
		a.Header.ProtocolVersion&0x0F,
		a.Header.ProfileVersion/100,
		a.Header.ProfileVersion%100,
		a.RecordCount,
		a.DefinitionCount,
	)
	if a.Partial != "" {
		fmt.Fprintf(&b, "Partial read: %s\n", a.Partial)
	}
	if len(a.Issues) > 0 {
		fmt.Fprintf(&b, "Records with decode issues: %d\n", len(a.Issues))
	}
	switch a.StartTimeSource {
	case StartFromCorrelation:
		fmt.Fprintf(&b, "Start: %s\n", a.StartTime.Format("2006-01-02 15:04:05.000"))
	case StartFromDefault:
		fmt.Fprintf(&b, "Start: %s (no timestamp correlation, FIT epoch assumed)\n", a.StartTime.Format("2006-01-02 15:04:05"))
	default:
		b.WriteString("Start: unavailable (no timestamp correlation)\n")
	}

	b.WriteString("\nMessages\n")
	for _, m := range a.Messages {
		fmt.Fprintf(&b, "- %s (%d): %d\n", m.Name, m.Global, m.Count)
	}

	b.WriteString("\nSessions\n")
	if len(a.Sessions) == 0 {
		b.WriteString("- No complete recording session was found.\n")
	}
	for _, s := range a.Sessions {
		fmt.Fprintf(
			&b,
			"- %s: records %d-%d, %s, %d clip(s), %d points",
			s.ID,
			s.Range.Start,
			s.Range.End,
			formatDuration(s.DurationSeconds),
			len(s.IDs),
			s.Points,
		)
		if !s.StartTime.IsZero() {
			fmt.Fprintf(&b, ", from %s", s.StartTime.Format("15:04:05"))
		}
		b.WriteByte('\n')
	}

	if t := a.Track; t != nil {
		b.WriteString("\nTrack\n")
		fmt.Fprintf(
			&b,
			"- %d points from %s | Duration %s | Distance %.2f km\n",
			t.Points,
			t.Source,
			formatDuration(t.DurationSeconds),
			t.DistanceMeters/1000.0,
		)
		if len(a.SkippedPoints) > 0 {
			fmt.Fprintf(&b, "- %d record(s) without a position skipped\n", len(a.SkippedPoints))
		}
		fmt.Fprintf(
			&b,
			"- Altitude %.0f to %.0f m | Elevation +%.0f/-%.0f m | Speed %.1f avg / %.1f max km/h\n",
			t.MinAltitudeM,
			t.MaxAltitudeM,
			t.ElevationGainM,
			t.ElevationLossM,
			mpsToKmh(t.AvgSpeedMps),
			mpsToKmh(t.MaxSpeedMps),
		)
	}

	if len(a.Sensors) > 0 {
		b.WriteString("\nSensors\n")
	}
	for _, s := range a.Sensors {
		if s.Error != "" {
			fmt.Fprintf(&b, "- %s: %s\n", s.Kind, s.Error)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d samples in %d batches, %d calibration(s)\n", s.Kind, s.Samples, s.Batches, len(s.Calibrations))
		for i, axis := range s.Axes {
			fmt.Fprintf(&b, "    %c: mean %.3f, sd %.3f, range %.3f to %.3f\n", "xyz"[i], axis.Mean, axis.StdDev, axis.Min, axis.Max)
		}
	}

	if len(a.DeveloperFields) > 0 {
		b.WriteString("\nDeveloper Fields\n")
		for _, d := range a.DeveloperFields {
			fmt.Fprintf(&b, "- [%d:%d] %s", d.DeveloperIndex, d.FieldNumber, d.Name)
			if d.Units != "" {
				fmt.Fprintf(&b, " (%s)", d.Units)
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSpace(b.String())
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	s := int(math.Round(seconds))
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

func mpsToKmh(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return v * 3.6
}
