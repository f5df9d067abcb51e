package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/lucasjlepore/fitcam"
	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/export"
	"github.com/lucasjlepore/fitcam/telemetry"
)

var stdout io.Writer = os.Stdout

type inspectCommand struct {
	Args struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"yes"`
}

type sessionsCommand struct {
	Args struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"yes"`
}

type sensorCommand struct {
	Kind    string `short:"k" long:"kind" description:"Sensor (accelerometer|gyroscope|magnetometer)" default:"accelerometer"`
	Session string `short:"s" long:"session" description:"Limit to the session containing this clip id"`
	Range   string `short:"r" long:"range" description:"Limit to records START:END (inclusive)"`
	Args    struct {
		File string `positional-arg-name:"file" required:"yes"`
	} `positional-args:"yes"`
}

type pointsCommand struct {
	Session string `short:"s" long:"session" description:"Limit to the session containing this clip id"`
	Range   string `short:"r" long:"range" description:"Limit to records START:END (inclusive)"`
	Args    struct {
		File string `positional-arg-name:"file" required:"yes"`
	} `positional-args:"yes"`
}

func init() {
	mustAdd("inspect", "Summarize camera FIT files", "Decode each file and print sessions, track and sensor summaries.", &inspectCommand{})
	mustAdd("sessions", "List recording sessions", "List the recording sessions of each file. Files are decoded concurrently.", &sessionsCommand{})
	mustAdd("sensor", "Print calibrated sensor samples", "Calibrate one three-axis sensor and print a sample per line.", &sensorCommand{})
	mustAdd("points", "Print position samples", "Print the GPS track, falling back to record messages.", &pointsCommand{})
}

func mustAdd(name, short, long string, data any) {
	if _, err := parser.AddCommand(name, short, long, data); err != nil {
		panic(err)
	}
}

func (c *inspectCommand) Execute([]string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	cfg := fitcam.Config{
		HourOffset:         e.cfg.HourOffset,
		DefaultTimeOnError: e.cfg.DefaultTimeOnError,
		Relaxed:            e.cfg.Relaxed,
		Sensors:            e.cfg.Sensors,
		Logger:             &e.log,
	}
	for i, path := range c.Args.Files {
		a, err := fitcam.AnalyzeFile(path, cfg)
		if err != nil {
			return retryHint(err)
		}
		if global.JSON {
			if err := writeJSON(a); err != nil {
				return err
			}
			continue
		}
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "== %s\n%s\n", path, a.Notes)
	}
	return nil
}

type fileSessions struct {
	Path      string              `json:"path"`
	DeviceIDs []string            `json:"device_ids"`
	Sessions  []telemetry.Session `json:"sessions"`
	Error     string              `json:"error,omitempty"`
}

func (c *sessionsCommand) Execute([]string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results := decoder.DecodeFiles(ctx, c.Args.Files, e.cfg.Workers,
		decoder.WithFilter(decoder.MesgCameraEvent),
		decoder.WithLogger(e.log),
	)
	out := make([]fileSessions, 0, len(results))
	failed := 0
	for _, r := range results {
		fs := fileSessions{Path: r.Path}
		f, err := e.accept(r.Path, r.File, r.Err)
		if err == nil {
			var events []telemetry.CameraEvent
			events, err = telemetry.CameraEvents(f.Records)
			fs.Sessions = telemetry.Sessions(events)
			fs.DeviceIDs = telemetry.DeviceIDs(events)
		}
		if err != nil {
			failed++
			fs.Error = err.Error()
			e.log.Error().Err(err).Str("file", r.Path).Msg("listing sessions")
		}
		out = append(out, fs)
	}

	if global.JSON {
		if err := writeJSON(out); err != nil {
			return err
		}
	} else {
		for _, fs := range out {
			fmt.Fprintf(stdout, "%s\n", fs.Path)
			if fs.Error != "" {
				fmt.Fprintf(stdout, "  error: %s\n", fs.Error)
				continue
			}
			for _, s := range fs.Sessions {
				fmt.Fprintf(stdout, "  %s\trecords %d-%d\tclips %s\n", s.ID(), s.Start, s.End, strings.Join(s.IDs, ","))
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(out))
	}
	return nil
}

func (c *sensorCommand) Execute([]string) error {
	k, err := telemetry.ParseSensorKind(c.Kind)
	if err != nil {
		return err
	}
	e, err := setup()
	if err != nil {
		return err
	}
	f, err := e.decode(c.Args.File)
	if err != nil {
		return err
	}
	r, err := selectRange(f.Records, c.Session, c.Range)
	if err != nil {
		return err
	}
	batches, err := telemetry.CalibrateSensor(f.Records, k, r)
	if err != nil {
		return err
	}
	if global.JSON {
		return writeJSON(batches)
	}

	t0, err := telemetry.StartTime(f.Records, e.cfg.HourOffset, e.cfg.DefaultTimeOnError)
	if err != nil {
		e.log.Warn().Err(err).Msg("absolute times unavailable")
	}
	fmt.Fprintln(stdout, "index\ttime_s\tdatetime\tx\ty\tz")
	for _, b := range batches {
		for i, at := range b.SampleTimes() {
			dt := ""
			if !t0.IsZero() {
				dt = t0.Add(at).UTC().Format("2006-01-02T15:04:05.000Z")
			}
			fmt.Fprintf(stdout, "%d\t%.3f\t%s\t%g\t%g\t%g\n", b.Index, at.Seconds(), dt, b.CalibratedX[i], b.CalibratedY[i], b.CalibratedZ[i])
		}
	}
	return nil
}

func (c *pointsCommand) Execute([]string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	f, err := e.decode(c.Args.File)
	if err != nil {
		return err
	}
	r, err := selectRange(f.Records, c.Session, c.Range)
	if err != nil {
		return err
	}
	points, skipped, err := telemetry.Points(f.Records, r)
	if err != nil {
		return err
	}
	for _, serr := range skipped {
		e.log.Warn().Err(serr).Msg("record without position skipped")
	}
	if t0, err := telemetry.StartTime(f.Records, e.cfg.HourOffset, e.cfg.DefaultTimeOnError); err == nil {
		telemetry.SetStartTime(points, t0)
	}
	if global.JSON {
		return writeJSON(points)
	}
	fmt.Fprintln(stdout, "index\ttime_s\tlatitude\tlongitude\taltitude_m\tspeed2d_mps\tspeed3d_mps")
	for _, p := range points {
		fmt.Fprintf(stdout, "%d\t%.3f\t%.7f\t%.7f\t%.1f\t%.3f\t%.3f\n", p.Index, p.Time.Seconds(), p.Latitude, p.Longitude, p.Altitude, p.Speed2D, p.Speed3D)
	}
	return nil
}

// selectRange resolves --session or --range into a record range. Neither
// means the whole file.
func selectRange(records []decoder.DataRecord, session, span string) (*decoder.Range, error) {
	switch {
	case session != "" && span != "":
		return nil, errors.New("use either --session or --range")
	case session != "":
		events, err := telemetry.CameraEvents(records)
		if err != nil {
			return nil, fmt.Errorf("find session %q: %w", session, err)
		}
		s, ok := telemetry.SessionByID(telemetry.Sessions(events), session)
		if !ok {
			return nil, fmt.Errorf("find session %q: no such clip", session)
		}
		r := s.Range()
		return &r, nil
	case span != "":
		return parseRange(span)
	}
	return nil, nil
}

func parseRange(s string) (*decoder.Range, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("parse range %q: expected START:END", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("parse range %q: %w", s, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return nil, fmt.Errorf("parse range %q: %w", s, err)
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("parse range %q: want 0 <= START <= END", s)
	}
	return &decoder.Range{Start: start, End: end}, nil
}

func writeJSON(v any) error {
	b, err := export.MarshalJSON(v)
	if err != nil {
		return err
	}
	_, err = stdout.Write(b)
	return err
}
