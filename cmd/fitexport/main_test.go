package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/export"
	"github.com/lucasjlepore/fitcam/internal/config"
	"github.com/lucasjlepore/fitcam/internal/fitbuild"
	"github.com/rs/zerolog"
)

func writeFIT(t *testing.T, path string) {
	t.Helper()
	b := fitbuild.New().Message(0, decoder.MesgGpsMetadata,
		fitbuild.Uint32Value(decoder.FieldTimestamp, 1),
		fitbuild.Uint16Value(0, 0),
		fitbuild.Sint32Value(1, 0),
		fitbuild.Sint32Value(2, 0),
		fitbuild.Uint32Value(3, 2500),
		fitbuild.Uint32Value(4, 0),
	)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write fit: %v", err)
	}
}

func TestRunExportsEachInput(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{filepath.Join(dir, "a.fit"), filepath.Join(dir, "b.fit")}
	for _, p := range inputs {
		writeFIT(t, p)
	}
	out := filepath.Join(dir, "out")

	cfg := config.Default()
	cfg.Format = export.FormatCSV
	results, err := run(context.Background(), inputs, out, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	for i, r := range results {
		want := filepath.Join(out, strings.TrimSuffix(filepath.Base(inputs[i]), ".fit")+"_"+export.FormatVersion)
		if r == nil || r.OutputDir != want {
			t.Fatalf("result %d = %+v, want dir %s", i, r, want)
		}
		if _, err := os.Stat(filepath.Join(want, "points.csv")); err != nil {
			t.Fatalf("points table missing: %v", err)
		}
	}

	var buf bytes.Buffer
	printResult(&buf, results[0])
	if !strings.Contains(buf.String(), "Records:    1 (1 definitions, 1 data messages)") {
		t.Fatalf("unexpected summary:\n%s", buf.String())
	}
}

func TestRunReportsMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := run(context.Background(), []string{filepath.Join(dir, "missing.fit")}, filepath.Join(dir, "out"), config.Default(), zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "missing.fit") {
		t.Fatalf("error = %v, want missing input", err)
	}
}

func TestOutputDir(t *testing.T) {
	if got := outputDir("/data/ride.fit", "/tmp/x", false); got != "/tmp/x" {
		t.Fatalf("single output dir = %q", got)
	}
	if got := outputDir("/data/ride.fit", "/tmp/x", true); got != filepath.Join("/tmp/x", "ride_"+export.FormatVersion) {
		t.Fatalf("batch output dir = %q", got)
	}
	if got := outputDir("/data/ride.fit", "", false); got != filepath.Join("exports", "ride_"+export.FormatVersion) {
		t.Fatalf("default output dir = %q", got)
	}
}
