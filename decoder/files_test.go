package decoder

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasjlepore/fitcam/internal/fitbuild"
)

func TestDecodeFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 3; i++ {
		b := fitbuild.New().Definition(0, 0, 300, twoFields, nil)
		for j := 0; j < i; j++ {
			b.Data(0, fitbuild.U8(uint8(j)), fitbuild.U16(binary.LittleEndian, 1))
		}
		path := filepath.Join(dir, "file"+string(rune('0'+i))+".fit")
		if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
			t.Fatalf("write fit: %v", err)
		}
		paths = append(paths, path)
	}
	paths = append(paths, filepath.Join(dir, "missing.fit"))

	results := DecodeFiles(context.Background(), paths, 2)
	if len(results) != len(paths) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results[:3] {
		if r.Err != nil {
			t.Fatalf("%s: %v", r.Path, r.Err)
		}
		if r.Path != paths[i] || len(r.File.Records) != i+1 {
			t.Fatalf("%s: %d records", r.Path, len(r.File.Records))
		}
	}
	if !errors.Is(results[3].Err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v", results[3].Err)
	}
}

func TestDecodeFilesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := DecodeFiles(ctx, []string{"a.fit", "b.fit"}, 1)
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("%s: error = %v, want context.Canceled", r.Path, r.Err)
		}
	}
}
