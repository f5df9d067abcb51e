//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"syscall/js"
	"time"

	"github.com/lucasjlepore/fitcam"
	"github.com/lucasjlepore/fitcam/export"
)

func main() {
	js.Global().Set("exportFit", js.FuncOf(exportFit))
	select {}
}

// exportFit(fileBytes, options) builds an export bundle and returns it as a
// zip together with the text report.
func exportFit(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: fileBytes(Uint8Array), options(object)")
	}
	fileArg := args[0]
	optsArg := args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("fit file bytes are required")
	}

	fileBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(fileBytes, fileArg); n == 0 {
		return failure("failed to read FIT bytes from JS input")
	}

	hours := getInt(optsArg, "hour_offset")
	relaxed := getBool(optsArg, "relaxed")
	defaultTime := getBool(optsArg, "default_time_on_error")
	bundle, err := export.ExportBytes(getString(optsArg, "source_file_name", "input.fit"), fileBytes, export.Options{
		Format:             getString(optsArg, "format", export.FormatParquet),
		CopySourceFile:     true,
		Relaxed:            relaxed,
		HourOffset:         hours,
		DefaultTimeOnError: defaultTime,
	})
	if err != nil {
		return failure(err.Error())
	}

	report := ""
	if a, err := fitcam.AnalyzeBytes(fileBytes, fitcam.Config{
		HourOffset:         hours,
		DefaultTimeOnError: defaultTime,
		Relaxed:            relaxed,
	}); err == nil {
		report = a.Notes
	}

	zipBytes, err := zipArtifacts(bundle.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	fileNames := make([]string, 0, len(bundle.Files))
	for name := range bundle.Files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	return map[string]any{
		"ok":       true,
		"zip":      payload,
		"report":   report,
		"sessions": len(bundle.Manifest.Sessions),
		"warnings": stringsToAny(bundle.Manifest.Warnings),
		"files":    stringsToAny(fileNames),
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func zipArtifacts(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fixedTime := time.Unix(0, 0).UTC()

	for _, name := range names {
		h := &zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		}
		h.SetModTime(fixedTime)
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getString(v js.Value, key, fallback string) string {
	if v.IsUndefined() || v.IsNull() {
		return fallback
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() || out.Type() != js.TypeString {
		return fallback
	}
	if s := out.String(); s != "" {
		return s
	}
	return fallback
}

func getInt(v js.Value, key string) int {
	if v.IsUndefined() || v.IsNull() {
		return 0
	}
	out := v.Get(key)
	if out.Type() != js.TypeNumber {
		return 0
	}
	return out.Int()
}

func getBool(v js.Value, key string) bool {
	if v.IsUndefined() || v.IsNull() {
		return false
	}
	out := v.Get(key)
	return out.Type() == js.TypeBoolean && out.Bool()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
