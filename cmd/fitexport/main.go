package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/lucasjlepore/fitcam/export"
	"github.com/lucasjlepore/fitcam/internal/config"
	"github.com/lucasjlepore/fitcam/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type options struct {
	Config     string `short:"c" long:"config" description:"TOML configuration file"`
	OutDir     string `short:"o" long:"out-dir" description:"Output directory (single input) or parent directory (several inputs)"`
	Format     string `short:"f" long:"format" description:"Table format: parquet|csv"`
	Overwrite  bool   `long:"overwrite" description:"Allow writing to non-empty output directories"`
	CopySource bool   `long:"copy-source" description:"Copy the FIT file into the bundle as source.fit"`
	Relaxed    bool   `long:"relaxed" description:"Export partially decoded files"`
	LogLevel   string `long:"log-level" description:"Log level (trace|debug|info|warn|error)"`
	Args       struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg, opts)
	logger, err := logging.New("fitexport", cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := run(ctx, opts.Args.Files, opts.OutDir, cfg, logger)
	for _, r := range results {
		if r != nil {
			printResult(os.Stdout, r)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, opts options) {
	if opts.Format != "" {
		cfg.Format = opts.Format
	}
	if opts.Overwrite {
		cfg.Overwrite = true
	}
	if opts.CopySource {
		cfg.CopySource = true
	}
	if opts.Relaxed {
		cfg.Relaxed = true
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
}

// outputDir picks the bundle directory for input. A single input uses outDir
// directly; several inputs get one subdirectory each.
func outputDir(input, outDir string, many bool) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name := base + "_" + export.FormatVersion
	switch {
	case strings.TrimSpace(outDir) == "":
		return filepath.Join(".", "exports", name)
	case many:
		return filepath.Join(outDir, name)
	}
	return outDir
}

// run exports every input with at most cfg.Workers exports in flight. It
// returns the results in input order and the first error.
func run(ctx context.Context, inputs []string, outDir string, cfg config.Config, logger zerolog.Logger) ([]*export.Result, error) {
	results := make([]*export.Result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			log := logger.With().Str("file", input).Logger()
			r, err := export.ExportFile(input, outputDir(input, outDir, len(inputs) > 1), export.Options{
				Overwrite:          cfg.Overwrite,
				CopySourceFile:     cfg.CopySource,
				Format:             cfg.Format,
				Relaxed:            cfg.Relaxed,
				HourOffset:         cfg.HourOffset,
				DefaultTimeOnError: cfg.DefaultTimeOnError,
				Logger:             &log,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			log.Info().Str("out_dir", r.OutputDir).Int("records", r.RecordCount).Msg("exported")
			results[i] = r
			return nil
		})
	}
	return results, g.Wait()
}

func printResult(w io.Writer, r *export.Result) {
	fmt.Fprintf(w, "Export complete\n")
	fmt.Fprintf(w, "Output dir: %s\n", r.OutputDir)
	fmt.Fprintf(w, "Manifest:   %s\n", r.ManifestPath)
	fmt.Fprintf(w, "Records:    %s\n", r.RecordsPath)
	fmt.Fprintf(w, "Msgpack:    %s\n", r.MsgpackPath)
	for _, p := range r.TablePaths {
		fmt.Fprintf(w, "Table:      %s\n", p)
	}
	if r.SourceCopyPath != "" {
		fmt.Fprintf(w, "Source fit: %s\n", r.SourceCopyPath)
	}
	fmt.Fprintf(w, "Records:    %d (%d definitions, %d data messages)\n", r.RecordCount, r.DefinitionCount, r.DataMessageCount)
	if r.Partial {
		fmt.Fprintf(w, "Partial:    true\n")
	}
}
