package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/lucasjlepore/fitcam/decoder"
	"github.com/lucasjlepore/fitcam/internal/config"
	"github.com/lucasjlepore/fitcam/internal/logging"
	"github.com/rs/zerolog"
)

type globalOptions struct {
	Config   string `short:"c" long:"config" description:"TOML configuration file"`
	LogLevel string `long:"log-level" description:"Log level (trace|debug|info|warn|error)"`
	Hours    int    `long:"hours" description:"Hour offset applied to absolute times"`
	Relaxed  bool   `long:"relaxed" description:"Accept partially decoded files"`
	JSON     bool   `long:"json" description:"Write JSON instead of text"`
}

var (
	global globalOptions
	parser = flags.NewParser(&global, flags.Default)
)

// env is the configuration in effect for one command.
type env struct {
	cfg config.Config
	log zerolog.Logger
}

// setup loads the configuration file and applies command line overrides.
func setup() (*env, error) {
	cfg, err := config.Load(global.Config)
	if err != nil {
		return nil, err
	}
	if opt := parser.FindOptionByLongName("hours"); opt != nil && opt.IsSet() {
		cfg.HourOffset = global.Hours
	}
	if global.Relaxed {
		cfg.Relaxed = true
	}
	if global.LogLevel != "" {
		cfg.LogLevel = global.LogLevel
	}
	logger, err := logging.New("fitcam", cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: logger}, nil
}

// decode reads path, accepting a partial file when the configuration is
// relaxed.
func (e *env) decode(path string, opts ...decoder.Option) (*decoder.File, error) {
	opts = append(opts, decoder.WithLogger(e.log.With().Str("file", path).Logger()))
	f, err := decoder.DecodeFile(path, opts...)
	return e.accept(path, f, err)
}

func (e *env) accept(path string, f *decoder.File, err error) (*decoder.File, error) {
	if err == nil {
		return f, nil
	}
	if !e.cfg.Relaxed {
		return nil, retryHint(fmt.Errorf("decode %s: %w", path, err))
	}
	rf, rerr := decoder.Relaxed(f, err)
	if rerr != nil {
		return nil, fmt.Errorf("decode %s: %w", path, rerr)
	}
	e.log.Warn().Err(err).Str("file", path).Msg("using partially decoded file")
	return rf, nil
}

// retryHint points at --relaxed when err carries a partial result.
func retryHint(err error) error {
	if decoder.IsPartial(err) {
		return fmt.Errorf("%w (retry with --relaxed to use the records read)", err)
	}
	return err
}

func main() {
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		// flags.Default has already printed the error.
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
