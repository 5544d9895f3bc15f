package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

type LogConfiguration struct {
	Level      string `yaml:"defaultLevel"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"outputPath"`
	// Go time format string, "none" to not log time.
	TimeFormat string `yaml:"timeFormat"`
	// "short", "none" or empty for the whole digest.
	DigestFormat string `yaml:"digestFormat"`
	ShowSource   bool   `yaml:"showSource"`
}

/*
New returns logger for given configuration. Output defaults to stderr, level
to INFO and format to "console".

Formats:
  - text: slog.TextHandler;
  - json: slog.JSONHandler;
  - ecs: JSON with some attributes renamed according to the Elastic Common Schema;
  - console: human readable colored output (zerolog console writer);
  - cli: console output with just level, message and error.
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	out, err := cfg.writer()
	if err != nil {
		return nil, fmt.Errorf("creating log writer: %w", err)
	}
	h, err := cfg.Handler(out)
	if err != nil {
		return nil, fmt.Errorf("creating log handler: %w", err)
	}
	return slog.New(h), nil
}

// Handler returns log handler writing into "out" according to the configuration.
func (cfg *LogConfiguration) Handler(out io.Writer) (slog.Handler, error) {
	level, err := cfg.logLevel()
	if err != nil {
		return nil, err
	}
	opt := &slog.HandlerOptions{Level: level, AddSource: cfg.ShowSource}

	switch strings.ToLower(cfg.Format) {
	case "text":
		opt.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatDigestAttr(cfg.DigestFormat), formatDataAttrAsJSON)
		return slog.NewTextHandler(out, opt), nil
	case "json":
		opt.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatDigestAttr(cfg.DigestFormat))
		return slog.NewJSONHandler(out, opt), nil
	case "ecs":
		opt.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatDigestAttr(cfg.DigestFormat), formatAttrECS)
		return slog.NewJSONHandler(out, opt), nil
	case "console", "":
		opt.ReplaceAttr = composeAttrFmt(formatDigestAttr(cfg.DigestFormat), formatDataAttrAsJSON)
		return newZerologHandler(cfg.consoleWriter(out), cfg.TimeFormat, opt), nil
	case "cli":
		opt.ReplaceAttr = formatAttrCLI
		w := cfg.consoleWriter(out)
		w.PartsExclude = []string{zerolog.TimestampFieldName}
		return newZerologHandler(w, "none", opt), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	w := zerolog.ConsoleWriter{Out: out, NoColor: !isTerminal(out)}
	if cfg.TimeFormat == "none" {
		w.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	return w
}

func (cfg *LogConfiguration) logLevel() (slog.Level, error) {
	if cfg.Level == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return lvl, nil
}

func (cfg *LogConfiguration) writer() (io.Writer, error) {
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard":
		return io.Discard, nil
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// for tests and tools which do not care about log output
func NOP() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
