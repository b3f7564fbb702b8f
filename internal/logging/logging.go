// Package logging configures the zerolog loggers used across the orchestrator.
// It owns level parsing, console and file writers, and per-component child
// loggers so that every package logs with the same fields and timestamps.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ═══════════════════════════════════════════════════════════════════════════════

// Config configures the process logger.
type Config struct {
	Level    string // debug, info, warn, error
	FilePath string // Optional file for persistent logs (plain text, no color)
	Console  bool   // Write human-readable output to stderr
	NoColor  bool   // Disable ANSI colors on the console writer
	JSON     bool   // Emit raw JSON on stderr instead of the console writer
}

// DefaultConfig returns console logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Console: true,
	}
}

// VerboseConfig returns debug-level console logging.
func VerboseConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONSTRUCTION
// ═══════════════════════════════════════════════════════════════════════════════

var (
	fileMu   sync.Mutex
	openFile *os.File
)

// New builds a zerolog.Logger from cfg. When FilePath is set the log file is
// opened for appending and shared by all loggers created afterwards.
func New(cfg Config) (zerolog.Logger, error) {
	var writers []io.Writer

	if cfg.Console || (cfg.FilePath == "" && !cfg.JSON) {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    cfg.NoColor,
			TimeFormat: "15:04:05.000",
		})
	} else if cfg.JSON {
		writers = append(writers, os.Stderr)
	}

	if cfg.FilePath != "" {
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return zerolog.Nop(), err
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339})
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger(), nil
}

// SetGlobal installs a logger built from cfg as the zerolog global logger.
// Packages that log through zerolog/log pick it up immediately.
func SetGlobal(cfg Config) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zlog.Logger = logger
	zerolog.DefaultContextLogger = &zlog.Logger
	return nil
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return zlog.Logger.With().Str("component", name).Logger()
}

// Close releases the shared log file, if any.
func Close() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if openFile == nil {
		return nil
	}
	err := openFile.Close()
	openFile = nil
	return err
}

func openLogFile(path string) (*os.File, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	if openFile != nil {
		openFile.Close()
	}
	openFile = f
	return f, nil
}

// ParseLevel maps a config string to a zerolog level. Unknown values fall
// back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
