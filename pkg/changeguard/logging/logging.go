// Package logging provides component loggers for changeguard built on
// charmbracelet/log.
//
// Every logger writes to a rotating log file once Init has been called, and
// optionally mirrors records to the console. Before Init, and after Close,
// loggers discard everything so packages can log unconditionally.
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Get("hasher").Debug("hashing", "path", rel)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned for an unknown level name.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel converts a level name (debug, info, warn, error) to a log.Level.
func ParseLevel(s string) (log.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		name = "warn"
	}
	switch name {
	case "debug", "info", "warn", "error":
		return log.ParseLevel(name)
	default:
		return log.InfoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default file log level.
	Level string
	// Path is the log file. Empty uses DefaultLogPath().
	Path string
	// Rotation controls log file rotation.
	Rotation RotationConfig
	// Components overrides the level per component name.
	Components map[string]string
	// ConsoleLevel mirrors records at or above this level to Console.
	// Empty disables console output.
	ConsoleLevel string
	// Console receives console output. Defaults to os.Stderr.
	Console io.Writer
}

// DefaultLogPath returns $XDG_STATE_HOME/changeguard/changeguard.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "changeguard", "changeguard.log")
}

// Logger is a component-scoped logger.
type Logger struct {
	component string
	sinks     atomic.Pointer[[]*log.Logger]
}

func newLogger(component string, sinks []*log.Logger) *Logger {
	l := &Logger{component: component}
	l.sinks.Store(&sinks)
	return l
}

func (l *Logger) each(fn func(*log.Logger)) {
	if p := l.sinks.Load(); p != nil {
		for _, s := range *p {
			fn(s)
		}
	}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.each(func(s *log.Logger) { s.Debug(msg, keyvals...) })
}

// Info logs at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.each(func(s *log.Logger) { s.Info(msg, keyvals...) })
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.each(func(s *log.Logger) { s.Warn(msg, keyvals...) })
}

// Error logs at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.each(func(s *log.Logger) { s.Error(msg, keyvals...) })
}

// With returns a logger that adds keyvals to every record.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	var sinks []*log.Logger
	l.each(func(s *log.Logger) { sinks = append(sinks, s.With(keyvals...)) })
	return newLogger(l.component, sinks)
}

// Component returns the name the logger was created with.
func (l *Logger) Component() string {
	return l.component
}

type registry struct {
	mu         sync.Mutex
	active     bool
	writer     *RotatingWriter
	level      log.Level
	components map[string]log.Level
	console    io.Writer
	consoleLvl log.Level
	loggers    map[string]*Logger
}

var global = &registry{loggers: make(map[string]*Logger)}

// Init configures the logging system. Calling Init again replaces the
// previous configuration; existing loggers pick up the new settings.
func Init(cfg Config) error {
	level, err := ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]log.Level, len(cfg.Components))
	for name, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", name, err)
		}
		components[name] = parsed
	}

	var console io.Writer
	var consoleLvl log.Level
	if cfg.ConsoleLevel != "" {
		consoleLvl, err = ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		console = cfg.Console
		if console == nil {
			console = os.Stderr
		}
	}

	writer, err := NewRotatingWriter(defaultString(cfg.Path, DefaultLogPath()), cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}
	global.active = true
	global.writer = writer
	global.level = level
	global.components = components
	global.console = console
	global.consoleLvl = consoleLvl

	for name, l := range global.loggers {
		sinks := global.sinksFor(name)
		l.sinks.Store(&sinks)
	}
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	global.mu.Lock()
	defer global.mu.Unlock()

	if l, ok := global.loggers[component]; ok {
		return l
	}
	l := newLogger(component, global.sinksFor(component))
	global.loggers[component] = l
	return l
}

// Close flushes the log file and returns the system to its silent state.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}
	global.active = false
	global.console = nil
	for _, l := range global.loggers {
		l.sinks.Store(nil)
	}
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// sinksFor builds the outputs for a component. Must hold r.mu.
func (r *registry) sinksFor(component string) []*log.Logger {
	if !r.active {
		return nil
	}

	level := r.level
	if lvl, ok := r.components[component]; ok {
		level = lvl
	}

	sinks := []*log.Logger{log.NewWithOptions(r.writer, log.Options{
		Level:           level,
		Prefix:          component,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})}

	if r.console != nil {
		sinks = append(sinks, log.NewWithOptions(r.console, log.Options{
			Level:           r.consoleLvl,
			Prefix:          component,
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		}))
	}
	return sinks
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
