// Package logger provides the process-wide leveled logger used by mosaic
// and handed to plugins through the service registry.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the leveled, printf-style logging interface shared with plugins.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})

	// With returns a Logger that attaches the given key/value to every entry.
	With(key string, value interface{}) Logger
}

// Options configures a logger instance.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" mapstructure:"level"`
	// Format is "text" or "json".
	Format string `json:"format" mapstructure:"format"`
	// Output is "stderr", "stdout" or a file path.
	Output string `json:"output" mapstructure:"output"`
	// Verbose forces the debug level regardless of Level.
	Verbose bool `json:"verbose" mapstructure:"verbose"`
}

// NewOptions returns the default logger options.
func NewOptions() *Options {
	return &Options{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}
}

// Validate checks the logger options.
func (o *Options) Validate() []error {
	var errs []error
	if _, err := logrus.ParseLevel(o.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", o.Level))
	}
	switch o.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (must be 'text' or 'json')", o.Format))
	}
	return errs
}

type entryLogger struct {
	entry *logrus.Entry
}

var _ Logger = (*entryLogger)(nil)

// New creates a Logger from options. The returned closer releases the
// log file, if one was opened.
func New(opts *Options) (Logger, io.Closer, error) {
	l, closer, err := newLogrus(opts)
	if err != nil {
		return nil, nil, err
	}
	return &entryLogger{entry: logrus.NewEntry(l)}, closer, nil
}

// NewWithWriter creates a Logger writing text entries to w. Used by tests
// and by callers that manage their own output.
func NewWithWriter(w io.Writer, verbose bool) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return &entryLogger{entry: logrus.NewEntry(l)}
}

func (l *entryLogger) Debug(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *entryLogger) Info(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *entryLogger) Warn(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *entryLogger) Error(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *entryLogger) With(key string, value interface{}) Logger {
	return &entryLogger{entry: l.entry.WithField(key, value)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newLogrus(opts *Options) (*logrus.Logger, io.Closer, error) {
	if opts == nil {
		opts = NewOptions()
	}
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	switch opts.Output {
	case "", "stderr":
		l.SetOutput(os.Stderr)
	case "stdout":
		l.SetOutput(os.Stdout)
	default:
		if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %q: %w", opts.Output, err)
		}
		l.SetOutput(f)
		closer = f
	}
	return l, closer, nil
}

var (
	stdMu     sync.RWMutex
	std       Logger = &entryLogger{entry: logrus.NewEntry(logrus.StandardLogger())}
	stdCloser io.Closer
)

// InitLog replaces the package-level logger.
func InitLog(opts *Options) error {
	l, closer, err := New(opts)
	if err != nil {
		return err
	}
	stdMu.Lock()
	defer stdMu.Unlock()
	if stdCloser != nil {
		_ = stdCloser.Close()
	}
	std, stdCloser = l, closer
	return nil
}

// FlushLog closes the package-level log file, if any.
func FlushLog() {
	stdMu.Lock()
	defer stdMu.Unlock()
	if stdCloser != nil {
		_ = stdCloser.Close()
		stdCloser = nil
	}
}

// SetLogger installs l as the package-level logger.
func SetLogger(l Logger) {
	stdMu.Lock()
	defer stdMu.Unlock()
	std = l
}

// SetLevel changes the level of the package-level logger. Loggers derived
// with With share the change.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	if l, ok := Std().(*entryLogger); ok {
		l.entry.Logger.SetLevel(lvl)
	}
	return nil
}

// Std returns the package-level logger.
func Std() Logger {
	stdMu.RLock()
	defer stdMu.RUnlock()
	return std
}

func Debug(format string, args ...interface{}) { Std().Debug(format, args...) }
func Info(format string, args ...interface{})  { Std().Info(format, args...) }
func Warn(format string, args ...interface{})  { Std().Warn(format, args...) }
func Error(format string, args ...interface{}) { Std().Error(format, args...) }
