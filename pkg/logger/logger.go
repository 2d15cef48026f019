// Package logger wraps logrus with the defaults the controller expects.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger so callers get a stable, swappable API.
type Logger struct {
	*logrus.Logger
}

// Config controls level and format of a Logger; output goes to stdout.
type Config struct {
	Level  string
	Format string
}

// New builds a Logger from Config. An unparseable level falls back to Info.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	l.SetOutput(os.Stdout)

	return &Logger{Logger: l}
}

// NewDefault builds a Logger at info level, stamping every entry with a
// component field via a permanent hook field added at construction time.
func NewDefault(component string) *Logger {
	l := New(Config{Level: "info", Format: "text"})
	l.Logger.AddHook(componentHook{component: component})
	return l
}

type componentHook struct{ component string }

func (h componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h componentHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["component"]; !ok {
		e.Data["component"] = h.component
	}
	return nil
}

// SetOutput redirects log output, mainly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.Logger.SetOutput(w)
}

// WithField returns a log entry carrying one structured field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a log entry carrying several structured fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}
