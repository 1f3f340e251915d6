// Package logger wraps logrus with the field conventions used across the
// library: every entry carries a component tag, warnings and errors feed the
// runtime counters reported by report.go.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias for logrus.Fields.
type Fields map[string]interface{}

// Log wraps logrus.Logger.
type Log struct {
	*logrus.Logger
}

// Entry wraps logrus.Entry.
type Entry struct {
	*logrus.Entry
}

var globalLogger *Log

func init() {
	globalLogger = Logger()
}

// Logger builds a new JSON logger. The level comes from LOG_LEVEL when set.
func Logger() *Log {
	logger := logrus.New()
	logger.SetReportCaller(true)

	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	switch strings.ToLower(levelStr) {
	case "report":
		logger.SetLevel(logrus.InfoLevel)
	default:
		if lvl, err := logrus.ParseLevel(strings.ToLower(levelStr)); err == nil {
			logger.SetLevel(lvl)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: callerPrettyfier,
	})
	logger.AddHook(&callerHook{})
	return &Log{Logger: logger}
}

// GetLogger returns the process-wide logger.
func GetLogger() *Log {
	return globalLogger
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	file := filepath.Base(f.File)
	return "", fmt.Sprintf("%s:%d", file, f.Line)
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

func (e *Entry) Info(args ...interface{}) {
	e.Entry.Info(args...)
}

func (e *Entry) Debug(args ...interface{}) {
	e.Entry.Debug(args...)
}

func (e *Entry) Warn(args ...interface{}) {
	if component, ok := e.Entry.Data["component"].(string); ok {
		recordWarn(component)
	}
	e.Entry.Warn(args...)
}

func (e *Entry) Error(args ...interface{}) {
	if component, ok := e.Entry.Data["component"].(string); ok {
		recordError(component)
	}
	e.Entry.Error(args...)
}

// Configure applies the logging section of the configuration.
func (l *Log) Configure(level string, format string, output string, maxAge int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}

	level = strings.ToLower(level)
	switch level {
	case "report":
		// report enables the periodic runtime report; log at info
		l.SetLevel(logrus.InfoLevel)
	default:
		if lvl, err := logrus.ParseLevel(level); err == nil {
			l.SetLevel(lvl)
		} else {
			return fmt.Errorf("invalid log level '%s'", level)
		}
	}

	l.SetReportCaller(true)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format '%s'", format)
	}

	switch output {
	case "stdout", "":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		// Anything else is a file path; rotate when a max age is set.
		if maxAge > 0 {
			l.SetOutput(&lumberjack.Logger{
				Filename: output,
				MaxAge:   maxAge,
				MaxSize:  100,
				Compress: true,
			})
		} else {
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				return fmt.Errorf("failed to open log file '%s': %w", output, err)
			}
			l.SetOutput(file)
		}
	}

	return nil
}
