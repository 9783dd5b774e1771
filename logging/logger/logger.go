// Package logger provides the structured logger used across the client,
// built on logrus with a JSON formatter by default.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls logger behavior.
type Config struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // "json" or "text"
	Output     string `json:"output" yaml:"output"` // "stdout", "stderr" or "file"
	OutputFile string `json:"output_file" yaml:"output_file"`
}

// Logger wraps logrus with the project defaults.
type Logger struct {
	*logrus.Logger
	logFile *os.File
	logPath string
}

var (
	standardLogger *Logger
	once           sync.Once
)

// StandardLogger returns the singleton logger instance.
func StandardLogger() *Logger {
	once.Do(func() {
		standardLogger = &Logger{Logger: logrus.New()}
		standardLogger.SetFormatter(&logrus.JSONFormatter{})
	})
	return standardLogger
}

// Init applies the configuration and returns a cleanup function.
func (l *Logger) Init(c *Config) (func(), error) {
	if c.Level != "" {
		level, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		l.SetLevel(level)
	}

	switch c.Format {
	case "", "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{})
	}

	switch c.Output {
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		l.logPath = c.OutputFile
		if l.logPath != "" {
			if err := l.setupLogFile(); err != nil {
				return nil, err
			}
		}
	default:
		l.SetOutput(os.Stdout)
	}

	return func() {
		if l.logFile != nil {
			_ = l.logFile.Close()
		}
	}, nil
}

func (l *Logger) setupLogFile() error {
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0777); err != nil {
		return err
	}
	logFilePath := fmt.Sprintf("%s.%s.log", strings.TrimSuffix(l.logPath, ".log"), time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	l.logFile = f
	l.SetOutput(f)
	return nil
}

// Fields aliases logrus.Fields so callers need not import logrus directly.
type Fields = logrus.Fields

// WithFields returns an entry carrying the given structured fields.
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// Exported helpers on the standard logger.

func Init(c *Config) (func(), error) { return StandardLogger().Init(c) }

func WithFields(fields Fields) *logrus.Entry { return StandardLogger().WithFields(fields) }

func Debugf(format string, args ...any) { StandardLogger().Debugf(format, args...) }
func Infof(format string, args ...any)  { StandardLogger().Infof(format, args...) }
func Warnf(format string, args ...any)  { StandardLogger().Warnf(format, args...) }
func Errorf(format string, args ...any) { StandardLogger().Errorf(format, args...) }
