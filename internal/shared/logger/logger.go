package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"tenant-portal/internal/shared/contextkeys"

	"github.com/sirupsen/logrus"
)

// Constants for configuration
const (
	// Log formats
	logFormatJSON = "json"

	// Backends
	BackendLogrus = "logrus"
	BackendZap    = "zap"

	// Environment types
	envProduction = "production"
	envProd       = "prod"

	// Timestamp format
	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
	textTimestamp   = "2006-01-02 15:04:05"
)

// Logger defines the interface for structured logging operations
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger
	WithComponent(component string) Logger
}

// Config selects the logging backend and its output shape.
type Config struct {
	Backend     string `env:"LOG_BACKEND" envDefault:"logrus"`
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Format      string `env:"LOG_FORMAT" envDefault:"text"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// JSON reports whether structured JSON output was requested, either explicitly
// or implicitly by running in production.
func (c Config) JSON() bool {
	env := strings.ToLower(c.Environment)
	return strings.ToLower(c.Format) == logFormatJSON || env == envProduction || env == envProd
}

// contextFields maps context keys onto the field names they are logged under.
var contextFields = []struct {
	key   interface{}
	field string
}{
	{contextkeys.TenantIDKey, "tenant"},
	{contextkeys.ApplicationKey, "application"},
	{contextkeys.UserIDKey, "user_id"},
	{contextkeys.RequestIDKey, "request_id"},
	{contextkeys.ComponentKey, "component"},
	{contextkeys.OperationKey, "operation"},
}

func fieldsFromContext(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{})
	if ctx == nil {
		return fields
	}
	for _, cf := range contextFields {
		if val := ctx.Value(cf.key); val != nil {
			if strVal, ok := val.(string); ok && strVal != "" {
				fields[cf.field] = strVal
			}
		}
	}
	return fields
}

// LogrusLogger implements the Logger interface using logrus
type LogrusLogger struct {
	entry *logrus.Entry
}

// New builds a logger for the configured backend.
func New(cfg Config) Logger {
	if strings.EqualFold(cfg.Backend, BackendZap) {
		return NewZapLogger(cfg)
	}
	return newLogrus(cfg, os.Stdout)
}

// NewLogger creates a logrus logger configured from LOG_LEVEL, LOG_FORMAT and ENVIRONMENT
func NewLogger() Logger {
	return newLogrus(Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
		Environment: os.Getenv("ENVIRONMENT"),
	}, os.Stdout)
}

// NewLoggerWithConfig creates a logger with custom level and format
func NewLoggerWithConfig(level string, format string) Logger {
	return newLogrus(Config{Level: level, Format: format}, os.Stdout)
}

// NewLoggerWithWriter creates a logrus logger writing to w. Used by tests that inspect output.
func NewLoggerWithWriter(cfg Config, w io.Writer) Logger {
	return newLogrus(cfg, w)
}

func newLogrus(cfg Config, w io.Writer) *LogrusLogger {
	logger := logrus.New()
	logger.SetLevel(parseLevel(cfg.Level))

	if cfg.JSON() {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: textTimestamp,
		})
	}
	logger.SetOutput(w)

	return &LogrusLogger{
		entry: logrus.NewEntry(logger),
	}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "warning":
		return logrus.WarnLevel
	case "":
		return logrus.InfoLevel
	}
	if parsed, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		return parsed
	}
	return logrus.InfoLevel
}

// Debug logs a debug message
func (l *LogrusLogger) Debug(args ...interface{}) {
	l.entry.Debug(args...)
}

// Info logs an info message
func (l *LogrusLogger) Info(args ...interface{}) {
	l.entry.Info(args...)
}

// Warn logs a warning message
func (l *LogrusLogger) Warn(args ...interface{}) {
	l.entry.Warn(args...)
}

// Error logs an error message
func (l *LogrusLogger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

// Fatal logs a fatal message and exits
func (l *LogrusLogger) Fatal(args ...interface{}) {
	l.entry.Fatal(args...)
}

// Debugf logs a formatted debug message
func (l *LogrusLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Infof logs a formatted info message
func (l *LogrusLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warnf logs a formatted warning message
func (l *LogrusLogger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Errorf logs a formatted error message
func (l *LogrusLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Fatalf logs a formatted fatal message and exits
func (l *LogrusLogger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

// WithFields adds structured fields to the logger
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{
		entry: l.entry.WithFields(logrus.Fields(fields)),
	}
}

// WithContext adds tenant, application and request information carried by ctx
func (l *LogrusLogger) WithContext(ctx context.Context) Logger {
	return &LogrusLogger{
		entry: l.entry.WithFields(logrus.Fields(fieldsFromContext(ctx))),
	}
}

// WithComponent adds component name to the logger
func (l *LogrusLogger) WithComponent(component string) Logger {
	return &LogrusLogger{
		entry: l.entry.WithField("component", component),
	}
}

// Global logger instance
var defaultLogger Logger = NewLogger()

// SetDefault replaces the package-level logger used by the convenience functions.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Info logs an info message using the default logger
func Info(args ...interface{}) {
	defaultLogger.Info(args...)
}

// Warnf logs a formatted warning message using the default logger
func Warnf(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Errorf logs a formatted error message using the default logger
func Errorf(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// WithComponent creates a logger with component information
func WithComponent(component string) Logger {
	return defaultLogger.WithComponent(component)
}
