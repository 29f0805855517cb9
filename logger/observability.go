// Package logger provides structured JSON logging for the classification
// pipeline. Entries are Loki-friendly: every line carries a component and
// a category label.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ServiceName is attached to every entry
const ServiceName = "stream-classifier"

// ObservabilityLogger provides structured logging using logrus
type ObservabilityLogger struct {
	logger *logrus.Logger
	file   *os.File
}

// Component constants for consistent labeling
const (
	ComponentParser     = "parser"
	ComponentClassifier = "classifier"
	ComponentPythonCall = "pythoncall"
	ComponentStream     = "stream"
	ComponentProxy      = "proxy_core"
	ComponentConfig     = "configuration"
)

// Category constants for log classification
const (
	CategoryRequest        = "request"
	CategoryClassification = "classification"
	CategoryDegradation    = "degradation"
	CategoryError          = "error"
	CategorySuccess        = "success"
	CategoryDebug          = "debug"
)

// NewObservabilityLogger creates a logger appending JSON lines to
// <logDir>/stream-classifier.jsonl
func NewObservabilityLogger(logDir string) (*ObservabilityLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, ServiceName+".jsonl")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	o := NewObservabilityLoggerWithWriter(file)
	o.file = file
	return o, nil
}

// NewObservabilityLoggerWithWriter creates a logger writing JSON lines to w
func NewObservabilityLoggerWithWriter(w io.Writer) *ObservabilityLogger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetLevel(logrus.InfoLevel)

	return &ObservabilityLogger{logger: logger}
}

// SetLevel sets the minimum level by name (debug, info, warn, error)
func (o *ObservabilityLogger) SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	o.logger.SetLevel(lvl)
	return nil
}

// Close closes the log file
func (o *ObservabilityLogger) Close() error {
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

// createEntry creates a logrus entry with standard fields
func (o *ObservabilityLogger) createEntry(component, category, requestID string, fields map[string]interface{}) *logrus.Entry {
	entry := o.logger.WithFields(logrus.Fields{
		"service":   ServiceName,
		"component": component,
		"category":  category,
	})

	if requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	if fields != nil {
		entry = entry.WithFields(fields)
	}

	return entry
}

// Debug logs a debug message
func (o *ObservabilityLogger) Debug(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Debug(message)
}

// Info logs an info message
func (o *ObservabilityLogger) Info(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Info(message)
}

// Warn logs a warning message
func (o *ObservabilityLogger) Warn(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Warn(message)
}

// Error logs an error message
func (o *ObservabilityLogger) Error(component, category, requestID, message string, fields map[string]interface{}) {
	o.createEntry(component, category, requestID, fields).Error(message)
}

// Request logs request-related events
func (o *ObservabilityLogger) Request(requestID, message string, fields map[string]interface{}) {
	o.Info(ComponentProxy, CategoryRequest, requestID, message, fields)
}

// LogFunc returns a hook for packages that take a logging func, such as
// classifier.WithLogFunc. Degradations
// are logged at warn, errors at error, debug entries at debug and
// everything else at info.
func (o *ObservabilityLogger) LogFunc() func(component, category, requestID, message string, fields map[string]interface{}) {
	return func(component, category, requestID, message string, fields map[string]interface{}) {
		switch category {
		case CategoryDegradation:
			o.Warn(component, category, requestID, message, fields)
		case CategoryError:
			o.Error(component, category, requestID, message, fields)
		case CategoryDebug:
			o.Debug(component, category, requestID, message, fields)
		default:
			o.Info(component, category, requestID, message, fields)
		}
	}
}
