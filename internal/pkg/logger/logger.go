package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"reviewflow-pipeline/internal/config"
)

type Fields map[string]interface{}

type Logger struct {
	base *logrus.Logger
}

type Entry struct {
	entry *logrus.Entry
}

func New(cfg config.LogConfig) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	base.SetLevel(level)

	switch cfg.Format {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		out = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
	base.SetOutput(out)

	return &Logger{base: base}, nil
}

// keyvalsToFields folds alternating key/value args into logrus fields.
// A trailing key without a value is kept under "extra".
func keyvalsToFields(keyvals []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i < len(keyvals)-1; i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		fields[key] = keyvals[i+1]
	}
	if len(keyvals)%2 == 1 {
		fields["extra"] = keyvals[len(keyvals)-1]
	}
	return fields
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.base.WithFields(keyvalsToFields(keyvals)).Debug(msg)
}

func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.base.WithFields(keyvalsToFields(keyvals)).Info(msg)
}

func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.base.WithFields(keyvalsToFields(keyvals)).Warn(msg)
}

func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.base.WithFields(keyvalsToFields(keyvals)).Error(msg)
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{entry: l.base.WithFields(logrus.Fields(fields))}
}

func (l *Logger) WithError(err error) *Entry {
	return &Entry{entry: l.base.WithError(err)}
}

func (e *Entry) Debug(msg string, keyvals ...interface{}) {
	e.entry.WithFields(keyvalsToFields(keyvals)).Debug(msg)
}

func (e *Entry) Info(msg string, keyvals ...interface{}) {
	e.entry.WithFields(keyvalsToFields(keyvals)).Info(msg)
}

func (e *Entry) Warn(msg string, keyvals ...interface{}) {
	e.entry.WithFields(keyvalsToFields(keyvals)).Warn(msg)
}

func (e *Entry) Error(msg string, keyvals ...interface{}) {
	e.entry.WithFields(keyvalsToFields(keyvals)).Error(msg)
}

// LogWorkflow records a review-level lifecycle event.
func (l *Logger) LogWorkflow(reviewID, requestID, event string, duration time.Duration, err error) {
	entry := l.base.WithFields(logrus.Fields{
		"review_id":   reviewID,
		"request_id":  requestID,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})

	if err != nil {
		entry.WithError(err).Error("workflow event")
		return
	}
	entry.Info("workflow event")
}

// LogStage records one pipeline stage for a review.
func (l *Logger) LogStage(reviewID, stage, event string, duration time.Duration, data map[string]interface{}, err error) {
	entry := l.base.WithFields(logrus.Fields{
		"review_id":   reviewID,
		"stage":       stage,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})

	for k, v := range data {
		entry = entry.WithField(k, v)
	}

	if err != nil {
		entry.WithError(err).Error("stage event")
		return
	}
	entry.Info("stage event")
}

// LogService records one call against an external collaborator.
func (l *Logger) LogService(service, operation string, duration time.Duration, data map[string]interface{}, err error) {
	entry := l.base.WithFields(logrus.Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})

	for k, v := range data {
		entry = entry.WithField(k, v)
	}

	if err != nil {
		entry.WithError(err).Error("service call failed")
		return
	}
	entry.Debug("service call")
}
