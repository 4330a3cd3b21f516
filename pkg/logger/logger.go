package logger

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

type ErrorEntry struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

func NewLogger(service string) *Logger {
	return New(service, os.Stdout, "info")
}

// New builds a JSON logger for service writing to out. Unknown levels fall
// back to info.
func New(service string, out io.Writer, level string) *Logger {
	hostname, _ := os.Hostname()

	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	return &Logger{
		base: base,
		entry: base.WithFields(logrus.Fields{
			"service":  service,
			"hostname": hostname,
		}),
	}
}

// NewNop returns a logger that drops everything.
func NewNop() *Logger {
	return New("nop", io.Discard, "panic")
}

func (l *Logger) SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.base.SetLevel(lvl)
	}
}

func (l *Logger) Info(requestID, action, message string) {
	l.with(requestID, action).Info(message)
}

func (l *Logger) Debug(requestID, action, message string) {
	l.with(requestID, action).Debug(message)
}

func (l *Logger) Warn(requestID, action, message string) {
	l.with(requestID, action).Warn(message)
}

func (l *Logger) Error(requestID, action, message string, err error) {
	entry := l.with(requestID, action)
	if err != nil {
		buf := make([]byte, 1024)
		n := runtime.Stack(buf, false)
		entry = entry.WithField("error", ErrorEntry{
			Msg:   err.Error(),
			Stack: string(buf[:n]),
		})
	}
	entry.Error(message)
}

func (l *Logger) with(requestID, action string) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields{
		"request_id": requestID,
		"action":     action,
	})
}
