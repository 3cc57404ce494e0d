// Package logging standardizes the structured fields every sionet package
// attaches to its log entries. Loggers are always injected; nothing in this
// module writes through the logrus package-level logger.
package logging

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Helper carries a logger and a set of standard fields for one function.
type Helper struct {
	logger   *logrus.Logger
	function string
	pkg      string
	fields   logrus.Fields
}

// New creates a helper with the standard "function" and "package" fields. A
// nil logger is replaced by Discard.
func New(logger *logrus.Logger, pkg, function string) *Helper {
	if logger == nil {
		logger = Discard()
	}
	return &Helper{
		logger:   logger,
		function: function,
		pkg:      pkg,
		fields: logrus.Fields{
			"function": function,
			"package":  pkg,
		},
	}
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// WithCaller adds caller information to the helper
func (h *Helper) WithCaller() *Helper {
	if pc, file, line, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName := fn.Name()
			if lastSlash := strings.LastIndex(funcName, "/"); lastSlash >= 0 {
				funcName = funcName[lastSlash+1:]
			}
			h.fields["caller"] = fmt.Sprintf("%s:%d", file, line)
			h.fields["caller_func"] = funcName
		}
	}
	return h
}

// WithField adds a custom field
func (h *Helper) WithField(key string, value interface{}) *Helper {
	h.fields[key] = value
	return h
}

// WithFields adds multiple custom fields
func (h *Helper) WithFields(fields logrus.Fields) *Helper {
	for k, v := range fields {
		h.fields[k] = v
	}
	return h
}

// WithError adds the error, its result code name and the failing operation.
func (h *Helper) WithError(err error, code fmt.Stringer, operation string) *Helper {
	h.fields["error"] = err.Error()
	if code != nil {
		h.fields["result"] = code.String()
	}
	h.fields["operation"] = operation
	return h
}

// Trace logs a trace message
func (h *Helper) Trace(message string) {
	h.logger.WithFields(h.fields).Trace(message)
}

// Debug logs a debug message
func (h *Helper) Debug(message string) {
	h.logger.WithFields(h.fields).Debug(message)
}

// Info logs an info message
func (h *Helper) Info(message string) {
	h.logger.WithFields(h.fields).Info(message)
}

// Warn logs a warning message
func (h *Helper) Warn(message string) {
	h.logger.WithFields(h.fields).Warn(message)
}

// Error logs an error message
func (h *Helper) Error(message string) {
	h.logger.WithFields(h.fields).Error(message)
}

// FrameFields previews the first bytes of a frame in hex together with its
// size. Frames are logged at trace level only.
func FrameFields(data []byte, name string) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		previewLen := 16
		if len(data) < previewLen {
			previewLen = len(data)
		}
		preview = fmt.Sprintf("%x", data[:previewLen])
		if len(data) > previewLen {
			preview += "..."
		}
	}

	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}

// OperationFields creates standardized operation logging fields
func OperationFields(operation, status string, additional ...logrus.Fields) logrus.Fields {
	fields := logrus.Fields{
		"operation": operation,
		"status":    status,
	}

	for _, extra := range additional {
		for k, v := range extra {
			fields[k] = v
		}
	}

	return fields
}

// ParseLevel accepts a logrus level name or a numeric level 0 (panic) to
// 6 (trace).
func ParseLevel(s string) (logrus.Level, error) {
	s = strings.TrimSpace(s)
	if len(s) == 1 && s[0] >= '0' && s[0] <= '6' {
		return logrus.Level(s[0] - '0'), nil
	}
	return logrus.ParseLevel(s)
}
