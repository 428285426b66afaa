// Package logging provides leveled, component-scoped log output for the
// coordination substrate. Denied operations and swallowed handler failures
// are surfaced here so they stay auditable without becoming errors.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Coordination audit helpers ---

// DeliveryError logs a subscriber handler failure. The failure is isolated
// at the dispatch site; this record is the only trace it leaves.
func (l *Logger) DeliveryError(messageID, recipient string, cause interface{}) {
	l.Error("delivery_error", map[string]interface{}{
		"message":   messageID,
		"recipient": recipient,
		"cause":     cause,
	})
}

// AccessDenied logs a shared-memory visibility denial.
func (l *Logger) AccessDenied(op, key, requestor, owner string) {
	l.Warn("access_denied", map[string]interface{}{
		"op":        op,
		"key":       key,
		"requestor": requestor,
		"owner":     owner,
	})
}

// LockDenied logs a lock acquisition refused because another owner holds it.
func (l *Logger) LockDenied(key, requestor, holder string) {
	l.Warn("lock_denied", map[string]interface{}{
		"key":       key,
		"requestor": requestor,
		"holder":    holder,
	})
}

// HandoffDenied logs a handoff accept/reject attempted by the wrong agent
// or against a record in a terminal state.
func (l *Logger) HandoffDenied(taskID, agentID, reason string) {
	l.Warn("handoff_denied", map[string]interface{}{
		"task":   taskID,
		"agent":  agentID,
		"reason": reason,
	})
}
