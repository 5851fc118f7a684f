// Package logging is the structured logger used across pulse.
//
// Output is human-readable text for local development and JSON when running
// in Kubernetes or when PULSE_LOG_FORMAT=json. Error lines are rate limited
// so that a failing upstream cannot flood the log.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Levels in increasing severity.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// reserved keys are owned by the logger and never overwritten by fields.
var reserved = map[string]bool{
	"timestamp": true,
	"level":     true,
	"service":   true,
	"component": true,
	"message":   true,
}

// sink is shared by a logger and every child created with With.
type sink struct {
	mu           sync.RWMutex
	level        string
	format       string
	output       io.Writer
	errorLimiter *RateLimiter
}

// Logger writes map-field structured log lines.
type Logger struct {
	sink      *sink
	service   string
	component string
	fields    map[string]interface{}
}

// Options configure New. Zero values fall back to the environment.
type Options struct {
	Level  string
	Format string
	Output io.Writer
	// ErrorInterval is the minimum gap between two error lines.
	ErrorInterval time.Duration
}

// New creates a logger for service.
//
// Configuration priority:
//  1. Explicit options
//  2. PULSE_LOG_LEVEL and PULSE_LOG_FORMAT
//  3. Kubernetes auto-detection (JSON)
//  4. Defaults: INFO, text, stdout
func New(service string, opts Options) *Logger {
	level := opts.Level
	if level == "" {
		level = os.Getenv("PULSE_LOG_LEVEL")
	}
	if level == "" {
		level = LevelInfo
	}

	format := opts.Format
	if format == "" {
		format = os.Getenv("PULSE_LOG_FORMAT")
	}
	if format == "" {
		format = "text"
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		}
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	interval := opts.ErrorInterval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}

	return &Logger{
		sink: &sink{
			level:        strings.ToUpper(level),
			format:       strings.ToLower(format),
			output:       output,
			errorLimiter: NewRateLimiter(interval),
		},
		service:   service,
		component: "pulse",
	}
}

// With returns a child logger for component that adds fields to every line.
// The child shares level, format and output with its parent.
func (l *Logger) With(component string, fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if component == "" {
		component = l.component
	}
	return &Logger{sink: l.sink, service: l.service, component: component, fields: merged}
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log(LevelWarn, msg, fields)
}

// Error logs at error level, dropping lines that arrive faster than the
// configured error interval.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	if !l.sink.errorLimiter.Allow() {
		return
	}
	l.log(LevelError, msg, fields)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.log(LevelDebug, msg, fields)
}

// SetLevel changes the minimum level for this logger and its children.
func (l *Logger) SetLevel(level string) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = strings.ToUpper(level)
}

// SetFormat switches between "text" and "json".
func (l *Logger) SetFormat(format string) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.format = strings.ToLower(format)
}

// SetOutput changes the output writer (useful for testing).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.output = w
}

func (l *Logger) log(level, msg string, fields map[string]interface{}) {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()

	if !shouldLog(l.sink.level, level) {
		return
	}

	all := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range fields {
		if !reserved[k] {
			all[k] = v
		}
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	if l.sink.format == "json" {
		l.logJSON(timestamp, level, msg, all)
		return
	}
	l.logText(timestamp, level, msg, all)
}

func (l *Logger) logJSON(timestamp, level, msg string, fields map[string]interface{}) {
	entry := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}
	entry["timestamp"] = timestamp
	entry["level"] = level
	entry["service"] = l.service
	entry["component"] = l.component
	entry["message"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		data, _ = json.Marshal(map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   l.service,
			"component": l.component,
			"message":   msg,
			"log_error": err.Error(),
		})
	}
	fmt.Fprintln(l.sink.output, string(data))
}

func (l *Logger) logText(timestamp, level, msg string, fields map[string]interface{}) {
	var b strings.Builder
	if err, ok := fields["error"]; ok {
		fmt.Fprintf(&b, " error=%q", fmt.Sprint(err))
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "error" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(fields[k])
		if strings.ContainsAny(v, " \t\n\"") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}

	fmt.Fprintf(l.sink.output, "%s [%s] [%s:%s] %s%s\n",
		timestamp, level, l.component, l.service, msg, b.String())
}

func shouldLog(configured, level string) bool {
	current, ok1 := levelRank[configured]
	message, ok2 := levelRank[level]
	if !ok1 || !ok2 {
		return true
	}
	return message >= current
}
