package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itsneelabh/lambdametrics/core"
)

// Logger writes leveled, structured log lines for the instrumentation layer.
//
// Output goes to stdout so the platform log collector picks it up next to the
// function's own output. JSON is used when the function runs with a JSON log
// format, text otherwise. Error lines are rate limited so a metric store that
// is down does not flood the function's logs on every tick.
type Logger struct {
	level     string
	debug     bool
	format    string
	component string
	mu        sync.RWMutex

	// shared by every logger derived with WithComponent
	out *logOutput

	// Rate limiting to prevent log flooding during failures
	errorLimiter *RateLimiter
}

// logOutput serializes writes to the destination and holds the function
// name, which becomes known after the logger is built.
type logOutput struct {
	mu       sync.Mutex
	w        io.Writer
	function string
}

// NewLogger builds a logger from the logging section of the configuration.
// function is written into every line; it may be empty before the first
// invocation.
func NewLogger(cfg core.LoggingConfig, function string) *Logger {
	level := strings.ToUpper(cfg.Level)
	if level == "" {
		level = "INFO"
	}

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "text"
	}

	return &Logger{
		level:        level,
		debug:        cfg.Debug || level == "DEBUG",
		format:       format,
		component:    "lambdametrics",
		out:          &logOutput{w: os.Stdout, function: function},
		errorLimiter: NewRateLimiter(1 * time.Second), // Max 1 error log per second
	}
}

// WithComponent returns a logger sharing this logger's settings, output and
// function name whose lines carry a different component name.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		level:        l.level,
		debug:        l.debug,
		format:       l.format,
		component:    component,
		out:          l.out,
		errorLimiter: l.errorLimiter,
	}
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

// Error logs error messages with rate limiting
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil {
		ok, suppressed := l.errorLimiter.AllowWithSuppressed()
		if !ok {
			return
		}
		if suppressed > 0 {
			fields = withField(fields, "suppressed_errors", suppressed)
		}
	}
	l.log("ERROR", msg, fields)
}

// Debug logs debug messages (only when debug mode is enabled)
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.mu.RLock()
	debug := l.debug
	l.mu.RUnlock()
	if !debug {
		return
	}
	l.log("DEBUG", msg, fields)
}

// DebugEnabled reports whether Debug lines are written.
func (l *Logger) DebugEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.debug
}

func (l *Logger) log(level, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	if level != "DEBUG" && !l.shouldLog(level) {
		l.mu.RUnlock()
		return
	}
	format, component := l.format, l.component
	l.mu.RUnlock()

	timestamp := time.Now().UTC().Format(time.RFC3339)

	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if format == "json" {
		logJSON(l.out.w, timestamp, level, component, l.out.function, msg, fields)
	} else {
		logText(l.out.w, timestamp, level, component, l.out.function, msg, fields)
	}
}

func logJSON(w io.Writer, timestamp, level, component, function, msg string, fields map[string]interface{}) {
	logEntry := map[string]interface{}{
		"timestamp": timestamp,
		"level":     level,
		"component": component,
		"message":   msg,
	}
	if function != "" {
		logEntry["function"] = function
	}

	for k, v := range fields {
		// Avoid overwriting core fields
		switch k {
		case "timestamp", "level", "component", "message", "function":
			continue
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		logEntry[k] = v
	}

	if data, err := json.Marshal(logEntry); err == nil {
		fmt.Fprintln(w, string(data))
	}
}

func logText(w io.Writer, timestamp, level, component, function, msg string, fields map[string]interface{}) {
	var fieldStr strings.Builder
	if len(fields) > 0 {
		// error first, then the rest in key order for stable output
		if err, ok := fields["error"]; ok {
			fieldStr.WriteString(fmt.Sprintf(" error=%q", fmt.Sprint(err)))
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			if k != "error" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fieldStr.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
		}
	}

	scope := component
	if function != "" {
		scope = component + ":" + function
	}
	fmt.Fprintf(w, "%s [%s] [%s] %s%s\n", timestamp, level, scope, msg, fieldStr.String())
}

// shouldLog determines if a log level should be output
func (l *Logger) shouldLog(level string) bool {
	levels := map[string]int{
		"DEBUG": 0,
		"INFO":  1,
		"WARN":  2,
		"ERROR": 3,
	}

	currentLevel, ok1 := levels[l.level]
	messageLevel, ok2 := levels[level]

	// Default to logging if levels are unknown
	if !ok1 || !ok2 {
		return true
	}

	return messageLevel >= currentLevel
}

// SetLevel dynamically updates the log level
func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = strings.ToUpper(level)
	l.debug = l.level == "DEBUG"
}

// SetFunction updates the function name written into each line once the
// identity becomes known. It applies to every logger sharing this output.
func (l *Logger) SetFunction(name string) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.function = name
}

// SetOutput changes the output writer (useful for testing). It applies to
// every logger sharing this output.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w = w
}

// withField copies fields and adds k. The caller's map is never mutated.
func withField(fields map[string]interface{}, k string, v interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for fk, fv := range fields {
		out[fk] = fv
	}
	out[k] = v
	return out
}

var _ core.Logger = (*Logger)(nil)
