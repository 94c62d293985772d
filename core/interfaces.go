package core

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// MetricsSink receives the per-invocation measurements taken by the
// handler adapter. Implementations must be safe for concurrent use.
type MetricsSink interface {
	RecordInvocation()
	RecordError()
	// RecordLatency takes elapsed wall-clock time in seconds.
	RecordLatency(seconds float64)
}

// NoOpLogger discards everything. Used when no logger is injected.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Debug(string, map[string]interface{}) {}
