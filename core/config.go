package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the instrumentation layer.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Once NewConfig returns, the configuration is treated as immutable by every
// component that receives it.
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithRemoteWrite("metrics.example.com", 443),
//	    WithTenant("acme", "secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Function identity and placement
	Function FunctionConfig `json:"function" yaml:"function"`

	// Static label values attached to every series
	Labels LabelConfig `json:"labels" yaml:"labels"`

	// Remote write (push) configuration
	RemoteWrite RemoteWriteConfig `json:"remote_write" yaml:"remote_write"`

	// Metric naming and collectors
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Optional tracing around the outbound push
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// FunctionConfig describes the deployed function. Name and Version are
// usually unknown until the first invocation unless the runtime exports them.
type FunctionConfig struct {
	Name         string `json:"name" yaml:"name" env:"AWS_LAMBDA_FUNCTION_NAME"`
	Version      string `json:"version" yaml:"version" env:"AWS_LAMBDA_FUNCTION_VERSION"`
	MemorySizeMB int    `json:"memory_size_mb" yaml:"memory_size_mb" env:"AWS_LAMBDA_FUNCTION_MEMORY_SIZE"`
	Region       string `json:"region" yaml:"region" env:"AWS_REGION"`
	AccountID    string `json:"account_id" yaml:"account_id" env:"ACCOUNT_ID"`
}

// LabelConfig contains the label values that are fixed at process start.
// Site defaults to the region and Environment defaults to the account id.
type LabelConfig struct {
	Namespace   string `json:"namespace" yaml:"namespace" default:"AWS/Lambda"`
	Source      string `json:"source" yaml:"source" default:"client_golang"`
	Site        string `json:"site" yaml:"site" env:"ASSERTS_SITE"`
	Environment string `json:"environment" yaml:"environment" env:"ASSERTS_ENVIRONMENT"`
}

// RemoteWriteConfig configures the periodic push to the metric store.
// The endpoint alone decides whether remote writing is possible; tenant and
// password are optional, and the password only takes effect with a tenant.
type RemoteWriteConfig struct {
	Host          string        `json:"host" yaml:"host" env:"ASSERTS_METRICSTORE_HOST,ASSERTS_CLOUD_HOST"`
	Port          int           `json:"port" yaml:"port" env:"ASSERTS_METRICSTORE_PORT" default:"443"`
	TenantName    string        `json:"tenant_name" yaml:"tenant_name" env:"ASSERTS_TENANT_NAME"`
	Password      string        `json:"password" yaml:"password" env:"ASSERTS_PASSWORD"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval" env:"ASSERTS_FLUSH_INTERVAL" default:"15s"`
	FlushOnStart  bool          `json:"flush_on_start" yaml:"flush_on_start" env:"ASSERTS_FLUSH_ON_START" default:"false"`
	Disabled      bool          `json:"disabled" yaml:"disabled" env:"ASSERTS_LAYER_DISABLED" default:"false"`
}

// MetricsConfig controls metric names and which default collectors are registered.
// OTLPEndpoint, when set, also exports invocation metrics over OTLP/HTTP.
type MetricsConfig struct {
	Prefix            string `json:"prefix" yaml:"prefix" default:"aws_lambda"`
	DefaultCollectors bool   `json:"default_collectors" yaml:"default_collectors" default:"true"`
	OTLPEndpoint      string `json:"otlp_endpoint" yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
}

// TracingConfig configures the optional span decorator around remote writes.
// Exporter is one of "otlp", "stdout" or "none". When empty it is inferred:
// "otlp" if an endpoint is set, "none" otherwise.
type TracingConfig struct {
	Exporter    string `json:"exporter" yaml:"exporter" env:"OTEL_TRACES_EXPORTER"`
	Endpoint    string `json:"endpoint" yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `json:"service_name" yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol string `json:"protocol" yaml:"protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc"`
	Insecure bool   `json:"insecure" yaml:"insecure" default:"true"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT,AWS_LAMBDA_LOG_FORMAT" default:"text"`
	Debug  bool   `json:"debug" yaml:"debug" env:"DEBUG" default:"false"`
}

// Option is a functional option for configuring the layer.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// Default values shared with the components that consume Config.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"

	DefaultPort          = 443
	DefaultFlushInterval = 15 * time.Second
	DefaultMetricPrefix  = "aws_lambda"
	DefaultNamespace     = "AWS/Lambda"
	DefaultSource        = "client_golang"
)

var metricPrefixPattern = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Labels: LabelConfig{
			Namespace: DefaultNamespace,
			Source:    DefaultSource,
		},
		RemoteWrite: RemoteWriteConfig{
			Port:          DefaultPort,
			FlushInterval: DefaultFlushInterval,
		},
		Metrics: MetricsConfig{
			Prefix:            DefaultMetricPrefix,
			DefaultCollectors: true,
		},
		Tracing: TracingConfig{
			Protocol: ProtocolGRPC,
			Insecure: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden by functional options.
//
// Returns an error if environment variables contain invalid values.
func (c *Config) LoadFromEnv() error {
	// Function identity
	if v := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); v != "" {
		c.Function.Name = v
	}
	if v := os.Getenv("AWS_LAMBDA_FUNCTION_VERSION"); v != "" {
		c.Function.Version = v
	}
	if v := os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"); v != "" {
		mem, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &LayerError{
				Op:      "Config.LoadFromEnv",
				Kind:    "config",
				Message: fmt.Sprintf("invalid AWS_LAMBDA_FUNCTION_MEMORY_SIZE: %q", v),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Function.MemorySizeMB = mem
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Function.Region = v
	}
	if v := os.Getenv("ACCOUNT_ID"); v != "" {
		c.Function.AccountID = v
	}

	// Labels
	if v := os.Getenv("ASSERTS_SITE"); v != "" {
		c.Labels.Site = v
	}
	if v := os.Getenv("ASSERTS_ENVIRONMENT"); v != "" {
		c.Labels.Environment = v
	}

	// Remote write
	if v := firstEnv("ASSERTS_METRICSTORE_HOST", "ASSERTS_CLOUD_HOST"); v != "" {
		c.RemoteWrite.Host = v
	}
	if v := os.Getenv("ASSERTS_METRICSTORE_PORT"); v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &LayerError{
				Op:      "Config.LoadFromEnv",
				Kind:    "config",
				Message: fmt.Sprintf("invalid ASSERTS_METRICSTORE_PORT: %q", v),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.RemoteWrite.Port = port
	}
	if v := os.Getenv("ASSERTS_TENANT_NAME"); v != "" {
		c.RemoteWrite.TenantName = v
	}
	if v := os.Getenv("ASSERTS_PASSWORD"); v != "" {
		c.RemoteWrite.Password = v
	}
	if v := os.Getenv("ASSERTS_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RemoteWrite.FlushInterval = d
		}
	}
	if v := os.Getenv("ASSERTS_FLUSH_ON_START"); v != "" {
		c.RemoteWrite.FlushOnStart = parseBool(v)
	}
	if v := os.Getenv("ASSERTS_LAYER_DISABLED"); v != "" {
		c.RemoteWrite.Disabled = parseBool(v)
	}

	// Tracing
	if v := os.Getenv("OTEL_TRACES_EXPORTER"); v != "" {
		c.Tracing.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Tracing.ServiceName = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); v != "" {
		c.Tracing.Protocol = strings.ToLower(v)
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); v != "" {
		c.Metrics.OTLPEndpoint = v
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := firstEnv("LOG_FORMAT", "AWS_LAMBDA_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("DEBUG"); v != "" {
		c.Logging.Debug = parseBool(v)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// Values in the file override defaults and environment variables that were
// loaded before it; functional options applied afterwards still win.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - Port must be between 1 and 65535
//   - Flush interval must be positive
//   - Metric prefix must be a valid Prometheus metric name
//   - Memory size must not be negative
func (c *Config) Validate() error {
	if c.RemoteWrite.Port < 1 || c.RemoteWrite.Port > 65535 {
		return &LayerError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.RemoteWrite.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.RemoteWrite.FlushInterval <= 0 {
		return &LayerError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("flush interval must be positive, got %s", c.RemoteWrite.FlushInterval),
			Err:     ErrInvalidConfiguration,
		}
	}

	if !metricPrefixPattern.MatchString(c.Metrics.Prefix) {
		return &LayerError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid metric prefix: %q", c.Metrics.Prefix),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Function.MemorySizeMB < 0 {
		return &LayerError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid memory size: %d", c.Function.MemorySizeMB),
			Err:     ErrInvalidConfiguration,
		}
	}

	switch c.Tracing.Exporter {
	case "", "otlp", "stdout", "none":
	default:
		return &LayerError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown trace exporter: %q", c.Tracing.Exporter),
			Err:     ErrInvalidConfiguration,
		}
	}

	switch c.Tracing.Protocol {
	case "", ProtocolGRPC, ProtocolHTTP:
	default:
		return &LayerError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown OTLP protocol: %q", c.Tracing.Protocol),
			Err:     ErrInvalidConfiguration,
		}
	}

	return nil
}

// applyDerivedDefaults fills values that default to other values.
// Site falls back to region, environment falls back to account id.
func (c *Config) applyDerivedDefaults() {
	if c.Labels.Site == "" {
		c.Labels.Site = c.Function.Region
	}
	if c.Labels.Environment == "" {
		c.Labels.Environment = c.Function.AccountID
	}
	if c.Tracing.Exporter == "" {
		if c.Tracing.Endpoint != "" {
			c.Tracing.Exporter = "otlp"
		} else {
			c.Tracing.Exporter = "none"
		}
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Function.Name
	}
}

// Helper functions

// firstEnv returns the first non-empty value among the given variables.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// Everything else is false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithRemoteWrite sets the metric store endpoint. host may be a bare host name
// or a URL carrying its own scheme. A port of 0 keeps the current port.
func WithRemoteWrite(host string, port int) Option {
	return func(c *Config) error {
		if port < 0 || port > 65535 {
			return &LayerError{
				Op:      "WithRemoteWrite",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.RemoteWrite.Host = host
		if port != 0 {
			c.RemoteWrite.Port = port
		}
		return nil
	}
}

// WithPort sets the metric store port. Port 443 selects https when the host
// carries no scheme of its own.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &LayerError{
				Op:      "WithPort",
				Kind:    "config",
				Message: fmt.Sprintf("invalid port: %d", port),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.RemoteWrite.Port = port
		return nil
	}
}

// WithTenant sets the tenant name and optional password used for basic auth.
func WithTenant(name, password string) Option {
	return func(c *Config) error {
		c.RemoteWrite.TenantName = name
		c.RemoteWrite.Password = password
		return nil
	}
}

// WithFlushInterval sets how often metrics are pushed.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return &LayerError{
				Op:      "WithFlushInterval",
				Kind:    "config",
				Message: fmt.Sprintf("flush interval must be positive, got %s", d),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.RemoteWrite.FlushInterval = d
		return nil
	}
}

// WithFlushOnStart makes the flusher push once immediately at construction.
func WithFlushOnStart(enabled bool) Option {
	return func(c *Config) error {
		c.RemoteWrite.FlushOnStart = enabled
		return nil
	}
}

// WithRemoteWriteDisabled keeps the flusher from ever starting its timer.
func WithRemoteWriteDisabled(disabled bool) Option {
	return func(c *Config) error {
		c.RemoteWrite.Disabled = disabled
		return nil
	}
}

// WithFunctionIdentity pre-populates function name and version.
func WithFunctionIdentity(name, version string) Option {
	return func(c *Config) error {
		c.Function.Name = name
		c.Function.Version = version
		return nil
	}
}

// WithRegion sets the hosting region label.
func WithRegion(region string) Option {
	return func(c *Config) error {
		c.Function.Region = region
		return nil
	}
}

// WithAccountID sets the account id label.
func WithAccountID(id string) Option {
	return func(c *Config) error {
		c.Function.AccountID = id
		return nil
	}
}

// WithMemorySize sets the memory limit reported by the memory gauge.
func WithMemorySize(mb int) Option {
	return func(c *Config) error {
		c.Function.MemorySizeMB = mb
		return nil
	}
}

// WithSite sets the site label.
func WithSite(site string) Option {
	return func(c *Config) error {
		c.Labels.Site = site
		return nil
	}
}

// WithEnvironment sets the environment label.
func WithEnvironment(env string) Option {
	return func(c *Config) error {
		c.Labels.Environment = env
		return nil
	}
}

// WithMetricPrefix changes the prefix of every metric name.
func WithMetricPrefix(prefix string) Option {
	return func(c *Config) error {
		if !metricPrefixPattern.MatchString(prefix) {
			return &LayerError{
				Op:      "WithMetricPrefix",
				Kind:    "config",
				Message: fmt.Sprintf("invalid metric prefix: %q", prefix),
				Err:     ErrInvalidConfiguration,
			}
		}
		c.Metrics.Prefix = prefix
		return nil
	}
}

// WithDefaultCollectors toggles the Go runtime and process collectors.
func WithDefaultCollectors(enabled bool) Option {
	return func(c *Config) error {
		c.Metrics.DefaultCollectors = enabled
		return nil
	}
}

// WithDebug enables debug logging, including the rendered metrics text.
func WithDebug(enabled bool) Option {
	return func(c *Config) error {
		c.Logging.Debug = enabled
		return nil
	}
}

// WithLogLevel sets the logging level.
// Valid levels: debug, info, warn, error
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = strings.ToLower(level)
		return nil
	}
}

// WithLogFormat sets the logging format.
// Valid formats: json, text
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = strings.ToLower(format)
		return nil
	}
}

// WithOTELEndpoint enables OTLP span export to the given collector.
func WithOTELEndpoint(endpoint string) Option {
	return func(c *Config) error {
		c.Tracing.Endpoint = endpoint
		if c.Tracing.Exporter == "" || c.Tracing.Exporter == "none" {
			c.Tracing.Exporter = "otlp"
		}
		return nil
	}
}

// WithTraceExporter selects the span exporter: otlp, stdout or none.
func WithTraceExporter(exporter string) Option {
	return func(c *Config) error {
		c.Tracing.Exporter = strings.ToLower(exporter)
		return nil
	}
}

// WithOTLPProtocol selects the OTLP transport: grpc or http/protobuf.
// Metrics are always exported over HTTP.
func WithOTLPProtocol(protocol string) Option {
	return func(c *Config) error {
		c.Tracing.Protocol = strings.ToLower(protocol)
		return nil
	}
}

// WithOTLPMetricsEndpoint exports invocation metrics to an OTLP/HTTP collector
// in addition to the remote write push.
func WithOTLPMetricsEndpoint(endpoint string) Option {
	return func(c *Config) error {
		c.Metrics.OTLPEndpoint = endpoint
		return nil
	}
}

// WithConfigFile loads configuration from a JSON or YAML file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// NewConfig creates a new configuration with the given options.
// It applies defaults, loads from environment, applies options, and validates.
func NewConfig(opts ...Option) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Load from environment first
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	// Apply functional options (these override env vars)
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	cfg.applyDerivedDefaults()

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
