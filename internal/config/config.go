// Package config loads pulse settings.
//
// Values are layered, later layers winning:
//  1. DefaultConfig
//  2. optional config file (JSON or YAML)
//  3. PULSE_* environment variables (a .env file is read first when present)
//  4. functional options
//
// Provider credentials are not part of Config. Each provider reads its own
// settings from the environment in its readiness probe.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")
)

// Error is a configuration problem with the field that caused it.
type Error struct {
	Op      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is configuration related.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrMissingConfiguration)
}

// Config is the complete pulse configuration.
type Config struct {
	ServiceName string          `json:"service_name" yaml:"service_name"`
	HTTP        HTTPConfig      `json:"http" yaml:"http"`
	Logging     LoggingConfig   `json:"logging" yaml:"logging"`
	Telemetry   TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Discovery   DiscoveryConfig `json:"discovery" yaml:"discovery"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Address         string        `json:"address" yaml:"address"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig selects the log level (DEBUG to ERROR) and format
// ("text" or "json").
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Exporter is "otlp" or "stdout".
	Exporter string `json:"exporter" yaml:"exporter"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Insecure bool   `json:"insecure" yaml:"insecure"`
}

// DiscoveryConfig tunes provider discovery.
type DiscoveryConfig struct {
	// CandidateTimeout bounds each module load, probe and constructor.
	// Zero disables the limit.
	CandidateTimeout time.Duration `json:"candidate_timeout" yaml:"candidate_timeout"`
}

// Option modifies a Config after the file and environment layers.
type Option func(*Config) error

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "pulse",
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Exporter: "otlp",
		},
		Discovery: DiscoveryConfig{
			CandidateTimeout: 5 * time.Second,
		},
	}
}

// LoadDotEnv reads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored. With no arguments it reads ".env".
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromEnv applies PULSE_* variables. Malformed values are configuration
// errors rather than silently ignored.
func (c *Config) LoadFromEnv() error {
	if v, ok := Lookup("PULSE_SERVICE_NAME"); ok {
		c.ServiceName = v
	}
	if v, ok := Lookup("PULSE_HTTP_ADDRESS"); ok {
		c.HTTP.Address = v
	}
	if v, ok := Lookup("PORT"); ok {
		c.HTTP.Address = ":" + v
	}
	for name, target := range map[string]*time.Duration{
		"PULSE_HTTP_READ_TIMEOUT":           &c.HTTP.ReadTimeout,
		"PULSE_HTTP_WRITE_TIMEOUT":          &c.HTTP.WriteTimeout,
		"PULSE_HTTP_SHUTDOWN_TIMEOUT":       &c.HTTP.ShutdownTimeout,
		"PULSE_DISCOVERY_CANDIDATE_TIMEOUT": &c.Discovery.CandidateTimeout,
	} {
		v, ok := Lookup(name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return &Error{Op: "config.LoadFromEnv", Field: name, Message: fmt.Sprintf("invalid duration %q", v), Err: ErrInvalidConfiguration}
		}
		*target = d
	}

	if v, ok := Lookup("PULSE_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := Lookup("PULSE_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}

	if v, ok := Lookup("PULSE_TELEMETRY_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Op: "config.LoadFromEnv", Field: "PULSE_TELEMETRY_ENABLED", Message: fmt.Sprintf("invalid boolean %q", v), Err: ErrInvalidConfiguration}
		}
		c.Telemetry.Enabled = b
	}
	if v, ok := Lookup("PULSE_TELEMETRY_EXPORTER"); ok {
		c.Telemetry.Exporter = v
	}
	if v, ok := Lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		c.Telemetry.Endpoint = v
	}
	if v, ok := Lookup("PULSE_TELEMETRY_ENDPOINT"); ok {
		c.Telemetry.Endpoint = v
	}
	if v, ok := Lookup("PULSE_TELEMETRY_INSECURE"); ok {
		c.Telemetry.Insecure = parseBool(v)
	}
	return nil
}

// LoadFromFile reads a JSON or YAML file over the current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return &Error{Op: "config.LoadFromFile", Field: "path", Message: fmt.Sprintf("unsupported config file extension %q", ext), Err: ErrInvalidConfiguration}
	}
	if err != nil {
		return &Error{Op: "config.LoadFromFile", Field: "path", Message: fmt.Sprintf("failed to parse %s: %v", path, err), Err: ErrInvalidConfiguration}
	}
	return nil
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	const op = "Config.Validate"

	if strings.TrimSpace(c.ServiceName) == "" {
		return &Error{Op: op, Field: "service_name", Message: "service name is required", Err: ErrMissingConfiguration}
	}
	if c.HTTP.Address == "" {
		return &Error{Op: op, Field: "http.address", Message: "listen address is required", Err: ErrMissingConfiguration}
	}
	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 || c.HTTP.ShutdownTimeout < 0 {
		return &Error{Op: op, Field: "http", Message: "timeouts cannot be negative", Err: ErrInvalidConfiguration}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &Error{Op: op, Field: "logging.level", Message: fmt.Sprintf("unknown log level %q", c.Logging.Level), Err: ErrInvalidConfiguration}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return &Error{Op: op, Field: "logging.format", Message: fmt.Sprintf("unknown log format %q", c.Logging.Format), Err: ErrInvalidConfiguration}
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "otlp":
			if c.Telemetry.Endpoint == "" {
				return &Error{Op: op, Field: "telemetry.endpoint", Message: "telemetry endpoint is required for the otlp exporter", Err: ErrMissingConfiguration}
			}
		case "stdout":
		default:
			return &Error{Op: op, Field: "telemetry.exporter", Message: fmt.Sprintf("unknown exporter %q", c.Telemetry.Exporter), Err: ErrInvalidConfiguration}
		}
	}
	if c.Discovery.CandidateTimeout < 0 {
		return &Error{Op: op, Field: "discovery.candidate_timeout", Message: "candidate timeout cannot be negative", Err: ErrInvalidConfiguration}
	}
	return nil
}

// Load builds the configuration: defaults, then file (when path is not
// empty), then environment, then opts. The result is validated.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WithServiceName sets the name used in logs and trace resources.
func WithServiceName(name string) Option {
	return func(c *Config) error {
		c.ServiceName = name
		return nil
	}
}

// WithAddress sets the status server listen address, e.g. ":9090".
func WithAddress(addr string) Option {
	return func(c *Config) error {
		if addr == "" {
			return &Error{Op: "WithAddress", Field: "http.address", Message: "address cannot be empty", Err: ErrInvalidConfiguration}
		}
		c.HTTP.Address = addr
		return nil
	}
}

// WithLogLevel overrides the configured log level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat overrides the configured log format.
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithTelemetry enables tracing with the given exporter and endpoint.
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithCandidateTimeout sets discovery.candidate_timeout. Negative values
// are rejected.
func WithCandidateTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return &Error{Op: "WithCandidateTimeout", Field: "discovery.candidate_timeout", Message: "timeout cannot be negative", Err: ErrInvalidConfiguration}
		}
		c.Discovery.CandidateTimeout = d
		return nil
	}
}

// parseBool accepts "true", "1", "yes" and "on" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
