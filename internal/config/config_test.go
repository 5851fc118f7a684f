package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pulse", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 5*time.Second, cfg.Discovery.CandidateTimeout)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service_name: from-file
http:
  address: ":7000"
  read_timeout: 3s
logging:
  level: debug
discovery:
  candidate_timeout: 2s
`), 0o600))

	t.Setenv("PULSE_HTTP_ADDRESS", ":9000")
	t.Setenv("PULSE_LOG_FORMAT", "json")

	cfg, err := Load(path, WithServiceName("from-option"))
	require.NoError(t, err)

	assert.Equal(t, "from-option", cfg.ServiceName, "options win over file")
	assert.Equal(t, ":9000", cfg.HTTP.Address, "environment wins over file")
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2*time.Second, cfg.Discovery.CandidateTimeout)
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"service_name":"json-svc","telemetry":{"enabled":true,"exporter":"stdout"}}`), 0o600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, "json-svc", cfg.ServiceName)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "pulse.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("http: [not, a, map"), 0o600))
	toml := filepath.Join(dir, "pulse.toml")
	require.NoError(t, os.WriteFile(toml, []byte(""), 0o600))

	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.LoadFromFile(bad), ErrInvalidConfiguration)
	assert.ErrorIs(t, cfg.LoadFromFile(toml), ErrInvalidConfiguration)
	assert.Error(t, cfg.LoadFromFile(filepath.Join(dir, "missing.yaml")))
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "PULSE_DISCOVERY_CANDIDATE_TIMEOUT", "soon"},
		{"bad bool", "PULSE_TELEMETRY_ENABLED", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := DefaultConfig().LoadFromEnv()

			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Field)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"empty service", func(c *Config) { c.ServiceName = " " }, ErrMissingConfiguration},
		{"empty address", func(c *Config) { c.HTTP.Address = "" }, ErrMissingConfiguration},
		{"negative timeout", func(c *Config) { c.HTTP.ReadTimeout = -time.Second }, ErrInvalidConfiguration},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, ErrInvalidConfiguration},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidConfiguration},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, ErrMissingConfiguration},
		{"unknown exporter", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, ErrInvalidConfiguration},
		{"stdout exporter", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "stdout"
		}, nil},
		{"negative candidate timeout", func(c *Config) { c.Discovery.CandidateTimeout = -1 }, ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestOptions(t *testing.T) {
	_, err := Load("", WithAddress(""))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = Load("", WithCandidateTimeout(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cfg, err := Load("", WithTelemetry("otlp", "collector:4317"), WithLogLevel("warn"), WithLogFormat("json"), WithAddress(":1234"))
	require.NoError(t, err)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, ":1234", cfg.HTTP.Address)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PULSE_TEST_FROM_DOTENV=loaded\nPULSE_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("PULSE_TEST_PRESET", "from-env")
	t.Setenv("PULSE_TEST_FROM_DOTENV", "")
	require.NoError(t, os.Unsetenv("PULSE_TEST_FROM_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("PULSE_TEST_FROM_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("PULSE_TEST_PRESET"), "existing variables are kept")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("PULSE_TEST_A", " value ")
	t.Setenv("PULSE_TEST_BLANK", "   ")
	t.Setenv("PULSE_TEST_LIST", "a, b,,c ")

	v, ok := Lookup("PULSE_TEST_A")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = Lookup("PULSE_TEST_BLANK")
	assert.False(t, ok)

	assert.Equal(t, "fallback", Get("PULSE_TEST_UNSET_VAR", "fallback"))
	assert.True(t, Present("PULSE_TEST_A"))
	assert.False(t, Present("PULSE_TEST_A", "PULSE_TEST_BLANK"))
	assert.Equal(t, []string{"a", "b", "c"}, List("PULSE_TEST_LIST"))
	assert.Nil(t, List("PULSE_TEST_UNSET_VAR"))
}
