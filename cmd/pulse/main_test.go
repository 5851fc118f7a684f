package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var providerEnv = []string{
	"STRIPE_SECRET_KEY", "LEDGER_DATABASE_URL",
	"GOOGLE_ADS_DEVELOPER_TOKEN", "GOOGLE_ADS_CUSTOMER_ID", "GOOGLE_SERVICE_ACCOUNT_JSON",
	"META_ACCESS_TOKEN", "META_AD_ACCOUNT_ID",
	"GA4_PROPERTY_ID", "PLAUSIBLE_API_KEY", "PLAUSIBLE_SITE_ID",
	"DISCORD_WEBHOOK_URL", "SLACK_WEBHOOK_URL",
	"NOTIFY_REDIS_URL", "NOTIFY_REDIS_CHANNEL", "NOTIFY_KAFKA_BROKERS", "OPENAI_API_KEY",
}

// clearProviderEnv blanks every provider setting so tests start from an
// unconfigured environment. Call it before setting the variables a test needs.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range providerEnv {
		t.Setenv(name, "")
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--env-file", "testdata/none.env"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	clearProviderEnv(t)
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pulse development"), out)
}

func TestProvidersCommand_JSON(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")

	out, _, err := execute(t, "providers", "--json")
	require.NoError(t, err)

	var status map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, map[string][]string{
		"finance":       {},
		"ads":           {},
		"analytics":     {},
		"notifications": {"slack"},
		"llm":           {},
	}, status)
}

func TestProvidersCommand_Table(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	out, _, err := execute(t, "providers")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Regexp(t, `^DOMAIN\s+STATE\s+PROVIDERS$`, lines[0])
	assert.Regexp(t, `^finance\s+populated\s+-$`, lines[1])
	assert.Regexp(t, `^llm\s+populated\s+openai$`, lines[5])
}

func TestProvidersCommand_BadConfig(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("PULSE_TELEMETRY_ENABLED", "maybe")

	_, _, err := execute(t, "providers")
	assert.Error(t, err)
}
