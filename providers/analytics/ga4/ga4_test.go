package ga4

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulse/pkg/period"
	"github.com/pulseboard/pulse/providers/analytics"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

var april = period.Range{
	Start: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
}

func TestIsConfigured_PropertyID(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	for _, id := range []string{"", "abc", "properties/"} {
		t.Setenv(EnvPropertyID, id)
		assert.False(t, IsConfigured(), id)
	}
	t.Setenv(EnvPropertyID, "properties/123456")
	assert.False(t, IsConfigured(), "service account still missing")
}

func TestTraffic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties/123456:runReport", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req runReportRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []dateRange{{StartDate: "2024-04-01", EndDate: "2024-04-30"}}, req.DateRanges)
		assert.Len(t, req.Metrics, 5)
		if assert.NotNil(t, req.DimensionFilter) {
			assert.Equal(t, "/blog", req.DimensionFilter.Filter.StringFilter.Value)
		}

		_, _ = w.Write([]byte(`{"rows":[{"metricValues":[
			{"value":"1520"},{"value":"2100"},{"value":"6400"},{"value":"0.43"},{"value":"95.5"}
		]}]}`))
	}))
	defer server.Close()

	p, err := New(Config{PropertyID: "properties/123456", BaseURL: server.URL, Tokens: staticToken("tok")})
	require.NoError(t, err)

	report, err := p.Traffic(context.Background(), analytics.TrafficQuery{Period: april, Path: "/blog"})
	require.NoError(t, err)

	assert.Equal(t, int64(1520), report.Visitors)
	assert.Equal(t, int64(2100), report.Sessions)
	assert.Equal(t, int64(6400), report.Pageviews)
	assert.InDelta(t, 0.43, report.BounceRate, 1e-9)
	assert.Equal(t, 95500*time.Millisecond, report.AvgSessionDuration)
}

func TestTraffic_NoRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	p, err := New(Config{PropertyID: "1", BaseURL: server.URL, Tokens: staticToken("tok")})
	require.NoError(t, err)

	report, err := p.Traffic(context.Background(), analytics.TrafficQuery{Period: april})
	require.NoError(t, err)
	assert.Zero(t, report.Visitors)
	assert.Equal(t, "ga4", report.Provider)
}

func TestTraffic_InvalidQuery(t *testing.T) {
	p, err := New(Config{PropertyID: "1", Tokens: staticToken("tok")})
	require.NoError(t, err)

	_, err = p.Traffic(context.Background(), analytics.TrafficQuery{Period: april, Path: "blog"})
	assert.ErrorIs(t, err, analytics.ErrInvalidQuery)
}
