// Package ga4 reads aggregate traffic from the Google Analytics 4 Data API.
package ga4

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/googleauth"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/analytics"
)

const (
	EnvPropertyID = "GA4_PROPERTY_ID"
	EnvBaseURL    = "GA4_BASE_URL"

	DefaultBaseURL = "https://analyticsdata.googleapis.com/v1beta"
	Scope          = "https://www.googleapis.com/auth/analytics.readonly"
)

// metrics are requested in this order and read back by position.
var metrics = []string{"totalUsers", "sessions", "screenPageViews", "bounceRate", "averageSessionDuration"}

func init() {
	analytics.Contribute("ga4", analytics.Candidate{
		Name:         "ga4",
		DisplayName:  "Google Analytics 4",
		IsConfigured: IsConfigured,
		New: func() (analytics.Provider, error) {
			account, err := googleauth.FromEnv()
			if err != nil {
				return nil, err
			}
			auth := httpclient.New("google-oauth", 15*time.Second, logging.Default().With("ga4", nil))
			return New(Config{
				PropertyID: config.Get(EnvPropertyID, ""),
				BaseURL:    config.Get(EnvBaseURL, DefaultBaseURL),
				Tokens:     googleauth.NewTokenSource(account, auth, Scope),
				Timeout:    30 * time.Second,
			})
		},
	})
}

// IsConfigured requires a numeric property ID and a parseable service
// account key.
func IsConfigured() bool {
	id, ok := config.Lookup(EnvPropertyID)
	if !ok {
		return false
	}
	if _, err := strconv.ParseUint(strings.TrimPrefix(id, "properties/"), 10, 64); err != nil {
		return false
	}
	return googleauth.Configured()
}

// TokenSource supplies OAuth access tokens. *googleauth.TokenSource
// implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config selects the property and the token source.
type Config struct {
	PropertyID string
	BaseURL    string
	Tokens     TokenSource
	Timeout    time.Duration
}

// Provider implements analytics.Provider.
type Provider struct {
	cfg    Config
	client *httpclient.BaseClient
}

// New creates a provider. The property ID and a token source are required.
func New(cfg Config) (*Provider, error) {
	cfg.PropertyID = strings.TrimPrefix(cfg.PropertyID, "properties/")
	if cfg.PropertyID == "" || cfg.Tokens == nil {
		return nil, fmt.Errorf("ga4: property ID and token source are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		cfg:    cfg,
		client: httpclient.New("ga4", cfg.Timeout, logging.Default().With("ga4", nil)),
	}, nil
}

func (p *Provider) Name() string        { return "ga4" }
func (p *Provider) DisplayName() string { return "Google Analytics 4" }

type runReportRequest struct {
	DateRanges      []dateRange  `json:"dateRanges"`
	Metrics         []namedField `json:"metrics"`
	DimensionFilter *filterExpr  `json:"dimensionFilter,omitempty"`
	KeepEmptyRows   bool         `json:"keepEmptyRows"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type namedField struct {
	Name string `json:"name"`
}

type filterExpr struct {
	Filter struct {
		FieldName    string `json:"fieldName"`
		StringFilter struct {
			MatchType string `json:"matchType"`
			Value     string `json:"value"`
		} `json:"stringFilter"`
	} `json:"filter"`
}

type runReportResponse struct {
	Rows []struct {
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

// Traffic runs a report with no dimensions, which yields a single row of
// totals (or no rows for an empty period).
func (p *Provider) Traffic(ctx context.Context, q analytics.TrafficQuery) (*analytics.TrafficReport, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	token, err := p.cfg.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("ga4: %w", err)
	}

	since, until := q.Period.Dates()
	body := runReportRequest{
		DateRanges:    []dateRange{{StartDate: since, EndDate: until}},
		KeepEmptyRows: true,
	}
	for _, m := range metrics {
		body.Metrics = append(body.Metrics, namedField{Name: m})
	}
	if q.Path != "" {
		f := &filterExpr{}
		f.Filter.FieldName = "pagePath"
		f.Filter.StringFilter.MatchType = "BEGINS_WITH"
		f.Filter.StringFilter.Value = q.Path
		body.DimensionFilter = f
	}

	endpoint := fmt.Sprintf("%s/properties/%s:runReport", p.cfg.BaseURL, p.cfg.PropertyID)
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var resp runReportResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}

	report := &analytics.TrafficReport{Provider: p.Name(), Period: q.Period}
	if len(resp.Rows) == 0 {
		return report, nil
	}
	values := resp.Rows[0].MetricValues
	if len(values) != len(metrics) {
		return nil, fmt.Errorf("ga4: expected %d metric values, got %d", len(metrics), len(values))
	}

	nums := make([]float64, len(values))
	for i, v := range values {
		if nums[i], err = strconv.ParseFloat(v.Value, 64); err != nil {
			return nil, fmt.Errorf("ga4: metric %s: %w", metrics[i], err)
		}
	}
	report.Visitors = int64(nums[0])
	report.Sessions = int64(nums[1])
	report.Pageviews = int64(nums[2])
	report.BounceRate = nums[3]
	report.AvgSessionDuration = time.Duration(nums[4] * float64(time.Second))
	return report, nil
}
