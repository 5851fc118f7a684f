// Package plausible reads aggregate traffic from the Plausible Stats API.
package plausible

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/analytics"
)

const (
	EnvAPIKey  = "PLAUSIBLE_API_KEY"
	EnvSiteID  = "PLAUSIBLE_SITE_ID"
	EnvBaseURL = "PLAUSIBLE_BASE_URL"

	DefaultBaseURL = "https://plausible.io"
)

func init() {
	analytics.Contribute("plausible", analytics.Candidate{
		Name:         "plausible",
		DisplayName:  "Plausible Analytics",
		IsConfigured: IsConfigured,
		New: func() (analytics.Provider, error) {
			return New(Config{
				APIKey:  config.Get(EnvAPIKey, ""),
				SiteID:  config.Get(EnvSiteID, ""),
				BaseURL: config.Get(EnvBaseURL, DefaultBaseURL),
				Timeout: 30 * time.Second,
			})
		},
	})
}

// IsConfigured requires an API key and a site ID. A self-hosted base URL,
// when set, must be an absolute http(s) URL.
func IsConfigured() bool {
	if !config.Present(EnvAPIKey, EnvSiteID) {
		return false
	}
	if base, ok := config.Lookup(EnvBaseURL); ok {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return false
		}
	}
	return true
}

// Config holds the site, key and endpoint. BaseURL defaults to the hosted
// service.
type Config struct {
	APIKey  string
	SiteID  string
	BaseURL string
	Timeout time.Duration
}

// Provider implements analytics.Provider.
type Provider struct {
	cfg    Config
	client *httpclient.BaseClient
}

// New creates a provider. The API key and site ID are required.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" || cfg.SiteID == "" {
		return nil, fmt.Errorf("plausible: %s and %s are required", EnvAPIKey, EnvSiteID)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		cfg:    cfg,
		client: httpclient.New("plausible", cfg.Timeout, logging.Default().With("plausible", nil)),
	}, nil
}

func (p *Provider) Name() string        { return "plausible" }
func (p *Provider) DisplayName() string { return "Plausible Analytics" }

type metricValue struct {
	Value float64 `json:"value"`
}

type aggregateResponse struct {
	Results struct {
		Visitors      metricValue `json:"visitors"`
		Visits        metricValue `json:"visits"`
		Pageviews     metricValue `json:"pageviews"`
		BounceRate    metricValue `json:"bounce_rate"`
		VisitDuration metricValue `json:"visit_duration"`
	} `json:"results"`
}

// Traffic calls /api/v1/stats/aggregate with a custom date period.
// Plausible reports bounce rate as a percentage; it is converted to a
// fraction.
func (p *Provider) Traffic(ctx context.Context, q analytics.TrafficQuery) (*analytics.TrafficReport, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	since, until := q.Period.Dates()
	params := url.Values{
		"site_id": {p.cfg.SiteID},
		"period":  {"custom"},
		"date":    {since + "," + until},
		"metrics": {"visitors,visits,pageviews,bounce_rate,visit_duration"},
	}
	if q.Path != "" {
		params.Set("filters", "event:page=="+q.Path+"**")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/v1/stats/aggregate?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	var resp aggregateResponse
	if err := p.client.DoJSON(ctx, req, &resp); err != nil {
		return nil, err
	}

	r := resp.Results
	return &analytics.TrafficReport{
		Provider:           p.Name(),
		Period:             q.Period,
		Visitors:           int64(r.Visitors.Value),
		Sessions:           int64(r.Visits.Value),
		Pageviews:          int64(r.Pageviews.Value),
		BounceRate:         r.BounceRate.Value / 100,
		AvgSessionDuration: time.Duration(r.VisitDuration.Value * float64(time.Second)),
	}, nil
}
