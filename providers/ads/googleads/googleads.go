// Package googleads reports campaign spend through the Google Ads API
// searchStream endpoint, authenticating with a service account.
package googleads

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/googleauth"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/pkg/period"
	"github.com/pulseboard/pulse/providers/ads"
)

const (
	EnvDeveloperToken  = "GOOGLE_ADS_DEVELOPER_TOKEN"
	EnvCustomerID      = "GOOGLE_ADS_CUSTOMER_ID"
	EnvLoginCustomerID = "GOOGLE_ADS_LOGIN_CUSTOMER_ID"
	EnvBaseURL         = "GOOGLE_ADS_BASE_URL"

	DefaultBaseURL = "https://googleads.googleapis.com/v17"
	Scope          = "https://www.googleapis.com/auth/adwords"
)

const campaignQuery = `SELECT campaign.id, campaign.name, customer.currency_code, metrics.cost_micros, metrics.impressions, metrics.clicks ` +
	`FROM campaign WHERE segments.date BETWEEN '%s' AND '%s' AND metrics.impressions > 0`

func init() {
	ads.Contribute("googleads", ads.Candidate{
		Name:         "googleads",
		DisplayName:  "Google Ads",
		IsConfigured: IsConfigured,
		New: func() (ads.Platform, error) {
			return NewFromEnv()
		},
	})
}

// IsConfigured requires a developer token, a customer ID and a parseable
// service account key.
func IsConfigured() bool {
	return config.Present(EnvDeveloperToken, EnvCustomerID) && googleauth.Configured()
}

// TokenSource supplies OAuth bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config holds the developer token, the customer account and the token
// source.
type Config struct {
	DeveloperToken  string
	CustomerID      string
	LoginCustomerID string
	BaseURL         string
	Tokens          TokenSource
	Timeout         time.Duration
}

// NewFromEnv builds a platform from the environment and the service account
// in GOOGLE_SERVICE_ACCOUNT_JSON.
func NewFromEnv() (*Platform, error) {
	account, err := googleauth.FromEnv()
	if err != nil {
		return nil, err
	}
	client := httpclient.New("google-oauth", 15*time.Second, logging.Default().With("googleads", nil))
	return New(Config{
		DeveloperToken:  config.Get(EnvDeveloperToken, ""),
		CustomerID:      config.Get(EnvCustomerID, ""),
		LoginCustomerID: config.Get(EnvLoginCustomerID, ""),
		BaseURL:         config.Get(EnvBaseURL, DefaultBaseURL),
		Tokens:          googleauth.NewTokenSource(account, client, Scope),
		Timeout:         60 * time.Second,
	})
}

// Platform implements ads.Platform.
type Platform struct {
	cfg    Config
	client *httpclient.BaseClient
}

// New creates a platform. The developer token, customer ID and token source
// are required.
func New(cfg Config) (*Platform, error) {
	if cfg.DeveloperToken == "" || cfg.CustomerID == "" || cfg.Tokens == nil {
		return nil, fmt.Errorf("googleads: developer token, customer ID and token source are required")
	}
	cfg.CustomerID = normalizeCustomerID(cfg.CustomerID)
	cfg.LoginCustomerID = normalizeCustomerID(cfg.LoginCustomerID)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Platform{
		cfg:    cfg,
		client: httpclient.New("googleads", cfg.Timeout, logging.Default().With("googleads", nil)),
	}, nil
}

func (p *Platform) Name() string        { return "googleads" }
func (p *Platform) DisplayName() string { return "Google Ads" }

type searchStreamBatch struct {
	Results []struct {
		Campaign struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"campaign"`
		Customer struct {
			CurrencyCode string `json:"currencyCode"`
		} `json:"customer"`
		Metrics struct {
			CostMicros  int64 `json:"costMicros,string"`
			Impressions int64 `json:"impressions,string"`
			Clicks      int64 `json:"clicks,string"`
		} `json:"metrics"`
	} `json:"results"`
}

// CampaignSpend runs a GAQL searchStream for the period. The API reports
// one row per campaign and day, so rows are folded by campaign ID.
func (p *Platform) CampaignSpend(ctx context.Context, r period.Range) ([]ads.CampaignSpend, error) {
	if err := ads.ValidatePeriod(r); err != nil {
		return nil, err
	}

	token, err := p.cfg.Tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("googleads: %w", err)
	}

	since, until := r.Dates()
	endpoint := fmt.Sprintf("%s/customers/%s/googleAds:searchStream", p.cfg.BaseURL, p.cfg.CustomerID)
	req, err := httpclient.NewJSONRequest(ctx, http.MethodPost, endpoint, map[string]string{
		"query": fmt.Sprintf(campaignQuery, since, until),
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("developer-token", p.cfg.DeveloperToken)
	if p.cfg.LoginCustomerID != "" {
		req.Header.Set("login-customer-id", p.cfg.LoginCustomerID)
	}

	var batches []searchStreamBatch
	if err := p.client.DoJSON(ctx, req, &batches); err != nil {
		return nil, err
	}

	byID := make(map[string]*ads.CampaignSpend)
	var order []string
	for _, batch := range batches {
		for _, row := range batch.Results {
			c, ok := byID[row.Campaign.ID]
			if !ok {
				c = &ads.CampaignSpend{
					Platform:     p.Name(),
					CampaignID:   row.Campaign.ID,
					CampaignName: row.Campaign.Name,
					Currency:     row.Customer.CurrencyCode,
				}
				byID[row.Campaign.ID] = c
				order = append(order, row.Campaign.ID)
			}
			c.Spend += float64(row.Metrics.CostMicros) / 1e6
			c.Impressions += row.Metrics.Impressions
			c.Clicks += row.Metrics.Clicks
		}
	}

	out := make([]ads.CampaignSpend, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	ads.SortBySpend(out)
	return out, nil
}

// normalizeCustomerID strips the dashes shown in the Ads UI.
func normalizeCustomerID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}
