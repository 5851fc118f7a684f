// Package metaads reports campaign spend from the Meta Marketing API
// insights edge.
package metaads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/pkg/period"
	"github.com/pulseboard/pulse/providers/ads"
)

const (
	EnvAccessToken = "META_ACCESS_TOKEN"
	EnvAdAccountID = "META_AD_ACCOUNT_ID"
	EnvBaseURL     = "META_GRAPH_BASE_URL"

	DefaultBaseURL = "https://graph.facebook.com/v19.0"

	maxPages = 100
)

func init() {
	ads.Contribute("metaads", ads.Candidate{
		Name:         "metaads",
		DisplayName:  "Meta Ads",
		IsConfigured: IsConfigured,
		New: func() (ads.Platform, error) {
			return New(Config{
				AccessToken: config.Get(EnvAccessToken, ""),
				AdAccountID: config.Get(EnvAdAccountID, ""),
				BaseURL:     config.Get(EnvBaseURL, DefaultBaseURL),
				Timeout:     30 * time.Second,
			})
		},
	})
}

// IsConfigured requires an access token and an ad account ID.
func IsConfigured() bool {
	return config.Present(EnvAccessToken, EnvAdAccountID)
}

// Config holds the Marketing API credentials and endpoint.
type Config struct {
	AccessToken string
	AdAccountID string
	BaseURL     string
	Timeout     time.Duration
}

// Platform implements ads.Platform.
type Platform struct {
	cfg    Config
	client *httpclient.BaseClient
}

// New creates a platform. The access token and ad account ID are required.
func New(cfg Config) (*Platform, error) {
	if cfg.AccessToken == "" || cfg.AdAccountID == "" {
		return nil, fmt.Errorf("metaads: %s and %s are required", EnvAccessToken, EnvAdAccountID)
	}
	if !strings.HasPrefix(cfg.AdAccountID, "act_") {
		cfg.AdAccountID = "act_" + cfg.AdAccountID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Platform{
		cfg:    cfg,
		client: httpclient.New("metaads", cfg.Timeout, logging.Default().With("metaads", nil)),
	}, nil
}

func (p *Platform) Name() string        { return "metaads" }
func (p *Platform) DisplayName() string { return "Meta Ads" }

type insightsPage struct {
	Data []struct {
		CampaignID      string `json:"campaign_id"`
		CampaignName    string `json:"campaign_name"`
		Spend           string `json:"spend"`
		Impressions     string `json:"impressions"`
		Clicks          string `json:"clicks"`
		AccountCurrency string `json:"account_currency"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// CampaignSpend reads campaign-level insights for the period, following
// paging.next links.
func (p *Platform) CampaignSpend(ctx context.Context, r period.Range) ([]ads.CampaignSpend, error) {
	if err := ads.ValidatePeriod(r); err != nil {
		return nil, err
	}

	since, until := r.Dates()
	timeRange, _ := json.Marshal(map[string]string{"since": since, "until": until})
	params := url.Values{
		"level":        {"campaign"},
		"fields":       {"campaign_id,campaign_name,spend,impressions,clicks,account_currency"},
		"time_range":   {string(timeRange)},
		"limit":        {"500"},
		"access_token": {p.cfg.AccessToken},
	}
	next := fmt.Sprintf("%s/%s/insights?%s", p.cfg.BaseURL, p.cfg.AdAccountID, params.Encode())

	var out []ads.CampaignSpend
	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("metaads: more than %d pages of insights", maxPages)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		var body insightsPage
		if err := p.client.DoJSON(ctx, req, &body); err != nil {
			return nil, err
		}

		for _, row := range body.Data {
			c := ads.CampaignSpend{
				Platform:     p.Name(),
				CampaignID:   row.CampaignID,
				CampaignName: row.CampaignName,
				Currency:     row.AccountCurrency,
			}
			if c.Spend, err = parseFloat(row.Spend); err != nil {
				return nil, fmt.Errorf("metaads: campaign %s spend: %w", row.CampaignID, err)
			}
			if c.Impressions, err = parseInt(row.Impressions); err != nil {
				return nil, fmt.Errorf("metaads: campaign %s impressions: %w", row.CampaignID, err)
			}
			if c.Clicks, err = parseInt(row.Clicks); err != nil {
				return nil, fmt.Errorf("metaads: campaign %s clicks: %w", row.CampaignID, err)
			}
			out = append(out, c)
		}
		next = body.Paging.Next
	}

	if out == nil {
		out = []ads.CampaignSpend{}
	}
	ads.SortBySpend(out)
	return out, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
