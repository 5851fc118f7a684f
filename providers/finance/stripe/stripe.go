// Package stripe reports revenue from Stripe balance transactions.
package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/httpclient"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/finance"
)

const (
	EnvSecretKey = "STRIPE_SECRET_KEY"
	EnvBaseURL   = "STRIPE_BASE_URL"

	DefaultBaseURL = "https://api.stripe.com"

	pageSize = 100
	// maxPages bounds one Revenue call against runaway pagination.
	maxPages = 500
)

func init() {
	finance.Contribute("stripe", finance.Candidate{
		Name:         "stripe",
		DisplayName:  "Stripe",
		IsConfigured: IsConfigured,
		New: func() (finance.Provider, error) {
			return New(ConfigFromEnv())
		},
	})
}

// IsConfigured reports whether a Stripe secret or restricted key is set.
func IsConfigured() bool {
	key, ok := config.Lookup(EnvSecretKey)
	return ok && (strings.HasPrefix(key, "sk_") || strings.HasPrefix(key, "rk_"))
}

// Config holds the API key and endpoint. BaseURL defaults to DefaultBaseURL.
type Config struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// ConfigFromEnv reads STRIPE_SECRET_KEY and STRIPE_BASE_URL.
func ConfigFromEnv() Config {
	return Config{
		SecretKey: config.Get(EnvSecretKey, ""),
		BaseURL:   config.Get(EnvBaseURL, DefaultBaseURL),
		Timeout:   30 * time.Second,
	}
}

// Provider implements finance.Provider.
type Provider struct {
	client    *httpclient.BaseClient
	secretKey string
	baseURL   string
}

// New creates a provider. It fails only when the secret key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe: %s is required", EnvSecretKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{
		client:    httpclient.New("stripe", cfg.Timeout, logging.Default().With("stripe", nil)),
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

func (p *Provider) Name() string        { return "stripe" }
func (p *Provider) DisplayName() string { return "Stripe" }

type balanceTransaction struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Fee      int64  `json:"fee"`
	Net      int64  `json:"net"`
	Currency string `json:"currency"`
	Type     string `json:"type"`
}

type balanceTransactionList struct {
	Data    []balanceTransaction `json:"data"`
	HasMore bool                 `json:"has_more"`
}

// Revenue pages through balance transactions created in the period.
func (p *Provider) Revenue(ctx context.Context, q finance.RevenueQuery) (*finance.RevenueSummary, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	summary := &finance.RevenueSummary{
		Provider: p.Name(),
		Period:   q.Period,
		Currency: q.Currency,
	}

	params := url.Values{
		"limit":        {strconv.Itoa(pageSize)},
		"currency":     {q.Currency},
		"created[gte]": {strconv.FormatInt(q.Period.Start.Unix(), 10)},
		"created[lt]":  {strconv.FormatInt(q.Period.End.Unix(), 10)},
	}

	for page := 0; page < maxPages; page++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/balance_transactions?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(p.secretKey, "")

		var list balanceTransactionList
		if err := p.client.DoJSON(ctx, req, &list); err != nil {
			return nil, err
		}

		for _, tx := range list.Data {
			accumulate(summary, tx)
		}
		if !list.HasMore || len(list.Data) == 0 {
			summary.Settle()
			return summary, nil
		}
		params.Set("starting_after", list.Data[len(list.Data)-1].ID)
	}
	return nil, fmt.Errorf("stripe: more than %d pages of balance transactions", maxPages)
}

// accumulate adds a sale or refund to s. Other balance transaction types
// (payout, transfer, stripe_fee, adjustment) move money without being
// revenue and are skipped.
func accumulate(s *finance.RevenueSummary, tx balanceTransaction) {
	if tx.Currency != "" && tx.Currency != s.Currency {
		return
	}
	switch tx.Type {
	case "charge", "payment":
		s.Gross += tx.Amount
		s.Transactions++
	case "refund", "payment_refund":
		s.Refunds -= tx.Amount
	default:
		return
	}
	s.Fees += tx.Fee
}
