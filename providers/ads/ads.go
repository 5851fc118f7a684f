// Package ads defines the advertising spend contract.
package ads

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/pulseboard/pulse/pkg/period"
	"github.com/pulseboard/pulse/registry"
)

// DomainKey is the key this contract is registered under.
const DomainKey = "ads"

// Extensions is the namespace ad platforms contribute to.
var Extensions = registry.NewNamespace("providers/ads")

// ErrInvalidPeriod wraps period.ErrInvalidRange for ad platform queries.
var ErrInvalidPeriod = errors.New("invalid ads period")

// Platform reports campaign spend for one ad account. Several platforms are
// usually active at once.
type Platform interface {
	registry.Provider

	// CampaignSpend lists campaigns with spend or delivery in p, ordered by
	// spend descending. Campaigns without activity are omitted.
	CampaignSpend(ctx context.Context, p period.Range) ([]CampaignSpend, error)
}

// Candidate describes an ad platform before activation.
type Candidate = registry.Candidate[Platform]

// Contribute adds a platform module to the ads namespace.
func Contribute(id string, c Candidate) {
	Extensions.Contribute(id, func() ([]any, error) {
		return []any{c}, nil
	})
}

// CampaignSpend is one campaign's delivery over the requested period.
type CampaignSpend struct {
	Platform     string  `json:"platform"`
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	Currency     string  `json:"currency,omitempty"`
	Spend        float64 `json:"spend"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
}

// CTR is the click-through rate, or zero without impressions.
func (c CampaignSpend) CTR() float64 {
	if c.Impressions == 0 {
		return 0
	}
	return float64(c.Clicks) / float64(c.Impressions)
}

// ValidatePeriod checks p for platform queries.
func ValidatePeriod(p period.Range) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPeriod, err)
	}
	return nil
}

// SortBySpend orders campaigns by spend, highest first, then by ID.
func SortBySpend(campaigns []CampaignSpend) {
	sort.SliceStable(campaigns, func(i, j int) bool {
		if campaigns[i].Spend != campaigns[j].Spend {
			return campaigns[i].Spend > campaigns[j].Spend
		}
		return campaigns[i].CampaignID < campaigns[j].CampaignID
	})
}

// TotalSpend sums spend across campaigns.
func TotalSpend(campaigns []CampaignSpend) float64 {
	var total float64
	for _, c := range campaigns {
		total += c.Spend
	}
	return total
}
