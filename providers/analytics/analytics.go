// Package analytics defines the web traffic contract.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulseboard/pulse/pkg/period"
	"github.com/pulseboard/pulse/registry"
)

// DomainKey is the key this contract is registered under.
const DomainKey = "analytics"

// Extensions is the namespace analytics providers contribute to.
var Extensions = registry.NewNamespace("providers/analytics")

// ErrInvalidQuery is returned for a malformed TrafficQuery.
var ErrInvalidQuery = errors.New("invalid traffic query")

// Provider reports aggregate site traffic.
type Provider interface {
	registry.Provider

	// Traffic aggregates visitors, sessions and pageviews over q.Period.
	Traffic(ctx context.Context, q TrafficQuery) (*TrafficReport, error)
}

// Candidate describes an analytics provider before activation.
type Candidate = registry.Candidate[Provider]

// Contribute adds a provider module to the analytics namespace.
func Contribute(id string, c Candidate) {
	Extensions.Contribute(id, func() ([]any, error) {
		return []any{c}, nil
	})
}

// TrafficQuery selects the window to aggregate. Path, when set, restricts
// the report to pages with that prefix.
type TrafficQuery struct {
	Period period.Range `json:"period"`
	Path   string       `json:"path,omitempty"`
}

// Validate checks the period and the optional path filter.
func (q TrafficQuery) Validate() error {
	if err := q.Period.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if q.Path != "" && q.Path[0] != '/' {
		return fmt.Errorf("%w: path %q must start with /", ErrInvalidQuery, q.Path)
	}
	return nil
}

// TrafficReport holds aggregate metrics. BounceRate is a fraction in [0,1].
type TrafficReport struct {
	Provider           string        `json:"provider"`
	Period             period.Range  `json:"period"`
	Visitors           int64         `json:"visitors"`
	Sessions           int64         `json:"sessions"`
	Pageviews          int64         `json:"pageviews"`
	BounceRate         float64       `json:"bounce_rate"`
	AvgSessionDuration time.Duration `json:"avg_session_duration"`
}
