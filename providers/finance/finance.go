// Package finance defines the revenue contract and its extension namespace.
// Provider packages live in sub-directories and contribute themselves from
// init().
package finance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pulseboard/pulse/pkg/period"
	"github.com/pulseboard/pulse/registry"
)

// DomainKey is the key this contract is registered under.
const DomainKey = "finance"

// Extensions is the namespace finance providers contribute to.
var Extensions = registry.NewNamespace("providers/finance")

// ErrInvalidQuery is returned for a malformed RevenueQuery.
var ErrInvalidQuery = errors.New("invalid revenue query")

var currencyCode = regexp.MustCompile(`^[a-z]{3}$`)

// Provider reports revenue from a payment processor or an accounting store.
type Provider interface {
	registry.Provider

	// Revenue sums settled transactions in q.Period for q.Currency.
	// Amounts are returned in the currency's minor unit (cents for usd).
	// Fails with ErrInvalidQuery for a bad query and with the upstream
	// error when the source cannot be read.
	Revenue(ctx context.Context, q RevenueQuery) (*RevenueSummary, error)
}

// Candidate describes a finance provider before activation.
type Candidate = registry.Candidate[Provider]

// Contribute adds a provider module to the finance namespace.
func Contribute(id string, c Candidate) {
	Extensions.Contribute(id, func() ([]any, error) {
		return []any{c}, nil
	})
}

// RevenueQuery selects the transactions to sum.
type RevenueQuery struct {
	Period period.Range `json:"period"`
	// Currency is a lowercase ISO 4217 code. Empty means "usd".
	Currency string `json:"currency,omitempty"`
}

// Normalize fills defaults and validates the query.
func (q RevenueQuery) Normalize() (RevenueQuery, error) {
	q.Currency = strings.ToLower(strings.TrimSpace(q.Currency))
	if q.Currency == "" {
		q.Currency = "usd"
	}
	if !currencyCode.MatchString(q.Currency) {
		return q, fmt.Errorf("%w: currency %q", ErrInvalidQuery, q.Currency)
	}
	if err := q.Period.Validate(); err != nil {
		return q, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return q, nil
}

// RevenueSummary is the settled revenue for one period. Only sales and
// refunds contribute; payouts, transfers and account-level fees do not.
type RevenueSummary struct {
	Provider string       `json:"provider"`
	Period   period.Range `json:"period"`
	Currency string       `json:"currency"`
	// Gross is the sum of sales before refunds and fees.
	Gross int64 `json:"gross"`
	// Fees are the processing fees charged on sales and refunds.
	Fees int64 `json:"fees"`
	// Refunds is the positive amount returned to customers.
	Refunds int64 `json:"refunds"`
	// Net is always Gross - Refunds - Fees.
	Net          int64 `json:"net"`
	Transactions int   `json:"transactions"`
}

// Settle sets Net from the other amounts.
func (s *RevenueSummary) Settle() {
	s.Net = s.Gross - s.Refunds - s.Fees
}
