// Package ledger reports revenue from the internal accounting ledger in
// Postgres.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulseboard/pulse/internal/config"
	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/finance"
)

// EnvDatabaseURL holds a Postgres DSN in URL or keyword form.
const EnvDatabaseURL = "LEDGER_DATABASE_URL"

// revenueSQL sums one currency's entries in [start, end). Amounts are in
// minor units; refunds are stored as negative amounts.
const revenueSQL = `
SELECT
	COALESCE(SUM(amount) FILTER (WHERE kind = 'charge'), 0)            AS gross,
	COALESCE(-SUM(amount) FILTER (WHERE kind = 'refund'), 0)           AS refunds,
	COALESCE(SUM(fee) FILTER (WHERE kind IN ('charge', 'refund')), 0) AS fees,
	COUNT(*) FILTER (WHERE kind = 'charge')                            AS transactions
FROM ledger_entries
WHERE currency = $1
  AND occurred_at >= $2
  AND occurred_at < $3`

func init() {
	finance.Contribute("ledger", finance.Candidate{
		Name:         "ledger",
		DisplayName:  "Internal Ledger",
		IsConfigured: IsConfigured,
		New: func() (finance.Provider, error) {
			return Open(config.Get(EnvDatabaseURL, ""))
		},
	})
}

// IsConfigured reports whether LEDGER_DATABASE_URL holds a DSN pgx accepts.
// Parsing is local; no connection is made.
func IsConfigured() bool {
	dsn, ok := config.Lookup(EnvDatabaseURL)
	if !ok {
		return false
	}
	_, err := pgxpool.ParseConfig(dsn)
	return err == nil
}

// querier is the part of *pgxpool.Pool the provider uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Provider implements finance.Provider.
type Provider struct {
	db    querier
	close func()
}

// Open creates a lazily connecting pool for dsn.
func Open(dsn string) (*Provider, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: invalid %s: %w", EnvDatabaseURL, err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = 5 * time.Minute

	// NewWithConfig does not dial until the first query.
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to create pool: %w", err)
	}

	logging.Default().With("ledger", nil).Debug("Ledger pool created", map[string]interface{}{
		"host":     cfg.ConnConfig.Host,
		"database": cfg.ConnConfig.Database,
	})
	return &Provider{db: pool, close: pool.Close}, nil
}

func (p *Provider) Name() string        { return "ledger" }
func (p *Provider) DisplayName() string { return "Internal Ledger" }

// Revenue sums ledger entries with a single aggregate query.
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
	var transactions int64
	err = p.db.QueryRow(ctx, revenueSQL, q.Currency, q.Period.Start, q.Period.End).
		Scan(&summary.Gross, &summary.Refunds, &summary.Fees, &transactions)
	if err != nil {
		return nil, fmt.Errorf("ledger: revenue query failed: %w", err)
	}

	summary.Transactions = int(transactions)
	summary.Settle()
	return summary, nil
}

// Close releases the pool.
func (p *Provider) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
