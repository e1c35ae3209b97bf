// Package ledgerpg reads the gate's view of network state from the ledger
// mirror database. The mirror is maintained by an external ingester; this
// package only ever reads.
package ledgerpg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
)

type Provider struct {
	Pool *pgxpool.Pool
}

func NewProvider(dsn string) (*Provider, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("LEDGER_DSN is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect ledger mirror: %w", err)
	}
	return &Provider{Pool: pool}, nil
}

func (p *Provider) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

// Snapshot assembles the ledger state a single authorization runs against.
// All reads happen at call time; the snapshot is not refreshed afterwards,
// which keeps one envelope's decision tied to one observed state.
func (p *Provider) Snapshot(ctx context.Context, currency string) (domain.LedgerState, error) {
	if p == nil || p.Pool == nil {
		return domain.LedgerState{}, fmt.Errorf("ledger mirror not configured")
	}

	var state domain.LedgerState

	query := `
SELECT fee_estimate, last_ledger_index
FROM ledger_status
ORDER BY last_ledger_index DESC
LIMIT 1`
	var feeEstimate string
	var lastIndex int64
	if err := p.Pool.QueryRow(ctx, query).Scan(&feeEstimate, &lastIndex); err != nil {
		return domain.LedgerState{}, fmt.Errorf("read ledger status: %w", err)
	}
	state.LastLedgerIndex = uint64(lastIndex)
	fee, err := decimal.NewFromString(feeEstimate)
	if err != nil {
		return domain.LedgerState{}, fmt.Errorf("parse fee estimate %q: %w", feeEstimate, err)
	}
	state.FeeEstimate = fee

	state.Blocklist, err = p.blocklist(ctx)
	if err != nil {
		return domain.LedgerState{}, err
	}
	state.ExchangeListings, err = p.exchangeListings(ctx)
	if err != nil {
		return domain.LedgerState{}, err
	}
	state.CorridorPeers, err = p.corridorPeers(ctx, currency)
	if err != nil {
		return domain.LedgerState{}, err
	}
	return state, nil
}

// SourceBalance returns the settled balance for the configured source
// account in the given currency.
func (p *Provider) SourceBalance(ctx context.Context, account, currency string) (decimal.Decimal, error) {
	if p == nil || p.Pool == nil {
		return decimal.Zero, fmt.Errorf("ledger mirror not configured")
	}
	query := `
SELECT balance
FROM account_balances
WHERE account = $1 AND currency = $2`
	var balance string
	err := p.Pool.QueryRow(ctx, query, account, currency).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("read balance for %s: %w", account, err)
	}
	out, err := decimal.NewFromString(balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	return out, nil
}

func (p *Provider) blocklist(ctx context.Context) ([]string, error) {
	rows, err := p.Pool.Query(ctx, `SELECT destination FROM destination_blocklist ORDER BY destination ASC`)
	if err != nil {
		return nil, fmt.Errorf("read blocklist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var destination string
		if err := rows.Scan(&destination); err != nil {
			return nil, err
		}
		out = append(out, destination)
	}
	return out, rows.Err()
}

func (p *Provider) exchangeListings(ctx context.Context) (map[string]bool, error) {
	rows, err := p.Pool.Query(ctx, `SELECT currency FROM exchange_listings WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("read exchange listings: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var currency string
		if err := rows.Scan(&currency); err != nil {
			return nil, err
		}
		out[currency] = true
	}
	return out, rows.Err()
}

func (p *Provider) corridorPeers(ctx context.Context, currency string) ([]string, error) {
	query := `
SELECT peer_id
FROM corridor_peers
WHERE currency = $1 AND active
ORDER BY peer_id ASC`
	rows, err := p.Pool.Query(ctx, query, currency)
	if err != nil {
		return nil, fmt.Errorf("read corridor peers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var peer string
		if err := rows.Scan(&peer); err != nil {
			return nil, err
		}
		out = append(out, peer)
	}
	return out, rows.Err()
}
