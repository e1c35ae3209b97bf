package domain

import "github.com/shopspring/decimal"

// LedgerState is the gate's read-only snapshot of the settlement network:
// fee estimate, last known index, destination blocklist, and which currencies
// have an on-network order book or an open cross-network corridor.
type LedgerState struct {
	FeeEstimate      decimal.Decimal
	LastLedgerIndex  uint64
	Blocklist        []string
	ExchangeListings map[string]bool
	CorridorPeers    []string
}

func (s LedgerState) Blocklisted(destination string) bool {
	for _, d := range s.Blocklist {
		if d == destination {
			return true
		}
	}
	return false
}
