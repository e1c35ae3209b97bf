package routes

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
)

// Exchange and corridor routes burn extra on-network fees relative to a
// direct transfer; the factors are part of the deterministic estimate.
var (
	feeFactorExchange = decimal.NewFromInt(2)
	feeFactorCorridor = decimal.NewFromInt(3)
)

// Confidence priors per route type. These are fixed constants, not measured
// quantities; they only order candidates deterministically.
const (
	confidenceDirect   = 0.95
	confidenceExchange = 0.80
	confidenceCorridor = 0.65
)

const (
	latencyDirect   = 4 * time.Second
	latencyExchange = 8 * time.Second
	latencyCorridor = 30 * time.Second
)

// Computer generates every structurally possible route and selects one
// deterministically. It is pure: identical envelope and ledger state always
// produce the identical selection and alternative ordering, which is what
// makes audit replay possible.
//
// Max-fee is deliberately not consulted here. A selection whose fee violates
// the envelope's bound is surfaced as-is so the rule validator rejects it;
// nothing is silently substituted.
type Computer struct{}

func NewComputer() *Computer {
	return &Computer{}
}

func (c *Computer) Compute(env domain.Envelope, state domain.LedgerState) (domain.SelectedRoute, error) {
	candidates := generate(env, state)

	filtered := candidates[:0]
	for _, route := range candidates {
		if env.AllowsRoute(route.Type) {
			filtered = append(filtered, route)
		}
	}
	if len(filtered) == 0 {
		return domain.SelectedRoute{}, fmt.Errorf("%w: no candidate matches allowed route types", domain.ErrNoRouteAvailable)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if cmp := a.EstimatedFee.Cmp(b.EstimatedFee); cmp != 0 {
			return cmp < 0
		}
		return a.EstimatedLatency < b.EstimatedLatency
	})

	return domain.SelectedRoute{
		Route:        filtered[0],
		Alternatives: filtered[1:],
	}, nil
}

func generate(env domain.Envelope, state domain.LedgerState) []domain.Route {
	var candidates []domain.Route

	candidates = append(candidates, domain.Route{
		Type:             domain.RouteDirect,
		Hops:             []string{env.Destination},
		EstimatedFee:     state.FeeEstimate,
		EstimatedLatency: latencyDirect,
		Confidence:       confidenceDirect,
	})

	if env.Action == domain.ActionSwap || state.ExchangeListings[env.Amount.Currency] {
		candidates = append(candidates, domain.Route{
			Type:             domain.RouteExchange,
			Hops:             []string{"orderbook:" + env.Amount.Currency, env.Destination},
			EstimatedFee:     state.FeeEstimate.Mul(feeFactorExchange),
			EstimatedLatency: latencyExchange,
			Confidence:       confidenceExchange,
		})
	}

	for _, peer := range state.CorridorPeers {
		candidates = append(candidates, domain.Route{
			Type:             domain.RouteCorridor,
			Hops:             []string{"corridor:" + peer, env.Destination},
			EstimatedFee:     state.FeeEstimate.Mul(feeFactorCorridor),
			EstimatedLatency: latencyCorridor,
			Confidence:       confidenceCorridor,
		})
	}

	return candidates
}
