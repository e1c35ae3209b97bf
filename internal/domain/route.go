package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RouteType string

const (
	RouteDirect   RouteType = "direct"
	RouteExchange RouteType = "exchange"
	RouteCorridor RouteType = "corridor"
)

// Route is one candidate settlement path. Routes are created per compute
// call and discarded after selection; they are never persisted.
//
// Confidence is a fixed per-type prior, not a measured risk estimate. Audit
// consumers must not read it as a computed quantity.
type Route struct {
	Type             RouteType
	Hops             []string
	EstimatedFee     decimal.Decimal
	EstimatedLatency time.Duration
	Confidence       float64
}

// SelectedRoute is the deterministic pick plus the remaining candidates in
// selection order, kept so an audit replay can reproduce the decision.
type SelectedRoute struct {
	Route
	Alternatives []Route
}
