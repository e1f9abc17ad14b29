// Package dispatch wires auction events into fill attempts: the Registry
// (C7) holds the operator's live per-market parameters, and the Dispatcher
// (C4) filters each incoming snapshot against them and hands off exactly
// one fill task per still-auctioning order.
package dispatch

import (
	"sync"

	"github.com/coldbell/jitter/internal/driftmodel"
)

// UserFilter lets an operator veto an entire incoming snapshot. Returning
// true stops the dispatcher from processing anything else in that
// snapshot — a deliberate deny-at-first-match policy, not a per-order one.
type UserFilter func(taker driftmodel.UserAccountSnapshot, takerKey string, order driftmodel.Order) bool

// Registry is the two independent keyed parameter stores of spec §4.7.
// Every read goes straight to the live maps — C4/C5/C6 never cache a
// JitParams value across an await point.
type Registry struct {
	mu         sync.RWMutex
	perpParams map[uint16]driftmodel.JitParams
	spotParams map[uint16]driftmodel.JitParams
	userFilter UserFilter
}

// NewRegistry builds an empty registry; callers seed it with
// UpdatePerpParams/UpdateSpotParams before subscribing the dispatcher.
func NewRegistry() *Registry {
	return &Registry{
		perpParams: make(map[uint16]driftmodel.JitParams),
		spotParams: make(map[uint16]driftmodel.JitParams),
	}
}

func (r *Registry) UpdatePerpParams(marketIndex uint16, params driftmodel.JitParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perpParams[marketIndex] = params
}

func (r *Registry) UpdateSpotParams(marketIndex uint16, params driftmodel.JitParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spotParams[marketIndex] = params
}

func (r *Registry) PerpParams(marketIndex uint16) (driftmodel.JitParams, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.perpParams[marketIndex]
	return p, ok
}

func (r *Registry) SpotParams(marketIndex uint16) (driftmodel.JitParams, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.spotParams[marketIndex]
	return p, ok
}

// ParamsFor looks up by market kind, the shape C4/C5/C6 actually want.
func (r *Registry) ParamsFor(kind driftmodel.MarketKind, marketIndex uint16) (driftmodel.JitParams, bool) {
	if kind == driftmodel.MarketKindSpot {
		return r.SpotParams(marketIndex)
	}
	return r.PerpParams(marketIndex)
}

func (r *Registry) SetUserFilter(filter UserFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userFilter = filter
}

func (r *Registry) UserFilter() UserFilter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userFilter
}
