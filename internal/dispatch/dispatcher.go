package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/jitter/internal/auction"
	"github.com/coldbell/jitter/internal/driftclient"
	"github.com/coldbell/jitter/internal/driftmodel"
)

// FillTask is what a strategy hands the dispatcher to run per auctioning
// order; it owns removing orderSig from ongoingAuctions on every exit path.
type FillTask func(ctx context.Context, taker driftmodel.UserAccountSnapshot, takerKey solana.PublicKey, order driftmodel.Order, orderSig string)

// Dispatcher is the Base Auction Dispatcher (C4): it turns AuctionSubscriber
// events into at most one FillTask per OrderSignature.
type Dispatcher struct {
	registry *Registry
	drift    driftclient.DriftClient
	launch   FillTask
	logger   *slog.Logger

	mu       sync.Mutex
	ongoing  map[string]struct{}
}

// NewDispatcher binds a Registry, the min-order-size source, and the
// strategy's launch callback.
func NewDispatcher(registry *Registry, drift driftclient.DriftClient, launch FillTask, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		drift:    drift,
		launch:   launch,
		logger:   logger,
		ongoing:  make(map[string]struct{}),
	}
}

// Run reads AuctionEvents off the subscriber until ctx is done or the
// channel closes.
func (d *Dispatcher) Run(ctx context.Context, events <-chan driftclient.AuctionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			d.OnAccountUpdate(ctx, event)
		}
	}
}

// OnAccountUpdate implements spec §4.4 exactly, including its
// stop-the-whole-snapshot short-circuit policy on user-filter match,
// absent params, and below-minimum-size orders.
func (d *Dispatcher) OnAccountUpdate(ctx context.Context, event driftclient.AuctionEvent) {
	takerKeyStr := event.TakerKey.String()
	filter := d.registry.UserFilter()

	for _, order := range event.Taker.Orders {
		if order.Status != driftmodel.OrderStatusOpen {
			continue
		}
		if !auction.HasAuctionPrice(order, event.Slot) {
			continue
		}

		if filter != nil && filter(event.Taker, takerKeyStr, order) {
			return
		}

		orderSig := driftmodel.OrderSignature(event.TakerKey, order.OrderID)

		if d.isOngoing(orderSig) {
			continue
		}

		params, ok := d.registry.ParamsFor(order.MarketKind, order.MarketIndex)
		if !ok {
			return
		}

		minSize, err := d.minOrderSize(ctx, order)
		if err != nil {
			d.logger.Warn("could not read market minimum size, skipping snapshot", "err", err)
			return
		}
		if order.RemainingSize() <= minSize {
			return
		}

		if !d.register(orderSig) {
			continue
		}

		taker, takerKey, o, sig := event.Taker, event.TakerKey, order, orderSig
		go d.launch(ctx, taker, takerKey, o, sig)
	}
}

func (d *Dispatcher) minOrderSize(ctx context.Context, order driftmodel.Order) (uint64, error) {
	if order.MarketKind == driftmodel.MarketKindSpot {
		market, err := d.drift.GetSpotMarketAccount(ctx, order.MarketIndex)
		if err != nil {
			return 0, err
		}
		return market.MinOrderSize, nil
	}
	market, err := d.drift.GetPerpMarketAccount(ctx, order.MarketIndex)
	if err != nil {
		return 0, err
	}
	return market.MinOrderSize, nil
}

// isOngoing and register together form the race-free check-then-insert
// critical section spec §4.4/§5 requires: insertion happens before the
// fill task is spawned, under the same lock as the membership check.
func (d *Dispatcher) isOngoing(orderSig string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ongoing[orderSig]
	return ok
}

func (d *Dispatcher) register(orderSig string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ongoing[orderSig]; ok {
		return false
	}
	d.ongoing[orderSig] = struct{}{}
	return true
}

// Release removes an order signature from the ongoing set; every strategy
// fill task calls this on its way out, successful or not.
func (d *Dispatcher) Release(orderSig string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ongoing, orderSig)
}
